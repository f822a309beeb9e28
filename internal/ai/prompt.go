package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The model is asked for this exact JSON shape.
type narrativeJSON struct {
	Summary  string `json:"summary"`
	NextStep string `json:"next_step"`
}

const systemPrompt = `You are a warm, practical coach helping someone choose how to work with a coaching business.
You will receive the answers a person gave in a short quiz and the offer the scoring engine recommended for them.

Write:
1. summary: 2-3 sentences explaining, in second person, why this offer fits the answers they gave. Refer to their actual answers. No hype.
2. next_step: one sentence with a single concrete action they can take this week.

Respond ONLY with valid JSON matching this exact schema, no markdown fences, no preamble:
{
  "summary": "...",
  "next_step": "..."
}`

// buildPrompt serialises a result into the user message.
func buildPrompt(in NarrativeInput) string {
	var sb strings.Builder
	if in.FlowTitle != "" {
		fmt.Fprintf(&sb, "Quiz: %s\n\n", in.FlowTitle)
	}
	sb.WriteString("Answers:\n")
	for _, a := range in.Answers {
		label := a.Label
		if label == "" {
			label = a.Value
		}
		fmt.Fprintf(&sb, "- %s: %s\n", a.QuestionID, label)
	}
	sb.WriteString("\nRecommended offer:\n")
	fmt.Fprintf(&sb, "name: %s\n", in.Offer.Name)
	if in.Offer.Description != "" {
		fmt.Fprintf(&sb, "description: %s\n", in.Offer.Description)
	}
	fmt.Fprintf(&sb, "match: %.0f%%\n", in.Confidence*100)
	return sb.String()
}

// parseNarrative strips any markdown fences the model added and decodes the
// JSON body.
func parseNarrative(raw string) (Narrative, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var parsed narrativeJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Narrative{}, fmt.Errorf("parse response JSON: %w (raw: %.200s)", err, raw)
	}
	if strings.TrimSpace(parsed.Summary) == "" {
		return Narrative{}, fmt.Errorf("response has no summary")
	}
	return Narrative{Summary: parsed.Summary, NextStep: parsed.NextStep}, nil
}
