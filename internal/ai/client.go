// Package ai writes a short personalised narrative for a saved result: why
// the recommended offer fits the answers given, and one next step. The
// narrative is optional decoration; the scores stand on their own.
package ai

import (
	"context"
	"strings"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/scoring"
)

// NarrativeInput is everything a provider sees about one result.
type NarrativeInput struct {
	FlowTitle  string
	Answers    []scoring.Answer // in answer order
	Offer      scoring.Offer    // the recommended offer
	Confidence float64
}

// Narrative is the structured output of a successful Narrate call.
type Narrative struct {
	// Summary is 2-3 sentences tying the answers to the offer.
	Summary string
	// NextStep is one concrete action, a single sentence.
	NextStep string
}

// String joins the parts into the text stored on the result.
func (n Narrative) String() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{strings.TrimSpace(n.Summary), strings.TrimSpace(n.NextStep)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Narrator is the interface the worker uses. Implementations must be safe
// for concurrent use. A non-nil error means the whole call failed and the
// result is finalised without a narrative.
type Narrator interface {
	Narrate(ctx context.Context, in NarrativeInput) (Narrative, error)
}
