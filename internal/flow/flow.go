// Package flow drives linear question flows: it renders a step's prompt
// against the answers collected so far and moves a session from one step to
// the next. Like scoring, it is pure and has no I/O.
package flow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Option is one button on a choice step.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Step is one node of a flow. A step with Options is answered by picking one
// of them; a step without Options collects free text.
//
// TagAs names the template variable that receives the answer's value.
// StoreAs names a variable set to true once the step has been answered.
// NavigateTo, when set, makes the step leave the flow instead of advancing.
type Step struct {
	ID         string   `json:"id"`
	Prompt     string   `json:"prompt"`
	Options    []Option `json:"options,omitempty"`
	TagAs      string   `json:"tag_as,omitempty"`
	StoreAs    string   `json:"store_as,omitempty"`
	NavigateTo string   `json:"navigate_to,omitempty"`
}

// IsChoice reports whether the step is presented as buttons.
func (s Step) IsChoice() bool { return len(s.Options) > 0 }

// Choice returns the option whose value is value.
func (s Step) Choice(value string) (Option, bool) {
	for _, o := range s.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// UnmarshalJSON accepts both the snake_case keys used by this service and the
// camelCase keys ("step", "tagAs", "storeAs", "navigateTo") found in older
// flow documents.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID              string   `json:"id"`
		StepID          string   `json:"step"`
		Prompt          string   `json:"prompt"`
		Options         []Option `json:"options"`
		TagAs           string   `json:"tag_as"`
		TagAsCamel      string   `json:"tagAs"`
		StoreAs         string   `json:"store_as"`
		StoreAsCamel    string   `json:"storeAs"`
		NavigateTo      string   `json:"navigate_to"`
		NavigateToCamel string   `json:"navigateTo"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Step{
		ID:         firstNonEmpty(raw.ID, raw.StepID),
		Prompt:     raw.Prompt,
		Options:    raw.Options,
		TagAs:      firstNonEmpty(raw.TagAs, raw.TagAsCamel),
		StoreAs:    firstNonEmpty(raw.StoreAs, raw.StoreAsCamel),
		NavigateTo: firstNonEmpty(raw.NavigateTo, raw.NavigateToCamel),
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Flow is a static, ordered question flow. CatalogID names the offer catalog
// its answers are scored against; journaling flows leave it empty.
//
// Requires lists flows that must have a saved result before this one can be
// started, and PriceCents > 0 means the flow must be unlocked by payment.
type Flow struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	CatalogID  string   `json:"catalog_id,omitempty"`
	Requires   []string `json:"requires,omitempty"`
	PriceCents int64    `json:"price_cents,omitempty"`
	Steps      []Step   `json:"steps"`
}

// Len returns the number of steps.
func (f *Flow) Len() int { return len(f.Steps) }

// IsGated reports whether starting the flow needs a prerequisite or payment.
func (f *Flow) IsGated() bool { return len(f.Requires) > 0 || f.PriceCents > 0 }

// Validate checks the structural rules a flow must satisfy to be runnable.
// Call it once at load time.
func (f *Flow) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("flow: id must not be empty")
	}
	if len(f.Steps) == 0 {
		return fmt.Errorf("flow %q: steps must not be empty", f.ID)
	}
	if f.PriceCents < 0 {
		return fmt.Errorf("flow %q: price_cents must be >= 0, got %d", f.ID, f.PriceCents)
	}
	seen := make(map[string]int, len(f.Steps))
	for i, s := range f.Steps {
		if s.ID == "" {
			return fmt.Errorf("flow %q: step[%d] has no id", f.ID, i)
		}
		if prev, dup := seen[s.ID]; dup {
			return fmt.Errorf("flow %q: step id %q used at %d and %d", f.ID, s.ID, prev, i)
		}
		seen[s.ID] = i
		for j, o := range s.Options {
			if o.Value == "" {
				return fmt.Errorf("flow %q: step %q option[%d] has no value", f.ID, s.ID, j)
			}
		}
	}
	return nil
}

// stepIndex returns the position of the step with id, or -1.
func (f *Flow) stepIndex(id string) int {
	for i, s := range f.Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// ParseFlow unmarshals and validates a single flow document.
func ParseFlow(raw json.RawMessage) (*Flow, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("flow: empty JSON")
	}
	var f Flow
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("flow: cannot unmarshal: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}
