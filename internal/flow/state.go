package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/scoring"
)

// ─── STATUS ───────────────────────────────────────────────────────────────────

// Status is where a session sits in the flow's state machine.
type Status string

const (
	StatusActive   Status = "active"   // showing step Index
	StatusComplete Status = "complete" // the last step was answered
	StatusExternal Status = "external" // a step's NavigateTo took the user out of the flow
)

// ─── ERRORS ───────────────────────────────────────────────────────────────────

var (
	// ErrFlowFinished is returned when answering a session that is already
	// complete or has left the flow.
	ErrFlowFinished = errors.New("flow: session already finished")

	// ErrInvalidChoice is returned when a choice step receives a value that is
	// not one of its options.
	ErrInvalidChoice = errors.New("flow: value is not one of the step's options")

	// ErrEmptyAnswer is returned when a free-text step receives blank input.
	ErrEmptyAnswer = errors.New("flow: answer must not be empty")

	// ErrInvalidRewind is returned when back-navigation targets an index that
	// is not strictly before the current position.
	ErrInvalidRewind = errors.New("flow: rewind target out of range")
)

// ─── STATE ────────────────────────────────────────────────────────────────────

// State is one session's progress through one flow. It is a plain value:
// Advance and Rewind return a new State and leave their input untouched, so
// the owner decides when (and whether) to persist it.
type State struct {
	FlowID  string                `json:"flow_id"`
	Index   int                   `json:"index"`
	Status  Status                `json:"status"`
	Answers scoring.AnswerContext `json:"answers"`
	Vars    Vars                  `json:"vars"`
	// Target is the NavigateTo value when Status is StatusExternal.
	Target string `json:"target,omitempty"`
}

// Finished reports whether the state is terminal.
func (s State) Finished() bool { return s.Status != StatusActive }

// Start returns the initial state: step 0, nothing answered.
func Start(f *Flow) State {
	return State{
		FlowID: f.ID,
		Index:  0,
		Status: StatusActive,
		Vars:   Vars{},
	}
}

// Current returns the step being shown, or ok=false once the state is
// terminal.
func (f *Flow) Current(s State) (Step, bool) {
	if s.Finished() || s.Index < 0 || s.Index >= len(f.Steps) {
		return Step{}, false
	}
	return f.Steps[s.Index], true
}

// Apply returns vars updated with the effect of answering step: TagAs
// captures the answer's value and StoreAs records a true marker. vars itself
// is not modified.
func Apply(step Step, answer scoring.Answer, vars Vars) Vars {
	next := vars.clone()
	if step.TagAs != "" {
		next[step.TagAs] = answer.Value
	}
	if step.StoreAs != "" {
		next[step.StoreAs] = true
	}
	return next
}

// Advance records an answer to the current step and moves the session on:
// to the next index, to StatusComplete after the last step, or to
// StatusExternal when the step declares NavigateTo.
//
// For choice steps value must be one of the options; an empty label is
// filled from the option. For free-text steps value is trimmed and must not
// be blank; the label defaults to the value.
func (f *Flow) Advance(s State, value, label string) (State, error) {
	step, ok := f.Current(s)
	if !ok {
		return s, ErrFlowFinished
	}

	answer := scoring.Answer{QuestionID: step.ID, Value: value, Label: label}
	if step.IsChoice() {
		opt, ok := step.Choice(value)
		if !ok {
			return s, fmt.Errorf("step %q: %w: %q", step.ID, ErrInvalidChoice, value)
		}
		if answer.Label == "" {
			answer.Label = opt.Label
		}
	} else {
		answer.Value = strings.TrimSpace(value)
		if answer.Value == "" {
			return s, fmt.Errorf("step %q: %w", step.ID, ErrEmptyAnswer)
		}
		if answer.Label == "" {
			answer.Label = answer.Value
		}
	}

	next := State{
		FlowID:  s.FlowID,
		Index:   s.Index,
		Status:  StatusActive,
		Answers: s.Answers.With(answer),
		Vars:    Apply(step, answer, s.Vars),
	}

	switch {
	case step.NavigateTo != "":
		next.Status = StatusExternal
		next.Target = step.NavigateTo
	case s.Index+1 >= len(f.Steps):
		next.Index = len(f.Steps)
		next.Status = StatusComplete
	default:
		next.Index = s.Index + 1
	}
	return next, nil
}

// Rewind resets the session to an earlier step. Answers to steps at or after
// index are dropped and Vars are rebuilt by replaying the kept answers, so no
// trace of the discarded answers survives.
//
// A complete session may rewind to any step; an active one only to a step
// before its current index. External sessions have left the flow and cannot
// rewind.
func (f *Flow) Rewind(s State, index int) (State, error) {
	if s.Status == StatusExternal {
		return s, ErrFlowFinished
	}
	if index < 0 || index >= len(f.Steps) || index >= s.Index {
		return s, fmt.Errorf("%w: %d (current %d)", ErrInvalidRewind, index, s.Index)
	}

	next := Start(f)
	next.Index = index
	for _, a := range s.Answers.All() {
		pos := f.stepIndex(a.QuestionID)
		if pos < 0 || pos >= index {
			continue
		}
		next.Answers = next.Answers.With(a)
		next.Vars = Apply(f.Steps[pos], a, next.Vars)
	}
	return next, nil
}
