package scoring

import (
	"encoding/json"
	"fmt"
)

// Answer is a single user response to one question. Value is the
// machine-readable choice; Label is what the user saw and may differ.
type Answer struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
	Label      string `json:"label,omitempty"`
}

// AnswerContext is the accumulated record of one quiz session's answers.
// Lookup is by question id; iteration follows insertion order, which is the
// order the user answered in.
//
// The zero value is an empty context ready to use. With returns a new
// context and never touches the receiver, so a context can be shared freely
// once built.
type AnswerContext struct {
	order []string
	byID  map[string]Answer
}

// NewAnswerContext builds a context from answers in the order given.
// A repeated question id keeps its first position and takes the later value.
func NewAnswerContext(answers ...Answer) AnswerContext {
	var ac AnswerContext
	for _, a := range answers {
		ac = ac.With(a)
	}
	return ac
}

// With returns a copy of the context with a added. Re-answering a question
// already present replaces its value in place.
func (ac AnswerContext) With(a Answer) AnswerContext {
	next := AnswerContext{
		order: make([]string, len(ac.order), len(ac.order)+1),
		byID:  make(map[string]Answer, len(ac.byID)+1),
	}
	copy(next.order, ac.order)
	for k, v := range ac.byID {
		next.byID[k] = v
	}
	if _, exists := next.byID[a.QuestionID]; !exists {
		next.order = append(next.order, a.QuestionID)
	}
	next.byID[a.QuestionID] = a
	return next
}

// Get returns the answer for questionID.
func (ac AnswerContext) Get(questionID string) (Answer, bool) {
	a, ok := ac.byID[questionID]
	return a, ok
}

// Len returns the number of answered questions.
func (ac AnswerContext) Len() int { return len(ac.order) }

// Keys returns question ids in insertion order.
func (ac AnswerContext) Keys() []string {
	out := make([]string, len(ac.order))
	copy(out, ac.order)
	return out
}

// All returns the answers in insertion order.
func (ac AnswerContext) All() []Answer {
	out := make([]Answer, 0, len(ac.order))
	for _, id := range ac.order {
		out = append(out, ac.byID[id])
	}
	return out
}

// MarshalJSON encodes the context as an ordered array so the answer order
// survives a round trip through the cache or the database.
func (ac AnswerContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(ac.All())
}

// UnmarshalJSON accepts the ordered array written by MarshalJSON.
func (ac *AnswerContext) UnmarshalJSON(data []byte) error {
	var answers []Answer
	if err := json.Unmarshal(data, &answers); err != nil {
		return fmt.Errorf("answer context: %w", err)
	}
	*ac = NewAnswerContext(answers...)
	return nil
}
