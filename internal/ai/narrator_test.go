package ai_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/ai"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/scoring"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

type stubNarrator struct {
	result ai.Narrative
	err    error
	calls  int
}

func (s *stubNarrator) Narrate(_ context.Context, _ ai.NarrativeInput) (ai.Narrative, error) {
	s.calls++
	return s.result, s.err
}

// discardLogger drops all output. fallback.go logs on primary failure, so a
// nil logger would panic.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleInput() ai.NarrativeInput {
	return ai.NarrativeInput{
		FlowTitle:  "Which offer fits you?",
		Answers:    []scoring.Answer{{QuestionID: "q1_budget", Value: "low", Label: "Under $500"}},
		Offer:      scoring.Offer{ID: "self-paced-course", Name: "Self-Paced Course"},
		Confidence: 1,
	}
}

// ─── FallbackNarrator ─────────────────────────────────────────────────────────

func TestFallbackNarrator_PrimarySucceeds_SecondaryNotCalled(t *testing.T) {
	primary := &stubNarrator{result: ai.Narrative{Summary: "Primary summary", NextStep: "Start today."}}
	secondary := &stubNarrator{result: ai.Narrative{Summary: "Secondary summary"}}

	n := ai.NewFallbackNarrator(primary, secondary, discardLogger())
	got, err := n.Narrate(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary != "Primary summary" {
		t.Errorf("expected primary result, got %q", got.Summary)
	}
	if primary.calls != 1 || secondary.calls != 0 {
		t.Errorf("calls: primary=%d secondary=%d", primary.calls, secondary.calls)
	}
}

func TestFallbackNarrator_PrimaryFails_SecondaryUsed(t *testing.T) {
	primary := &stubNarrator{err: errors.New("anthropic timeout")}
	secondary := &stubNarrator{result: ai.Narrative{Summary: "Secondary summary"}}

	n := ai.NewFallbackNarrator(primary, secondary, discardLogger())
	got, err := n.Narrate(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary != "Secondary summary" {
		t.Errorf("expected secondary result, got %q", got.Summary)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls: primary=%d secondary=%d", primary.calls, secondary.calls)
	}
}

func TestFallbackNarrator_BothFail_ReturnsError(t *testing.T) {
	n := ai.NewFallbackNarrator(
		&stubNarrator{err: errors.New("primary error")},
		&stubNarrator{err: errors.New("secondary error")},
		discardLogger(),
	)
	if _, err := n.Narrate(context.Background(), sampleInput()); err == nil {
		t.Fatal("expected error when both narrators fail")
	}
}

func TestFallbackNarrator_NilPrimary_UsesSecondaryDirectly(t *testing.T) {
	secondary := &stubNarrator{result: ai.Narrative{Summary: "Only secondary"}}

	n := ai.NewFallbackNarrator(nil, secondary, discardLogger())
	got, err := n.Narrate(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary != "Only secondary" || secondary.calls != 1 {
		t.Errorf("got %q after %d calls", got.Summary, secondary.calls)
	}
}

func TestFallbackNarrator_NilSecondary_PrimaryErrorBubbles(t *testing.T) {
	primaryErr := errors.New("primary blew up")
	n := ai.NewFallbackNarrator(&stubNarrator{err: primaryErr}, nil, discardLogger())

	_, err := n.Narrate(context.Background(), sampleInput())
	if !errors.Is(err, primaryErr) {
		t.Errorf("expected primaryErr in chain, got %v", err)
	}
}

func TestFallbackNarrator_NoneConfigured(t *testing.T) {
	n := ai.NewFallbackNarrator(nil, nil, discardLogger())
	if _, err := n.Narrate(context.Background(), sampleInput()); err == nil {
		t.Error("expected error with no narrators")
	}
}

// ─── Narrative ────────────────────────────────────────────────────────────────

func TestNarrative_String(t *testing.T) {
	tests := []struct {
		name string
		n    ai.Narrative
		want string
	}{
		{"both", ai.Narrative{Summary: "A.", NextStep: "B."}, "A.\n\nB."},
		{"summary only", ai.Narrative{Summary: " A. "}, "A."},
		{"zero", ai.Narrative{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.n.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
