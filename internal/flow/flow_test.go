package flow_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/flow"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/scoring"
)

// ─── FIXTURES ─────────────────────────────────────────────────────────────────

func testFlow() *flow.Flow {
	return &flow.Flow{
		ID:    "intro",
		Title: "Intro",
		Steps: []flow.Step{
			{ID: "q1_name", Prompt: "What should we call you?", TagAs: "name"},
			{
				ID:     "q2_energy",
				Prompt: "Hi {{name}}, what gives you energy?",
				Options: []flow.Option{
					{Label: "People, {{name}}", Value: "people"},
					{Label: "Quiet focus", Value: "focus"},
				},
				TagAs:   "energy",
				StoreAs: "saw_energy",
			},
			{ID: "q3_goal", Prompt: "{{name}}, what's your goal?"},
		},
	}
}

// ─── ResolveTemplate / ResolveStepText ────────────────────────────────────────

func TestResolveStepText_UnknownTokenLeftVerbatim(t *testing.T) {
	got := flow.ResolveStepText(flow.Step{Prompt: "Hi {{unknown}}"}, flow.Vars{})
	if got != "Hi {{unknown}}" {
		t.Errorf("got %q", got)
	}
	if got := flow.ResolveStepText(flow.Step{Prompt: "Hi {{unknown}}"}, nil); got != "Hi {{unknown}}" {
		t.Errorf("nil vars: got %q", got)
	}
}

func TestResolveStepText_ReplacesEveryOccurrence(t *testing.T) {
	got := flow.ResolveStepText(flow.Step{Prompt: "{{x}} and {{x}}"}, flow.Vars{"x": "A"})
	if got != "A and A" {
		t.Errorf("got %q, want %q", got, "A and A")
	}
}

func TestResolveTemplate(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars flow.Vars
		want string
	}{
		{"no tokens", "plain text", flow.Vars{"x": "1"}, "plain text"},
		{"mixed bound and unbound", "{{a}}-{{b}}-{{a}}", flow.Vars{"a": "1"}, "1-{{b}}-1"},
		{"bool value", "seen={{seen}}", flow.Vars{"seen": true}, "seen=true"},
		{"number value", "n={{n}}", flow.Vars{"n": 3}, "n=3"},
		{"empty value", "[{{e}}]", flow.Vars{"e": ""}, "[]"},
		{"not recursive", "{{a}}", flow.Vars{"a": "{{b}}", "b": "boom"}, "{{b}}"},
		{"self reference", "{{a}}", flow.Vars{"a": "{{a}}"}, "{{a}}"},
		{"key is exact", "{{ a }}", flow.Vars{"a": "1"}, "{{ a }}"},
		{"spaced key bound", "{{ a }}", flow.Vars{" a ": "1"}, "1"},
		{"unterminated", "{{a", flow.Vars{"a": "1"}, "{{a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flow.ResolveTemplate(tt.tmpl, tt.vars); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_ResolvesOptionLabels(t *testing.T) {
	f := testFlow()
	r := f.Render(1, flow.Vars{"name": "Alex"})
	if r.Text != "Hi Alex, what gives you energy?" {
		t.Errorf("text: got %q", r.Text)
	}
	if r.Options[0].Label != "People, Alex" || r.Options[0].Value != "people" {
		t.Errorf("option: got %+v", r.Options[0])
	}
	if f.Steps[1].Options[0].Label != "People, {{name}}" {
		t.Error("Render must not modify the flow definition")
	}
}

// ─── Apply ────────────────────────────────────────────────────────────────────

func TestApply(t *testing.T) {
	step := flow.Step{ID: "s", TagAs: "energy", StoreAs: "saw_energy"}
	in := flow.Vars{"name": "Alex"}

	out := flow.Apply(step, scoring.Answer{QuestionID: "s", Value: "people"}, in)

	want := flow.Vars{"name": "Alex", "energy": "people", "saw_energy": true}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("got %v, want %v", out, want)
	}
	if len(in) != 1 {
		t.Errorf("input vars mutated: %v", in)
	}
}

// ─── Advance ──────────────────────────────────────────────────────────────────

func TestAdvance_TagAsCapturesValue(t *testing.T) {
	f := testFlow()
	s0 := flow.Start(f)

	s1, err := f.Advance(s0, "Alex", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1.Vars["name"] != "Alex" {
		t.Errorf("vars: got %v", s1.Vars)
	}
	if s1.Index != 1 || s1.Status != flow.StatusActive {
		t.Errorf("state: index=%d status=%s", s1.Index, s1.Status)
	}
	if a, ok := s1.Answers.Get("q1_name"); !ok || a.Value != "Alex" || a.Label != "Alex" {
		t.Errorf("answer: got %+v ok=%v", a, ok)
	}
	if s0.Index != 0 || s0.Answers.Len() != 0 || len(s0.Vars) != 0 {
		t.Error("Advance must not modify its input state")
	}
}

func TestAdvance_ChoiceFillsLabelAndStoresMarker(t *testing.T) {
	f := testFlow()
	s, _ := f.Advance(flow.Start(f), "Alex", "")

	s, err := f.Advance(s, "focus", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := s.Answers.Get("q2_energy")
	if a.Label != "Quiet focus" {
		t.Errorf("label: got %q", a.Label)
	}
	if s.Vars["energy"] != "focus" || s.Vars["saw_energy"] != true {
		t.Errorf("vars: got %v", s.Vars)
	}
}

func TestAdvance_InvalidChoice(t *testing.T) {
	f := testFlow()
	s, _ := f.Advance(flow.Start(f), "Alex", "")

	_, err := f.Advance(s, "nope", "")
	if !errors.Is(err, flow.ErrInvalidChoice) {
		t.Errorf("expected ErrInvalidChoice, got %v", err)
	}
}

func TestAdvance_BlankFreeText(t *testing.T) {
	f := testFlow()
	_, err := f.Advance(flow.Start(f), "   ", "")
	if !errors.Is(err, flow.ErrEmptyAnswer) {
		t.Errorf("expected ErrEmptyAnswer, got %v", err)
	}
}

func TestAdvance_LastStepCompletes(t *testing.T) {
	f := testFlow()
	s := flow.Start(f)
	for _, v := range []string{"Alex", "people", "Ship it"} {
		var err error
		if s, err = f.Advance(s, v, ""); err != nil {
			t.Fatalf("advance %q: %v", v, err)
		}
	}
	if s.Status != flow.StatusComplete {
		t.Fatalf("status: got %s, want complete", s.Status)
	}
	if _, ok := f.Current(s); ok {
		t.Error("Current should report no step once complete")
	}
	if s.Answers.Len() != 3 {
		t.Errorf("answers: got %d, want 3", s.Answers.Len())
	}
	if _, err := f.Advance(s, "more", ""); !errors.Is(err, flow.ErrFlowFinished) {
		t.Errorf("expected ErrFlowFinished, got %v", err)
	}
}

func TestAdvance_NavigateToLeavesFlow(t *testing.T) {
	f := &flow.Flow{
		ID: "gate",
		Steps: []flow.Step{
			{ID: "q1_ready", Prompt: "Ready?", Options: []flow.Option{{Label: "Yes", Value: "yes"}}, NavigateTo: "/dashboard"},
			{ID: "q2_never", Prompt: "unreachable"},
		},
	}
	s, err := f.Advance(flow.Start(f), "yes", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != flow.StatusExternal || s.Target != "/dashboard" {
		t.Errorf("got status=%s target=%q", s.Status, s.Target)
	}
	if _, err := f.Advance(s, "x", ""); !errors.Is(err, flow.ErrFlowFinished) {
		t.Errorf("expected ErrFlowFinished, got %v", err)
	}
}

// ─── Rewind ───────────────────────────────────────────────────────────────────

func TestRewind_DropsLaterAnswersAndRebuildsVars(t *testing.T) {
	f := testFlow()
	s := flow.Start(f)
	s, _ = f.Advance(s, "Alex", "")
	s, _ = f.Advance(s, "people", "")

	back, err := f.Rewind(s, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.Index != 1 || back.Status != flow.StatusActive {
		t.Errorf("state: index=%d status=%s", back.Index, back.Status)
	}
	if !reflect.DeepEqual(back.Answers.Keys(), []string{"q1_name"}) {
		t.Errorf("answers: got %v", back.Answers.Keys())
	}
	want := flow.Vars{"name": "Alex"}
	if !reflect.DeepEqual(back.Vars, want) {
		t.Errorf("vars: got %v, want %v", back.Vars, want)
	}
}

func TestRewind_FromComplete(t *testing.T) {
	f := testFlow()
	s := flow.Start(f)
	s, _ = f.Advance(s, "Alex", "")
	s, _ = f.Advance(s, "people", "")
	s, _ = f.Advance(s, "goal", "")

	back, err := f.Rewind(s, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.Index != 0 || back.Answers.Len() != 0 || len(back.Vars) != 0 {
		t.Errorf("expected a fresh start, got %+v", back)
	}
}

func TestRewind_Invalid(t *testing.T) {
	f := testFlow()
	s, _ := f.Advance(flow.Start(f), "Alex", "")

	for _, idx := range []int{-1, 1, 2, 5} {
		if _, err := f.Rewind(s, idx); !errors.Is(err, flow.ErrInvalidRewind) {
			t.Errorf("index %d: expected ErrInvalidRewind, got %v", idx, err)
		}
	}
}

// ─── ParseFlow / Validate ─────────────────────────────────────────────────────

func TestIsGated(t *testing.T) {
	tests := []struct {
		name string
		f    flow.Flow
		want bool
	}{
		{"free and open", flow.Flow{ID: "a"}, false},
		{"requires another flow", flow.Flow{ID: "b", Requires: []string{"a"}}, true},
		{"paid", flow.Flow{ID: "c", PriceCents: 2900}, true},
		{"both", flow.Flow{ID: "d", Requires: []string{"a"}, PriceCents: 2900}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.IsGated(); got != tt.want {
				t.Errorf("IsGated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFlow_AcceptsCamelCaseKeys(t *testing.T) {
	f, err := flow.ParseFlow(json.RawMessage(`{
		"id": "legacy",
		"title": "Legacy",
		"steps": [
			{"step": "q1_name", "prompt": "Name?", "tagAs": "name"},
			{"step": "q2_done", "prompt": "Thanks {{name}}", "storeAs": "done", "navigateTo": "/home"}
		]
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Steps[0].ID != "q1_name" || f.Steps[0].TagAs != "name" {
		t.Errorf("step 0: got %+v", f.Steps[0])
	}
	if f.Steps[1].StoreAs != "done" || f.Steps[1].NavigateTo != "/home" {
		t.Errorf("step 1: got %+v", f.Steps[1])
	}
}

func TestParseFlow_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ``},
		{"malformed", `{bad`},
		{"no id", `{"steps": [{"id": "a", "prompt": "x"}]}`},
		{"no steps", `{"id": "f", "steps": []}`},
		{"step without id", `{"id": "f", "steps": [{"prompt": "x"}]}`},
		{"duplicate step id", `{"id": "f", "steps": [{"id": "a"}, {"id": "a"}]}`},
		{"option without value", `{"id": "f", "steps": [{"id": "a", "options": [{"label": "x"}]}]}`},
		{"negative price", `{"id": "f", "price_cents": -1, "steps": [{"id": "a"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := flow.ParseFlow(json.RawMessage(tt.raw)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ─── State JSON ───────────────────────────────────────────────────────────────

func TestState_JSONRoundTrip(t *testing.T) {
	f := testFlow()
	s := flow.Start(f)
	s, _ = f.Advance(s, "Alex", "")
	s, _ = f.Advance(s, "people", "People!")

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back flow.State
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Index != 2 || back.Status != flow.StatusActive {
		t.Errorf("state: %+v", back)
	}
	if !reflect.DeepEqual(back.Answers.All(), s.Answers.All()) {
		t.Errorf("answers differ: %v vs %v", back.Answers.All(), s.Answers.All())
	}
	if back.Vars["saw_energy"] != true || back.Vars["name"] != "Alex" {
		t.Errorf("vars: %v", back.Vars)
	}
}
