package scoring_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/scoring"
)

// ─── HELPERS ──────────────────────────────────────────────────────────────────

func ans(questionID, value string) scoring.Answer {
	return scoring.Answer{QuestionID: questionID, Value: value, Label: value}
}

func ids(scored []scoring.ScoredOffer) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.OfferID
	}
	return out
}

// ─── NormalizeQuestionID ──────────────────────────────────────────────────────

func TestNormalizeQuestionID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"q3_foo", "Q3_foo"},
		{"q12_time_budget", "Q12_time_budget"},
		{"Q3_foo", "Q3_foo"},
		{"question_foo", "question_foo"},
		{"q_foo", "q_foo"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := scoring.NormalizeQuestionID(tt.in); got != tt.want {
			t.Errorf("NormalizeQuestionID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ─── ScoreOffers: scoring ─────────────────────────────────────────────────────

func TestScoreOffers_SimpleScoring(t *testing.T) {
	offers := []scoring.Offer{{
		ID:               "a",
		ScoringWeights:   map[string]map[string]float64{"Q1_budget": {"low": 5, "high": 10}},
		MaxPossibleScore: 10,
	}}
	answers := scoring.NewAnswerContext(ans("q1_budget", "high"))

	got := scoring.ScoreOffers(answers, offers)
	if len(got) != 1 {
		t.Fatalf("expected 1 scored offer, got %d", len(got))
	}
	if got[0].TotalScore != 10 {
		t.Errorf("total: got %v, want 10", got[0].TotalScore)
	}
	if got[0].Confidence != 1.0 {
		t.Errorf("confidence: got %v, want 1.0", got[0].Confidence)
	}
	if got[0].IsDisqualified {
		t.Error("offer should not be disqualified")
	}
	if got[0].Offer != &offers[0] {
		t.Error("Offer should point back at the catalog entry")
	}
}

func TestScoreOffers_SumsAcrossQuestions(t *testing.T) {
	offers := []scoring.Offer{{
		ID: "a",
		ScoringWeights: map[string]map[string]float64{
			"Q1_budget": {"high": 10},
			"Q2_time":   {"lots": 4},
			"Q3_style":  {"solo": -3},
		},
	}}
	answers := scoring.NewAnswerContext(
		ans("q1_budget", "high"),
		ans("q2_time", "lots"),
		ans("q3_style", "solo"),
		ans("q4_unweighted", "x"),
	)

	got := scoring.ScoreOffers(answers, offers)
	if got[0].TotalScore != 11 {
		t.Errorf("total: got %v, want 11", got[0].TotalScore)
	}
	if got[0].MaxPossibleScore != 30 {
		t.Errorf("max: got %v, want default 30", got[0].MaxPossibleScore)
	}
	if want := 11.0 / 30.0; got[0].Confidence != want {
		t.Errorf("confidence: got %v, want %v", got[0].Confidence, want)
	}
}

func TestScoreOffers_UnknownValueContributesZero(t *testing.T) {
	offers := []scoring.Offer{{
		ID:             "a",
		ScoringWeights: map[string]map[string]float64{"Q1_budget": {"high": 10}},
	}}
	got := scoring.ScoreOffers(scoring.NewAnswerContext(ans("q1_budget", "medium")), offers)
	if got[0].TotalScore != 0 {
		t.Errorf("total: got %v, want 0", got[0].TotalScore)
	}
}

func TestScoreOffers_ConfidenceIsNotClamped(t *testing.T) {
	offers := []scoring.Offer{
		{
			ID:               "over",
			ScoringWeights:   map[string]map[string]float64{"Q1_x": {"a": 20}},
			MaxPossibleScore: 10,
		},
		{
			ID:               "under",
			ScoringWeights:   map[string]map[string]float64{"Q1_x": {"a": -5}},
			MaxPossibleScore: 10,
		},
	}
	got := scoring.ScoreOffers(scoring.NewAnswerContext(ans("q1_x", "a")), offers)
	if got[0].OfferID != "over" || got[0].Confidence != 2.0 {
		t.Errorf("expected over with confidence 2.0, got %s %v", got[0].OfferID, got[0].Confidence)
	}
	if got[1].OfferID != "under" || got[1].Confidence != -0.5 {
		t.Errorf("expected under with confidence -0.5, got %s %v", got[1].OfferID, got[1].Confidence)
	}
}

func TestScoreOffers_ZeroAnswerBaseline(t *testing.T) {
	offers := []scoring.Offer{
		{
			ID:                "a",
			ScoringWeights:    map[string]map[string]float64{"Q1_budget": {"high": 10}},
			MaxPossibleScore:  20,
			HardDisqualifiers: []scoring.DisqualifierRule{{Field: "budget", Disallowed: []string{""}}},
		},
		{ID: "b"},
	}

	got := scoring.ScoreOffers(scoring.AnswerContext{}, offers)
	for _, s := range got {
		if s.TotalScore != 0 {
			t.Errorf("%s: total %v, want 0", s.OfferID, s.TotalScore)
		}
		if s.Confidence != 0 {
			t.Errorf("%s: confidence %v, want 0", s.OfferID, s.Confidence)
		}
		if s.IsDisqualified {
			t.Errorf("%s: a rule must not match an absent answer", s.OfferID)
		}
		if len(s.DisqualificationReasons) != 0 {
			t.Errorf("%s: unexpected reasons %v", s.OfferID, s.DisqualificationReasons)
		}
	}
}

func TestScoreOffers_MissingWeightTable(t *testing.T) {
	offers := []scoring.Offer{{ID: "bare"}}
	answers := scoring.NewAnswerContext(ans("q1_budget", "high"), ans("q2_team_size", "solo"))

	got := scoring.ScoreOffers(answers, offers)
	if got[0].TotalScore != 0 || got[0].IsDisqualified {
		t.Errorf("bare offer: got total=%v disqualified=%v", got[0].TotalScore, got[0].IsDisqualified)
	}
}

func TestScoreOffers_EmptyCatalog(t *testing.T) {
	got := scoring.ScoreOffers(scoring.NewAnswerContext(ans("q1_a", "b")), nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

// ─── ScoreOffers: disqualification ───────────────────────────────────────────

func TestScoreOffers_DisqualificationOverridesScore(t *testing.T) {
	offers := []scoring.Offer{
		{
			ID:             "A",
			ScoringWeights: map[string]map[string]float64{"Q1_budget": {"high": 30}},
			HardDisqualifiers: []scoring.DisqualifierRule{
				{Field: "team_size", Disallowed: []string{"solo"}, Reason: "Needs a team"},
			},
		},
		{
			ID:             "B",
			ScoringWeights: map[string]map[string]float64{"Q1_budget": {"high": 5}},
		},
	}
	answers := scoring.NewAnswerContext(ans("q1_budget", "high"), ans("q2_team_size", "solo"))

	got := scoring.ScoreOffers(answers, offers)
	if !reflect.DeepEqual(ids(got), []string{"B", "A"}) {
		t.Fatalf("order: got %v, want [B A]", ids(got))
	}
	a := got[1]
	if !a.IsDisqualified {
		t.Error("A should be disqualified")
	}
	if a.TotalScore != 30 {
		t.Errorf("A keeps its score: got %v", a.TotalScore)
	}
	if !reflect.DeepEqual(a.DisqualificationReasons, []string{"Needs a team"}) {
		t.Errorf("reasons: got %v", a.DisqualificationReasons)
	}
}

func TestScoreOffers_AllRulesEvaluatedWithDefaultReason(t *testing.T) {
	offers := []scoring.Offer{{
		ID: "a",
		HardDisqualifiers: []scoring.DisqualifierRule{
			{Field: "team_size", Disallowed: []string{"solo"}},
			{Field: "budget", Disallowed: []string{"none", "low"}, Reason: "Budget too small"},
			{Field: "time", Disallowed: []string{"none"}},
		},
	}}
	answers := scoring.NewAnswerContext(
		ans("q1_budget", "low"),
		ans("q2_team_size", "solo"),
		ans("q3_time", "plenty"),
	)

	got := scoring.ScoreOffers(answers, offers)
	want := []string{"Disqualified due to team_size", "Budget too small"}
	if !reflect.DeepEqual(got[0].DisqualificationReasons, want) {
		t.Errorf("reasons: got %v, want %v", got[0].DisqualificationReasons, want)
	}
}

func TestScoreOffers_FieldSuffixIsCaseInsensitive(t *testing.T) {
	offers := []scoring.Offer{{
		ID:                "a",
		HardDisqualifiers: []scoring.DisqualifierRule{{Field: "Team_Size", Disallowed: []string{"solo"}}},
	}}
	got := scoring.ScoreOffers(scoring.NewAnswerContext(ans("Q2_TEAM_SIZE", "solo")), offers)
	if !got[0].IsDisqualified {
		t.Error("suffix match should ignore case")
	}
}

func TestScoreOffers_SuffixRequiresUnderscoreBoundary(t *testing.T) {
	offers := []scoring.Offer{{
		ID:                "a",
		HardDisqualifiers: []scoring.DisqualifierRule{{Field: "size", Disallowed: []string{"solo"}}},
	}}
	// "q2_teamsize" ends in "size" but not in "_size".
	got := scoring.ScoreOffers(scoring.NewAnswerContext(ans("q2_teamsize", "solo")), offers)
	if got[0].IsDisqualified {
		t.Error("field must match on an underscore boundary")
	}
}

func TestScoreOffers_SuffixCollisionUsesFirstAnswered(t *testing.T) {
	offers := []scoring.Offer{{
		ID:                "a",
		HardDisqualifiers: []scoring.DisqualifierRule{{Field: "team_size", Disallowed: []string{"solo"}}},
	}}

	// First-answered key says "large": the later "solo" is never consulted.
	notDQ := scoring.NewAnswerContext(ans("q2_team_size", "large"), ans("q7_team_size", "solo"))
	if got := scoring.ScoreOffers(notDQ, offers); got[0].IsDisqualified {
		t.Error("first-answered matching key should decide (large → not disqualified)")
	}

	// Reverse the insertion order and the verdict flips.
	dq := scoring.NewAnswerContext(ans("q7_team_size", "solo"), ans("q2_team_size", "large"))
	if got := scoring.ScoreOffers(dq, offers); !got[0].IsDisqualified {
		t.Error("first-answered matching key should decide (solo → disqualified)")
	}
}

// ─── ScoreOffers: ordering ────────────────────────────────────────────────────

func TestScoreOffers_OrderingInvariant(t *testing.T) {
	rule := []scoring.DisqualifierRule{{Field: "goal", Disallowed: []string{"hobby"}}}
	offers := []scoring.Offer{
		{ID: "dq_low", ScoringWeights: map[string]map[string]float64{"Q1_x": {"a": 1}}, HardDisqualifiers: rule},
		{ID: "ok_mid", ScoringWeights: map[string]map[string]float64{"Q1_x": {"a": 5}}},
		{ID: "dq_high", ScoringWeights: map[string]map[string]float64{"Q1_x": {"a": 50}}, HardDisqualifiers: rule},
		{ID: "ok_high", ScoringWeights: map[string]map[string]float64{"Q1_x": {"a": 9}}},
		{ID: "ok_zero"},
	}
	answers := scoring.NewAnswerContext(ans("q1_x", "a"), ans("q2_goal", "hobby"))

	got := scoring.ScoreOffers(answers, offers)
	want := []string{"ok_high", "ok_mid", "ok_zero", "dq_high", "dq_low"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("order: got %v, want %v", ids(got), want)
	}

	seenDQ := false
	for i, s := range got {
		if s.IsDisqualified {
			seenDQ = true
		} else if seenDQ {
			t.Errorf("position %d: qualified offer after a disqualified one", i)
		}
		if i > 0 && got[i-1].IsDisqualified == s.IsDisqualified && got[i-1].TotalScore < s.TotalScore {
			t.Errorf("position %d: score increases within a partition", i)
		}
	}
}

func TestScoreOffers_RanksByTotalNotConfidence(t *testing.T) {
	offers := []scoring.Offer{
		{ID: "sure_small", ScoringWeights: map[string]map[string]float64{"Q1_x": {"a": 10}}, MaxPossibleScore: 10},
		{ID: "big_unsure", ScoringWeights: map[string]map[string]float64{"Q1_x": {"a": 20}}, MaxPossibleScore: 100},
	}
	got := scoring.ScoreOffers(scoring.NewAnswerContext(ans("q1_x", "a")), offers)
	if !reflect.DeepEqual(ids(got), []string{"big_unsure", "sure_small"}) {
		t.Fatalf("order: got %v, want [big_unsure sure_small]", ids(got))
	}
	if got[0].Confidence >= got[1].Confidence {
		t.Errorf("fixture should rank the lower confidence first: %v vs %v", got[0].Confidence, got[1].Confidence)
	}
}

func TestScoreOffers_TiesKeepCatalogOrder(t *testing.T) {
	w := map[string]map[string]float64{"Q1_x": {"a": 7}}
	offers := []scoring.Offer{
		{ID: "z", ScoringWeights: w},
		{ID: "a", ScoringWeights: w},
		{ID: "m", ScoringWeights: w},
	}
	got := scoring.ScoreOffers(scoring.NewAnswerContext(ans("q1_x", "a")), offers)
	if !reflect.DeepEqual(ids(got), []string{"z", "a", "m"}) {
		t.Errorf("tie order: got %v, want [z a m]", ids(got))
	}
}

func TestScoreOffers_Deterministic(t *testing.T) {
	offers := []scoring.Offer{
		{ID: "a", ScoringWeights: map[string]map[string]float64{"Q1_x": {"a": 3}, "Q2_y": {"b": 4}}},
		{ID: "b", ScoringWeights: map[string]map[string]float64{"Q1_x": {"a": 7}}},
		{ID: "c", HardDisqualifiers: []scoring.DisqualifierRule{{Field: "y", Disallowed: []string{"b"}}}},
	}
	answers := scoring.NewAnswerContext(ans("q1_x", "a"), ans("q2_y", "b"))

	first := scoring.ScoreOffers(answers, offers)
	for i := 0; i < 20; i++ {
		if again := scoring.ScoreOffers(answers, offers); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%+v\n%+v", i, first, again)
		}
	}
}

// ─── TopOffer ─────────────────────────────────────────────────────────────────

func TestTopOffer(t *testing.T) {
	tests := []struct {
		name   string
		scored []scoring.ScoredOffer
		wantID string
		wantOK bool
	}{
		{"empty", nil, "", false},
		{"first qualified", []scoring.ScoredOffer{{OfferID: "a"}, {OfferID: "b"}}, "a", true},
		{"skips disqualified", []scoring.ScoredOffer{{OfferID: "a", IsDisqualified: true}, {OfferID: "b"}}, "b", true},
		{"all disqualified falls back to first", []scoring.ScoredOffer{
			{OfferID: "a", IsDisqualified: true},
			{OfferID: "b", IsDisqualified: true},
		}, "a", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := scoring.TopOffer(tt.scored)
			if ok != tt.wantOK || got.OfferID != tt.wantID {
				t.Errorf("got (%q, %v), want (%q, %v)", got.OfferID, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

// ─── OfferScores / QualifiedCount ────────────────────────────────────────────

func TestOfferScoresAndQualifiedCount(t *testing.T) {
	scored := []scoring.ScoredOffer{
		{OfferID: "a", Confidence: 0.5},
		{OfferID: "b", Confidence: 0.25},
		{OfferID: "c", Confidence: 0.9, IsDisqualified: true},
	}
	want := map[string]float64{"a": 0.5, "b": 0.25, "c": 0.9}
	if got := scoring.OfferScores(scored); !reflect.DeepEqual(got, want) {
		t.Errorf("OfferScores: got %v, want %v", got, want)
	}
	if got := scoring.QualifiedCount(scored); got != 2 {
		t.Errorf("QualifiedCount: got %d, want 2", got)
	}
}

// ─── AnswerContext ────────────────────────────────────────────────────────────

func TestAnswerContext_WithDoesNotMutateReceiver(t *testing.T) {
	base := scoring.NewAnswerContext(ans("q1_a", "x"))
	next := base.With(ans("q2_b", "y"))

	if base.Len() != 1 {
		t.Errorf("base mutated: len %d", base.Len())
	}
	if next.Len() != 2 {
		t.Errorf("next: len %d, want 2", next.Len())
	}
	if _, ok := base.Get("q2_b"); ok {
		t.Error("base should not see q2_b")
	}
}

func TestAnswerContext_JSONKeepsOrder(t *testing.T) {
	ac := scoring.NewAnswerContext(ans("q3_c", "3"), ans("q1_a", "1"), ans("q2_b", "2"))

	raw, err := json.Marshal(ac)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back scoring.AnswerContext
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back.Keys(), []string{"q3_c", "q1_a", "q2_b"}) {
		t.Errorf("keys: got %v", back.Keys())
	}
}
