package scoring

import (
	"regexp"
	"sort"
	"strings"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// ScoredOffer is the engine's verdict on one offer. Offer points back at the
// catalog entry and must be treated as read-only.
//
// Confidence is TotalScore / MaxPossibleScore and is NOT clamped: unusual
// weight tables can push it above 1 or below 0, and callers that display it
// as a percentage see the raw value.
type ScoredOffer struct {
	Offer                   *Offer   `json:"-"`
	OfferID                 string   `json:"offer_id"`
	OfferName               string   `json:"offer_name"`
	TotalScore              float64  `json:"total_score"`
	MaxPossibleScore        float64  `json:"max_possible_score"`
	Confidence              float64  `json:"confidence"`
	IsDisqualified          bool     `json:"is_disqualified"`
	DisqualificationReasons []string `json:"disqualification_reasons"`
}

// ─── CORE FUNCTIONS ───────────────────────────────────────────────────────────

// questionPrefix matches the "q<digits>" prefix that answer keys carry in
// lower case while weight tables spell it "Q<digits>".
var questionPrefix = regexp.MustCompile(`^q(\d+)`)

// NormalizeQuestionID upper-cases a leading "q<digits>" prefix so an answer
// key lines up with the weight-table convention: "q3_foo" → "Q3_foo". Keys
// without that prefix are returned unchanged.
func NormalizeQuestionID(questionID string) string {
	return questionPrefix.ReplaceAllString(questionID, "Q$1")
}

// ScoreOffers ranks offers by fit to answers in a single deterministic pass.
//
// For each offer:
//   - every answer whose normalised question id and value appear in the
//     offer's weight table adds that weight to the total;
//   - every hard-disqualifier rule is checked against the first answer (in
//     answer order) whose key ends in "_<field>", case-insensitively; all
//     rules are evaluated so every violation is reported;
//   - confidence is total / max possible score (30 when unset).
//
// The result is sorted stably: non-disqualified offers first, then by total
// score descending inside each group; ties keep catalog order.
//
// Missing weight tables, rule lists or max scores are never errors. An empty
// catalog yields an empty (non-nil) slice.
func ScoreOffers(answers AnswerContext, offers []Offer) []ScoredOffer {
	scored := make([]ScoredOffer, 0, len(offers))

	for i := range offers {
		offer := &offers[i]

		total := 0.0
		for _, a := range answers.All() {
			table, ok := offer.ScoringWeights[NormalizeQuestionID(a.QuestionID)]
			if !ok {
				continue
			}
			if w, ok := table[a.Value]; ok {
				total += w
			}
		}

		reasons := []string{}
		for _, rule := range offer.HardDisqualifiers {
			a, ok := answerForField(answers, rule.Field)
			if !ok {
				continue
			}
			if rule.disallows(a.Value) {
				reasons = append(reasons, rule.reason())
			}
		}

		ceiling := offer.effectiveMax()
		scored = append(scored, ScoredOffer{
			Offer:                   offer,
			OfferID:                 offer.ID,
			OfferName:               offer.Name,
			TotalScore:              total,
			MaxPossibleScore:        ceiling,
			Confidence:              total / ceiling,
			IsDisqualified:          len(reasons) > 0,
			DisqualificationReasons: reasons,
		})
	}

	// Disqualification dominates score; stable so equal totals keep catalog
	// order.
	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].IsDisqualified != scored[b].IsDisqualified {
			return !scored[a].IsDisqualified
		}
		return scored[a].TotalScore > scored[b].TotalScore
	})

	return scored
}

// answerForField returns the first answer, in insertion order, whose question
// id ends with "_<field>" (case-insensitive). When several questions share
// the suffix the earliest-answered one is used.
func answerForField(answers AnswerContext, field string) (Answer, bool) {
	if field == "" {
		return Answer{}, false
	}
	suffix := "_" + strings.ToLower(field)
	for _, a := range answers.All() {
		if strings.HasSuffix(strings.ToLower(a.QuestionID), suffix) {
			return a, true
		}
	}
	return Answer{}, false
}

// ─── AGGREGATE HELPERS ────────────────────────────────────────────────────────

// TopOffer picks the recommendation to show: the first offer that is not
// disqualified, or the first offer overall when every one is. ok is false
// only for an empty slice.
func TopOffer(scored []ScoredOffer) (top ScoredOffer, ok bool) {
	if len(scored) == 0 {
		return ScoredOffer{}, false
	}
	for _, s := range scored {
		if !s.IsDisqualified {
			return s, true
		}
	}
	return scored[0], true
}

// OfferScores maps offer id → confidence, the shape persisted alongside a
// saved result.
func OfferScores(scored []ScoredOffer) map[string]float64 {
	out := make(map[string]float64, len(scored))
	for _, s := range scored {
		out[s.OfferID] = s.Confidence
	}
	return out
}

// QualifiedCount returns how many offers survived every hard disqualifier.
func QualifiedCount(scored []ScoredOffer) int {
	n := 0
	for _, s := range scored {
		if !s.IsDisqualified {
			n++
		}
	}
	return n
}
