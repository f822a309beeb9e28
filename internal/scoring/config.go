// Package scoring ranks a catalog of offers against a user's quiz answers.
// It is intentionally dependency-free: it imports nothing from internal/ and
// can be tested without a database or a network.
package scoring

import (
	"encoding/json"
	"fmt"
)

// defaultMaxPossibleScore is used when an offer does not declare its own
// ceiling.
const defaultMaxPossibleScore = 30

// DisqualifierRule excludes an offer when the user's answer to any question
// ending in "_<Field>" is one of Disallowed.
type DisqualifierRule struct {
	Field      string   `json:"field"`
	Disallowed []string `json:"disallowed"`
	Reason     string   `json:"reason,omitempty"`
}

// disallows reports whether value is one of the rule's disallowed values.
func (r DisqualifierRule) disallows(value string) bool {
	for _, d := range r.Disallowed {
		if d == value {
			return true
		}
	}
	return false
}

// reason returns the rule's human-readable reason, or a generated default.
func (r DisqualifierRule) reason() string {
	if r.Reason != "" {
		return r.Reason
	}
	return fmt.Sprintf("Disqualified due to %s", r.Field)
}

// Offer is a candidate recommendation (also called a strategy or type in the
// flows that use it). Offers are loaded once and never mutated.
//
// ScoringWeights maps a normalised question id (e.g. "Q3_time_budget") to a
// table of answer value → weight. Questions absent from the table contribute
// nothing.
type Offer struct {
	ID                string                        `json:"id"`
	Name              string                        `json:"name"`
	Description       string                        `json:"description,omitempty"`
	ScoringWeights    map[string]map[string]float64 `json:"scoring_weights,omitempty"`
	MaxPossibleScore  float64                       `json:"max_possible_score,omitempty"`
	HardDisqualifiers []DisqualifierRule            `json:"hard_disqualifiers,omitempty"`
}

// effectiveMax returns MaxPossibleScore, or the default ceiling when unset.
func (o Offer) effectiveMax() float64 {
	if o.MaxPossibleScore == 0 {
		return defaultMaxPossibleScore
	}
	return o.MaxPossibleScore
}

// rawOffer accepts every key spelling found in catalog documents. Rules may
// live at the root or under eligibility_rules; both are folded into
// Offer.HardDisqualifiers by ParseCatalog.
//
// Catalog JSON shape:
//
//	{
//	  "id": "coaching",
//	  "name": "1:1 Coaching",
//	  "scoring_weights": {"Q1_budget": {"low": 2, "high": 10}},
//	  "max_possible_score": 25,
//	  "hard_disqualifiers": [{"field": "team_size", "disallowed": ["solo"]}]
//	}
type rawOffer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	ScoringWeights      map[string]map[string]float64 `json:"scoring_weights"`
	ScoringWeightsCamel map[string]map[string]float64 `json:"scoringWeights"`

	MaxPossibleScore      *float64 `json:"max_possible_score"`
	MaxPossibleScoreCamel *float64 `json:"maxPossibleScore"`

	HardDisqualifiers      []DisqualifierRule `json:"hard_disqualifiers"`
	HardDisqualifiersCamel []DisqualifierRule `json:"hardDisqualifiers"`

	EligibilityRules *struct {
		HardDisqualifiers      []DisqualifierRule `json:"hard_disqualifiers"`
		HardDisqualifiersCamel []DisqualifierRule `json:"hardDisqualifiers"`
	} `json:"eligibility_rules"`
}

// normalise folds the raw key variants into a single Offer.
func (r rawOffer) normalise() Offer {
	o := Offer{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		ScoringWeights: firstWeights(r.ScoringWeights, r.ScoringWeightsCamel),
	}

	switch {
	case r.MaxPossibleScore != nil:
		o.MaxPossibleScore = *r.MaxPossibleScore
	case r.MaxPossibleScoreCamel != nil:
		o.MaxPossibleScore = *r.MaxPossibleScoreCamel
	}

	// The root location wins; eligibility_rules is only consulted when the
	// root list is absent.
	switch {
	case r.HardDisqualifiers != nil:
		o.HardDisqualifiers = r.HardDisqualifiers
	case r.HardDisqualifiersCamel != nil:
		o.HardDisqualifiers = r.HardDisqualifiersCamel
	case r.EligibilityRules != nil && r.EligibilityRules.HardDisqualifiers != nil:
		o.HardDisqualifiers = r.EligibilityRules.HardDisqualifiers
	case r.EligibilityRules != nil:
		o.HardDisqualifiers = r.EligibilityRules.HardDisqualifiersCamel
	}

	return o
}

func firstWeights(a, b map[string]map[string]float64) map[string]map[string]float64 {
	if a != nil {
		return a
	}
	return b
}

// ParseCatalog unmarshals an offer catalog document (a JSON array of offers).
//
// Missing weight tables, disqualifier lists and max scores are NOT errors:
// they degrade to "contributes nothing" and the default ceiling at scoring
// time. Only malformed JSON, an offer without an id, or two offers sharing an
// id are rejected.
func ParseCatalog(raw json.RawMessage) ([]Offer, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("offer catalog: empty JSON")
	}

	var rows []rawOffer
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("offer catalog: cannot unmarshal: %w", err)
	}

	offers := make([]Offer, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		if row.ID == "" {
			return nil, fmt.Errorf("offer catalog: offer[%d] has no id", i)
		}
		if _, dup := seen[row.ID]; dup {
			return nil, fmt.Errorf("offer catalog: duplicate offer id %q", row.ID)
		}
		seen[row.ID] = struct{}{}
		offers = append(offers, row.normalise())
	}
	return offers, nil
}
