package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/scoring"
)

// scoreOutput is what `findmyflow score` prints.
type scoreOutput struct {
	FlowID         string                `json:"flow_id"`
	Offers         []scoring.ScoredOffer `json:"offers"`
	Top            *scoring.ScoredOffer  `json:"top,omitempty"`
	QualifiedCount int                   `json:"qualified_count"`
	OfferScores    map[string]float64    `json:"all_offer_scores"`
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a JSON answers file against a flow's offer catalog",
		Long: `Reads an ordered array of {"question_id", "value", "label"} objects and
prints every offer ranked (qualified offers first, then by total score), the
top recommendation and the per-offer confidence map that a save would persist.`,
		RunE: runScore,
	}
	f := cmd.Flags()
	f.String("flow", "", "Flow id to score (required)")
	f.StringP("answers", "a", "-", "Answers JSON file (- for stdin)")
	f.String("catalog-dir", "", "Catalog directory (default: embedded catalog)")
	_ = cmd.MarkFlagRequired("flow")
	return cmd
}

func runScore(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	registry, err := loadRegistry(v.GetString("catalog-dir"))
	if err != nil {
		return err
	}
	f, err := registry.Flow(v.GetString("flow"))
	if err != nil {
		return err
	}

	raw, err := readInput(cmd.InOrStdin(), v.GetString("answers"))
	if err != nil {
		return err
	}
	var answers scoring.AnswerContext
	if err := json.Unmarshal(raw, &answers); err != nil {
		return fmt.Errorf("parse answers: %w", err)
	}

	scored := registry.Score(f, answers)
	out := scoreOutput{
		FlowID:         f.ID,
		Offers:         scored,
		QualifiedCount: scoring.QualifiedCount(scored),
		OfferScores:    scoring.OfferScores(scored),
	}
	if out.Offers == nil {
		out.Offers = []scoring.ScoredOffer{}
	}
	if top, ok := scoring.TopOffer(scored); ok {
		out.Top = &top
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the flow and offer catalogs and report any problems",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viperForCmd(cmd)
			registry, err := loadRegistry(v.GetString("catalog-dir"))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, f := range registry.Flows() {
				_, _ = fmt.Fprintf(w, "%-20s %2d steps  %d offers\n", f.ID, len(f.Steps), len(registry.Offers(f)))
			}
			_, _ = fmt.Fprintln(w, "catalog OK")
			return nil
		},
	}
	cmd.Flags().String("catalog-dir", "", "Catalog directory (default: embedded catalog)")
	return cmd
}

// readInput reads path, or in when path is "-" or empty.
func readInput(in io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		raw, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
