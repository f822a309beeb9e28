package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScore_OfferMatchFromStdin(t *testing.T) {
	answers := `[
		{"question_id": "q1_budget", "value": "low"},
		{"question_id": "q2_team_size", "value": "solo"},
		{"question_id": "q3_time_budget", "value": "little"},
		{"question_id": "q4_learning_style", "value": "self_paced"}
	]`
	out, err := execute(t, answers, "score", "--flow", "offer-match")
	if err != nil {
		t.Fatalf("score: %v\n%s", err, out)
	}

	var got scoreOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Top == nil || got.Top.OfferID != "self-paced-course" {
		t.Errorf("top: %+v", got.Top)
	}
	if len(got.Offers) != 4 || got.QualifiedCount != 2 {
		t.Errorf("offers=%d qualified=%d", len(got.Offers), got.QualifiedCount)
	}
	if got.OfferScores["self-paced-course"] != 1 {
		t.Errorf("all_offer_scores: %v", got.OfferScores)
	}
}

func TestScore_AnswersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.json")
	if err := os.WriteFile(path, []byte(`[{"question_id": "q1_name", "value": "Ada"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "score", "--flow", "find-my-flow", "--answers", path)
	if err != nil {
		t.Fatalf("score: %v\n%s", err, out)
	}
	var got scoreOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(got.Offers) != 0 || got.Top != nil {
		t.Errorf("a flow without a catalog scores empty, got %+v", got)
	}
}

func TestScore_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"missing flow flag", "[]", []string{"score"}},
		{"unknown flow", "[]", []string{"score", "--flow", "nope"}},
		{"bad answers", "{", []string{"score", "--flow", "offer-match"}},
		{"missing file", "", []string{"score", "--flow", "offer-match", "--answers", "/does/not/exist.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.stdin, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate_EmbeddedCatalog(t *testing.T) {
	out, err := execute(t, "", "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{"find-my-flow", "nervous-system", "offer-match", "catalog OK"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidate_BrokenCatalogDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "flows"), 0o755); err != nil {
		t.Fatal(err)
	}
	bad := `{"id": "a", "catalog_id": "missing", "steps": [{"id": "s"}]}`
	if err := os.WriteFile(filepath.Join(dir, "flows", "a.json"), []byte(bad), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "", "validate", "--catalog-dir", dir); err == nil {
		t.Error("expected error for dangling catalog reference")
	}
}

func TestValidate_CatalogDirFromEnv(t *testing.T) {
	t.Setenv("FINDMYFLOW_CATALOG_DIR", filepath.Join(t.TempDir(), "empty"))
	if _, err := execute(t, "", "validate"); err == nil {
		t.Error("expected error for a catalog dir with no flows")
	}
}
