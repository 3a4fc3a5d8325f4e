package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lexkit/fineprint/internal/model"
)

func basePrediction() model.Prediction {
	return model.Prediction{
		Text:   "This Agreement shall be governed by the laws of the State of Delaware.",
		Labels: []string{"governing laws"},
		Scores: []model.LabelScore{
			{Label: "governing laws", Score: 0.97},
		},
		Model:     "lr",
		Timestamp: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}
}

func TestFormatPredictionMinimal(t *testing.T) {
	p := FormatPrediction(basePrediction(), Minimal)

	if p.Text != "" {
		t.Fatal("Text should be empty at Minimal")
	}
	if p.Scores != nil {
		t.Fatal("Scores should be nil at Minimal")
	}
	if len(p.Labels) != 1 || p.Labels[0] != "governing laws" {
		t.Fatal("Labels should be preserved")
	}
	if p.Model != "lr" {
		t.Fatal("Model should be preserved")
	}
}

func TestFormatPredictionStandard(t *testing.T) {
	p := FormatPrediction(basePrediction(), Standard)

	if p.Text == "" {
		t.Fatal("Text should be preserved at Standard")
	}
	if len(p.Scores) != 1 || p.Scores[0].Score != 0.97 {
		t.Fatal("Scores should be preserved at Standard")
	}
}

func TestFormatPredictionFull(t *testing.T) {
	p := FormatPrediction(basePrediction(), Full)

	if p.Text == "" {
		t.Fatal("Text should be preserved at Full")
	}
	if len(p.Scores) != 1 {
		t.Fatal("Scores should be preserved at Full")
	}
}

func TestFormatPredictionMinimalJSON(t *testing.T) {
	p := FormatPrediction(basePrediction(), Minimal)

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := m["provision"]; ok {
		t.Fatal("provision should be omitted at Minimal")
	}
	if _, ok := m["scores"]; ok {
		t.Fatal("scores should be omitted at Minimal")
	}
}

func TestJSONTagNames(t *testing.T) {
	data, err := json.Marshal(basePrediction())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	expected := []string{"provision", "labels", "scores", "model", "timestamp"}
	for _, key := range expected {
		if _, ok := m[key]; !ok {
			t.Fatalf("expected lowercase key %q in JSON", key)
		}
	}
}

func TestParseVerbosity(t *testing.T) {
	cases := []struct {
		in   string
		want Verbosity
	}{
		{"minimal", Minimal},
		{"standard", Standard},
		{"", Standard},
		{"full", Full},
	}
	for _, c := range cases {
		got, err := ParseVerbosity(c.in)
		if err != nil {
			t.Fatalf("ParseVerbosity(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseVerbosity(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseVerbosity("shouty"); err == nil {
		t.Fatal("expected error for unknown verbosity")
	}
}
