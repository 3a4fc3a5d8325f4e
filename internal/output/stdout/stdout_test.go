package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lexkit/fineprint/internal/model"
	"github.com/lexkit/fineprint/internal/output"
)

func testPrediction() model.Prediction {
	return model.Prediction{
		Text:   "Either party may terminate this Agreement upon thirty days' notice.",
		Labels: []string{"terminations"},
		Scores: []model.LabelScore{
			{Label: "terminations", Score: 0.88},
		},
		Model:     "lr",
		Timestamp: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}
}

// captureStdout redirects os.Stdout to capture output.
func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestOutputCompactJSON(t *testing.T) {
	result := captureStdout(func() {
		out := New(output.Standard, false)
		out.Write(context.Background(), testPrediction())
	})

	// Should be single line (NDJSON).
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	// Should be valid JSON with lowercase keys.
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m["model"] != "lr" {
		t.Fatalf("expected model=lr, got %v", m["model"])
	}
}

func TestOutputPrettyJSON(t *testing.T) {
	result := captureStdout(func() {
		out := New(output.Standard, true)
		out.Write(context.Background(), testPrediction())
	})

	// Pretty JSON should have multiple lines with indentation.
	if !strings.Contains(result, "  ") {
		t.Fatal("expected indented output for pretty mode")
	}
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected multi-line pretty output, got %d lines", len(lines))
	}
}

func TestOutputMinimalOmitsFields(t *testing.T) {
	result := captureStdout(func() {
		out := New(output.Minimal, false)
		out.Write(context.Background(), testPrediction())
	})

	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(result)), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	// Text and Scores should be omitted at Minimal.
	if _, ok := m["provision"]; ok {
		t.Fatal("provision should be omitted at Minimal")
	}
	if _, ok := m["scores"]; ok {
		t.Fatal("scores should be omitted at Minimal")
	}
	// Core fields should be present.
	if m["model"] != "lr" {
		t.Fatalf("model should be preserved, got %v", m["model"])
	}
}
