package testdata

import (
	"testing"
)

func TestLoadCorpus(t *testing.T) {
	provs, err := LoadCorpus()
	if err != nil {
		t.Fatalf("LoadCorpus() error: %v", err)
	}

	if len(provs) == 0 {
		t.Fatal("corpus is empty")
	}
	t.Logf("Total provisions: %d", len(provs))

	for i, p := range provs {
		if p.Text == "" {
			t.Errorf("provision[%d] has empty text", i)
		}
		if len(p.Labels) == 0 {
			t.Errorf("provision[%d] has no labels", i)
		}
		if p.Source == "" {
			t.Errorf("provision[%d] has empty source", i)
		}
	}
}

func TestCorpusCoverage(t *testing.T) {
	provs, err := LoadCorpus()
	if err != nil {
		t.Fatalf("LoadCorpus() error: %v", err)
	}

	// All fourteen provision types.
	allLabels := map[string]bool{
		"amendments": false, "assignments": false, "confidentiality": false,
		"counterparts": false, "entire agreements": false, "expenses": false,
		"governing laws": false, "indemnifications": false, "notices": false,
		"remedies": false, "severability": false, "survival": false,
		"terminations": false, "waivers": false,
	}

	labelCounts := map[string]int{}
	for i, p := range provs {
		for _, label := range p.Labels {
			if _, known := allLabels[label]; !known {
				t.Errorf("provision[%d] has unknown label %q", i, label)
				continue
			}
			labelCounts[label]++
			allLabels[label] = true
		}
	}

	// Check coverage.
	for label, covered := range allLabels {
		if !covered {
			t.Errorf("label %q has no corpus provisions", label)
		}
	}

	// Check minimum 4 provisions per label so splits keep every label.
	for label, count := range labelCounts {
		if count < 4 {
			t.Errorf("label %q has only %d provisions (want >= 4)", label, count)
		}
	}

	t.Logf("Coverage: %d labels, %d total provisions", len(allLabels), len(provs))
}

func TestCorpusMultiLabel(t *testing.T) {
	provs, err := LoadCorpus()
	if err != nil {
		t.Fatalf("LoadCorpus() error: %v", err)
	}

	multi := 0
	for _, p := range provs {
		if len(p.Labels) > 1 {
			multi++
		}
	}
	if multi == 0 {
		t.Fatal("corpus has no multi-label provisions")
	}
	t.Logf("Multi-label provisions: %d", multi)
}
