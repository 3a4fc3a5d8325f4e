package fineprint

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lexkit/fineprint/internal/corpus"
	"github.com/lexkit/fineprint/internal/engine/logreg"
	"github.com/lexkit/fineprint/internal/model"
)

// trainingCorpus builds a small separable corpus: each class has a
// distinctive token plus varied filler, so a trained model scores the true
// label well above 0.5 and the other well below.
func trainingCorpus() []model.Provision {
	fillers := []string{
		"the receiving party shall",
		"each party agrees to",
		"under this agreement the",
		"notwithstanding the foregoing the",
		"during the term both",
		"upon written notice the",
	}
	var provs []model.Provision
	for i := 0; i < 12; i++ {
		f := fillers[i%len(fillers)]
		provs = append(provs,
			model.Provision{
				Text:   f + " keep confidential information protected",
				Labels: []string{"confidentiality"},
			},
			model.Provision{
				Text:   f + " terminate this agreement early",
				Labels: []string{"terminations"},
			},
		)
	}
	return provs
}

// trainedModelDir trains a logistic regression model on the separable
// corpus and saves it to a temp directory.
func trainedModelDir(t *testing.T) string {
	t.Helper()
	provs := trainingCorpus()
	labels := corpus.NewLabelSet(corpus.Labels(provs))

	p := logreg.DefaultParams()
	p.Seed = 7
	m, err := logreg.Train(context.Background(), provs, labels, p)
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "lr")
	if err := m.Save(dir); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	return dir
}

func TestLoadBadPathReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path")
	if err == nil {
		t.Fatal("expected error for bad model path, got nil")
	}
}

func TestClassifyKnownClause(t *testing.T) {
	clf, err := Load(trainedModelDir(t))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	defer clf.Close()

	res, err := clf.Classify(context.Background(),
		"the party shall keep confidential materials protected")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	if len(res.Labels) != 1 || res.Labels[0] != "confidentiality" {
		t.Errorf("Labels = %v, want [confidentiality]", res.Labels)
	}
	if len(res.Scores) != 1 || res.Scores[0].Score <= 0.5 {
		t.Errorf("Scores = %v, want one score above 0.5", res.Scores)
	}
	if res.Model != "lr" {
		t.Errorf("Model = %q, want lr", res.Model)
	}
	if res.Text == "" {
		t.Error("Text is empty")
	}
}

func TestClassifyBatchMatchesIndividual(t *testing.T) {
	clf, err := Load(trainedModelDir(t))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	defer clf.Close()

	texts := []string{
		"the party shall keep confidential materials protected",
		"either party may terminate this agreement",
	}

	batch, err := clf.ClassifyBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("ClassifyBatch() error: %v", err)
	}
	if len(batch) != len(texts) {
		t.Fatalf("ClassifyBatch returned %d results, want %d", len(batch), len(texts))
	}

	for i, text := range texts {
		individual, err := clf.Classify(context.Background(), text)
		if err != nil {
			t.Fatalf("Classify(%d) error: %v", i, err)
		}
		if len(batch[i].Labels) != len(individual.Labels) {
			t.Fatalf("text[%d]: batch=%v individual=%v", i, batch[i].Labels, individual.Labels)
		}
		for j := range batch[i].Labels {
			if batch[i].Labels[j] != individual.Labels[j] {
				t.Errorf("text[%d]: batch=%v individual=%v", i, batch[i].Labels, individual.Labels)
			}
		}
	}
}

func TestWithThreshold(t *testing.T) {
	dir := trainedModelDir(t)

	// At threshold zero every label passes.
	clf, err := Load(dir, WithThreshold(0))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	res, err := clf.Classify(context.Background(), "any text at all")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if len(res.Labels) != 2 {
		t.Errorf("threshold 0: Labels = %v, want both labels", res.Labels)
	}
	clf.Close()

	// Above one nothing can pass.
	clf, err = Load(dir, WithThreshold(1.1))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	defer clf.Close()
	res, err = clf.Classify(context.Background(), "the party shall keep confidential materials protected")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if len(res.Labels) != 0 {
		t.Errorf("threshold 1.1: Labels = %v, want none", res.Labels)
	}
}

func TestWithLabelThresholds(t *testing.T) {
	clf, err := Load(trainedModelDir(t),
		WithThreshold(1.1),
		WithLabelThresholds(map[string]float64{"terminations": 0}),
	)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	defer clf.Close()

	res, err := clf.Classify(context.Background(), "the party shall keep confidential materials protected")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if len(res.Labels) != 1 || res.Labels[0] != "terminations" {
		t.Errorf("Labels = %v, want [terminations] only", res.Labels)
	}
}

func TestConcurrentClassify(t *testing.T) {
	clf, err := Load(trainedModelDir(t))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	defer clf.Close()

	const goroutines = 10
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := clf.Classify(context.Background(), "either party may terminate this agreement")
			if err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Classify() error: %v", err)
	}
}

func TestLabels(t *testing.T) {
	clf, err := Load(trainedModelDir(t))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	defer clf.Close()

	labels := clf.Labels()
	if len(labels) != 2 || labels[0] != "confidentiality" || labels[1] != "terminations" {
		t.Errorf("Labels() = %v, want [confidentiality terminations]", labels)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := defaultOptions()
	if o.threshold != 0.5 {
		t.Errorf("default threshold = %f, want 0.5", o.threshold)
	}
	if len(o.labelThresholds) != 0 {
		t.Errorf("default label thresholds = %v, want empty", o.labelThresholds)
	}
}
