// Package logreg implements the one-vs-rest TF-IDF logistic regression
// baseline: one binary estimator per label over a shared sparse feature
// space, trained concurrently.
package logreg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/lexkit/fineprint/internal/corpus"
	"github.com/lexkit/fineprint/internal/engine"
	"github.com/lexkit/fineprint/internal/model"
)

// Kind is the model's registry name.
const Kind = "lr"

func init() {
	engine.Register(Kind, func(dir string) (engine.Classifier, error) {
		return Load(dir)
	})
}

// Model is a trained one-vs-rest TF-IDF logistic regression classifier.
type Model struct {
	Classes    []string    `json:"classes"`
	Vectorizer *Vectorizer `json:"vectorizer"`
	Estimators []estimator `json:"estimators"`
	Params     Params      `json:"params"`
}

// Train fits the model on the training provisions. labels fixes the output
// column order and may include labels absent from train; their estimators
// see only negatives and learn to score near zero.
func Train(ctx context.Context, provs []model.Provision, labels *corpus.LabelSet, p Params) (*Model, error) {
	if len(provs) == 0 {
		return nil, fmt.Errorf("logreg: no training provisions")
	}
	if labels.Len() == 0 {
		return nil, fmt.Errorf("logreg: empty label vocabulary")
	}
	p = p.withDefaults()

	texts := corpus.Texts(provs)
	vec := FitVectorizer(texts)
	docs := vec.transformAll(texts)

	targets, err := labels.Transform(corpus.Labels(provs))
	if err != nil {
		return nil, fmt.Errorf("logreg: encoding targets: %w", err)
	}

	posW := make([]float64, labels.Len())
	negW := make([]float64, labels.Len())
	if p.ClassWeights {
		posW, negW = corpus.BalancedWeights(targets)
	} else {
		for j := range posW {
			posW[j], negW[j] = 1, 1
		}
	}

	slog.Info("training one-vs-rest logistic regression",
		"samples", len(docs), "features", vec.Dim(), "labels", labels.Len())

	m := &Model{
		Classes:    labels.Classes(),
		Vectorizer: vec,
		Estimators: make([]estimator, labels.Len()),
		Params:     p,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for j := 0; j < labels.Len(); j++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			y := make([]bool, len(docs))
			for i := range docs {
				y[i] = targets.At(i, j) > 0
			}
			rng := rand.New(rand.NewSource(p.Seed + int64(j)))
			m.Estimators[j] = trainBinary(docs, y, posW[j], negW[j], vec.Dim(), p, rng)
			slog.Debug("trained label estimator", "label", m.Classes[j])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("logreg: training: %w", err)
	}
	return m, nil
}

// Name implements engine.Classifier.
func (m *Model) Name() string { return Kind }

// Labels implements engine.Classifier.
func (m *Model) Labels() []string { return m.Classes }

// Predict implements engine.Classifier: per text, each estimator's sigmoid
// score over the shared TF-IDF vector.
func (m *Model) Predict(ctx context.Context, texts []string) (*model.Matrix, error) {
	out := model.NewMatrix(len(texts), len(m.Classes))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("logreg: predict: %w", err)
		}
		d := m.Vectorizer.transform(text)
		row := out.Row(i)
		for j := range m.Estimators {
			row[j] = m.Estimators[j].prob(d)
		}
	}
	return out, nil
}

// Save writes the model manifest into dir.
func (m *Model) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("logreg: creating model dir: %w", err)
	}
	data, err := json.Marshal(struct {
		Kind string `json:"model"`
		*Model
	}{Kind: Kind, Model: m})
	if err != nil {
		return fmt.Errorf("logreg: encoding model: %w", err)
	}
	path := filepath.Join(dir, engine.ManifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("logreg: writing model: %w", err)
	}
	return nil
}

// Load reads a trained model from dir.
func Load(dir string) (*Model, error) {
	raw, err := os.ReadFile(filepath.Join(dir, engine.ManifestName))
	if err != nil {
		return nil, fmt.Errorf("logreg: reading model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("logreg: parsing model: %w", err)
	}
	if len(m.Estimators) != len(m.Classes) {
		return nil, fmt.Errorf("logreg: %d estimators for %d classes", len(m.Estimators), len(m.Classes))
	}
	if m.Vectorizer == nil {
		return nil, fmt.Errorf("logreg: model has no vectorizer")
	}
	return &m, nil
}
