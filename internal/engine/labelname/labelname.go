// Package labelname implements the no-training baseline that predicts every
// label whose name occurs verbatim in the provision text.
package labelname

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lexkit/fineprint/internal/corpus"
	"github.com/lexkit/fineprint/internal/engine"
	"github.com/lexkit/fineprint/internal/model"
)

// Kind is the model's registry name.
const Kind = "labelname"

func init() {
	engine.Register(Kind, load)
}

// Model matches label names against lowercased text. A label ending in "s"
// also matches its singular form.
type Model struct {
	Classes []string
}

// New builds the baseline over the training label vocabulary.
func New(labels *corpus.LabelSet) *Model {
	return &Model{Classes: labels.Classes()}
}

// Name implements engine.Classifier.
func (m *Model) Name() string { return Kind }

// Labels implements engine.Classifier.
func (m *Model) Labels() []string { return m.Classes }

// Predict implements engine.Classifier, scoring 1 for every matched label
// and 0 otherwise.
func (m *Model) Predict(ctx context.Context, texts []string) (*model.Matrix, error) {
	out := model.NewMatrix(len(texts), len(m.Classes))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("labelname: predict: %w", err)
		}
		lower := strings.ToLower(text)
		for j, label := range m.Classes {
			if matches(lower, strings.ToLower(label)) {
				out.Set(i, j, 1)
			}
		}
	}
	return out, nil
}

func matches(text, label string) bool {
	if strings.Contains(text, label) {
		return true
	}
	return strings.HasSuffix(label, "s") && strings.Contains(text, label[:len(label)-1])
}

type manifest struct {
	Kind    string   `json:"model"`
	Classes []string `json:"classes"`
}

// Save writes the label vocabulary into dir.
func (m *Model) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("labelname: creating model dir: %w", err)
	}
	data, err := json.Marshal(manifest{Kind: Kind, Classes: m.Classes})
	if err != nil {
		return fmt.Errorf("labelname: encoding model: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, engine.ManifestName), data, 0o644); err != nil {
		return fmt.Errorf("labelname: writing model: %w", err)
	}
	return nil
}

func load(dir string) (engine.Classifier, error) {
	raw, err := os.ReadFile(filepath.Join(dir, engine.ManifestName))
	if err != nil {
		return nil, fmt.Errorf("labelname: reading model: %w", err)
	}
	var mf manifest
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("labelname: parsing model: %w", err)
	}
	if len(mf.Classes) == 0 {
		return nil, fmt.Errorf("labelname: model has no labels")
	}
	return &Model{Classes: mf.Classes}, nil
}
