// Package engine defines the classifier contract shared by every model kind
// and a registry for reopening trained models from their artifact
// directories.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lexkit/fineprint/internal/model"
)

// ManifestName is the file every trained model directory carries. It holds
// at least a "model" field naming the kind; each kind stores its own
// parameters alongside.
const ManifestName = "model.json"

// Classifier scores provisions against a fixed label vocabulary.
type Classifier interface {
	// Name identifies the model kind ("lr", "attnmlp", ...).
	Name() string

	// Labels returns the label vocabulary, sorted, one per output column.
	Labels() []string

	// Predict returns a [len(texts) x len(Labels())] matrix of scores in
	// [0,1]. Row i scores texts[i]; thresholding is the caller's job.
	Predict(ctx context.Context, texts []string) (*model.Matrix, error)
}

// Open reads dir's manifest to discover the model kind and dispatches to
// that kind's registered loader.
func Open(dir string) (Classifier, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("engine: reading manifest: %w", err)
	}
	var manifest struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("engine: parsing manifest: %w", err)
	}
	if manifest.Model == "" {
		return nil, fmt.Errorf("engine: manifest %s has no model kind", filepath.Join(dir, ManifestName))
	}

	load, err := Get(manifest.Model)
	if err != nil {
		return nil, err
	}
	return load(dir)
}
