// Package zeroshot scores provisions against label descriptions with no
// training: both sides are embedded by the frozen encoder and compared by
// cosine similarity, mapped into [0, 1] so the scores flow through the same
// thresholding as trained models.
package zeroshot

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/lexkit/fineprint/internal/engine"
	"github.com/lexkit/fineprint/internal/engine/encoder"
	"github.com/lexkit/fineprint/internal/model"
)

// Kind is the model's registry name.
const Kind = "zeroshot"

func init() {
	engine.Register(Kind, load)
}

// Model holds the embedded catalog. Config must describe the encoder before
// Save so Load can rebuild it; zeroshot defaults to mean pooling, which
// suits sentence similarity better than the [CLS] state.
type Model struct {
	Classes []string
	Catalog []Entry
	Config  encoder.Config

	enc  encoder.TextEncoder
	desc *model.Matrix // one embedded description per class
}

// New embeds the catalog descriptions with enc. Labels are de-duplicated by
// erroring and come out sorted, matching the label-set convention.
func New(ctx context.Context, enc encoder.TextEncoder, catalog []Entry) (*Model, error) {
	if len(catalog) == 0 {
		return nil, fmt.Errorf("zeroshot: empty catalog")
	}

	entries := append([]Entry(nil), catalog...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Label < entries[j].Label })

	classes := make([]string, len(entries))
	descs := make([]string, len(entries))
	for i, e := range entries {
		if e.Label == "" || e.Description == "" {
			return nil, fmt.Errorf("zeroshot: catalog entry %d missing label or description", i)
		}
		if i > 0 && entries[i-1].Label == e.Label {
			return nil, fmt.Errorf("zeroshot: duplicate catalog label %q", e.Label)
		}
		classes[i] = e.Label
		descs[i] = e.Description
	}

	desc, err := enc.Encode(ctx, descs)
	if err != nil {
		return nil, fmt.Errorf("zeroshot: embedding catalog: %w", err)
	}

	return &Model{Classes: classes, Catalog: entries, enc: enc, desc: desc}, nil
}

// Name implements engine.Classifier.
func (m *Model) Name() string { return Kind }

// Labels implements engine.Classifier.
func (m *Model) Labels() []string { return m.Classes }

// Predict implements engine.Classifier. Cosine similarities are shifted
// into scores via (s+1)/2.
func (m *Model) Predict(ctx context.Context, texts []string) (*model.Matrix, error) {
	feats, err := m.enc.Encode(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("zeroshot: embedding texts: %w", err)
	}

	out := model.NewMatrix(len(texts), len(m.Classes))
	for i := 0; i < feats.Rows; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("zeroshot: predict: %w", err)
		}
		row := out.Row(i)
		vec := feats.Row(i)
		for j := range m.Classes {
			row[j] = (cosine(vec, m.desc.Row(j)) + 1) / 2
		}
	}
	return out, nil
}

// Close releases the underlying encoder session.
func (m *Model) Close() error { return m.enc.Close() }

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type manifest struct {
	Kind    string         `json:"model"`
	Catalog []Entry        `json:"catalog"`
	Encoder encoder.Config `json:"encoder"`
}

// Save writes the catalog and encoder config into dir. The description
// embeddings are recomputed on load.
func (m *Model) Save(dir string) error {
	if m.Config.Model == "" || m.Config.Vocab == "" {
		return fmt.Errorf("zeroshot: config missing asset paths")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("zeroshot: creating model dir: %w", err)
	}

	cfg := m.Config
	if cfg.Pooling == "" {
		cfg.Pooling = encoder.PoolMean
	}
	data, err := json.Marshal(manifest{Kind: Kind, Catalog: m.Catalog, Encoder: cfg})
	if err != nil {
		return fmt.Errorf("zeroshot: encoding model: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, engine.ManifestName), data, 0o644); err != nil {
		return fmt.Errorf("zeroshot: writing model: %w", err)
	}
	return nil
}

func readManifest(dir string) (*manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, engine.ManifestName))
	if err != nil {
		return nil, fmt.Errorf("zeroshot: reading model: %w", err)
	}
	var mf manifest
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("zeroshot: parsing model: %w", err)
	}
	return &mf, nil
}

// build re-embeds the catalog around an already-open encoder.
func (mf *manifest) build(ctx context.Context, enc encoder.TextEncoder) (*Model, error) {
	m, err := New(ctx, enc, mf.Catalog)
	if err != nil {
		return nil, err
	}
	m.Config = mf.Encoder
	return m, nil
}

func load(dir string) (engine.Classifier, error) {
	mf, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	enc, err := mf.Encoder.Open(dir)
	if err != nil {
		return nil, err
	}
	m, err := mf.build(context.Background(), enc)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return m, nil
}
