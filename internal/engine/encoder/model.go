package encoder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/lexkit/fineprint/internal/corpus"
	"github.com/lexkit/fineprint/internal/engine"
	"github.com/lexkit/fineprint/internal/engine/optim"
	"github.com/lexkit/fineprint/internal/model"
)

// Kind is the model's registry name.
const Kind = "encoder"

const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
)

func init() {
	engine.Register(Kind, load)
}

// TextEncoder is the frozen feature extractor the classification head trains
// over. *Encoder implements it.
type TextEncoder interface {
	Dim() int
	Encode(ctx context.Context, texts []string) (*model.Matrix, error)
	Close() error
}

// Config locates the frozen encoder assets and fixes how they embed text.
// Asset paths may be absolute or relative to the saved model directory.
type Config struct {
	Model     string  `json:"onnx_model"`
	Vocab     string  `json:"vocab"`
	Library   string  `json:"onnx_library,omitempty"`
	Pooling   Pooling `json:"pooling"`
	MaxSeqLen int     `json:"max_seq_len"`
}

func (c Config) withDefaults() Config {
	if c.Pooling == "" {
		c.Pooling = PoolCLS
	}
	if c.MaxSeqLen == 0 {
		c.MaxSeqLen = defaultMaxSeqLen
	}
	return c
}

// Open builds the Encoder the config describes. Relative asset paths are
// resolved against baseDir.
func (c Config) Open(baseDir string) (*Encoder, error) {
	if c.Model == "" || c.Vocab == "" {
		return nil, fmt.Errorf("encoder: config missing asset paths")
	}
	c = c.withDefaults()
	opts := []Option{WithPooling(c.Pooling), WithMaxSeqLen(c.MaxSeqLen)}
	if c.Library != "" {
		opts = append(opts, WithLibraryPath(resolvePath(baseDir, c.Library)))
	}
	return New(resolvePath(baseDir, c.Model), resolvePath(baseDir, c.Vocab), opts...)
}

func resolvePath(baseDir, path string) string {
	if baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Params controls head training. Zero values fall back to DefaultParams.
type Params struct {
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
	WeightDecay  float64 `json:"weight_decay"`
	AdamEpsilon  float64 `json:"adam_epsilon"`
	WarmupSteps  int     `json:"warmup_steps"`
	// MaxGradNorm caps the global gradient norm per step; negative disables
	// clipping.
	MaxGradNorm  float64 `json:"max_grad_norm"`
	Seed         int64   `json:"seed"`
	ClassWeights bool    `json:"class_weights"`
}

// DefaultParams returns the training defaults.
func DefaultParams() Params {
	return Params{
		Epochs:       1,
		BatchSize:    8,
		LearningRate: 5e-5,
		AdamEpsilon:  1e-8,
		MaxGradNorm:  1.0,
		Seed:         0xDEADBEEF,
		ClassWeights: true,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Epochs == 0 {
		p.Epochs = d.Epochs
	}
	if p.BatchSize == 0 {
		p.BatchSize = d.BatchSize
	}
	if p.LearningRate == 0 {
		p.LearningRate = d.LearningRate
	}
	if p.AdamEpsilon == 0 {
		p.AdamEpsilon = d.AdamEpsilon
	}
	if p.MaxGradNorm == 0 {
		p.MaxGradNorm = d.MaxGradNorm
	}
	if p.Seed == 0 {
		p.Seed = d.Seed
	}
	return p
}

// Model is a trained encoder classifier: the frozen encoder plus the fitted
// head. Config must describe the encoder before Save so Load can rebuild it.
type Model struct {
	Classes []string
	Config  Config
	Params  Params

	enc  TextEncoder
	head *headNet
}

// Train fits the classification head. The encoder stays frozen, so every
// provision is embedded once up front and the epochs iterate over pooled
// vectors only.
func Train(ctx context.Context, provs []model.Provision, labels *corpus.LabelSet, enc TextEncoder, p Params) (*Model, error) {
	if len(provs) == 0 {
		return nil, fmt.Errorf("encoder: no training provisions")
	}
	if labels.Len() == 0 {
		return nil, fmt.Errorf("encoder: empty label vocabulary")
	}
	p = p.withDefaults()

	feats, err := enc.Encode(ctx, corpus.Texts(provs))
	if err != nil {
		return nil, fmt.Errorf("encoder: embedding training set: %w", err)
	}
	targets, err := labels.Transform(corpus.Labels(provs))
	if err != nil {
		return nil, fmt.Errorf("encoder: encoding targets: %w", err)
	}

	var posW []float64
	if p.ClassWeights {
		posW = corpus.PositiveWeights(targets)
	} else {
		posW = make([]float64, labels.Len())
		for j := range posW {
			posW[j] = 1
		}
	}

	rng := rand.New(rand.NewSource(p.Seed))
	head := newHeadNet(enc.Dim(), labels.Len())
	headInit(head, rng)
	opt := optim.NewAdam(head.tensors(), p.LearningRate, adamBeta1, adamBeta2, p.AdamEpsilon, p.WeightDecay)

	stepsPerEpoch := (len(provs) + p.BatchSize - 1) / p.BatchSize
	totalSteps := stepsPerEpoch * p.Epochs

	slog.Info("training encoder head",
		"samples", len(provs), "dim", enc.Dim(), "labels", labels.Len(),
		"steps", totalSteps, "warmup", p.WarmupSteps)

	order := make([]int, len(provs))
	for i := range order {
		order[i] = i
	}

	drop := make([]float64, enc.Dim())
	dLogits := make([]float64, labels.Len())
	step := 0
	for epoch := 0; epoch < p.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("encoder: training: %w", err)
		}
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		var epochLoss float64
		for start := 0; start < len(order); start += p.BatchSize {
			end := min(start+p.BatchSize, len(order))
			batch := order[start:end]
			scale := 1 / float64(len(batch)*labels.Len())

			for _, i := range batch {
				sampleDropout(rng, dropoutRate, drop)
				st := head.forward(feats.Row(i), drop)
				epochLoss += optim.BCEWithLogits(st.logits, targets.Row(i), posW, scale, dLogits)
				head.backward(st, dLogits, drop)
			}

			optim.ClipGradNorm(head.tensors(), p.MaxGradNorm)
			opt.SetLR(p.LearningRate * optim.WarmupLinear(step, p.WarmupSteps, totalSteps))
			opt.Step()
			step++
		}
		slog.Debug("epoch done", "epoch", epoch+1, "train_loss", epochLoss/float64(len(order)))
	}

	return &Model{
		Classes: labels.Classes(),
		Params:  p,
		enc:     enc,
		head:    head,
	}, nil
}

// Name implements engine.Classifier.
func (m *Model) Name() string { return Kind }

// Labels implements engine.Classifier.
func (m *Model) Labels() []string { return m.Classes }

// Predict implements engine.Classifier.
func (m *Model) Predict(ctx context.Context, texts []string) (*model.Matrix, error) {
	feats, err := m.enc.Encode(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("encoder: embedding texts: %w", err)
	}
	out := model.NewMatrix(len(texts), len(m.Classes))
	for i := 0; i < feats.Rows; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("encoder: predict: %w", err)
		}
		st := m.head.forward(feats.Row(i), nil)
		row := out.Row(i)
		for j, z := range st.logits {
			row[j] = sigmoid(z)
		}
	}
	return out, nil
}

// Close releases the underlying encoder session.
func (m *Model) Close() error { return m.enc.Close() }

// manifest is the on-disk model layout. Head weights are inline; the ONNX
// model and vocabulary stay external assets referenced by the config.
type manifest struct {
	Kind    string    `json:"model"`
	Classes []string  `json:"classes"`
	Encoder Config    `json:"encoder"`
	Dim     int       `json:"dim"`
	W1      []float64 `json:"w1"`
	B1      []float64 `json:"b1"`
	W2      []float64 `json:"w2"`
	B2      []float64 `json:"b2"`
	Params  Params    `json:"params"`
}

// Save writes the manifest into dir. Config must point at the encoder
// assets or the saved model cannot be reopened.
func (m *Model) Save(dir string) error {
	if m.Config.Model == "" || m.Config.Vocab == "" {
		return fmt.Errorf("encoder: config missing asset paths")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("encoder: creating model dir: %w", err)
	}

	mf := manifest{
		Kind:    Kind,
		Classes: m.Classes,
		Encoder: m.Config.withDefaults(),
		Dim:     m.head.dim,
		W1:      m.head.w1.W,
		B1:      m.head.b1.W,
		W2:      m.head.w2.W,
		B2:      m.head.b2.W,
		Params:  m.Params,
	}
	data, err := json.Marshal(mf)
	if err != nil {
		return fmt.Errorf("encoder: encoding model: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, engine.ManifestName), data, 0o644); err != nil {
		return fmt.Errorf("encoder: writing model: %w", err)
	}
	return nil
}

func readManifest(dir string) (*manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, engine.ManifestName))
	if err != nil {
		return nil, fmt.Errorf("encoder: reading model: %w", err)
	}
	var mf manifest
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("encoder: parsing model: %w", err)
	}
	return &mf, nil
}

// build reconstructs the model around an already-open encoder.
func (mf *manifest) build(enc TextEncoder) (*Model, error) {
	if enc.Dim() != mf.Dim {
		return nil, fmt.Errorf("encoder: produces %d-dimensional embeddings, model expects %d", enc.Dim(), mf.Dim)
	}

	head := newHeadNet(mf.Dim, len(mf.Classes))
	for _, chk := range []struct {
		name string
		got  []float64
		dst  *optim.Tensor
	}{
		{"w1", mf.W1, head.w1},
		{"b1", mf.B1, head.b1},
		{"w2", mf.W2, head.w2},
		{"b2", mf.B2, head.b2},
	} {
		if len(chk.got) != len(chk.dst.W) {
			return nil, fmt.Errorf("encoder: %s has %d values, want %d", chk.name, len(chk.got), len(chk.dst.W))
		}
		copy(chk.dst.W, chk.got)
	}

	return &Model{
		Classes: mf.Classes,
		Config:  mf.Encoder,
		Params:  mf.Params,
		enc:     enc,
		head:    head,
	}, nil
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
	m, err := mf.build(enc)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return m, nil
}
