// Package attnmlp implements the attention-pooled feed-forward classifier
// over frozen pretrained word embeddings: per-token tanh attention scores
// pool the embedded sequence into one vector, which a two-layer head maps
// to per-label probabilities.
package attnmlp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/lexkit/fineprint/internal/corpus"
	"github.com/lexkit/fineprint/internal/engine"
	"github.com/lexkit/fineprint/internal/engine/optim"
	"github.com/lexkit/fineprint/internal/engine/wordvec"
	"github.com/lexkit/fineprint/internal/model"
)

// Kind is the model's registry name.
const Kind = "attnmlp"

// Adam moment constants, fixed as in the usual defaults.
const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

const (
	embeddingsFile = "embeddings.npy"
	vocabFile      = "vocab.json"
)

func init() {
	engine.Register(Kind, func(dir string) (engine.Classifier, error) {
		return Load(dir)
	})
}

// Params controls training. Zero values fall back to DefaultParams.
type Params struct {
	// MaxLen caps the token-sequence length; 0 derives it from the
	// longest training sequence.
	MaxLen       int     `json:"max_len"`
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
	// Patience is the early-stopping tolerance in epochs without dev-loss
	// improvement.
	Patience     int   `json:"patience"`
	Seed         int64 `json:"seed"`
	ClassWeights bool  `json:"class_weights"`
}

// DefaultParams returns the training defaults.
func DefaultParams() Params {
	return Params{
		Epochs:       50,
		BatchSize:    32,
		LearningRate: 1e-3,
		Patience:     3,
		Seed:         42,
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
	if p.Patience == 0 {
		p.Patience = d.Patience
	}
	return p
}

// Model is a trained attention-pooled classifier. The embedding table is
// the training-time vocabulary subset and stays frozen.
type Model struct {
	Classes []string
	MaxLen  int
	Params  Params

	emb *wordvec.Table
	net *net
}

// Train fits the classifier. dev drives early stopping and may be empty, in
// which case training runs every configured epoch. The embedding table is
// reduced to the tokens the provisions actually use before training.
func Train(ctx context.Context, train, dev []model.Provision, labels *corpus.LabelSet, table *wordvec.Table, p Params) (*Model, error) {
	if len(train) == 0 {
		return nil, fmt.Errorf("attnmlp: no training provisions")
	}
	if labels.Len() == 0 {
		return nil, fmt.Errorf("attnmlp: empty label vocabulary")
	}
	if table == nil || table.Len() == 0 {
		return nil, fmt.Errorf("attnmlp: empty embedding table")
	}
	p = p.withDefaults()

	emb, err := subsetTable(table, append(corpus.Texts(train), corpus.Texts(dev)...))
	if err != nil {
		return nil, err
	}

	trainIDs := encodeAll(emb, corpus.Texts(train), 0)
	maxLen := 0
	for _, ids := range trainIDs {
		if len(ids) > maxLen {
			maxLen = len(ids)
		}
	}
	if maxLen == 0 {
		return nil, fmt.Errorf("attnmlp: no training token is covered by the embedding vocabulary")
	}
	if p.MaxLen > 0 && maxLen > p.MaxLen {
		maxLen = p.MaxLen
	}
	truncateAll(trainIDs, maxLen)
	devIDs := encodeAll(emb, corpus.Texts(dev), maxLen)

	trainY, err := labels.Transform(corpus.Labels(train))
	if err != nil {
		return nil, fmt.Errorf("attnmlp: encoding targets: %w", err)
	}
	var devY *model.Matrix
	if len(dev) > 0 {
		if devY, err = labels.Transform(corpus.Labels(dev)); err != nil {
			return nil, fmt.Errorf("attnmlp: encoding dev targets: %w", err)
		}
	}

	var posW []float64
	if p.ClassWeights {
		posW = corpus.PositiveWeights(trainY)
	} else {
		posW = make([]float64, labels.Len())
		for j := range posW {
			posW[j] = 1
		}
	}

	rng := rand.New(rand.NewSource(p.Seed))
	nn := newNet(emb.Dim(), labels.Len())
	glorotInit(nn, rng)
	opt := optim.NewAdam(nn.tensors(), p.LearningRate, adamBeta1, adamBeta2, adamEps, 0)

	slog.Info("training attention classifier",
		"samples", len(train), "dev", len(dev), "vocab", emb.Len(),
		"dim", emb.Dim(), "max_len", maxLen, "labels", labels.Len())

	order := make([]int, len(trainIDs))
	for i := range order {
		order[i] = i
	}

	best := math.Inf(1)
	var bestWeights [][]float64
	wait := 0

	for epoch := 0; epoch < p.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("attnmlp: training: %w", err)
		}
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		var epochLoss float64
		for start := 0; start < len(order); start += p.BatchSize {
			end := start + p.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]
			scale := 1 / float64(len(batch)*labels.Len())

			dLogits := make([]float64, labels.Len())
			for _, i := range batch {
				st := nn.forward(gather(emb, trainIDs[i]))
				epochLoss += optim.BCEWithLogits(st.logits, trainY.Row(i), posW, scale, dLogits)
				nn.backward(st, dLogits)
			}
			opt.Step()
		}
		epochLoss /= float64(len(trainIDs))

		if devY == nil {
			slog.Debug("epoch done", "epoch", epoch+1, "train_loss", epochLoss)
			continue
		}

		devLoss := meanLoss(nn, emb, devIDs, devY, posW)
		slog.Debug("epoch done", "epoch", epoch+1, "train_loss", epochLoss, "dev_loss", devLoss)

		if devLoss < best {
			best = devLoss
			wait = 0
			bestWeights = snapshot(nn)
		} else {
			wait++
			if wait >= p.Patience {
				slog.Info("early stopping", "epoch", epoch+1, "best_dev_loss", best)
				break
			}
		}
	}
	if bestWeights != nil {
		restore(nn, bestWeights)
	}

	return &Model{
		Classes: labels.Classes(),
		MaxLen:  maxLen,
		Params:  p,
		emb:     emb,
		net:     nn,
	}, nil
}

// Name implements engine.Classifier.
func (m *Model) Name() string { return Kind }

// Labels implements engine.Classifier.
func (m *Model) Labels() []string { return m.Classes }

// Predict implements engine.Classifier. Texts with no in-vocabulary tokens
// are scored from the head biases alone.
func (m *Model) Predict(ctx context.Context, texts []string) (*model.Matrix, error) {
	out := model.NewMatrix(len(texts), len(m.Classes))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("attnmlp: predict: %w", err)
		}
		ids := encode(m.emb, text, m.MaxLen)
		st := m.net.forward(gather(m.emb, ids))
		row := out.Row(i)
		for j, z := range st.logits {
			row[j] = sigmoid(z)
		}
	}
	return out, nil
}

// subsetTable copies the embedding rows for the tokens texts actually use,
// in first-seen order.
func subsetTable(table *wordvec.Table, texts []string) (*wordvec.Table, error) {
	index := make(map[string]int)
	var data []float64
	for _, text := range texts {
		for _, tok := range corpus.Tokenize(text) {
			if _, seen := index[tok]; seen {
				continue
			}
			id, ok := table.ID(tok)
			if !ok {
				continue
			}
			index[tok] = len(index)
			data = append(data, table.Row(id)...)
		}
	}
	if len(index) == 0 {
		return nil, fmt.Errorf("attnmlp: no corpus token is covered by the embedding vocabulary")
	}
	return wordvec.New(index, data, table.Dim())
}

// encode maps a text to embedding-table ids, dropping unknown tokens.
// maxLen > 0 truncates.
func encode(emb *wordvec.Table, text string, maxLen int) []int {
	var ids []int
	for _, tok := range corpus.Tokenize(text) {
		if id, ok := emb.ID(tok); ok {
			ids = append(ids, id)
		}
	}
	if maxLen > 0 && len(ids) > maxLen {
		ids = ids[:maxLen]
	}
	return ids
}

func encodeAll(emb *wordvec.Table, texts []string, maxLen int) [][]int {
	out := make([][]int, len(texts))
	for i, t := range texts {
		out[i] = encode(emb, t, maxLen)
	}
	return out
}

func truncateAll(seqs [][]int, maxLen int) {
	for i, ids := range seqs {
		if len(ids) > maxLen {
			seqs[i] = ids[:maxLen]
		}
	}
}

// gather collects the frozen embedding rows for a token-id sequence.
func gather(emb *wordvec.Table, ids []int) [][]float64 {
	rows := make([][]float64, len(ids))
	for t, id := range ids {
		rows[t] = emb.Row(id)
	}
	return rows
}

// meanLoss computes the weighted BCE over a whole split.
func meanLoss(nn *net, emb *wordvec.Table, seqs [][]int, targets *model.Matrix, posW []float64) float64 {
	if len(seqs) == 0 {
		return math.NaN()
	}
	var sum float64
	for i, ids := range seqs {
		st := nn.forward(gather(emb, ids))
		sum += optim.BCEWithLogits(st.logits, targets.Row(i), posW, 0, nil)
	}
	return sum / float64(len(seqs))
}

func glorotInit(nn *net, rng *rand.Rand) {
	initUniform(rng, nn.attnW.W, glorotLimit(nn.dim, 1))
	initUniform(rng, nn.w1.W, glorotLimit(nn.dim, nn.hidden))
	initUniform(rng, nn.w2.W, glorotLimit(nn.hidden, nn.classes))
}

func glorotLimit(fanIn, fanOut int) float64 {
	return math.Sqrt(6 / float64(fanIn+fanOut))
}

func initUniform(rng *rand.Rand, w []float64, limit float64) {
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
}

func snapshot(nn *net) [][]float64 {
	ts := nn.tensors()
	out := make([][]float64, len(ts))
	for i, t := range ts {
		out[i] = append([]float64(nil), t.W...)
	}
	return out
}

func restore(nn *net, weights [][]float64) {
	for i, t := range nn.tensors() {
		copy(t.W, weights[i])
	}
}

// weightsFile is the on-disk manifest layout.
type weightsFile struct {
	Kind    string    `json:"model"`
	Classes []string  `json:"classes"`
	MaxLen  int       `json:"max_len"`
	Dim     int       `json:"dim"`
	AttnW   []float64 `json:"attn_w"`
	AttnB   float64   `json:"attn_b"`
	W1      []float64 `json:"w1"`
	B1      []float64 `json:"b1"`
	W2      []float64 `json:"w2"`
	B2      []float64 `json:"b2"`
	Params  Params    `json:"params"`
}

// Save writes the manifest plus the embedding subset into dir.
func (m *Model) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("attnmlp: creating model dir: %w", err)
	}

	wf := weightsFile{
		Kind:    Kind,
		Classes: m.Classes,
		MaxLen:  m.MaxLen,
		Dim:     m.net.dim,
		AttnW:   m.net.attnW.W,
		AttnB:   m.net.attnB.W[0],
		W1:      m.net.w1.W,
		B1:      m.net.b1.W,
		W2:      m.net.w2.W,
		B2:      m.net.b2.W,
		Params:  m.Params,
	}
	data, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("attnmlp: encoding model: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, engine.ManifestName), data, 0o644); err != nil {
		return fmt.Errorf("attnmlp: writing model: %w", err)
	}

	if err := m.emb.Save(filepath.Join(dir, embeddingsFile), filepath.Join(dir, vocabFile)); err != nil {
		return fmt.Errorf("attnmlp: writing embeddings: %w", err)
	}
	return nil
}

// Load reads a trained model from dir.
func Load(dir string) (*Model, error) {
	raw, err := os.ReadFile(filepath.Join(dir, engine.ManifestName))
	if err != nil {
		return nil, fmt.Errorf("attnmlp: reading model: %w", err)
	}
	var wf weightsFile
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("attnmlp: parsing model: %w", err)
	}

	emb, err := wordvec.LoadNPY(filepath.Join(dir, embeddingsFile), filepath.Join(dir, vocabFile))
	if err != nil {
		return nil, err
	}
	if emb.Dim() != wf.Dim {
		return nil, fmt.Errorf("attnmlp: embeddings are %d-dimensional, model expects %d", emb.Dim(), wf.Dim)
	}

	nn := newNet(wf.Dim, len(wf.Classes))
	for _, chk := range []struct {
		name string
		got  []float64
		dst  *optim.Tensor
	}{
		{"attn_w", wf.AttnW, nn.attnW},
		{"w1", wf.W1, nn.w1},
		{"b1", wf.B1, nn.b1},
		{"w2", wf.W2, nn.w2},
		{"b2", wf.B2, nn.b2},
	} {
		if len(chk.got) != len(chk.dst.W) {
			return nil, fmt.Errorf("attnmlp: %s has %d values, want %d", chk.name, len(chk.got), len(chk.dst.W))
		}
		copy(chk.dst.W, chk.got)
	}
	nn.attnB.W[0] = wf.AttnB

	return &Model{
		Classes: wf.Classes,
		MaxLen:  wf.MaxLen,
		Params:  wf.Params,
		emb:     emb,
		net:     nn,
	}, nil
}
