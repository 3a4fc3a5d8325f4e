package encoder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexkit/fineprint/internal/corpus"
	"github.com/lexkit/fineprint/internal/engine"
	"github.com/lexkit/fineprint/internal/model"
)

// fakeEncoder derives features from keyword presence, standing in for the
// ONNX encoder so head training is testable without model assets.
type fakeEncoder struct {
	closed bool
}

func (f *fakeEncoder) Dim() int { return 3 }

func (f *fakeEncoder) Encode(ctx context.Context, texts []string) (*model.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := model.NewMatrix(len(texts), 3)
	for i, text := range texts {
		row := out.Row(i)
		if strings.Contains(text, "confidential") {
			row[0] = 1
		}
		if strings.Contains(text, "terminate") {
			row[1] = 1
		}
		row[2] = 0.5
	}
	return out, nil
}

func (f *fakeEncoder) Close() error {
	f.closed = true
	return nil
}

func headCorpus() []model.Provision {
	var provs []model.Provision
	for i := 0; i < 6; i++ {
		provs = append(provs,
			model.Provision{Text: "the receiving party keeps confidential information secret", Labels: []string{"confidentiality"}},
			model.Provision{Text: "either party may terminate this agreement on notice", Labels: []string{"termination"}},
		)
	}
	return provs
}

// fastParams trades the faithful defaults for quick convergence on the tiny
// test corpus.
func fastParams() Params {
	return Params{
		Epochs:       300,
		BatchSize:    4,
		LearningRate: 0.05,
		AdamEpsilon:  1e-8,
		MaxGradNorm:  1.0,
		Seed:         7,
		ClassWeights: true,
	}
}

func TestTrainLearnsSeparableCorpus(t *testing.T) {
	provs := headCorpus()
	labels := corpus.NewLabelSet(corpus.Labels(provs))

	m, err := Train(context.Background(), provs, labels, &fakeEncoder{}, fastParams())
	require.NoError(t, err)
	require.Equal(t, []string{"confidentiality", "termination"}, m.Labels())

	probs, err := m.Predict(context.Background(), []string{
		"all confidential information shall remain protected",
		"this agreement may terminate upon written notice",
	})
	require.NoError(t, err)

	assert.Greater(t, probs.At(0, 0), 0.7, "confidentiality on the first text")
	assert.Less(t, probs.At(0, 1), 0.3)
	assert.Greater(t, probs.At(1, 1), 0.7, "termination on the second text")
	assert.Less(t, probs.At(1, 0), 0.3)
}

func TestTrainDeterministic(t *testing.T) {
	provs := headCorpus()
	labels := corpus.NewLabelSet(corpus.Labels(provs))

	m1, err := Train(context.Background(), provs, labels, &fakeEncoder{}, fastParams())
	require.NoError(t, err)
	m2, err := Train(context.Background(), provs, labels, &fakeEncoder{}, fastParams())
	require.NoError(t, err)

	texts := []string{"confidential data", "terminate for convenience"}
	p1, err := m1.Predict(context.Background(), texts)
	require.NoError(t, err)
	p2, err := m2.Predict(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, p1.Data, p2.Data)
}

func TestTrainEmptyCorpus(t *testing.T) {
	labels := corpus.NewLabelSet([][]string{{"a"}})
	_, err := Train(context.Background(), nil, labels, &fakeEncoder{}, Params{})
	assert.ErrorContains(t, err, "no training provisions")
}

func TestTrainCancelled(t *testing.T) {
	provs := headCorpus()
	labels := corpus.NewLabelSet(corpus.Labels(provs))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Train(ctx, provs, labels, &fakeEncoder{}, fastParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredictCancelled(t *testing.T) {
	provs := headCorpus()
	labels := corpus.NewLabelSet(corpus.Labels(provs))

	m, err := Train(context.Background(), provs, labels, &fakeEncoder{}, fastParams())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Predict(ctx, []string{"confidential"})
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	provs := headCorpus()
	labels := corpus.NewLabelSet(corpus.Labels(provs))

	m, err := Train(context.Background(), provs, labels, &fakeEncoder{}, fastParams())
	require.NoError(t, err)
	m.Config = Config{
		Model:     "model.onnx",
		Vocab:     "vocab.txt",
		Pooling:   PoolCLS,
		MaxSeqLen: 32,
	}

	dir := t.TempDir()
	require.NoError(t, m.Save(dir))

	// The manifest dispatches through the shared model.json key.
	raw, err := os.ReadFile(filepath.Join(dir, engine.ManifestName))
	require.NoError(t, err)
	var probe struct {
		Model string `json:"model"`
	}
	require.NoError(t, json.Unmarshal(raw, &probe))
	assert.Equal(t, Kind, probe.Model)

	mf, err := readManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, PoolCLS, mf.Encoder.Pooling)
	assert.Equal(t, 32, mf.Encoder.MaxSeqLen)

	loaded, err := mf.build(&fakeEncoder{})
	require.NoError(t, err)

	texts := []string{"confidential information", "terminate the agreement"}
	want, err := m.Predict(context.Background(), texts)
	require.NoError(t, err)
	got, err := loaded.Predict(context.Background(), texts)
	require.NoError(t, err)
	for i := range want.Data {
		assert.InDelta(t, want.Data[i], got.Data[i], 1e-12)
	}
}

func TestSaveRequiresAssetPaths(t *testing.T) {
	provs := headCorpus()
	labels := corpus.NewLabelSet(corpus.Labels(provs))

	m, err := Train(context.Background(), provs, labels, &fakeEncoder{}, fastParams())
	require.NoError(t, err)

	err = m.Save(t.TempDir())
	assert.ErrorContains(t, err, "missing asset paths")
}

func TestManifestBuildDimMismatch(t *testing.T) {
	mf := &manifest{
		Kind:    Kind,
		Classes: []string{"a"},
		Dim:     5,
		W1:      make([]float64, 25),
		B1:      make([]float64, 5),
		W2:      make([]float64, 5),
		B2:      make([]float64, 1),
	}
	_, err := mf.build(&fakeEncoder{})
	assert.ErrorContains(t, err, "model expects 5")
}

func TestModelClose(t *testing.T) {
	provs := headCorpus()
	labels := corpus.NewLabelSet(corpus.Labels(provs))

	fake := &fakeEncoder{}
	m, err := Train(context.Background(), provs, labels, fake, fastParams())
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.True(t, fake.closed)
}
