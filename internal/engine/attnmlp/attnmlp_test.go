package attnmlp

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexkit/fineprint/internal/corpus"
	"github.com/lexkit/fineprint/internal/engine"
	"github.com/lexkit/fineprint/internal/engine/optim"
	"github.com/lexkit/fineprint/internal/engine/wordvec"
	"github.com/lexkit/fineprint/internal/model"
)

// testTable builds a small random embedding table over the given tokens.
func testTable(t *testing.T, dim int, tokens ...string) *wordvec.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(99))
	index := make(map[string]int, len(tokens))
	data := make([]float64, 0, len(tokens)*dim)
	for i, tok := range tokens {
		index[tok] = i
		for d := 0; d < dim; d++ {
			data = append(data, rng.NormFloat64()*0.5)
		}
	}
	tab, err := wordvec.New(index, data, dim)
	require.NoError(t, err)
	return tab
}

func TestBackwardMatchesNumericGradient(t *testing.T) {
	nn := newNet(3, 2)
	glorotInit(nn, rand.New(rand.NewSource(3)))

	rows := [][]float64{
		{0.3, -0.2, 0.5},
		{-0.4, 0.1, 0.2},
		{0.7, 0.6, -0.3},
	}
	y := []float64{1, 0}
	posW := []float64{2.0, 1.0}

	loss := func() float64 {
		st := nn.forward(rows)
		return optim.BCEWithLogits(st.logits, y, posW, 0, nil)
	}

	st := nn.forward(rows)
	dLogits := make([]float64, 2)
	optim.BCEWithLogits(st.logits, y, posW, 1.0/float64(len(y)), dLogits)
	nn.backward(st, dLogits)

	const h = 1e-6
	for _, ts := range nn.tensors() {
		for i := range ts.W {
			orig := ts.W[i]
			ts.W[i] = orig + h
			up := loss()
			ts.W[i] = orig - h
			down := loss()
			ts.W[i] = orig

			numeric := (up - down) / (2 * h)
			assert.InDelta(t, numeric, ts.G[i], 1e-5, "%s[%d]", ts.Name, i)
		}
	}
}

func TestForwardEmptySequence(t *testing.T) {
	nn := newNet(4, 3)
	glorotInit(nn, rand.New(rand.NewSource(1)))

	st := nn.forward(nil)
	require.Len(t, st.logits, 3)
	for _, z := range st.logits {
		assert.False(t, math.IsNaN(z))
	}
}

func trainingCorpus() (train []model.Provision, tokens []string) {
	tokens = []string{
		"the", "party", "shall", "agreement", "keep", "and",
		"confidential", "secret", "terminate", "expire",
	}
	for i := 0; i < 12; i++ {
		train = append(train,
			model.Provision{
				Text:   "the party shall keep confidential secret",
				Labels: []string{"confidentiality"},
			},
			model.Provision{
				Text:   "the agreement shall terminate and expire",
				Labels: []string{"terminations"},
			},
		)
	}
	return train, tokens
}

func fastParams() Params {
	return Params{
		Epochs:       300,
		BatchSize:    16,
		LearningRate: 0.05,
		Patience:     300,
		Seed:         5,
		ClassWeights: true,
	}
}

func TestTrainLearnsSeparableCorpus(t *testing.T) {
	train, tokens := trainingCorpus()
	table := testTable(t, 8, tokens...)
	labels := corpus.NewLabelSet(corpus.Labels(train))

	m, err := Train(context.Background(), train, nil, labels, table, fastParams())
	require.NoError(t, err)
	require.Equal(t, []string{"confidentiality", "terminations"}, m.Labels())

	probs, err := m.Predict(context.Background(), []string{
		"keep confidential secret",
		"the agreement shall expire",
	})
	require.NoError(t, err)

	conf, term := labels.Index("confidentiality"), labels.Index("terminations")
	assert.Greater(t, probs.At(0, conf), 0.7)
	assert.Less(t, probs.At(0, term), 0.3)
	assert.Greater(t, probs.At(1, term), 0.7)
	assert.Less(t, probs.At(1, conf), 0.3)
}

func TestTrainWithDevEarlyStopping(t *testing.T) {
	train, tokens := trainingCorpus()
	table := testTable(t, 8, tokens...)
	labels := corpus.NewLabelSet(corpus.Labels(train))

	dev := []model.Provision{
		{Text: "keep confidential secret", Labels: []string{"confidentiality"}},
		{Text: "the agreement shall expire", Labels: []string{"terminations"}},
	}

	p := fastParams()
	p.Patience = 3
	m, err := Train(context.Background(), train, dev, labels, table, p)
	require.NoError(t, err)

	probs, err := m.Predict(context.Background(), []string{"keep confidential secret"})
	require.NoError(t, err)
	assert.Greater(t, probs.At(0, labels.Index("confidentiality")), 0.5)
}

func TestTrainNoVocabularyOverlap(t *testing.T) {
	table := testTable(t, 4, "unrelated", "words")
	train := []model.Provision{{Text: "completely different text", Labels: []string{"a"}}}
	labels := corpus.NewLabelSet([][]string{{"a"}})

	_, err := Train(context.Background(), train, nil, labels, table, fastParams())
	require.Error(t, err)
}

func TestMaxLenTruncates(t *testing.T) {
	train, tokens := trainingCorpus()
	table := testTable(t, 8, tokens...)
	labels := corpus.NewLabelSet(corpus.Labels(train))

	p := fastParams()
	p.MaxLen = 3
	m, err := Train(context.Background(), train, nil, labels, table, p)
	require.NoError(t, err)
	assert.Equal(t, 3, m.MaxLen)
}

func TestSaveLoad(t *testing.T) {
	train, tokens := trainingCorpus()
	table := testTable(t, 8, tokens...)
	labels := corpus.NewLabelSet(corpus.Labels(train))

	p := fastParams()
	p.Epochs = 30
	m, err := Train(context.Background(), train, nil, labels, table, p)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, m.Save(dir))

	loaded, err := engine.Open(dir)
	require.NoError(t, err)
	assert.Equal(t, Kind, loaded.Name())
	assert.Equal(t, m.Classes, loaded.Labels())

	texts := []string{
		"keep confidential secret",
		"words outside the vocabulary entirely",
	}
	want, err := m.Predict(context.Background(), texts)
	require.NoError(t, err)
	got, err := loaded.Predict(context.Background(), texts)
	require.NoError(t, err)

	for i := 0; i < want.Rows; i++ {
		for j := 0; j < want.Cols; j++ {
			assert.InDelta(t, want.At(i, j), got.At(i, j), 1e-12)
		}
	}
}

func TestPredictAllUnknownTokens(t *testing.T) {
	train, tokens := trainingCorpus()
	table := testTable(t, 8, tokens...)
	labels := corpus.NewLabelSet(corpus.Labels(train))

	p := fastParams()
	p.Epochs = 10
	m, err := Train(context.Background(), train, nil, labels, table, p)
	require.NoError(t, err)

	probs, err := m.Predict(context.Background(), []string{"zzz qqq xxx"})
	require.NoError(t, err)
	for j := 0; j < probs.Cols; j++ {
		v := probs.At(0, j)
		assert.False(t, math.IsNaN(v))
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
