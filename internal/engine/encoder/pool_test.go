package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolCLS(t *testing.T) {
	// 2 samples, seqLen=2, dim=2. The first token of each sequence is the
	// [CLS] position.
	hidden := []float32{
		1, 2, 3, 4, // sample 0: tokens [1,2] and [3,4]
		5, 6, 7, 8, // sample 1
	}

	out := poolCLS(hidden, 2, 2, 2)

	require.Len(t, out, 4)
	assert.Equal(t, []float64{1, 2, 5, 6}, out)
}

func TestPoolMean(t *testing.T) {
	// 1 sample, seqLen=3, dim=2, mask covers the first two tokens:
	// ([1,2] + [3,4]) / 2 = [2,3].
	hidden := []float32{1, 2, 3, 4, 5, 6}
	mask := []int64{1, 1, 0}

	out := poolMean(hidden, mask, 1, 3, 2)

	require.Len(t, out, 2)
	assert.InDelta(t, 2.0, out[0], 1e-9)
	assert.InDelta(t, 3.0, out[1], 1e-9)
}

func TestPoolMeanBatch(t *testing.T) {
	// Sample 0 averages two tokens, sample 1 has one real token.
	hidden := []float32{10, 20, 30, 40, 5, 15, 0, 0}
	mask := []int64{1, 1, 1, 0}

	out := poolMean(hidden, mask, 2, 2, 2)

	require.Len(t, out, 4)
	assert.InDelta(t, 20.0, out[0], 1e-9)
	assert.InDelta(t, 30.0, out[1], 1e-9)
	assert.InDelta(t, 5.0, out[2], 1e-9)
	assert.InDelta(t, 15.0, out[3], 1e-9)
}

func TestPoolMeanAllPadding(t *testing.T) {
	hidden := []float32{1, 2, 3, 4}
	mask := []int64{0, 0}

	out := poolMean(hidden, mask, 1, 2, 2)

	assert.Equal(t, []float64{0, 0}, out)
}
