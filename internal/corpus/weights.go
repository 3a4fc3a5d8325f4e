package corpus

import "github.com/lexkit/fineprint/internal/model"

// labelCounts sums the positive entries of each column of a multi-hot matrix.
func labelCounts(targets *model.Matrix) []float64 {
	counts := make([]float64, targets.Cols)
	for i := 0; i < targets.Rows; i++ {
		row := targets.Row(i)
		for j, v := range row {
			if v > 0 {
				counts[j]++
			}
		}
	}
	return counts
}

// BalancedWeights computes per-label (positive, negative) class weights in
// the sklearn "balanced" sense: w = n / (2 * count). A label with no positive
// or no negative examples gets weight 1 on the missing side.
func BalancedWeights(targets *model.Matrix) (pos, neg []float64) {
	n := float64(targets.Rows)
	counts := labelCounts(targets)
	pos = make([]float64, targets.Cols)
	neg = make([]float64, targets.Cols)
	for j, p := range counts {
		q := n - p
		if p > 0 {
			pos[j] = n / (2 * p)
		} else {
			pos[j] = 1
		}
		if q > 0 {
			neg[j] = n / (2 * q)
		} else {
			neg[j] = 1
		}
	}
	return pos, neg
}

// PositiveWeights computes per-label positive-class weights for weighted
// binary cross-entropy: neg/pos, the usual pos_weight. A label with no
// positive examples gets 1.
func PositiveWeights(targets *model.Matrix) []float64 {
	n := float64(targets.Rows)
	counts := labelCounts(targets)
	out := make([]float64, targets.Cols)
	for j, p := range counts {
		if p > 0 {
			out[j] = (n - p) / p
		} else {
			out[j] = 1
		}
	}
	return out
}
