package eval

import (
	"fmt"

	"github.com/lexkit/fineprint/internal/model"
)

// Strategy selects a threshold-tuning procedure.
type Strategy string

const (
	// StrategyGrid tries the nine thresholds 0.1..0.9 globally and keeps,
	// per label, the one maximizing that label's F1.
	StrategyGrid Strategy = "grid"

	// StrategyLinspace searches, per label, 100 evenly spaced candidates
	// between the min and max of that label's predicted probabilities.
	StrategyLinspace Strategy = "linspace"
)

// defaultThreshold is the decision threshold used when tuning produces no
// signal for a label.
const defaultThreshold = 0.5

// linspacePoints is the per-label candidate count for StrategyLinspace.
const linspacePoints = 100

// Thresholds holds one decision threshold per label column.
type Thresholds struct {
	Labels []string
	Values []float64 // parallel to Labels
}

// Uniform builds Thresholds assigning the same value to every label.
func Uniform(labels []string, value float64) *Thresholds {
	values := make([]float64, len(labels))
	for i := range values {
		values[i] = value
	}
	return &Thresholds{Labels: labels, Values: values}
}

// Value returns the threshold for the given column index.
func (t *Thresholds) Value(col int) float64 { return t.Values[col] }

// Apply turns a probability matrix into predicted label sets: a sample gets
// every label whose probability is >= that label's threshold. There is no
// fallback label; the empty set is a legal prediction.
func Apply(probs *model.Matrix, th *Thresholds) ([][]string, error) {
	if probs.Cols != len(th.Labels) {
		return nil, fmt.Errorf("eval: %d probability columns but %d thresholds", probs.Cols, len(th.Labels))
	}
	out := make([][]string, probs.Rows)
	for i := 0; i < probs.Rows; i++ {
		row := probs.Row(i)
		var labels []string
		for j, p := range row {
			if p >= th.Values[j] {
				labels = append(labels, th.Labels[j])
			}
		}
		out[i] = labels
	}
	return out, nil
}

// Tune dispatches to the named strategy. gold are the tuning split's label
// sets, parallel to the probability rows.
func Tune(strategy Strategy, probs *model.Matrix, gold [][]string, labels []string) (*Thresholds, error) {
	switch strategy {
	case StrategyGrid:
		return TuneGrid(probs, gold, labels)
	case StrategyLinspace:
		return TuneLinspace(probs, gold, labels)
	default:
		return nil, fmt.Errorf("eval: unknown tuning strategy %q", strategy)
	}
}

// TuneGrid evaluates the whole tuning split at each of the nine candidate
// thresholds 0.1..0.9 and keeps, for each label, the candidate with the best
// F1 for that label. Ties keep the lowest candidate; a label that never
// scores keeps 0.1.
func TuneGrid(probs *model.Matrix, gold [][]string, labels []string) (*Thresholds, error) {
	if probs.Rows != len(gold) {
		return nil, fmt.Errorf("eval: %d probability rows but %d gold samples", probs.Rows, len(gold))
	}

	grid := make([]float64, 0, 9)
	for t := 1; t <= 9; t++ {
		grid = append(grid, float64(t)/10.0)
	}

	byThresh := make([]*Results, len(grid))
	for gi, t := range grid {
		pred, err := Apply(probs, Uniform(labels, t))
		if err != nil {
			return nil, err
		}
		res, err := Evaluate(gold, pred)
		if err != nil {
			return nil, err
		}
		byThresh[gi] = res
	}

	values := make([]float64, len(labels))
	for j, label := range labels {
		best, bestF1 := grid[0], 0.0
		for gi, t := range grid {
			f1 := byThresh[gi].PerLabel[label].F1 // zero value when label absent
			if f1 > bestF1 {
				best, bestF1 = t, f1
			}
		}
		values[j] = best
	}
	return &Thresholds{Labels: labels, Values: values}, nil
}

// TuneLinspace searches per label over 100 evenly spaced candidates between
// the min and max of that label's probabilities, maximizing the label's
// binary F1 (ties keep the first, i.e. lowest, candidate). A winning
// threshold of exactly 0 falls back to 0.5, matching the original
// experiments: it means the label fires on everything, and 0.5 is the safer
// default.
func TuneLinspace(probs *model.Matrix, gold [][]string, labels []string) (*Thresholds, error) {
	if probs.Rows != len(gold) {
		return nil, fmt.Errorf("eval: %d probability rows but %d gold samples", probs.Rows, len(gold))
	}
	if probs.Rows == 0 {
		return nil, fmt.Errorf("eval: no samples to tune on")
	}

	values := make([]float64, len(labels))
	truth := make([]bool, probs.Rows)
	col := make([]float64, probs.Rows)

	for j, label := range labels {
		for i := 0; i < probs.Rows; i++ {
			col[i] = probs.At(i, j)
			truth[i] = containsLabel(gold[i], label)
		}

		lo, hi := col[0], col[0]
		for _, v := range col[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}

		best, bestF1 := lo, binaryF1(col, truth, lo)
		if linspacePoints > 1 && hi > lo {
			step := (hi - lo) / float64(linspacePoints-1)
			for k := 1; k < linspacePoints; k++ {
				t := lo + float64(k)*step
				if f1 := binaryF1(col, truth, t); f1 > bestF1 {
					best, bestF1 = t, f1
				}
			}
		}
		if best == 0 {
			best = defaultThreshold
		}
		values[j] = best
	}
	return &Thresholds{Labels: labels, Values: values}, nil
}

// binaryF1 scores a single label column at threshold t with the >= decision
// rule and the zero-division convention.
func binaryF1(col []float64, truth []bool, t float64) float64 {
	var tp, fp, fn int
	for i, p := range col {
		pred := p >= t
		switch {
		case pred && truth[i]:
			tp++
		case pred && !truth[i]:
			fp++
		case !pred && truth[i]:
			fn++
		}
	}
	if 2*tp+fp+fn == 0 {
		return 0
	}
	return 2 * float64(tp) / float64(2*tp+fp+fn)
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
