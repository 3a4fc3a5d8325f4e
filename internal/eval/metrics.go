// Package eval implements the shared evaluation protocol: multi-label
// precision/recall/F1 scoring and per-label decision-threshold tuning. Every
// model's probability output passes through this package identically.
package eval

import (
	"fmt"
	"sort"
)

// LabelMetrics holds the confusion counts and derived scores for one label
// (or for a micro/macro aggregate).
type LabelMetrics struct {
	TP, FP, FN int
	Support    int // gold occurrences (TP + FN)

	Precision float64
	Recall    float64
	F1        float64
}

// Results is the outcome of a multi-label evaluation.
type Results struct {
	// PerLabel covers the label universe: every label appearing in the gold
	// or the predicted sets, including hallucinated predictions.
	PerLabel map[string]LabelMetrics

	Micro LabelMetrics // from globally summed TP/FP/FN
	Macro LabelMetrics // unweighted mean over the label universe
}

// Evaluate scores predicted label sets against gold label sets. The slices
// are parallel: pred[i] is the prediction for gold[i]. Empty prediction sets
// are legal and count a false negative for each gold label.
func Evaluate(gold, pred [][]string) (*Results, error) {
	if len(gold) != len(pred) {
		return nil, fmt.Errorf("eval: %d gold samples but %d predictions", len(gold), len(pred))
	}

	counts := make(map[string]*LabelMetrics)
	get := func(label string) *LabelMetrics {
		m, ok := counts[label]
		if !ok {
			m = &LabelMetrics{}
			counts[label] = m
		}
		return m
	}

	for i := range gold {
		predSet := make(map[string]struct{}, len(pred[i]))
		for _, l := range pred[i] {
			predSet[l] = struct{}{}
		}
		goldSet := make(map[string]struct{}, len(gold[i]))
		for _, l := range gold[i] {
			goldSet[l] = struct{}{}
		}

		for l := range goldSet {
			if _, hit := predSet[l]; hit {
				get(l).TP++
			} else {
				get(l).FN++
			}
		}
		for l := range predSet {
			if _, hit := goldSet[l]; !hit {
				get(l).FP++
			}
		}
	}

	res := &Results{PerLabel: make(map[string]LabelMetrics, len(counts))}
	var sumTP, sumFP, sumFN int
	var sumP, sumR, sumF1 float64
	for label, m := range counts {
		m.Support = m.TP + m.FN
		m.Precision, m.Recall, m.F1 = prf(m.TP, m.FP, m.FN)
		res.PerLabel[label] = *m

		sumTP += m.TP
		sumFP += m.FP
		sumFN += m.FN
		sumP += m.Precision
		sumR += m.Recall
		sumF1 += m.F1
	}

	res.Micro.TP, res.Micro.FP, res.Micro.FN = sumTP, sumFP, sumFN
	res.Micro.Support = sumTP + sumFN
	res.Micro.Precision, res.Micro.Recall, res.Micro.F1 = prf(sumTP, sumFP, sumFN)

	if n := float64(len(counts)); n > 0 {
		res.Macro.Precision = sumP / n
		res.Macro.Recall = sumR / n
		res.Macro.F1 = sumF1 / n
		res.Macro.Support = res.Micro.Support
	}
	return res, nil
}

// prf derives precision, recall, and F1 from confusion counts, with the
// zero-division convention: an empty denominator scores 0.
func prf(tp, fp, fn int) (p, r, f1 float64) {
	if tp+fp > 0 {
		p = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		r = float64(tp) / float64(tp+fn)
	}
	if p+r > 0 {
		f1 = 2 * p * r / (p + r)
	}
	return p, r, f1
}

// SortedLabels returns the label universe in lexical order.
func (r *Results) SortedLabels() []string {
	labels := make([]string, 0, len(r.PerLabel))
	for l := range r.PerLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
