package logreg

import (
	"math"
	"math/rand"
)

// Params controls one-vs-rest training. Zero values are replaced by
// DefaultParams at train time.
type Params struct {
	// Alpha is the L2 regularization strength.
	Alpha float64 `json:"alpha"`
	// Eta0 is the initial learning rate; the effective rate decays as
	// eta0 / sqrt(t) over updates.
	Eta0 float64 `json:"eta0"`
	// MaxIter caps the number of passes over the training data.
	MaxIter int `json:"max_iter"`
	// Tol stops a label's training once the epoch loss improves by less.
	Tol float64 `json:"tol"`
	// BatchSize is the mini-batch size.
	BatchSize int `json:"batch_size"`
	// Seed drives the per-label shuffle RNGs.
	Seed int64 `json:"seed"`
	// ClassWeights enables balanced class weighting.
	ClassWeights bool `json:"class_weights"`
}

// DefaultParams returns the training defaults.
func DefaultParams() Params {
	return Params{
		Alpha:        1e-4,
		Eta0:         0.5,
		MaxIter:      100,
		Tol:          1e-4,
		BatchSize:    32,
		Seed:         42,
		ClassWeights: true,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Alpha == 0 {
		p.Alpha = d.Alpha
	}
	if p.Eta0 == 0 {
		p.Eta0 = d.Eta0
	}
	if p.MaxIter == 0 {
		p.MaxIter = d.MaxIter
	}
	if p.Tol == 0 {
		p.Tol = d.Tol
	}
	if p.BatchSize == 0 {
		p.BatchSize = d.BatchSize
	}
	return p
}

// estimator is one label's decision function.
type estimator struct {
	W []float64 `json:"w"`
	B float64   `json:"b"`
}

func (e estimator) prob(d vector) float64 {
	return sigmoid(d.dot(e.W) + e.B)
}

// trainBinary fits one label's logistic regression by mini-batch SGD. posW
// and negW weight the two classes' contributions to loss and gradient.
func trainBinary(docs []vector, y []bool, posW, negW float64, dim int, p Params, rng *rand.Rand) estimator {
	w := make([]float64, dim)
	var b float64

	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}

	sw := make([]float64, len(docs))
	for i, pos := range y {
		if pos {
			sw[i] = posW
		} else {
			sw[i] = negW
		}
	}

	grad := make(map[int]float64)
	prevLoss := math.Inf(1)
	var t int

	for epoch := 0; epoch < p.MaxIter; epoch++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		for start := 0; start < len(order); start += p.BatchSize {
			end := start + p.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]

			clear(grad)
			var gb float64
			for _, i := range batch {
				g := (sigmoid(docs[i].dot(w)+b) - y01(y[i])) * sw[i]
				for k, j := range docs[i].idx {
					grad[j] += g * docs[i].val[k]
				}
				gb += g
			}

			t++
			eta := p.Eta0 / math.Sqrt(float64(t))
			decay := 1 - eta*p.Alpha
			if decay < 0 {
				decay = 0
			}
			for j := range w {
				w[j] *= decay
			}
			inv := 1 / float64(len(batch))
			for j, g := range grad {
				w[j] -= eta * g * inv
			}
			b -= eta * gb * inv
		}

		loss := logLoss(docs, y, sw, w, b, p.Alpha)
		if prevLoss-loss < p.Tol {
			break
		}
		prevLoss = loss
	}
	return estimator{W: w, B: b}
}

// logLoss returns the weighted mean log loss plus the L2 penalty.
func logLoss(docs []vector, y []bool, sw []float64, w []float64, b, alpha float64) float64 {
	var sum, wsum float64
	for i := range docs {
		z := docs[i].dot(w) + b
		if y[i] {
			sum += sw[i] * log1pExp(-z)
		} else {
			sum += sw[i] * log1pExp(z)
		}
		wsum += sw[i]
	}
	loss := sum / wsum
	var reg float64
	for _, v := range w {
		reg += v * v
	}
	return loss + 0.5*alpha*reg
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// log1pExp computes ln(1 + e^x) without overflow.
func log1pExp(x float64) float64 {
	if x > 35 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

func y01(pos bool) float64 {
	if pos {
		return 1
	}
	return 0
}
