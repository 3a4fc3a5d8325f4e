// Package optim implements the training math shared by the gradient-trained
// models: Adam with optional decoupled weight decay (AdamW), global
// gradient-norm clipping, the warmup-linear learning-rate schedule, and the
// weighted binary cross-entropy loss.
package optim

import "math"

// Tensor pairs a parameter slice with its gradient accumulator. Both are
// updated in place; Step zeroes G after applying it.
type Tensor struct {
	Name string
	W    []float64
	G    []float64

	// NoDecay excludes the tensor from weight decay (biases).
	NoDecay bool
}

// NewTensor allocates a named parameter tensor of n zeros.
func NewTensor(name string, n int) *Tensor {
	return &Tensor{Name: name, W: make([]float64, n), G: make([]float64, n)}
}

// Adam holds optimizer state over a fixed set of tensors. WeightDecay 0 is
// plain Adam; a nonzero value applies decoupled decay after each update,
// skipping NoDecay tensors.
type Adam struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64

	t      int
	m, v   [][]float64
	params []*Tensor
}

// NewAdam creates an optimizer over params. The moment buffers match the
// tensor sizes at creation; the tensor set is fixed afterwards.
func NewAdam(params []*Tensor, lr, beta1, beta2, eps, weightDecay float64) *Adam {
	a := &Adam{
		LR:          lr,
		Beta1:       beta1,
		Beta2:       beta2,
		Eps:         eps,
		WeightDecay: weightDecay,
		params:      params,
		m:           make([][]float64, len(params)),
		v:           make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p.W))
		a.v[i] = make([]float64, len(p.W))
	}
	return a
}

// SetLR adjusts the learning rate; schedules call this before Step.
func (a *Adam) SetLR(lr float64) { a.LR = lr }

// Step applies one update from the accumulated gradients and zeroes them.
// Bias-corrected moments, then decoupled decay at the current rate.
func (a *Adam) Step() {
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for i, p := range a.params {
		m, v := a.m[i], a.v[i]
		for j := range p.W {
			g := p.G[j]
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g

			mHat := m[j] / c1
			vHat := v[j] / c2
			p.W[j] -= a.LR * mHat / (math.Sqrt(vHat) + a.Eps)

			if a.WeightDecay > 0 && !p.NoDecay {
				p.W[j] -= a.LR * a.WeightDecay * p.W[j]
			}
			p.G[j] = 0
		}
	}
}

// ClipGradNorm rescales all gradients so their global L2 norm is at most
// max, returning the pre-clip norm. A non-positive max is a no-op.
func ClipGradNorm(params []*Tensor, max float64) float64 {
	var sq float64
	for _, p := range params {
		for _, g := range p.G {
			sq += g * g
		}
	}
	norm := math.Sqrt(sq)
	if max <= 0 || norm <= max {
		return norm
	}
	scale := max / norm
	for _, p := range params {
		for j := range p.G {
			p.G[j] *= scale
		}
	}
	return norm
}

// WarmupLinear returns the learning-rate multiplier at step: linear from 0
// to 1 over the first warmup steps, then linear back down to 0 at total.
func WarmupLinear(step, warmup, total int) float64 {
	if warmup > 0 && step < warmup {
		return float64(step) / float64(warmup)
	}
	if total <= warmup {
		return 1
	}
	f := float64(total-step) / float64(total-warmup)
	if f < 0 {
		return 0
	}
	return f
}
