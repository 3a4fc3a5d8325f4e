package encoder

import (
	"math"
	"math/rand"

	"github.com/lexkit/fineprint/internal/engine/optim"
)

// dropoutRate is the sequence-classification dropout between the head's two
// layers, fixed by the encoder architecture.
const dropoutRate = 0.2

// headNet is the classification head over pooled encoder outputs: a dense
// dim to dim layer with ReLU and dropout, then a dense layer producing one
// logit per label.
type headNet struct {
	dim     int
	classes int

	w1 *optim.Tensor // row-major [dim][dim]
	b1 *optim.Tensor
	w2 *optim.Tensor // row-major [classes][dim]
	b2 *optim.Tensor
}

func newHeadNet(dim, classes int) *headNet {
	n := &headNet{
		dim:     dim,
		classes: classes,
		w1:      optim.NewTensor("w1", dim*dim),
		b1:      optim.NewTensor("b1", dim),
		w2:      optim.NewTensor("w2", classes*dim),
		b2:      optim.NewTensor("b2", classes),
	}
	n.b1.NoDecay = true
	n.b2.NoDecay = true
	return n
}

func (n *headNet) tensors() []*optim.Tensor {
	return []*optim.Tensor{n.w1, n.b1, n.w2, n.b2}
}

// headState carries the activations backward needs.
type headState struct {
	x      []float64
	z1     []float64 // hidden pre-activation
	h1     []float64 // after ReLU and dropout
	logits []float64
}

// forward computes logits for one pooled vector. drop holds the per-unit
// inverted-dropout scales (0 or 1/(1-rate)); nil disables dropout.
func (n *headNet) forward(x []float64, drop []float64) headState {
	st := headState{
		x:      x,
		z1:     make([]float64, n.dim),
		h1:     make([]float64, n.dim),
		logits: make([]float64, n.classes),
	}

	for i := 0; i < n.dim; i++ {
		row := n.w1.W[i*n.dim : (i+1)*n.dim]
		s := n.b1.W[i]
		for j, xj := range x {
			s += row[j] * xj
		}
		st.z1[i] = s
		if s < 0 {
			s = 0
		}
		if drop != nil {
			s *= drop[i]
		}
		st.h1[i] = s
	}

	for k := 0; k < n.classes; k++ {
		row := n.w2.W[k*n.dim : (k+1)*n.dim]
		s := n.b2.W[k]
		for i, h := range st.h1 {
			s += row[i] * h
		}
		st.logits[k] = s
	}
	return st
}

// backward accumulates parameter gradients for one sample. drop must be the
// mask the forward call used.
func (n *headNet) backward(st headState, dLogits []float64, drop []float64) {
	dh1 := make([]float64, n.dim)
	for k, dz := range dLogits {
		row := n.w2.W[k*n.dim : (k+1)*n.dim]
		grad := n.w2.G[k*n.dim : (k+1)*n.dim]
		n.b2.G[k] += dz
		for i := range row {
			grad[i] += dz * st.h1[i]
			dh1[i] += dz * row[i]
		}
	}

	for i, d := range dh1 {
		if drop != nil {
			d *= drop[i]
		}
		// ReLU gate.
		if st.z1[i] <= 0 || d == 0 {
			continue
		}
		n.b1.G[i] += d
		grad := n.w1.G[i*n.dim : (i+1)*n.dim]
		for j, xj := range st.x {
			grad[j] += d * xj
		}
	}
}

// sampleDropout fills drop with inverted-dropout scales: each unit is zeroed
// with probability rate, survivors are scaled by 1/(1-rate) so activation
// magnitudes match inference.
func sampleDropout(rng *rand.Rand, rate float64, drop []float64) {
	if rate <= 0 {
		for i := range drop {
			drop[i] = 1
		}
		return
	}
	keep := 1 / (1 - rate)
	for i := range drop {
		if rng.Float64() < rate {
			drop[i] = 0
		} else {
			drop[i] = keep
		}
	}
}

func headInit(n *headNet, rng *rand.Rand) {
	initUniform(rng, n.w1.W, glorotLimit(n.dim, n.dim))
	initUniform(rng, n.w2.W, glorotLimit(n.dim, n.classes))
}

func glorotLimit(fanIn, fanOut int) float64 {
	return math.Sqrt(6 / float64(fanIn+fanOut))
}

func initUniform(rng *rand.Rand, w []float64, limit float64) {
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
