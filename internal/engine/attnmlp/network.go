package attnmlp

import (
	"math"

	"github.com/lexkit/fineprint/internal/engine/optim"
)

// net binds the trainable tensors to the network shape. The embedding table
// is frozen and outside the tensor set: gradients stop at the pooled vector.
type net struct {
	dim     int
	hidden  int
	classes int

	attnW *optim.Tensor // [dim]
	attnB *optim.Tensor // [1]
	w1    *optim.Tensor // [hidden, dim] row-major
	b1    *optim.Tensor // [hidden]
	w2    *optim.Tensor // [classes, hidden] row-major
	b2    *optim.Tensor // [classes]
}

func newNet(dim, classes int) *net {
	hidden := 2 * dim
	n := &net{
		dim:     dim,
		hidden:  hidden,
		classes: classes,
		attnW:   optim.NewTensor("attn.w", dim),
		attnB:   optim.NewTensor("attn.b", 1),
		w1:      optim.NewTensor("dense1.w", hidden*dim),
		b1:      optim.NewTensor("dense1.b", hidden),
		w2:      optim.NewTensor("out.w", classes*hidden),
		b2:      optim.NewTensor("out.b", classes),
	}
	n.attnB.NoDecay = true
	n.b1.NoDecay = true
	n.b2.NoDecay = true
	return n
}

func (n *net) tensors() []*optim.Tensor {
	return []*optim.Tensor{n.attnW, n.attnB, n.w1, n.b1, n.w2, n.b2}
}

// forwardState caches every intermediate needed by backward for one sample.
type forwardState struct {
	rows   [][]float64 // frozen embedding rows, one per token
	scores []float64   // tanh scores per token
	alpha  []float64   // attention weights per token
	pooled []float64   // [dim]
	z1     []float64   // pre-activation [hidden]
	h1     []float64   // relu(z1)
	logits []float64   // [classes]
}

// forward runs one sample. rows may be empty: the pooled vector is then all
// zeros and the sample is scored from the biases alone.
func (n *net) forward(rows [][]float64) *forwardState {
	st := &forwardState{
		rows:   rows,
		pooled: make([]float64, n.dim),
		z1:     make([]float64, n.hidden),
		h1:     make([]float64, n.hidden),
		logits: make([]float64, n.classes),
	}

	if len(rows) > 0 {
		st.scores = make([]float64, len(rows))
		for t, row := range rows {
			u := n.attnB.W[0]
			for m, x := range row {
				u += n.attnW.W[m] * x
			}
			st.scores[t] = math.Tanh(u)
		}
		st.alpha = softmax(st.scores)
		for t, row := range rows {
			a := st.alpha[t]
			for m, x := range row {
				st.pooled[m] += a * x
			}
		}
	}

	for k := 0; k < n.hidden; k++ {
		z := n.b1.W[k]
		row := n.w1.W[k*n.dim : (k+1)*n.dim]
		for m, w := range row {
			z += w * st.pooled[m]
		}
		st.z1[k] = z
		if z > 0 {
			st.h1[k] = z
		}
	}

	for j := 0; j < n.classes; j++ {
		z := n.b2.W[j]
		row := n.w2.W[j*n.hidden : (j+1)*n.hidden]
		for k, w := range row {
			z += w * st.h1[k]
		}
		st.logits[j] = z
	}
	return st
}

// backward accumulates gradients for one sample given dLogits, the loss
// gradient at the output logits.
func (n *net) backward(st *forwardState, dLogits []float64) {
	dh1 := make([]float64, n.hidden)
	for j, g := range dLogits {
		if g == 0 {
			continue
		}
		row := n.w2.W[j*n.hidden : (j+1)*n.hidden]
		grow := n.w2.G[j*n.hidden : (j+1)*n.hidden]
		for k := range row {
			grow[k] += g * st.h1[k]
			dh1[k] += g * row[k]
		}
		n.b2.G[j] += g
	}

	dPooled := make([]float64, n.dim)
	for k := 0; k < n.hidden; k++ {
		if st.z1[k] <= 0 || dh1[k] == 0 {
			continue
		}
		g := dh1[k]
		row := n.w1.W[k*n.dim : (k+1)*n.dim]
		grow := n.w1.G[k*n.dim : (k+1)*n.dim]
		for m := range row {
			grow[m] += g * st.pooled[m]
			dPooled[m] += g * row[m]
		}
		n.b1.G[k] += g
	}

	if len(st.rows) == 0 {
		return
	}

	dAlpha := make([]float64, len(st.rows))
	var dot float64
	for t, row := range st.rows {
		var d float64
		for m, x := range row {
			d += dPooled[m] * x
		}
		dAlpha[t] = d
		dot += st.alpha[t] * d
	}
	for t, row := range st.rows {
		ds := st.alpha[t] * (dAlpha[t] - dot)
		du := ds * (1 - st.scores[t]*st.scores[t])
		for m, x := range row {
			n.attnW.G[m] += du * x
		}
		n.attnB.G[0] += du
	}
}

// softmax is numerically stabilized by max subtraction.
func softmax(xs []float64) []float64 {
	max := xs[0]
	for _, x := range xs[1:] {
		if x > max {
			max = x
		}
	}
	out := make([]float64, len(xs))
	var sum float64
	for i, x := range xs {
		e := math.Exp(x - max)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
