package logreg

import (
	"math"
	"sort"

	"github.com/lexkit/fineprint/internal/corpus"
)

// Vectorizer maps provision texts to L2-normalized TF-IDF vectors over a
// vocabulary fitted on the training split. Term frequency is sublinear
// (1 + ln tf) and the idf is smoothed: ln((1+n)/(1+df)) + 1.
type Vectorizer struct {
	Vocab map[string]int `json:"vocab"`
	IDF   []float64      `json:"idf"`
}

// FitVectorizer builds the vocabulary and idf table from training texts.
// Terms are indexed in lexical order so the mapping is reproducible.
func FitVectorizer(texts []string) *Vectorizer {
	df := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, tok := range corpus.Tokenize(text) {
			seen[tok] = struct{}{}
		}
		for tok := range seen {
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	v := &Vectorizer{
		Vocab: make(map[string]int, len(terms)),
		IDF:   make([]float64, len(terms)),
	}
	n := float64(len(texts))
	for i, t := range terms {
		v.Vocab[t] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return v
}

// Dim returns the vocabulary size.
func (v *Vectorizer) Dim() int { return len(v.IDF) }

// vector is a sparse feature vector: val[k] at column idx[k], idx ascending.
type vector struct {
	idx []int
	val []float64
}

func (d vector) dot(w []float64) float64 {
	var s float64
	for k, j := range d.idx {
		s += w[j] * d.val[k]
	}
	return s
}

// transform vectorizes one text. Out-of-vocabulary terms are dropped; a text
// with no known terms yields an empty vector.
func (v *Vectorizer) transform(text string) vector {
	counts := make(map[int]float64)
	for _, tok := range corpus.Tokenize(text) {
		if j, ok := v.Vocab[tok]; ok {
			counts[j]++
		}
	}

	d := vector{
		idx: make([]int, 0, len(counts)),
		val: make([]float64, 0, len(counts)),
	}
	for j := range counts {
		d.idx = append(d.idx, j)
	}
	sort.Ints(d.idx)

	var norm float64
	for _, j := range d.idx {
		w := (1 + math.Log(counts[j])) * v.IDF[j]
		d.val = append(d.val, w)
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for k := range d.val {
			d.val[k] /= norm
		}
	}
	return d
}

// transformAll vectorizes a batch of texts.
func (v *Vectorizer) transformAll(texts []string) []vector {
	docs := make([]vector, len(texts))
	for i, t := range texts {
		docs[i] = v.transform(t)
	}
	return docs
}
