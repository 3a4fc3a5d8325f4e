package fineprint

import (
	"context"
	"fmt"
	"io"

	"github.com/lexkit/fineprint/internal/engine"
	"github.com/lexkit/fineprint/internal/eval"
)

// Classifier scores provisions against the label inventory the underlying
// model was trained on. Safe for concurrent use.
type Classifier struct {
	clf engine.Classifier
	th  *eval.Thresholds
}

// Load opens a trained model directory produced by the fineprint CLI and
// prepares it for classification.
func Load(dir string, opts ...Option) (*Classifier, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	clf, err := engine.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("fineprint: %w", err)
	}

	th := eval.Uniform(clf.Labels(), o.threshold)
	for i, label := range th.Labels {
		if v, ok := o.labelThresholds[label]; ok {
			th.Values[i] = v
		}
	}
	return &Classifier{clf: clf, th: th}, nil
}

// Classify classifies a single provision.
func (c *Classifier) Classify(ctx context.Context, text string) (Classification, error) {
	out, err := c.ClassifyBatch(ctx, []string{text})
	if err != nil {
		return Classification{}, err
	}
	return out[0], nil
}

// ClassifyBatch classifies multiple provisions in a single inference pass.
// More efficient than calling Classify in a loop.
func (c *Classifier) ClassifyBatch(ctx context.Context, texts []string) ([]Classification, error) {
	probs, err := c.clf.Predict(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("fineprint: %w", err)
	}
	pred, err := eval.Apply(probs, c.th)
	if err != nil {
		return nil, fmt.Errorf("fineprint: %w", err)
	}

	col := make(map[string]int, len(c.th.Labels))
	for j, label := range c.th.Labels {
		col[label] = j
	}

	out := make([]Classification, len(texts))
	for i, text := range texts {
		cls := Classification{Text: text, Labels: pred[i], Model: c.clf.Name()}
		for _, label := range pred[i] {
			cls.Scores = append(cls.Scores, LabelScore{Label: label, Score: probs.At(i, col[label])})
		}
		out[i] = cls
	}
	return out, nil
}

// Labels returns the provision-type inventory the model scores, in column
// order.
func (c *Classifier) Labels() []string { return c.clf.Labels() }

// Close releases model resources (the ONNX runtime session for encoder
// models). Must be called when the Classifier is no longer needed.
func (c *Classifier) Close() error {
	if closer, ok := c.clf.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
