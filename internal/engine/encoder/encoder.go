// Package encoder implements the transformer-encoder classifier: a frozen
// BERT-family encoder served by ONNX Runtime produces pooled sentence
// embeddings, and a trainable two-layer head maps them to per-label
// probabilities. The Encoder half doubles as the general text embedder used
// by the zero-shot baseline.
package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/lexkit/fineprint/internal/model"
)

// Pooling selects how per-token hidden states collapse into one vector.
type Pooling string

const (
	// PoolMean averages hidden states over non-padding tokens.
	PoolMean Pooling = "mean"
	// PoolCLS takes the hidden state at the [CLS] position.
	PoolCLS Pooling = "cls"
)

const (
	defaultMaxSeqLen = 128
	defaultBatchSize = 8

	// encodeWorkers bounds concurrent inference calls. Intra-op threads
	// already parallelize a single call; two in flight keeps tensor memory
	// bounded.
	encodeWorkers = 2
)

type options struct {
	pooling   Pooling
	maxSeqLen int
	batchSize int
	libPath   string
}

// Option configures an Encoder.
type Option func(*options)

// WithPooling selects the pooling strategy. The default is PoolMean.
func WithPooling(p Pooling) Option {
	return func(o *options) { o.pooling = p }
}

// WithMaxSeqLen caps tokenized sequences, [CLS] and [SEP] included. The
// default is 128.
func WithMaxSeqLen(n int) Option {
	return func(o *options) { o.maxSeqLen = n }
}

// WithBatchSize sets how many texts each inference call carries. The
// default is 8.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithLibraryPath overrides the ONNX Runtime shared library location. By
// default libonnxruntime.so is expected next to the model file.
func WithLibraryPath(path string) Option {
	return func(o *options) { o.libPath = path }
}

// Encoder embeds texts with a frozen ONNX transformer encoder.
type Encoder struct {
	sess      *session
	tok       *tokenizer
	pooling   Pooling
	batchSize int
}

// New loads the ONNX model and WordPiece vocabulary and prepares an
// inference session.
func New(modelPath, vocabPath string, opts ...Option) (*Encoder, error) {
	o := options{
		pooling:   PoolMean,
		maxSeqLen: defaultMaxSeqLen,
		batchSize: defaultBatchSize,
		libPath:   filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pooling != PoolMean && o.pooling != PoolCLS {
		return nil, fmt.Errorf("encoder: unknown pooling %q", o.pooling)
	}
	if o.maxSeqLen < 2 {
		return nil, fmt.Errorf("encoder: max sequence length %d leaves no room for [CLS] and [SEP]", o.maxSeqLen)
	}
	if o.batchSize < 1 {
		return nil, fmt.Errorf("encoder: batch size must be positive, got %d", o.batchSize)
	}

	// Check the asset files before touching the runtime; the first runtime
	// initialization pins the shared library path for the whole process.
	for _, path := range []string{modelPath, vocabPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("encoder: %w", err)
		}
	}

	sess, err := newSession(modelPath, o.libPath)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	tok, err := newTokenizer(vocabPath, o.maxSeqLen)
	if err != nil {
		sess.close()
		return nil, fmt.Errorf("encoder: %w", err)
	}

	return &Encoder{sess: sess, tok: tok, pooling: o.pooling, batchSize: o.batchSize}, nil
}

// Dim returns the encoder's hidden dimensionality.
func (e *Encoder) Dim() int { return int(e.sess.dim) }

// Encode embeds texts into a [len(texts), Dim] matrix, one pooled vector per
// row. Inference runs in batches, a bounded number in flight.
func (e *Encoder) Encode(ctx context.Context, texts []string) (*model.Matrix, error) {
	out := model.NewMatrix(len(texts), e.Dim())
	if len(texts) == 0 {
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(encodeWorkers)

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch := e.tok.tokenizeBatch(texts[start:end])
			hidden, err := e.sess.infer(batch)
			if err != nil {
				return err
			}

			var pooled []float64
			switch e.pooling {
			case PoolCLS:
				pooled = poolCLS(hidden, batch.batchSize, batch.seqLen, e.sess.dim)
			default:
				pooled = poolMean(hidden, batch.attentionMask, batch.batchSize, batch.seqLen, e.sess.dim)
			}
			copy(out.Data[start*out.Cols:end*out.Cols], pooled)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	return out, nil
}

// Close releases the ONNX Runtime session.
func (e *Encoder) Close() error {
	return e.sess.close()
}
