package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lexkit/fineprint/internal/model"
	"github.com/lexkit/fineprint/internal/output"
)

const (
	defaultBufferSize   = 1024
	defaultDrainTimeout = 5 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 1024.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner output's Write fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write return immediately (dropping the prediction)
// when the buffer is full, instead of blocking. Use for outputs where
// lossiness is acceptable (e.g., a non-critical webhook).
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// Async decouples prediction production from consumption via a buffered
// channel. The caller writes into the channel; a background goroutine drains
// it to the wrapped output. Errors from the inner output are passed to
// errFunc rather than propagated to the caller.
type Async struct {
	inner      output.Output
	ch         chan model.Prediction
	done       chan struct{}
	errFunc    func(error)
	bufSize    int
	dropOnFull bool
	closeOnce  sync.Once
}

// New wraps an output.Output in an async channel-based writer.
// The background drain goroutine starts immediately.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:   inner,
		bufSize: defaultBufferSize,
		errFunc: func(err error) { slog.Warn("async output write error", "error", err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan model.Prediction, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write sends the prediction into the channel. By default, blocks if the
// channel is full (backpressure). With WithDropOnFull, returns nil
// immediately and the prediction is lost.
func (a *Async) Write(_ context.Context, pred model.Prediction) error {
	if a.dropOnFull {
		select {
		case a.ch <- pred:
		default:
			slog.Warn("async output buffer full, dropping prediction",
				"model", pred.Model, "labels", pred.Labels)
		}
		return nil
	}
	a.ch <- pred
	return nil
}

// Close closes the channel, waits for the drain goroutine to finish
// (with a timeout), then closes the inner output.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		select {
		case <-a.done:
		case <-time.After(defaultDrainTimeout):
			slog.Warn("async output drain timed out")
		}
		err = a.inner.Close()
	})
	return err
}

// drain reads predictions from the channel and writes them to the inner output.
func (a *Async) drain() {
	defer close(a.done)
	for pred := range a.ch {
		if err := a.inner.Write(context.Background(), pred); err != nil {
			a.errFunc(err)
		}
	}
}
