// Package experiment wires a classifier, the shared threshold-tuning and
// evaluation protocol, and optional prediction output and run recording into
// one experiment run.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexkit/fineprint/internal/corpus"
	"github.com/lexkit/fineprint/internal/engine"
	"github.com/lexkit/fineprint/internal/eval"
	"github.com/lexkit/fineprint/internal/model"
	"github.com/lexkit/fineprint/internal/output"
)

// Recorder persists finished runs. *results.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, run *model.Run) (int64, error)
}

// Options configures an experiment run.
type Options struct {
	// TuneStrategy picks the threshold search. Default: grid.
	TuneStrategy eval.Strategy

	// TuneSplit names the partition thresholds are tuned on: "dev"
	// (default) or "test".
	TuneSplit string

	// EvalSplit names the partition scored with the tuned thresholds.
	// Default: same as TuneSplit, which reproduces the original
	// experiments' mode behavior.
	EvalSplit string

	// CorpusName labels the run record; usually the corpus file path.
	CorpusName string

	// Params is a JSON blob of model hyperparameters stored with the run.
	Params string

	// Output, when set, receives one prediction record per evaluated
	// provision.
	Output output.Output

	// Recorder, when set, persists the finished run.
	Recorder Recorder
}

// Result bundles everything an experiment produces.
type Result struct {
	Run        *model.Run
	Thresholds *eval.Thresholds
	Metrics    *eval.Results
}

// Experiment runs one classifier through the shared protocol.
type Experiment struct {
	clf  engine.Classifier
	opts Options
}

// New creates an Experiment around an already-trained classifier.
func New(clf engine.Classifier, opts Options) *Experiment {
	if opts.TuneStrategy == "" {
		opts.TuneStrategy = eval.StrategyGrid
	}
	if opts.TuneSplit == "" {
		opts.TuneSplit = "dev"
	}
	if opts.EvalSplit == "" {
		opts.EvalSplit = opts.TuneSplit
	}
	return &Experiment{clf: clf, opts: opts}
}

// Run tunes per-label thresholds on the tuning partition, scores the eval
// partition with them, and returns the metrics plus the recorded run. When
// both partitions are the same the probabilities are predicted once.
func (e *Experiment) Run(ctx context.Context, ds *corpus.SplitDataSet) (*Result, error) {
	tuneProvs, err := partition(ds, e.opts.TuneSplit)
	if err != nil {
		return nil, err
	}
	evalProvs := tuneProvs
	if e.opts.EvalSplit != e.opts.TuneSplit {
		if evalProvs, err = partition(ds, e.opts.EvalSplit); err != nil {
			return nil, err
		}
	}

	slog.Info("predicting tuning split",
		"model", e.clf.Name(), "split", e.opts.TuneSplit, "provisions", len(tuneProvs))
	tuneProbs, err := e.clf.Predict(ctx, corpus.Texts(tuneProvs))
	if err != nil {
		return nil, fmt.Errorf("experiment: predict %s: %w", e.opts.TuneSplit, err)
	}

	slog.Info("tuning thresholds", "strategy", string(e.opts.TuneStrategy))
	th, err := eval.Tune(e.opts.TuneStrategy, tuneProbs, corpus.Labels(tuneProvs), e.clf.Labels())
	if err != nil {
		return nil, fmt.Errorf("experiment: tune: %w", err)
	}

	evalProbs := tuneProbs
	if e.opts.EvalSplit != e.opts.TuneSplit {
		slog.Info("predicting eval split",
			"model", e.clf.Name(), "split", e.opts.EvalSplit, "provisions", len(evalProvs))
		if evalProbs, err = e.clf.Predict(ctx, corpus.Texts(evalProvs)); err != nil {
			return nil, fmt.Errorf("experiment: predict %s: %w", e.opts.EvalSplit, err)
		}
	}

	pred, err := eval.Apply(evalProbs, th)
	if err != nil {
		return nil, fmt.Errorf("experiment: apply thresholds: %w", err)
	}
	metrics, err := eval.Evaluate(corpus.Labels(evalProvs), pred)
	if err != nil {
		return nil, fmt.Errorf("experiment: evaluate: %w", err)
	}

	run := e.buildRun(metrics, th)
	if e.opts.Recorder != nil {
		if _, err := e.opts.Recorder.Record(ctx, run); err != nil {
			return nil, fmt.Errorf("experiment: record: %w", err)
		}
		slog.Info("recorded run", "id", run.ID, "model", run.Model)
	}

	if e.opts.Output != nil {
		if err := e.emit(ctx, evalProvs, evalProbs, pred); err != nil {
			return nil, err
		}
	}

	return &Result{Run: run, Thresholds: th, Metrics: metrics}, nil
}

// Close shuts down the prediction output, if any.
func (e *Experiment) Close() error {
	if e.opts.Output == nil {
		return nil
	}
	return e.opts.Output.Close()
}

func (e *Experiment) buildRun(metrics *eval.Results, th *eval.Thresholds) *model.Run {
	thByLabel := make(map[string]float64, len(th.Labels))
	for i, label := range th.Labels {
		thByLabel[label] = th.Values[i]
	}

	run := &model.Run{
		CreatedAt:    time.Now().UTC(),
		Model:        e.clf.Name(),
		Corpus:       e.opts.CorpusName,
		Params:       e.opts.Params,
		TuneStrategy: string(e.opts.TuneStrategy),
		TuneSplit:    e.opts.TuneSplit,
		EvalSplit:    e.opts.EvalSplit,

		MicroPrecision: metrics.Micro.Precision,
		MicroRecall:    metrics.Micro.Recall,
		MicroF1:        metrics.Micro.F1,
		MacroPrecision: metrics.Macro.Precision,
		MacroRecall:    metrics.Macro.Recall,
		MacroF1:        metrics.Macro.F1,
	}

	for _, label := range metrics.SortedLabels() {
		m := metrics.PerLabel[label]
		run.Labels = append(run.Labels, model.RunLabel{
			Label:     label,
			Precision: m.Precision,
			Recall:    m.Recall,
			F1:        m.F1,
			Support:   m.Support,
			Threshold: thByLabel[label], // zero for labels outside the model vocabulary
		})
	}
	return run
}

// emit writes one prediction record per evaluated provision. Scores cover
// only the labels that passed their thresholds.
func (e *Experiment) emit(ctx context.Context, provs []model.Provision, probs *model.Matrix, pred [][]string) error {
	colByLabel := make(map[string]int, len(e.clf.Labels()))
	for i, label := range e.clf.Labels() {
		colByLabel[label] = i
	}

	now := time.Now().UTC()
	for i := range provs {
		p := model.Prediction{
			Text:      provs[i].Text,
			Labels:    pred[i],
			Model:     e.clf.Name(),
			Timestamp: now,
		}
		for _, label := range pred[i] {
			p.Scores = append(p.Scores, model.LabelScore{
				Label: label,
				Score: probs.At(i, colByLabel[label]),
			})
		}
		if err := e.opts.Output.Write(ctx, p); err != nil {
			return fmt.Errorf("experiment: output: %w", err)
		}
	}
	return nil
}

func partition(ds *corpus.SplitDataSet, name string) ([]model.Provision, error) {
	var provs []model.Provision
	switch name {
	case "dev":
		provs = ds.Dev
	case "test":
		provs = ds.Test
	default:
		return nil, fmt.Errorf("experiment: unknown split %q (use dev or test)", name)
	}
	if len(provs) == 0 {
		return nil, fmt.Errorf("experiment: empty %s split", name)
	}
	return provs, nil
}
