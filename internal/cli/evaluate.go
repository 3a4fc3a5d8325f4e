package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lexkit/fineprint/internal/corpus"
	"github.com/lexkit/fineprint/internal/engine"
	"github.com/lexkit/fineprint/internal/engine/attnmlp"
	"github.com/lexkit/fineprint/internal/engine/encoder"
	"github.com/lexkit/fineprint/internal/engine/labelname"
	"github.com/lexkit/fineprint/internal/engine/logreg"
	"github.com/lexkit/fineprint/internal/engine/zeroshot"
	"github.com/lexkit/fineprint/internal/eval"
	"github.com/lexkit/fineprint/internal/experiment"
	"github.com/lexkit/fineprint/internal/results"
)

var (
	modelDirFlag = &cli.StringFlag{
		Name:     "model-dir",
		Usage:    "Directory holding a trained model",
		Required: true,
	}

	modeFlag = &cli.StringFlag{
		Name:  "mode",
		Usage: "Partition thresholds are tuned on: dev or test (defaults to the configured split)",
	}

	tuneFlag = &cli.StringFlag{
		Name:  "tune",
		Usage: "Threshold search strategy: grid or linspace (defaults to the configured strategy)",
	}

	evalSplitFlag = &cli.StringFlag{
		Name:  "eval-split",
		Usage: "Partition scored with the tuned thresholds (defaults to --mode)",
	}

	recordFlag = &cli.BoolFlag{
		Name:  "record",
		Usage: "Persist the run to the results database",
	}

	kindFlag = &cli.StringFlag{
		Name:  "kind",
		Usage: "Baseline kind: labelname or zeroshot",
		Value: labelname.Kind,
	}

	catalogFlag = &cli.StringFlag{
		Name:  "catalog",
		Usage: "YAML label catalog for the zeroshot baseline (defaults to the built-in NDA catalog)",
	}

	baselineOutFlag = &cli.StringFlag{
		Name:  "out",
		Usage: "Directory to save the baseline model to (optional)",
	}

	evaluateCmd = &cli.Command{
		Name:   "evaluate",
		Usage:  "Run a trained model through threshold tuning and multi-label evaluation",
		Action: cmdEvaluate,
		Flags: []cli.Flag{
			modelDirFlag, corpusFlag, modeFlag, tuneFlag, evalSplitFlag, recordFlag,
		},
	}

	baselineCmd = &cli.Command{
		Name:   "baseline",
		Usage:  "Evaluate a training-free baseline under the same protocol",
		Action: cmdBaseline,
		Flags: []cli.Flag{
			kindFlag, corpusFlag, modeFlag, tuneFlag, evalSplitFlag, recordFlag,
			catalogFlag, baselineOutFlag, onnxModelFlag, vocabFlag, maxSeqLenFlag,
		},
	}
)

func cmdEvaluate(c *cli.Context) error {
	clf, err := engine.Open(c.String(modelDirFlag.Name))
	if err != nil {
		return err
	}
	if closer, ok := clf.(io.Closer); ok {
		defer closer.Close()
	}

	path := corpusPath(c)
	ds, _, err := loadSplit(path)
	if err != nil {
		return err
	}
	return runExperiment(c, clf, path, paramsJSON(clf), ds)
}

func cmdBaseline(c *cli.Context) error {
	path := corpusPath(c)
	ds, labels, err := loadSplit(path)
	if err != nil {
		return err
	}

	var clf engine.Classifier

	switch kind := c.String(kindFlag.Name); kind {
	case labelname.Kind:
		clf = labelname.New(labels)

	case zeroshot.Kind:
		catalog := zeroshot.DefaultCatalog()
		if c.IsSet(catalogFlag.Name) {
			catalog, err = zeroshot.LoadCatalog(c.String(catalogFlag.Name))
			if err != nil {
				return err
			}
		}
		ecfg := encoderConfig(c)
		ecfg.Pooling = encoder.PoolMean
		enc, err := ecfg.Open("")
		if err != nil {
			return err
		}
		m, err := zeroshot.New(c.Context, enc, catalog)
		if err != nil {
			enc.Close()
			return err
		}
		m.Config = ecfg
		defer m.Close()
		clf = m

	default:
		return fmt.Errorf("cli: unknown baseline kind %q (use labelname or zeroshot)", kind)
	}

	if err := runExperiment(c, clf, path, "", ds); err != nil {
		return err
	}

	if c.IsSet(baselineOutFlag.Name) {
		dir := c.String(baselineOutFlag.Name)
		if err := clf.(interface{ Save(string) error }).Save(dir); err != nil {
			return err
		}
		slog.Info("baseline saved", "kind", clf.Name(), "dir", dir)
	}
	return nil
}

// runExperiment drives the shared protocol and prints the classification
// report to stdout.
func runExperiment(c *cli.Context, clf engine.Classifier, corpusName, params string, ds *corpus.SplitDataSet) error {
	opts := experiment.Options{
		TuneStrategy: tuneStrategy(c),
		TuneSplit:    tuneSplit(c),
		EvalSplit:    c.String(evalSplitFlag.Name),
		CorpusName:   corpusName,
		Params:       params,
	}

	if c.Bool(recordFlag.Name) {
		store, err := results.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Recorder = store
	}

	res, err := experiment.New(clf, opts).Run(c.Context, ds)
	if err != nil {
		return err
	}
	return eval.WriteReport(os.Stdout, res.Metrics, res.Thresholds)
}

func tuneStrategy(c *cli.Context) eval.Strategy {
	if c.IsSet(tuneFlag.Name) {
		return eval.Strategy(c.String(tuneFlag.Name))
	}
	return eval.Strategy(cfg.Tune.Strategy)
}

func tuneSplit(c *cli.Context) string {
	if c.IsSet(modeFlag.Name) {
		return c.String(modeFlag.Name)
	}
	return cfg.Tune.Split
}

// paramsJSON serializes the hyperparameters a loaded model was trained
// with, for the run record. Baselines have none.
func paramsJSON(clf engine.Classifier) string {
	var p any
	switch m := clf.(type) {
	case *logreg.Model:
		p = m.Params
	case *attnmlp.Model:
		p = m.Params
	case *encoder.Model:
		p = m.Params
	default:
		return ""
	}
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}
