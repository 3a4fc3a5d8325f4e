// Package cli implements the fineprint command line interface: corpus
// preparation, model training, the shared evaluation protocol, prediction
// output, run history, and asset fetching.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lexkit/fineprint/internal/config"
	"github.com/lexkit/fineprint/internal/corpus"
	"github.com/lexkit/fineprint/internal/logging"
)

// Version is stamped at build time via -ldflags.
var Version = "v0.1.0-dev"

// cfg is the resolved configuration, loaded once in the Before hook.
var cfg config.Config

// logLevel is the level setup installed; predict re-installs the logger
// with it when stdout carries NDJSON.
var logLevel slog.Level

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to a fineprint YAML config file (optional)",
	}

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Print debug logs",
	}

	dbFlag = &cli.StringFlag{
		Name:  "db",
		Usage: "Path to the results database (overrides config)",
	}

	corpusFlag = &cli.StringFlag{
		Name:  "corpus",
		Usage: "Path to a provision corpus (.jsonl; defaults to the configured corpus)",
	}
)

// New builds the fineprint CLI application.
func New() *cli.App {
	return &cli.App{
		Name:    "fineprint",
		Version: Version,
		Usage:   "Multi-label classification experiments for legal provisions",
		Flags: []cli.Flag{
			configFlag,
			debugFlag,
			dbFlag,
		},
		Commands: []*cli.Command{
			corpusCmd,
			trainCmd,
			evaluateCmd,
			baselineCmd,
			predictCmd,
			runsCmd,
			fetchCmd,
		},
		Before: setup,
	}
}

// setup loads and validates configuration and installs the logger. It runs
// before every command.
func setup(c *cli.Context) error {
	loaded, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	if c.IsSet(dbFlag.Name) {
		loaded.DB = c.String(dbFlag.Name)
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	logLevel = logging.ParseLevel(cfg.Log.Level)
	if c.Bool(debugFlag.Name) {
		logLevel = slog.LevelDebug
	}
	logging.Setup(logLevel, false)
	return nil
}

// Execute runs the CLI and terminates the process on error.
func Execute(ctx context.Context) {
	if err := New().RunContext(ctx, os.Args); err != nil {
		slog.Error("fineprint failed", "error", err)
		os.Exit(1)
	}
}

// corpusPath resolves the corpus flag against the configured default.
func corpusPath(c *cli.Context) string {
	if p := c.String(corpusFlag.Name); p != "" {
		return p
	}
	return cfg.Corpus
}

// splitOptions builds the corpus partitioning options from configuration.
func splitOptions() corpus.SplitOptions {
	return corpus.SplitOptions{
		Seed:     cfg.Split.Seed,
		TestFrac: cfg.Split.TestFrac,
		DevFrac:  cfg.Split.DevFrac,
	}
}

// loadSplit reads the corpus at path and partitions it. The label set spans
// the whole corpus so every split shares one label vocabulary.
func loadSplit(path string) (*corpus.SplitDataSet, *corpus.LabelSet, error) {
	provs, err := corpus.Load(path)
	if err != nil {
		return nil, nil, err
	}
	ds, err := corpus.Split(provs, splitOptions())
	if err != nil {
		return nil, nil, err
	}
	labels := corpus.NewLabelSet(corpus.Labels(provs))
	slog.Info("corpus loaded",
		"path", path, "provisions", len(provs), "labels", labels.Len(),
		"train", len(ds.Train), "dev", len(ds.Dev), "test", len(ds.Test))
	return ds, labels, nil
}
