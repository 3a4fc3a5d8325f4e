// Package config loads fineprint configuration: defaults, overlaid by an
// optional YAML file, overlaid by FINEPRINT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all fineprint configuration.
type Config struct {
	Corpus string       `yaml:"corpus"` // provision corpus (.jsonl)
	DB     string       `yaml:"db"`     // results database path
	Split  SplitConfig  `yaml:"split"`
	Tune   TuneConfig   `yaml:"tune"`
	Train  TrainConfig  `yaml:"train"`
	Assets AssetConfig  `yaml:"assets"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
}

// SplitConfig holds train/dev/test partitioning settings.
type SplitConfig struct {
	Seed     int64   `yaml:"seed"`
	TestFrac float64 `yaml:"test_frac"`
	DevFrac  float64 `yaml:"dev_frac"`
}

// TuneConfig holds threshold tuning settings.
type TuneConfig struct {
	Strategy string `yaml:"strategy"` // "grid" or "linspace"
	Split    string `yaml:"split"`    // "dev" or "test"
}

// TrainConfig holds training hyperparameters shared across model kinds.
type TrainConfig struct {
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	WeightDecay  float64 `yaml:"weight_decay"`
	AdamEpsilon  float64 `yaml:"adam_epsilon"`
	WarmupSteps  int     `yaml:"warmup_steps"`
	MaxGradNorm  float64 `yaml:"max_grad_norm"`
	MaxSeqLen    int     `yaml:"max_seq_len"`
	Seed         int64   `yaml:"seed"`
	ClassWeights bool    `yaml:"class_weights"`
}

// AssetConfig holds paths to pretrained model assets.
type AssetConfig struct {
	Model      string `yaml:"model"`      // ONNX encoder weights
	Vocab      string `yaml:"vocab"`      // WordPiece vocabulary
	Embeddings string `yaml:"embeddings"` // word embedding table (.vec)
}

// OutputConfig holds prediction output settings.
type OutputConfig struct {
	Verbosity string `yaml:"verbosity"` // "minimal", "standard", "full"
	Pretty    bool   `yaml:"pretty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// Default returns the built-in configuration. Hyperparameter defaults match
// the values the experiments were originally run with.
func Default() Config {
	return Config{
		Corpus: "data/sec_corpus_2016-2019_clean_freq100.jsonl",
		DB:     "fineprint.db",
		Split: SplitConfig{
			Seed:     42,
			TestFrac: 0.2,
			DevFrac:  0.1,
		},
		Tune: TuneConfig{
			Strategy: "grid",
			Split:    "dev",
		},
		Train: TrainConfig{
			Epochs:       1,
			BatchSize:    8,
			LearningRate: 5e-5,
			WeightDecay:  0.0,
			AdamEpsilon:  1e-8,
			WarmupSteps:  0,
			MaxGradNorm:  1.0,
			MaxSeqLen:    128,
			Seed:         0xDEADBEEF,
			ClassWeights: true,
		},
		Assets: AssetConfig{
			Model:      "models/model.onnx",
			Vocab:      "models/vocab.txt",
			Embeddings: "data/wiki.multi.en.vec",
		},
		Output: OutputConfig{
			Verbosity: "standard",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load returns the default configuration overlaid by the YAML file at path
// (skipped when path is empty) and then by FINEPRINT_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Corpus = getenv("FINEPRINT_CORPUS", c.Corpus)
	c.DB = getenv("FINEPRINT_DB", c.DB)
	c.Split.Seed = getenvInt64("FINEPRINT_SPLIT_SEED", c.Split.Seed)
	c.Split.TestFrac = getenvFloat("FINEPRINT_TEST_FRAC", c.Split.TestFrac)
	c.Split.DevFrac = getenvFloat("FINEPRINT_DEV_FRAC", c.Split.DevFrac)
	c.Tune.Strategy = getenv("FINEPRINT_TUNE_STRATEGY", c.Tune.Strategy)
	c.Tune.Split = getenv("FINEPRINT_TUNE_SPLIT", c.Tune.Split)
	c.Assets.Model = getenv("FINEPRINT_MODEL_PATH", c.Assets.Model)
	c.Assets.Vocab = getenv("FINEPRINT_VOCAB_PATH", c.Assets.Vocab)
	c.Assets.Embeddings = getenv("FINEPRINT_EMBEDDINGS_PATH", c.Assets.Embeddings)
	c.Output.Verbosity = getenv("FINEPRINT_VERBOSITY", c.Output.Verbosity)
	c.Output.Pretty = getenvBool("FINEPRINT_OUTPUT_PRETTY", c.Output.Pretty)
	c.Log.Level = getenv("FINEPRINT_LOG_LEVEL", c.Log.Level)
}

// Validate checks field values and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Split.TestFrac <= 0 || c.Split.TestFrac >= 1 {
		errs = append(errs, fmt.Errorf("config: test fraction %v out of range (0, 1)", c.Split.TestFrac))
	}
	if c.Split.DevFrac <= 0 || c.Split.DevFrac >= 1 {
		errs = append(errs, fmt.Errorf("config: dev fraction %v out of range (0, 1)", c.Split.DevFrac))
	}
	if c.Split.TestFrac+c.Split.DevFrac >= 1 {
		errs = append(errs, fmt.Errorf("config: test and dev fractions sum to %v, leaving no training data",
			c.Split.TestFrac+c.Split.DevFrac))
	}

	switch c.Tune.Strategy {
	case "grid", "linspace":
	default:
		errs = append(errs, fmt.Errorf("config: unknown tune strategy %q (use grid or linspace)", c.Tune.Strategy))
	}
	switch c.Tune.Split {
	case "dev", "test":
	default:
		errs = append(errs, fmt.Errorf("config: unknown tune split %q (use dev or test)", c.Tune.Split))
	}

	if c.Train.Epochs < 1 {
		errs = append(errs, fmt.Errorf("config: epochs must be >= 1, got %d", c.Train.Epochs))
	}
	if c.Train.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("config: batch size must be >= 1, got %d", c.Train.BatchSize))
	}
	if c.Train.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("config: learning rate must be > 0, got %v", c.Train.LearningRate))
	}
	if c.Train.MaxSeqLen < 1 {
		errs = append(errs, fmt.Errorf("config: max sequence length must be >= 1, got %d", c.Train.MaxSeqLen))
	}

	switch c.Output.Verbosity {
	case "", "minimal", "standard", "full":
	default:
		errs = append(errs, fmt.Errorf("config: unknown verbosity %q (use minimal, standard, or full)", c.Output.Verbosity))
	}

	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
