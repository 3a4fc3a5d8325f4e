package cli

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/lexkit/fineprint/internal/engine/attnmlp"
	"github.com/lexkit/fineprint/internal/engine/encoder"
	"github.com/lexkit/fineprint/internal/engine/logreg"
	"github.com/lexkit/fineprint/internal/engine/wordvec"
)

var (
	modelFlag = &cli.StringFlag{
		Name:     "model",
		Usage:    "Model kind to train: lr, attnmlp, or encoder",
		Required: true,
	}

	trainOutFlag = &cli.StringFlag{
		Name:     "out",
		Usage:    "Directory for the trained model",
		Required: true,
	}

	embeddingsFlag = &cli.StringFlag{
		Name:  "embeddings",
		Usage: "Word embedding table for attnmlp (.vec or .npy; defaults to the configured path)",
	}

	onnxModelFlag = &cli.StringFlag{
		Name:  "onnx-model",
		Usage: "ONNX encoder weights for the encoder model (defaults to the configured path)",
	}

	vocabFlag = &cli.StringFlag{
		Name:  "vocab",
		Usage: "WordPiece vocabulary for the encoder model (defaults to the configured path)",
	}

	epochsFlag       = &cli.IntFlag{Name: "epochs", Usage: "Training epochs"}
	batchSizeFlag    = &cli.IntFlag{Name: "batch-size", Usage: "Mini-batch size"}
	learningRateFlag = &cli.Float64Flag{Name: "learning-rate", Usage: "Optimizer learning rate"}
	weightDecayFlag  = &cli.Float64Flag{Name: "weight-decay", Usage: "AdamW weight decay (encoder)"}
	adamEpsilonFlag  = &cli.Float64Flag{Name: "adam-epsilon", Usage: "Adam epsilon (encoder)"}
	warmupStepsFlag  = &cli.IntFlag{Name: "warmup-steps", Usage: "Learning-rate warmup steps (encoder)"}
	maxGradNormFlag  = &cli.Float64Flag{Name: "max-grad-norm", Usage: "Gradient clipping norm (encoder)"}
	maxSeqLenFlag    = &cli.IntFlag{Name: "max-seq-len", Usage: "Maximum WordPiece sequence length (encoder)"}
	seedFlag         = &cli.Int64Flag{Name: "seed", Usage: "Training RNG seed"}
	patienceFlag     = &cli.IntFlag{Name: "patience", Usage: "Early-stopping patience in epochs (attnmlp)"}
	maxLenFlag       = &cli.IntFlag{Name: "max-len", Usage: "Token sequence cap (attnmlp; 0 derives it from training data)"}

	classWeightsFlag = &cli.BoolFlag{
		Name:  "class-weights",
		Usage: "Weight classes by inverse frequency (disable with --class-weights=false)",
		Value: true,
	}

	trainCmd = &cli.Command{
		Name:   "train",
		Usage:  "Train a classifier on the corpus train split and save it",
		Action: cmdTrain,
		Flags: []cli.Flag{
			modelFlag, corpusFlag, trainOutFlag,
			embeddingsFlag, onnxModelFlag, vocabFlag,
			epochsFlag, batchSizeFlag, learningRateFlag,
			weightDecayFlag, adamEpsilonFlag, warmupStepsFlag,
			maxGradNormFlag, maxSeqLenFlag, seedFlag,
			classWeightsFlag, patienceFlag, maxLenFlag,
		},
	}
)

func cmdTrain(c *cli.Context) error {
	ctx := c.Context
	kind := c.String(modelFlag.Name)
	outDir := c.String(trainOutFlag.Name)

	ds, labels, err := loadSplit(corpusPath(c))
	if err != nil {
		return err
	}

	var saver interface{ Save(dir string) error }

	switch kind {
	case logreg.Kind:
		m, err := logreg.Train(ctx, ds.Train, labels, lrParams(c))
		if err != nil {
			return err
		}
		saver = m

	case attnmlp.Kind:
		embPath := c.String(embeddingsFlag.Name)
		if embPath == "" {
			embPath = cfg.Assets.Embeddings
		}
		table, err := wordvec.Load(embPath)
		if err != nil {
			return err
		}
		m, err := attnmlp.Train(ctx, ds.Train, ds.Dev, labels, table, attnParams(c))
		if err != nil {
			return err
		}
		saver = m

	case encoder.Kind:
		ecfg := encoderConfig(c)
		enc, err := ecfg.Open("")
		if err != nil {
			return err
		}
		m, err := encoder.Train(ctx, ds.Train, labels, enc, encoderParams(c))
		if err != nil {
			enc.Close()
			return err
		}
		defer m.Close()
		m.Config = ecfg
		saver = m

	default:
		return fmt.Errorf("cli: unknown model kind %q (use lr, attnmlp, or encoder)", kind)
	}

	if err := saver.Save(outDir); err != nil {
		return err
	}
	slog.Info("model saved", "kind", kind, "dir", outDir)
	return nil
}

// lrParams starts from the logreg defaults; only flags the user set
// override them.
func lrParams(c *cli.Context) logreg.Params {
	p := logreg.DefaultParams()
	if c.IsSet(batchSizeFlag.Name) {
		p.BatchSize = c.Int(batchSizeFlag.Name)
	}
	if c.IsSet(seedFlag.Name) {
		p.Seed = c.Int64(seedFlag.Name)
	}
	if c.IsSet(classWeightsFlag.Name) {
		p.ClassWeights = c.Bool(classWeightsFlag.Name)
	}
	return p
}

func attnParams(c *cli.Context) attnmlp.Params {
	p := attnmlp.DefaultParams()
	if c.IsSet(epochsFlag.Name) {
		p.Epochs = c.Int(epochsFlag.Name)
	}
	if c.IsSet(batchSizeFlag.Name) {
		p.BatchSize = c.Int(batchSizeFlag.Name)
	}
	if c.IsSet(learningRateFlag.Name) {
		p.LearningRate = c.Float64(learningRateFlag.Name)
	}
	if c.IsSet(patienceFlag.Name) {
		p.Patience = c.Int(patienceFlag.Name)
	}
	if c.IsSet(maxLenFlag.Name) {
		p.MaxLen = c.Int(maxLenFlag.Name)
	}
	if c.IsSet(seedFlag.Name) {
		p.Seed = c.Int64(seedFlag.Name)
	}
	if c.IsSet(classWeightsFlag.Name) {
		p.ClassWeights = c.Bool(classWeightsFlag.Name)
	}
	return p
}

// encoderParams starts from the configured transformer hyperparameters; the
// config section carries the original experiment defaults.
func encoderParams(c *cli.Context) encoder.Params {
	p := encoder.Params{
		Epochs:       cfg.Train.Epochs,
		BatchSize:    cfg.Train.BatchSize,
		LearningRate: cfg.Train.LearningRate,
		WeightDecay:  cfg.Train.WeightDecay,
		AdamEpsilon:  cfg.Train.AdamEpsilon,
		WarmupSteps:  cfg.Train.WarmupSteps,
		MaxGradNorm:  cfg.Train.MaxGradNorm,
		Seed:         cfg.Train.Seed,
		ClassWeights: cfg.Train.ClassWeights,
	}
	if c.IsSet(epochsFlag.Name) {
		p.Epochs = c.Int(epochsFlag.Name)
	}
	if c.IsSet(batchSizeFlag.Name) {
		p.BatchSize = c.Int(batchSizeFlag.Name)
	}
	if c.IsSet(learningRateFlag.Name) {
		p.LearningRate = c.Float64(learningRateFlag.Name)
	}
	if c.IsSet(weightDecayFlag.Name) {
		p.WeightDecay = c.Float64(weightDecayFlag.Name)
	}
	if c.IsSet(adamEpsilonFlag.Name) {
		p.AdamEpsilon = c.Float64(adamEpsilonFlag.Name)
	}
	if c.IsSet(warmupStepsFlag.Name) {
		p.WarmupSteps = c.Int(warmupStepsFlag.Name)
	}
	if c.IsSet(maxGradNormFlag.Name) {
		p.MaxGradNorm = c.Float64(maxGradNormFlag.Name)
	}
	if c.IsSet(seedFlag.Name) {
		p.Seed = c.Int64(seedFlag.Name)
	}
	if c.IsSet(classWeightsFlag.Name) {
		p.ClassWeights = c.Bool(classWeightsFlag.Name)
	}
	return p
}

// encoderConfig resolves the encoder asset paths and tokenizer settings.
func encoderConfig(c *cli.Context) encoder.Config {
	ecfg := encoder.Config{
		Model:     cfg.Assets.Model,
		Vocab:     cfg.Assets.Vocab,
		MaxSeqLen: cfg.Train.MaxSeqLen,
	}
	if c.IsSet(onnxModelFlag.Name) {
		ecfg.Model = c.String(onnxModelFlag.Name)
	}
	if c.IsSet(vocabFlag.Name) {
		ecfg.Vocab = c.String(vocabFlag.Name)
	}
	if c.IsSet(maxSeqLenFlag.Name) {
		ecfg.MaxSeqLen = c.Int(maxSeqLenFlag.Name)
	}
	return ecfg
}
