package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lexkit/fineprint/internal/corpus"
	"github.com/lexkit/fineprint/internal/engine"
	"github.com/lexkit/fineprint/internal/eval"
	"github.com/lexkit/fineprint/internal/logging"
	"github.com/lexkit/fineprint/internal/model"
	"github.com/lexkit/fineprint/internal/output"
	"github.com/lexkit/fineprint/internal/output/async"
	"github.com/lexkit/fineprint/internal/output/file"
	"github.com/lexkit/fineprint/internal/output/multi"
	"github.com/lexkit/fineprint/internal/output/stdout"
	"github.com/lexkit/fineprint/internal/output/webhook"
)

var (
	inputFlag = &cli.StringFlag{
		Name:  "input",
		Usage: "Provisions to classify: a .jsonl corpus or plain text, one provision per line (defaults to stdin)",
	}

	outputFlag = &cli.StringFlag{
		Name:  "output",
		Usage: "Write NDJSON predictions to this file instead of stdout",
	}

	webhookFlag = &cli.StringFlag{
		Name:  "webhook",
		Usage: "Also POST prediction batches to this URL",
	}

	asyncFlag = &cli.BoolFlag{
		Name:  "async",
		Usage: "Buffer writes behind a background goroutine",
	}

	thresholdFlag = &cli.Float64Flag{
		Name:  "threshold",
		Usage: "Decision threshold applied to every label",
		Value: 0.5,
	}

	prettyFlag = &cli.BoolFlag{
		Name:  "pretty",
		Usage: "Indent stdout JSON",
	}

	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Prediction detail: minimal, standard, or full (defaults to the configured verbosity)",
	}

	predictCmd = &cli.Command{
		Name:   "predict",
		Usage:  "Classify provisions with a trained model",
		Action: cmdPredict,
		Flags: []cli.Flag{
			modelDirFlag, inputFlag, outputFlag, webhookFlag,
			asyncFlag, thresholdFlag, prettyFlag, verbosityFlag,
		},
	}
)

func cmdPredict(c *cli.Context) error {
	ctx := c.Context

	clf, err := engine.Open(c.String(modelDirFlag.Name))
	if err != nil {
		return err
	}
	if closer, ok := clf.(io.Closer); ok {
		defer closer.Close()
	}

	texts, err := readInputs(c)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("cli: no provisions to classify")
	}

	verbName := cfg.Output.Verbosity
	if c.IsSet(verbosityFlag.Name) {
		verbName = c.String(verbosityFlag.Name)
	}
	verb, err := output.ParseVerbosity(verbName)
	if err != nil {
		return err
	}

	out, toStdout, err := buildOutput(c, verb)
	if err != nil {
		return err
	}
	if toStdout {
		// Keep stderr machine-parseable while stdout carries NDJSON.
		logging.Setup(logLevel, true)
	}

	probs, err := clf.Predict(ctx, texts)
	if err != nil {
		out.Close()
		return err
	}
	pred, err := eval.Apply(probs, eval.Uniform(clf.Labels(), c.Float64(thresholdFlag.Name)))
	if err != nil {
		out.Close()
		return err
	}

	colByLabel := make(map[string]int, len(clf.Labels()))
	for j, l := range clf.Labels() {
		colByLabel[l] = j
	}

	now := time.Now().UTC()
	for i, text := range texts {
		p := model.Prediction{
			Text:      text,
			Labels:    pred[i],
			Model:     clf.Name(),
			Timestamp: now,
		}
		for _, l := range pred[i] {
			p.Scores = append(p.Scores, model.LabelScore{Label: l, Score: probs.At(i, colByLabel[l])})
		}
		if err := out.Write(ctx, p); err != nil {
			out.Close()
			return err
		}
	}
	if err := out.Close(); err != nil {
		return err
	}

	slog.Info("predictions written", "count", len(texts), "model", clf.Name())
	return nil
}

// buildOutput assembles the prediction writer stack: stdout or file,
// optionally fanned out to a webhook, optionally behind an async buffer.
func buildOutput(c *cli.Context, verb output.Verbosity) (out output.Output, toStdout bool, err error) {
	var outs []output.Output

	toStdout = !c.IsSet(outputFlag.Name)
	if toStdout {
		outs = append(outs, stdout.New(verb, c.Bool(prettyFlag.Name) || cfg.Output.Pretty))
	} else {
		f, err := file.New(c.String(outputFlag.Name), verb)
		if err != nil {
			return nil, false, err
		}
		outs = append(outs, f)
	}
	if c.IsSet(webhookFlag.Name) {
		outs = append(outs, webhook.New(c.String(webhookFlag.Name)))
	}

	if len(outs) == 1 {
		out = outs[0]
	} else {
		out = multi.New(outs...)
	}
	if c.Bool(asyncFlag.Name) {
		out = async.New(out)
	}
	return out, toStdout, nil
}

// readInputs loads the provisions to classify. JSONL files go through the
// corpus reader; anything else is treated as one provision per line.
func readInputs(c *cli.Context) ([]string, error) {
	path := c.String(inputFlag.Name)
	if path == "" {
		return readLines(os.Stdin)
	}
	if strings.HasSuffix(path, ".jsonl") {
		provs, err := corpus.Load(path)
		if err != nil {
			return nil, err
		}
		return corpus.Texts(provs), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLines(f)
}

func readLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	// Provisions routinely exceed the default scanner limit.
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var lines []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}
