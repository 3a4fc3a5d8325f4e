package cli

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lexkit/fineprint/internal/corpus"
)

var (
	minLabelFreqFlag = &cli.IntFlag{
		Name:  "min-label-freq",
		Usage: "Drop labels occurring fewer than this many times",
		Value: 100,
	}

	dedupFlag = &cli.BoolFlag{
		Name:  "dedup",
		Usage: "Drop duplicate provisions (labels merged) before filtering",
	}

	filterOutFlag = &cli.StringFlag{
		Name:     "out",
		Usage:    "Path for the filtered corpus",
		Required: true,
	}

	corpusCmd = &cli.Command{
		Name:  "corpus",
		Usage: "Inspect and prepare provision corpora",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Print corpus statistics (size, label inventory, token lengths)",
				Action: cmdCorpusStats,
				Flags:  []cli.Flag{corpusFlag},
			},
			{
				Name:   "filter",
				Usage:  "Drop rare labels and write the reduced corpus",
				Action: cmdCorpusFilter,
				Flags:  []cli.Flag{corpusFlag, minLabelFreqFlag, dedupFlag, filterOutFlag},
			},
		},
	}
)

func cmdCorpusStats(c *cli.Context) error {
	provs, err := corpus.Load(corpusPath(c))
	if err != nil {
		return err
	}
	_, err = corpus.Collect(provs).WriteTo(os.Stdout)
	return err
}

func cmdCorpusFilter(c *cli.Context) error {
	provs, err := corpus.Load(corpusPath(c))
	if err != nil {
		return err
	}
	in := len(provs)

	if c.Bool(dedupFlag.Name) {
		provs = corpus.Dedup(provs)
	}
	provs = corpus.FilterMinLabelFreq(provs, c.Int(minLabelFreqFlag.Name))

	out := c.String(filterOutFlag.Name)
	if err := corpus.WriteFile(out, provs); err != nil {
		return err
	}
	slog.Info("corpus filtered",
		"in", in, "out", len(provs), "min_label_freq", c.Int(minLabelFreqFlag.Name), "path", out)
	return nil
}
