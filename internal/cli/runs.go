package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lexkit/fineprint/internal/results"
)

var (
	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "Maximum number of runs to list",
		Value: 20,
	}

	runIDFlag = &cli.Int64Flag{
		Name:     "id",
		Usage:    "Run id to show",
		Required: true,
	}

	runsCmd = &cli.Command{
		Name:  "runs",
		Usage: "Inspect recorded experiment runs",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List recorded runs, newest first",
				Action: cmdRunsList,
				Flags:  []cli.Flag{limitFlag},
			},
			{
				Name:   "show",
				Usage:  "Show one run with its per-label metrics",
				Action: cmdRunsShow,
				Flags:  []cli.Flag{runIDFlag},
			},
		},
	}
)

func cmdRunsList(c *cli.Context) error {
	store, err := results.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(c.Context, c.Int(limitFlag.Name))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for i := range runs {
		if err := enc.Encode(&runs[i]); err != nil {
			return err
		}
	}
	return nil
}

func cmdRunsShow(c *cli.Context) error {
	store, err := results.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Get(c.Context, c.Int64(runIDFlag.Name))
	if err != nil {
		if errors.Is(err, results.ErrNotFound) {
			return fmt.Errorf("cli: run %d not recorded in %s", c.Int64(runIDFlag.Name), cfg.DB)
		}
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
