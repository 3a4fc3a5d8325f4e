package cli

import (
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lexkit/fineprint/internal/fetch"
)

var (
	fetchURLFlag = &cli.StringFlag{
		Name:     "url",
		Usage:    "Asset URL to download",
		Required: true,
	}

	fetchOutFlag = &cli.StringFlag{
		Name:     "out",
		Usage:    "Destination path for the downloaded asset",
		Required: true,
	}

	fetchTimeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Per-request timeout",
		Value: 10 * time.Minute,
	}

	fetchCmd = &cli.Command{
		Name:   "fetch",
		Usage:  "Download a model asset (encoder weights, vocab, embeddings)",
		Action: cmdFetch,
		Flags:  []cli.Flag{fetchURLFlag, fetchOutFlag, fetchTimeoutFlag},
	}
)

func cmdFetch(c *cli.Context) error {
	client := fetch.New(fetch.WithTimeout(c.Duration(fetchTimeoutFlag.Name)))
	n, err := client.Download(c.Context, c.String(fetchURLFlag.Name), c.String(fetchOutFlag.Name))
	if err != nil {
		return err
	}
	slog.Info("asset fetched", "path", c.String(fetchOutFlag.Name), "bytes", n)
	return nil
}
