package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/domain/model"
	"github.com/m-mizutani/pagecraft/pkg/infra/callback"
	"github.com/urfave/cli/v3"
)

// cmdNotify re-sends a completion record, e.g. after a round ended as partial
func cmdNotify() *cli.Command {
	var (
		url         string
		recordPath  string
		maxAttempts int
		record      model.NotificationRecord
		round       int
	)

	return &cli.Command{
		Name:      "notify",
		Usage:     "Send a completion record to an evaluation endpoint",
		ArgsUsage: "[--record FILE | --email ... --task ... ]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "Evaluation endpoint URL",
				Required:    true,
				Destination: &url,
			},
			&cli.StringFlag{
				Name:        "record",
				Usage:       "JSON file holding the record ('-' for stdin); overrides the field flags",
				Destination: &recordPath,
			},
			&cli.IntFlag{
				Name:        "max-attempts",
				Usage:       "Delivery attempts before giving up",
				Value:       5,
				Destination: &maxAttempts,
			},
			&cli.StringFlag{Name: "email", Destination: &record.Email},
			&cli.StringFlag{Name: "task", Destination: &record.Task},
			&cli.IntFlag{Name: "round", Value: 1, Destination: &round},
			&cli.StringFlag{Name: "nonce", Destination: &record.Nonce},
			&cli.StringFlag{Name: "repo-url", Destination: &record.RepoURL},
			&cli.StringFlag{Name: "commit-sha", Destination: &record.CommitSHA},
			&cli.StringFlag{Name: "pages-url", Destination: &record.PagesURL},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			record.Round = model.Round(round)

			if recordPath != "" {
				loaded, err := loadRecord(recordPath)
				if err != nil {
					return err
				}
				record = *loaded
			}

			if record.Task == "" || record.Nonce == "" {
				return goerr.New("record needs at least task and nonce")
			}

			notifier := callback.New(callback.WithMaxAttempts(maxAttempts))

			delivery, err := notifier.Notify(ctx, url, &record)
			if err != nil {
				color.New(color.FgRed, color.Bold).Printf("✗ notification failed: %s\n", err.Error())
				return err
			}

			color.New(color.FgGreen, color.Bold).Printf("✓ delivered to %s\n", url)
			color.New(color.FgCyan).Printf("  status:   %d\n  attempts: %d\n", delivery.StatusCode, delivery.Attempts)
			if len(delivery.Body) > 0 {
				color.New(color.Faint).Printf("  body:     %s\n", string(delivery.Body))
			}
			return nil
		},
	}
}

func loadRecord(path string) (*model.NotificationRecord, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open record file", goerr.V("path", path))
		}
		defer f.Close()
		r = f
	}

	var record model.NotificationRecord
	if err := json.NewDecoder(r).Decode(&record); err != nil {
		return nil, goerr.Wrap(err, "failed to decode record", goerr.V("path", path))
	}
	return &record, nil
}
