package main

import (
	"context"
	"fmt"
	"time"

	"relaybot/internal/commlog"
	"relaybot/internal/config"
	"relaybot/internal/report"

	"github.com/spf13/cobra"
)

func newExportCmd(configPath *string) *cobra.Command {
	var (
		since time.Duration
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the communication log to an Excel file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, *configPath, since, out)
		},
	}
	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "how far back to export")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default communications_<date>.xlsx)")
	return cmd
}

func runExport(cmd *cobra.Command, configPath string, since time.Duration, out string) error {
	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if since <= 0 {
		return fmt.Errorf("--since must be positive, got %s", since)
	}

	loc, err := time.LoadLocation(cfg.Hours.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Hours.Timezone, err)
	}

	log, err := commlog.Open(cfg.Commlog.Driver, cfg.Commlog.Path)
	if err != nil {
		return fmt.Errorf("open communication log: %w", err)
	}
	defer log.Close()

	now := time.Now()
	if out == "" {
		out = commlog.ReportFilename(now.In(loc))
	}

	n, err := report.New(log, loc).WriteFile(context.Background(), now.Add(-since), out)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", n, out)
	return nil
}
