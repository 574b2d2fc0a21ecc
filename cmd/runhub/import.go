package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nullptr0807/runhub/internal/hub"
	"github.com/nullptr0807/runhub/internal/logger"
	"github.com/nullptr0807/runhub/internal/storage/runstore"
	"github.com/spf13/cobra"
)

var (
	importStrategy string
	importLabel    string
	importNotes    string
)

var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Import export files without running the server",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importStrategy, "strategy", "s", "", "strategy name (required)")
	importCmd.Flags().StringVarP(&importLabel, "label", "l", "", "run label (defaults to file name)")
	importCmd.Flags().StringVarP(&importNotes, "notes", "n", "", "run notes")
	importCmd.MarkFlagRequired("strategy")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Logger.Level
	if debug {
		level = "debug"
	}
	log := logger.Must(level, cfg.Logger.Format)
	defer log.Sync()

	store, err := runstore.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	arch, err := buildArchive(cfg)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}

	h := hub.New(store, arch, nil, nil, log)

	for _, path := range args {
		payload, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		run, err := h.ImportRun(cmd.Context(), hub.ImportRequest{
			StrategyName: importStrategy,
			Label:        importLabel,
			SourceFile:   filepath.Base(path),
			Notes:        importNotes,
			Payload:      payload,
		})
		if err != nil {
			return fmt.Errorf("importing %s: %w", path, err)
		}

		fmt.Printf("imported %s as run %s\n", path, run.ID)
		fmt.Printf("  period:       %s to %s\n",
			run.PeriodStart.Format("2006-01-02"), run.PeriodEnd.Format("2006-01-02"))
		fmt.Printf("  net profit:   %.2f\n", run.Metrics.NetProfit)
		fmt.Printf("  trading days: %d\n", run.Metrics.TradingDays)
		fmt.Printf("  win rate:     %.1f%%\n", run.Metrics.WinRate)
	}

	return nil
}
