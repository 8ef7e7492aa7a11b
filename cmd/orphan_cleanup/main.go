package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"imageshelf/internal/config"
	"imageshelf/internal/domain/cleanup"
	"imageshelf/internal/pkg/logger"
	"imageshelf/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "orphan_cleanup",
	Short: "Removes stored images that have no metadata record",
	Long: `Scans the configured byte storage and removes every object that is older
than the grace period and has no record in the metadata store. Such objects
only exist when the API process died between writing an upload and recording it.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		grace, err := cmd.Flags().GetDuration("grace")
		if err != nil {
			return fmt.Errorf("failed to get grace: %w", err)
		}
		if grace < 0 {
			return errors.New("--grace must not be negative")
		}
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return fmt.Errorf("failed to get dry-run: %w", err)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		zl, err := logger.New(cfg.AppEnv, cfg.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = zl.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := server.Open(ctx, cfg, zl)
		if err != nil {
			return err
		}
		defer res.Close()

		result, err := cleanup.NewSweeper(res.Files, res.Images, zl.Named("cleanup")).Sweep(ctx, grace, dryRun)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d orphans=%d removed=%d failed=%d dry_run=%t\n",
			result.Scanned, result.Orphans, result.Removed, result.Failed, dryRun)
		if result.Failed > 0 {
			zl.Warn("some orphans could not be removed", zap.Int("failed", result.Failed))
			return fmt.Errorf("%d orphans could not be removed", result.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().Duration("grace", cleanup.DefaultGrace, "Only remove objects last modified longer ago than this")
	rootCmd.Flags().Bool("dry-run", false, "Report orphans without removing them")
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
