package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/provwatch/provwatch/internal/config"
	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/store"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "provwatch",
		Short: "provwatch — childcare provider oversight scanner",
		Long: "provwatch discovers childcare providers across public channels, cross-references\n" +
			"their public footprint against licensing registries, and flags entities whose\n" +
			"visibility and licensing status disagree. Every conclusion is backed by an\n" +
			"append-only evidence ledger.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		scanCmd(),
		providersCmd(),
		evidenceCmd(),
		runsCmd(),
		labelCmd(),
		purgeCmd(),
		schemasCmd(),
		mcpCmd(),
		serveCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newStore(logger *slog.Logger) (store.Store, error) {
	if cfg.Storage.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is not set (configure storage.dsn or PROVWATCH_STORAGE_DSN)")
	}
	st, err := store.NewPostgresStore(cfg.Storage.DSN, cfg.Storage.SoftDelete, logger)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// parseTiers parses a comma-separated risk-tier list.
func parseTiers(raw string) ([]models.RiskTier, error) {
	var out []models.RiskTier
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t := models.RiskTier(part)
		if !t.IsValid() {
			return nil, fmt.Errorf("unknown risk tier %q", part)
		}
		out = append(out, t)
	}
	return out, nil
}

// parseStatuses parses a comma-separated provider-status list.
func parseStatuses(raw string) ([]models.ProviderStatus, error) {
	var out []models.ProviderStatus
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s := models.ProviderStatus(part)
		if !s.IsValid() {
			return nil, fmt.Errorf("unknown provider status %q", part)
		}
		out = append(out, s)
	}
	return out, nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}

func strOrNA(v *string) string {
	if v == nil || *v == "" {
		return "N/A"
	}
	return *v
}
