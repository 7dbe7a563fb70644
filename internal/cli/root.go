// Package cli wires the cage subcommands: the per-event hook forwarder,
// the collector server, its lifecycle commands, and the operator query
// tools.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cagehq/cage/internal/config"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cage",
	Short: "Capture and observe coding-agent hook events",
	Long: `cage relays lifecycle events emitted by a coding agent's hooks to a
local collector, persists them as date-partitioned JSONL, and makes them
queryable and streamable in near-real-time.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to cage.yaml (default $HOME/.cage/cage.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig builds the loader for the configured (or default) path. A
// missing file yields defaults, so every command works out of the box.
func loadConfig() (*config.Loader, error) {
	path := cfgPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".cage", "cage.yaml")
		}
	}
	loader, err := config.NewLoader(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return loader, nil
}

// configOrDefault tolerates a failed load; the hook hot path must never
// die on a broken config file.
func configOrDefault(loader *config.Loader) *config.Config {
	if loader == nil {
		return config.Default()
	}
	return loader.Config()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
