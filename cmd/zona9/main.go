// Command zona9 serves the Zona 9 operational dashboard and its HD export
// renderer.
//
//	zona9 serve --config zona9.yaml
//	zona9 seed --date 2026-01-07
//	zona9 capture --date 2026-01-07 --format pdf -o report.pdf
//	zona9 mcp
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/zona9/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var gf globalFlags

	root := &cobra.Command{
		Use:           "zona9",
		Short:         "Zona 9 warehouse operation dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&gf.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "debug|info|warn|error (overrides config)")

	root.AddCommand(newServeCmd(&gf))
	root.AddCommand(newSeedCmd(&gf))
	root.AddCommand(newCaptureCmd(&gf))
	root.AddCommand(newMCPCmd(&gf))
	return root
}

// loadConfig reads the configuration and installs the JSON logger. Logs go
// to stderr so the mcp subcommand keeps stdout for the protocol.
func loadConfig(gf *globalFlags) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(gf.configPath)
	if err != nil {
		return nil, nil, err
	}
	if gf.logLevel != "" {
		if _, err := config.ParseLevel(gf.logLevel); err != nil {
			return nil, nil, err
		}
		cfg.LogLevel = gf.logLevel
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
