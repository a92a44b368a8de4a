// Command forge assembles a budgeted prompt from context files, invokes a
// local OpenAI-compatible model endpoint, and prints the validated,
// extracted sections to stdout. It never writes generated documents to
// disk; that belongs to whoever calls it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"promptforge/internal/config"
	"promptforge/internal/logging"
)

const version = "0.1.0"

var (
	flagConfig string
	flagDebug  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "forge",
		Short:         "Generate structured project documents through a local LLM",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", ".forge.yaml", "path to config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newDoctorCmd())
	return root
}

// setup loads configuration and builds the logger shared by subcommands.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Debug || flagDebug)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, logger, nil
}
