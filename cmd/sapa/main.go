// Package main is the sapa command line: a personal assistant that turns
// typed or spoken requests into tool invocations.
//
// Start a typed session:
//
//	sapa chat --config configs/sapa.example.yaml
//
// Talk to it instead:
//
//	sapa voice
//
// API keys are read from the environment or an env file (default .env).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harunnryd/sapa/pkg/runner"
	"github.com/harunnryd/sapa/pkg/sapa"
)

type rootFlags struct {
	configPath string
	envFile    string
	quiet      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "sapa",
		Short:         "A personal assistant for the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       runner.Version,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv("SAPA_CONFIG"), "Path to YAML configuration file")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "KEY=VALUE file loaded before the config")
	cmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "Skip the startup banner")

	cmd.AddCommand(
		buildChatCmd(flags),
		buildVoiceCmd(flags),
		buildImagineCmd(flags),
		buildToolsCmd(flags),
		buildHistoryCmd(flags),
	)
	return cmd
}

func loadConfig(flags *rootFlags) (sapa.Config, error) {
	if err := sapa.LoadEnv(flags.envFile); err != nil {
		return sapa.Config{}, err
	}
	return sapa.LoadConfig(flags.configPath)
}
