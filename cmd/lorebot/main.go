// Package main provides the CLI entry point for the lorebot Discord bot.
//
// Lorebot replays scripted conversations and scenarios into Discord channels
// through webhooks, and mines channel history into searchable topics that
// answer future questions with cited quotes.
//
// # Basic Usage
//
// Start the bot:
//
//	lorebot serve --config lorebot.yaml
//
// Seed a guild with the manifest conversations:
//
//	lorebot seed --guild 123456789 --record
//
// # Environment Variables
//
//   - DISCORD_BOT_TOKEN: Discord bot token (referenced from the config file)
//   - LOREBOT_CONFIG: Path to configuration file (default: lorebot.yaml)
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached. This
// is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "lorebot",
		Short:        "Lorebot - Discord conversation replay and topic recall bot",
		Long: `Lorebot replays scripted conversations into Discord channels through
webhooks and records channel discussions as searchable topics, which it
later cites to answer questions.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildSeedCmd(),
		buildValidateCmd(),
	)

	return rootCmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("LOREBOT_CONFIG"); env != "" {
		return env
	}
	return "lorebot.yaml"
}
