package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"

	"github.com/lorebot/lorebot/internal/bot"
	"github.com/lorebot/lorebot/internal/config"
	"github.com/lorebot/lorebot/internal/conversations"
	"github.com/lorebot/lorebot/internal/discord"
	"github.com/lorebot/lorebot/internal/faq"
	"github.com/lorebot/lorebot/internal/llm"
	"github.com/lorebot/lorebot/internal/observability"
	"github.com/lorebot/lorebot/internal/replay"
	"github.com/lorebot/lorebot/internal/scenarios"
	"github.com/lorebot/lorebot/internal/topics"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Discord bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(configPath))
			if err != nil {
				return err
			}

			logger := observability.NewLogger(observability.LogConfig{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			slog.SetDefault(logger)

			b, err := bot.New(*cfg, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger.Info("starting lorebot", "version", version)
			return b.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file (default lorebot.yaml)")
	return cmd
}

func buildSeedCmd() *cobra.Command {
	var configPath string
	var guildID string
	var record bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replay every manifest conversation into its configured guild channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(configPath))
			if err != nil {
				return err
			}

			logger := observability.NewLogger(observability.LogConfig{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			slog.SetDefault(logger)

			session, err := discordgo.New("Bot " + cfg.Discord.BotToken)
			if err != nil {
				return fmt.Errorf("create discord session: %w", err)
			}
			session.Identify.Intents = discordgo.IntentsGuilds
			if err := session.Open(); err != nil {
				return fmt.Errorf("open gateway: %w", err)
			}
			defer session.Close()

			botID := ""
			if session.State != nil && session.State.User != nil {
				botID = session.State.User.ID
			}

			loader := conversations.NewLoader(cfg.Data.ConversationsDir, logger)
			runner := conversations.NewRunner(session, replay.NewRegistry(), botID, logger)
			messenger := discord.NewMessenger(session)

			var recorder conversations.TopicRecorder
			if record {
				embedder := topics.NewOllamaEmbedder(topics.OllamaEmbedderConfig{
					BaseURL: cfg.LLM.BaseURL,
					Model:   cfg.LLM.EmbedModel,
				})
				store, err := topics.Open(cfg.Database.Path, embedder)
				if err != nil {
					return fmt.Errorf("open topic store: %w", err)
				}
				defer store.Close()

				provider := llm.NewOllamaClient(llm.OllamaConfig{
					BaseURL: cfg.LLM.BaseURL,
					Model:   cfg.LLM.Model,
					Timeout: cfg.LLM.Timeout,
				})
				recorder = faq.NewRecorder(provider, store, messenger, logger)
			}

			seeder := conversations.NewSeeder(loader, runner, session, messenger, recorder, cfg.Replay.SeedDelay, logger)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			report, err := seeder.Seed(ctx, guildID, conversations.SeedOptions{
				Record: record,
				Status: func(line string) {
					logger.Info("seed progress", "status", line)
				},
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file (default lorebot.yaml)")
	cmd.Flags().StringVar(&guildID, "guild", "", "Guild id to seed into")
	cmd.Flags().BoolVar(&record, "record", false, "Run the topic recording workflow for manifest-configured messages")
	_ = cmd.MarkFlagRequired("guild")
	return cmd
}

func buildValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and every conversation and scenario definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(configPath))
			if err != nil {
				return err
			}

			logger := observability.NewLogger(observability.LogConfig{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})

			failed := false

			convLoader := conversations.NewLoader(cfg.Data.ConversationsDir, logger)
			convs, err := convLoader.List()
			if err != nil {
				return err
			}
			for _, item := range convs {
				if _, err := convLoader.Load(item.Name); err != nil {
					failed = true
					fmt.Fprintf(cmd.ErrOrStderr(), "conversation %s: %v\n", item.Name, err)
				}
			}

			scenLoader := scenarios.NewLoader(cfg.Data.ScenariosDir, logger)
			scens, err := scenLoader.List()
			if err != nil {
				return err
			}
			for _, item := range scens {
				if _, err := scenLoader.Load(item.Name); err != nil {
					failed = true
					fmt.Fprintf(cmd.ErrOrStderr(), "scenario %s: %v\n", item.Name, err)
				}
			}

			if _, err := conversations.LoadManifest(cfg.Data.ConversationsDir); err != nil {
				failed = true
				fmt.Fprintf(cmd.ErrOrStderr(), "seed manifest: %v\n", err)
			}

			if failed {
				return fmt.Errorf("validation failed")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d conversations, %d scenarios\n", len(convs), len(scens))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file (default lorebot.yaml)")
	return cmd
}
