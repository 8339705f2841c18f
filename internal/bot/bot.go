// Package bot wires the replay runners and agent sequences to the Discord
// gateway: slash/context-menu command registration, interaction handling, and
// guild lifecycle bookkeeping.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lorebot/lorebot/internal/config"
	"github.com/lorebot/lorebot/internal/conversations"
	"github.com/lorebot/lorebot/internal/discord"
	"github.com/lorebot/lorebot/internal/faq"
	"github.com/lorebot/lorebot/internal/llm"
	"github.com/lorebot/lorebot/internal/replay"
	"github.com/lorebot/lorebot/internal/scenarios"
	"github.com/lorebot/lorebot/internal/topics"
)

// Bot is the assembled application: one gateway session plus the runners and
// sequences the interaction handlers drive.
type Bot struct {
	cfg    config.Config
	logger *slog.Logger

	session *discordgo.Session
	store   *topics.Store

	convLoader *conversations.Loader
	scenLoader *scenarios.Loader
	registry   *replay.Registry

	convRunner *conversations.Runner
	scenRunner *scenarios.Runner
	seeder     *conversations.Seeder

	recorder *faq.Recorder
	recaller *faq.Recaller

	convChoices *listCache
	scenChoices *listCache
}

// New assembles a bot from configuration. The gateway connection is not
// opened until Start.
func New(cfg config.Config, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	session, err := discordgo.New("Bot " + cfg.Discord.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	embedder := topics.NewOllamaEmbedder(topics.OllamaEmbedderConfig{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.EmbedModel,
	})
	store, err := topics.Open(cfg.Database.Path, embedder)
	if err != nil {
		return nil, fmt.Errorf("open topic store: %w", err)
	}

	provider := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})

	messenger := discord.NewMessenger(session)

	b := &Bot{
		cfg:         cfg,
		logger:      logger,
		session:     session,
		store:       store,
		convLoader:  conversations.NewLoader(cfg.Data.ConversationsDir, logger),
		scenLoader:  scenarios.NewLoader(cfg.Data.ScenariosDir, logger),
		registry:    replay.NewRegistry(),
		recorder:    faq.NewRecorder(provider, store, messenger, logger),
		recaller:    faq.NewRecaller(provider, store, logger),
		convChoices: newListCache(5 * time.Second),
		scenChoices: newListCache(5 * time.Second),
	}

	session.AddHandler(b.handleReady)
	session.AddHandler(b.handleGuildCreate)
	session.AddHandler(b.handleGuildDelete)
	session.AddHandler(b.handleInteraction)

	return b, nil
}

// Start builds the session-dependent runners, opens the gateway connection,
// and registers application commands. It blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	self, err := b.session.User("@me")
	if err != nil {
		return fmt.Errorf("identify bot user: %w", err)
	}

	// Wired before the gateway opens: commands registered by a previous
	// process can produce interactions the moment the connection is up.
	b.wire(self.ID)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer b.closeSession()

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.logger.Info("bot ready", "bot_id", self.ID, "guild_id", b.cfg.Discord.GuildID)

	<-ctx.Done()
	return nil
}

// wire builds the runners and seeder that need the bot's own user id.
func (b *Bot) wire(botID string) {
	messenger := discord.NewMessenger(b.session)
	b.convRunner = conversations.NewRunner(b.session, b.registry, botID, b.logger)
	b.scenRunner = scenarios.NewRunner(b.session, b.registry, b.logger)
	b.seeder = conversations.NewSeeder(
		b.convLoader, b.convRunner, b.session, messenger, b.recorder,
		b.cfg.Replay.SeedDelay, b.logger)
}

func (b *Bot) closeSession() {
	if err := b.session.Close(); err != nil {
		b.logger.Warn("failed to close gateway session", "error", err)
	}
	if err := b.store.Close(); err != nil {
		b.logger.Warn("failed to close topic store", "error", err)
	}
}

func (b *Bot) handleReady(_ *discordgo.Session, ready *discordgo.Ready) {
	b.logger.Info("gateway session ready",
		"username", ready.User.Username,
		"guilds", len(ready.Guilds))
}

func (b *Bot) handleGuildCreate(_ *discordgo.Session, event *discordgo.GuildCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.store.EnsureGuild(ctx, event.ID); err != nil {
		b.logger.Error("failed to register guild", "guild_id", event.ID, "error", err)
		return
	}
	b.logger.Debug("guild registered", "guild_id", event.ID, "name", event.Name)
}

func (b *Bot) handleGuildDelete(_ *discordgo.Session, event *discordgo.GuildDelete) {
	// The gateway also sends this event when a guild goes temporarily
	// unavailable during an outage; only a real removal unregisters it.
	if event.Unavailable {
		b.logger.Debug("guild unavailable", "guild_id", event.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.store.RemoveGuild(ctx, event.ID); err != nil {
		b.logger.Error("failed to unregister guild", "guild_id", event.ID, "error", err)
		return
	}
	b.logger.Debug("guild unregistered", "guild_id", event.ID)
}
