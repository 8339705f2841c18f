package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const minDelayMs = 500

// Command and option names, shared between registration and dispatch.
const (
	cmdConversationPlay     = "conversation-play"
	cmdConversationCancel   = "conversation-cancel"
	cmdConversationPersonas = "conversation-personas"
	cmdScenarioPlay         = "scenario-play"
	cmdScenarioCancel       = "scenario-cancel"
	cmdSeedConversations    = "seed-conversations"
	cmdRememberTopic        = "Remember Topic"
	cmdAnswerQuestion       = "Answer Question"
)

func (b *Bot) registerCommands() error {
	minDelay := float64(minDelayMs)
	maxDelay := float64(10_000)
	guildOnly := []discordgo.InteractionContextType{discordgo.InteractionContextGuild}
	textChannel := []discordgo.ChannelType{discordgo.ChannelTypeGuildText}

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        cmdConversationPlay,
			Description: "Replay a scripted archived conversation in the current guild using webhooks",
			Contexts:    &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "conversation",
					Description:  "Conversation identifier (use tab to autocomplete)",
					Required:     true,
					Autocomplete: true,
				},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Channel to replay the conversation in (defaults to the current channel)",
					ChannelTypes: textChannel,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "delay",
					Description: "Delay between messages in milliseconds (min 500, default 2500)",
					MinValue:    &minDelay,
				},
			},
		},
		{
			Name:        cmdConversationCancel,
			Description: "Stops a running conversation replay in the specified text channel",
			Contexts:    &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Channel to cancel (defaults to the current channel)",
					ChannelTypes: textChannel,
				},
			},
		},
		{
			Name:        cmdConversationPersonas,
			Description: "List the available conversation personas and their roles",
			Contexts:    &guildOnly,
		},
		{
			Name:        cmdScenarioPlay,
			Description: "Replay a scripted conversation in the current guild using webhooks",
			Contexts:    &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "scenario",
					Description:  "Scenario identifier (use tab to autocomplete)",
					Required:     true,
					Autocomplete: true,
				},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Channel to run the scenario in (defaults to the current channel)",
					ChannelTypes: textChannel,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "delay",
					Description: "Delay between messages in milliseconds (min 500, default 2500)",
					MinValue:    &minDelay,
				},
			},
		},
		{
			Name:        cmdScenarioCancel,
			Description: "Stops a running scenario in the specified text channel",
			Contexts:    &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Channel to cancel (defaults to the current channel)",
					ChannelTypes: textChannel,
				},
			},
		},
		{
			Name:        cmdSeedConversations,
			Description: "Replay every scripted conversation into the configured channels",
			Contexts:    &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "record",
					Description: "Immediately run the topic recording workflow for configured messages",
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "delay",
					Description: "Delay between seeded messages in milliseconds (default 1200)",
					MinValue:    &minDelay,
					MaxValue:    maxDelay,
				},
			},
		},
		{
			Name:     cmdRememberTopic,
			Type:     discordgo.MessageApplicationCommand,
			Contexts: &guildOnly,
		},
		{
			Name:     cmdAnswerQuestion,
			Type:     discordgo.MessageApplicationCommand,
			Contexts: &guildOnly,
		},
	}

	appID := b.cfg.Discord.AppID
	if appID == "" && b.session.State != nil && b.session.State.User != nil {
		appID = b.session.State.User.ID
	}

	_, err := b.session.ApplicationCommandBulkOverwrite(appID, b.cfg.Discord.GuildID, commands)
	if err != nil {
		return fmt.Errorf("register application commands: %w", err)
	}

	b.logger.Info("application commands registered", "count", len(commands))
	return nil
}

// choice is one autocomplete entry.
type choice struct {
	Name        string
	Description string
}

// listCache memoizes a directory listing for autocomplete, refreshed when the
// TTL lapses.
type listCache struct {
	ttl time.Duration

	mu        sync.Mutex
	items     []choice
	expiresAt time.Time
}

func newListCache(ttl time.Duration) *listCache {
	return &listCache{ttl: ttl}
}

// get returns the cached items, reloading through fn when stale.
func (c *listCache) get(fn func() ([]choice, error)) ([]choice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.items != nil && now.Before(c.expiresAt) {
		return c.items, nil
	}

	items, err := fn()
	if err != nil {
		return nil, err
	}
	c.items = items
	c.expiresAt = now.Add(c.ttl)
	return items, nil
}
