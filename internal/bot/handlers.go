package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lorebot/lorebot/internal/conversations"
	"github.com/lorebot/lorebot/internal/replay"
	"github.com/lorebot/lorebot/internal/scenarios"
)

// progressUpdateInterval throttles ephemeral progress edits during a replay.
const progressUpdateInterval = 1500 * time.Millisecond

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(s, i)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case cmdConversationPlay:
		b.handleConversationPlay(s, i, data)
	case cmdConversationCancel:
		b.handleCancel(s, i, data, b.convRunner.Cancel, b.convRunner.Running, "conversation replay")
	case cmdConversationPersonas:
		b.handlePersonas(s, i)
	case cmdScenarioPlay:
		b.handleScenarioPlay(s, i, data)
	case cmdScenarioCancel:
		b.handleCancel(s, i, data, b.scenRunner.Cancel, b.scenRunner.Running, "scenario")
	case cmdSeedConversations:
		b.handleSeedConversations(s, i, data)
	case cmdRememberTopic:
		b.handleRememberTopic(s, i, data)
	case cmdAnswerQuestion:
		b.handleAnswerQuestion(s, i, data)
	default:
		b.logger.Warn("unknown command", "name", data.Name)
	}
}

// deferEphemeral acknowledges the interaction with a deferred ephemeral
// reply. All command output then goes through editReply.
func (b *Bot) deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.logger.Warn("failed to defer interaction", "error", err)
		return false
	}
	return true
}

func (b *Bot) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content})
	if err != nil {
		b.logger.Warn("failed to edit interaction reply", "error", err)
	}
}

func optionString(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

func optionInt(data discordgo.ApplicationCommandInteractionData, name string, fallback int64) int64 {
	for _, opt := range data.Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionInteger {
			return opt.IntValue()
		}
	}
	return fallback
}

func optionBool(data discordgo.ApplicationCommandInteractionData, name string, fallback bool) bool {
	for _, opt := range data.Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionBoolean {
			return opt.BoolValue()
		}
	}
	return fallback
}

// optionChannelID resolves the channel option, falling back to the invoking
// channel. Registration restricts the option to guild text channels.
func optionChannelID(data discordgo.ApplicationCommandInteractionData, i *discordgo.InteractionCreate, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionChannel {
			if v, ok := opt.Value.(string); ok {
				return v
			}
		}
	}
	return i.ChannelID
}

func requester(i *discordgo.InteractionCreate) string {
	user := i.Member.User
	return fmt.Sprintf("%s (%s)", user.Username, user.ID)
}

func (b *Bot) handleConversationPlay(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.deferEphemeral(s, i) {
		return
	}

	name := optionString(data, "conversation")
	delay := time.Duration(optionInt(data, "delay", b.cfg.Replay.DefaultDelay.Milliseconds())) * time.Millisecond
	channelID := optionChannelID(data, i, "channel")

	if b.convRunner.Running(channelID) {
		b.editReply(s, i, "A conversation replay is already running in that channel. Cancel it first.")
		return
	}

	conv, err := b.convLoader.Load(name)
	if err != nil {
		b.editReply(s, i, "Failed to start conversation: "+err.Error())
		return
	}
	catalog, err := b.convLoader.PersonaMap()
	if err != nil {
		b.editReply(s, i, "Failed to start conversation: "+err.Error())
		return
	}

	b.editReply(s, i, fmt.Sprintf("Starting conversation **%s** in <#%s>...", conv.Name, channelID))

	startedAt := time.Now()
	lastUpdate := startedAt

	_, err = b.convRunner.Start(context.Background(), conversations.RunOptions{
		Conversation: conv,
		ChannelID:    channelID,
		Delay:        delay,
		RequestedBy:  requester(i),
		Catalog:      catalog,
		OnProgress: func(p replay.Progress) {
			now := time.Now()
			if now.Sub(lastUpdate) < progressUpdateInterval && p.Index != p.Total {
				return
			}
			lastUpdate = now

			personaName := p.ActorID
			if persona, ok := conv.Personas[p.ActorID]; ok {
				personaName = persona.DisplayName
			}
			b.editReply(s, i, fmt.Sprintf("Replaying **%s** in <#%s> — %d/%d messages sent (latest: %s).",
				conv.Name, channelID, p.Index, p.Total, personaName))
		},
		OnFinish: func(result replay.Result) {
			b.editReply(s, i, finishMessage("Conversation", conv.Name, channelID, startedAt, result))
		},
	})
	if err != nil {
		b.editReply(s, i, "Failed to start conversation: "+err.Error())
	}
}

func (b *Bot) handleScenarioPlay(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.deferEphemeral(s, i) {
		return
	}

	name := optionString(data, "scenario")
	delay := time.Duration(optionInt(data, "delay", b.cfg.Replay.DefaultDelay.Milliseconds())) * time.Millisecond
	channelID := optionChannelID(data, i, "channel")

	if b.scenRunner.Running(channelID) {
		b.editReply(s, i, "A scenario is already running in that channel. Cancel it first.")
		return
	}

	scenario, err := b.scenLoader.Load(name)
	if err != nil {
		b.editReply(s, i, "Failed to start scenario: "+err.Error())
		return
	}

	b.editReply(s, i, fmt.Sprintf("Starting scenario **%s** in <#%s>...", scenario.Name, channelID))

	startedAt := time.Now()
	lastUpdate := startedAt

	_, err = b.scenRunner.Start(context.Background(), scenarios.RunOptions{
		Scenario:    scenario,
		ChannelID:   channelID,
		Delay:       delay,
		RequestedBy: requester(i),
		OnProgress: func(p replay.Progress) {
			now := time.Now()
			if now.Sub(lastUpdate) < progressUpdateInterval && p.Index != p.Total {
				return
			}
			lastUpdate = now

			actorName := p.ActorID
			if actor, ok := scenario.Actors[p.ActorID]; ok {
				actorName = actor.DisplayName
			}
			b.editReply(s, i, fmt.Sprintf("Replaying **%s** in <#%s> — %d/%d messages sent (latest: %s).",
				scenario.Name, channelID, p.Index, p.Total, actorName))
		},
		OnFinish: func(result replay.Result) {
			b.editReply(s, i, finishMessage("Scenario", scenario.Name, channelID, startedAt, result))
		},
	})
	if err != nil {
		b.editReply(s, i, "Failed to start scenario: "+err.Error())
	}
}

func finishMessage(kind, name, channelID string, startedAt time.Time, result replay.Result) string {
	duration := int(time.Since(startedAt).Round(time.Second).Seconds())
	switch {
	case result.Completed:
		return fmt.Sprintf("%s **%s** finished in %ds in <#%s>.", kind, name, duration, channelID)
	case errors.Is(result.Err, replay.ErrRunCancelled):
		return fmt.Sprintf("%s **%s** was cancelled after %ds in <#%s>.", kind, name, duration, channelID)
	default:
		return fmt.Sprintf("%s **%s** stopped with an error after %ds: %v", kind, name, duration, result.Err)
	}
}

func (b *Bot) handleCancel(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, cancel func(string) bool, running func(string) bool, kind string) {
	if !b.deferEphemeral(s, i) {
		return
	}

	channelID := optionChannelID(data, i, "channel")

	if !running(channelID) {
		b.editReply(s, i, fmt.Sprintf("No %s is currently running in that channel.", kind))
		return
	}
	if !cancel(channelID) {
		b.editReply(s, i, fmt.Sprintf("Failed to cancel the %s. It may have just completed.", kind))
		return
	}

	label := strings.ToUpper(kind[:1]) + kind[1:]
	b.editReply(s, i, fmt.Sprintf("%s cancelled in <#%s>.", label, channelID))
}

func (b *Bot) handlePersonas(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferEphemeral(s, i) {
		return
	}

	personas, err := b.convLoader.Personas()
	if err != nil {
		b.editReply(s, i, "Failed to load personas: "+err.Error())
		return
	}

	lines := make([]string, 0, len(personas))
	for _, persona := range personas {
		lines = append(lines, fmt.Sprintf("**%s** — %s", persona.DisplayName, persona.Description))
	}

	content := strings.Join(lines, "\n\n")
	if content == "" {
		content = "No personas are currently defined."
	}
	b.editReply(s, i, content)
}

func (b *Bot) handleSeedConversations(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	record := optionBool(data, "record", true)
	delay := time.Duration(optionInt(data, "delay", 0)) * time.Millisecond

	// Progress is surfaced in a regular channel message so everyone watching
	// the seed can follow along; the ephemeral reply just acknowledges.
	statusMsg, err := s.ChannelMessageSend(i.ChannelID, "Booting up...")
	if err != nil {
		b.logger.Warn("failed to send seed status message", "error", err)
	}

	respErr := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Seeding conversations... this may take a while.",
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if respErr != nil {
		b.logger.Warn("failed to acknowledge seed command", "error", respErr)
	}

	status := func(content string) {
		if statusMsg == nil {
			return
		}
		if _, err := s.ChannelMessageEdit(statusMsg.ChannelID, statusMsg.ID, content); err != nil {
			b.logger.Warn("failed to edit seed status message", "error", err)
		}
	}

	report, err := b.seeder.Seed(context.Background(), i.GuildID, conversations.SeedOptions{
		Record:      record,
		Delay:       delay,
		RequestedBy: requester(i),
		Status:      status,
	})
	if err != nil {
		status("Seeding failed: " + err.Error())
		return
	}

	status(report.Summary())
}
