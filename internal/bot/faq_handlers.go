package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/lorebot/lorebot/internal/faq"
)

// resolvedTargetMessage pulls the context-menu target out of the resolved
// data. Resolved messages omit the guild id, so it is backfilled from the
// interaction.
func resolvedTargetMessage(data discordgo.ApplicationCommandInteractionData, i *discordgo.InteractionCreate) *discordgo.Message {
	target, ok := data.Resolved.Messages[data.TargetID]
	if !ok {
		return nil
	}
	if target.GuildID == "" {
		target.GuildID = i.GuildID
	}
	return target
}

func (b *Bot) handleRememberTopic(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.deferEphemeral(s, i) {
		return
	}

	target := resolvedTargetMessage(data, i)
	if target == nil {
		b.editReply(s, i, "Could not resolve the selected message.")
		return
	}

	lastStatus := "Thinking..."
	update := func(status string) {
		lastStatus = status
		b.editReply(s, i, fmt.Sprintf("***%s***", status))
	}

	outcome, err := b.recorder.Execute(context.Background(), target, update)
	if err != nil {
		b.logger.Error("record sequence failed", "message_id", target.ID, "error", err)
		b.editReply(s, i, "Recording failed: "+err.Error())
		return
	}

	b.editReply(s, i, fmt.Sprintf("***%s***\n\n**Summary**\n*%s*", lastStatus, outcome.Topic.Summary))
}

func (b *Bot) handleAnswerQuestion(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !b.deferEphemeral(s, i) {
		return
	}

	target := resolvedTargetMessage(data, i)
	if target == nil {
		b.editReply(s, i, "Could not resolve the selected message.")
		return
	}

	var statusLog []string
	update := func(status string) {
		statusLog = append(statusLog, status)
		b.editReply(s, i, strings.Join(statusLog, "\n"))
	}

	update("Starting job...")

	question := faq.Question{
		Text:      target.Content,
		Timestamp: target.Timestamp,
		AskerID:   authorID(target),
		GuildID:   i.GuildID,
	}

	blocks, err := b.recaller.Execute(context.Background(), question, update)
	if err != nil {
		b.logger.Error("recall sequence failed", "message_id", target.ID, "error", err)
		b.editReply(s, i, "Recall failed: "+err.Error())
		return
	}

	content := noAnswerFallback(target.Content)
	if len(blocks) > 0 {
		content = renderExchange(blocks)
	}

	_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:         &content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		b.logger.Warn("failed to send recall response", "error", err)
	}
}

func authorID(message *discordgo.Message) string {
	if message.Author == nil {
		return ""
	}
	return message.Author.ID
}
