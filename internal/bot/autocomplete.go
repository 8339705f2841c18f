package bot

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

const maxAutocompleteChoices = 25

func (b *Bot) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()

	var (
		items []choice
		query string
		err   error
	)

	switch data.Name {
	case cmdConversationPlay:
		query = focusedValue(data, "conversation")
		items, err = b.convChoices.get(func() ([]choice, error) {
			listed, err := b.convLoader.List()
			if err != nil {
				return nil, err
			}
			choices := make([]choice, len(listed))
			for idx, item := range listed {
				choices[idx] = choice{Name: item.Name, Description: item.Description}
			}
			return choices, nil
		})
	case cmdScenarioPlay:
		query = focusedValue(data, "scenario")
		items, err = b.scenChoices.get(func() ([]choice, error) {
			listed, err := b.scenLoader.List()
			if err != nil {
				return nil, err
			}
			choices := make([]choice, len(listed))
			for idx, item := range listed {
				choices[idx] = choice{Name: item.Name, Description: item.Description}
			}
			return choices, nil
		})
	default:
		return
	}

	if err != nil {
		b.logger.Warn("autocomplete listing failed", "command", data.Name, "error", err)
		items = nil
	}

	respErr := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: filterChoices(items, query),
		},
	})
	if respErr != nil {
		b.logger.Warn("failed to respond to autocomplete", "error", respErr)
	}
}

func focusedValue(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name && opt.Focused {
			if v, ok := opt.Value.(string); ok {
				return v
			}
		}
	}
	return ""
}

func filterChoices(items []choice, query string) []*discordgo.ApplicationCommandOptionChoice {
	query = strings.ToLower(query)

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, maxAutocompleteChoices)
	for _, item := range items {
		if query != "" &&
			!strings.Contains(strings.ToLower(item.Name), query) &&
			!strings.Contains(strings.ToLower(item.Description), query) {
			continue
		}

		label := item.Name
		if item.Description != "" {
			label = truncate(item.Name+" – "+item.Description, 100)
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  label,
			Value: item.Name,
		})
		if len(choices) == maxAutocompleteChoices {
			break
		}
	}
	return choices
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
