package faq

import (
	"context"
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"

	"github.com/lorebot/lorebot/internal/discord"
	"github.com/lorebot/lorebot/internal/topics"
)

// MessageFetcher is the history access the message window needs, satisfied by
// *discord.Messenger.
type MessageFetcher interface {
	Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error)
	Messages(ctx context.Context, channelID, anchorID string, direction discord.Direction, limit int) ([]*discordgo.Message, error)
}

// fromDiscordMessage converts a fetched chat message into the storage shape.
// REST fetches often omit the guild id, so the window's guild is used as a
// fallback.
func fromDiscordMessage(msg *discordgo.Message, guildID string) topics.Message {
	if msg.GuildID != "" {
		guildID = msg.GuildID
	}
	authorID := ""
	if msg.Author != nil {
		authorID = msg.Author.ID
	}
	return topics.Message{
		MessageID: msg.ID,
		GuildID:   guildID,
		ChannelID: msg.ChannelID,
		AuthorID:  authorID,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
}

// MessageWindow is the mutable set of chat messages an agent sequence is
// currently considering. It grows by fetching history around its anchor
// points and shrinks by explicit removal; end-of-history is tracked per
// temporal direction.
type MessageWindow struct {
	fetcher MessageFetcher
	initial topics.Message

	messages map[string]topics.Message

	eofBefore bool
	eofAfter  bool
}

// NewMessageWindow seeds a window with the triggering message.
func NewMessageWindow(fetcher MessageFetcher, initial *discordgo.Message) *MessageWindow {
	seed := fromDiscordMessage(initial, initial.GuildID)
	return &MessageWindow{
		fetcher:  fetcher,
		initial:  seed,
		messages: map[string]topics.Message{seed.MessageID: seed},
	}
}

// Initial returns the triggering message.
func (w *MessageWindow) Initial() topics.Message {
	return w.initial
}

// Len returns the number of windowed messages.
func (w *MessageWindow) Len() int {
	return len(w.messages)
}

// EOFBefore reports whether history is exhausted before the window.
func (w *MessageWindow) EOFBefore() bool {
	return w.eofBefore
}

// EOFAfter reports whether history is exhausted after the window.
func (w *MessageWindow) EOFAfter() bool {
	return w.eofAfter
}

// Expand fetches up to limit more messages in the given direction and merges
// them into the window. A short directed fetch marks that direction's history
// as exhausted; a short around-fetch says nothing about which side ran out,
// so each open side is probed with a single-message fetch instead.
func (w *MessageWindow) Expand(ctx context.Context, direction discord.Direction, limit int) error {
	var anchor topics.Message
	switch direction {
	case discord.Around:
		anchor = w.initial
	case discord.Before:
		anchor = w.earliest()
	case discord.After:
		anchor = w.latest()
	default:
		return fmt.Errorf("unknown direction %q", direction)
	}

	fetched, err := w.fetcher.Messages(ctx, anchor.ChannelID, anchor.MessageID, direction, limit)
	if err != nil {
		return err
	}

	for _, msg := range fetched {
		converted := fromDiscordMessage(msg, w.initial.GuildID)
		w.messages[converted.MessageID] = converted
	}

	if len(fetched) < limit {
		switch direction {
		case discord.Before:
			w.eofBefore = true
		case discord.After:
			w.eofAfter = true
		case discord.Around:
			if len(fetched) == 0 {
				w.eofBefore = true
				w.eofAfter = true
				return nil
			}
			if err := w.probe(ctx, discord.Before); err != nil {
				return err
			}
			if err := w.probe(ctx, discord.After); err != nil {
				return err
			}
		}
	}
	return nil
}

// probe fetches a single message past the window's edge in the given
// direction. An empty result marks that side exhausted; a hit is merged like
// any other fetch.
func (w *MessageWindow) probe(ctx context.Context, direction discord.Direction) error {
	var anchor topics.Message
	switch direction {
	case discord.Before:
		if w.eofBefore {
			return nil
		}
		anchor = w.earliest()
	case discord.After:
		if w.eofAfter {
			return nil
		}
		anchor = w.latest()
	default:
		return fmt.Errorf("unknown direction %q", direction)
	}

	fetched, err := w.fetcher.Messages(ctx, anchor.ChannelID, anchor.MessageID, direction, 1)
	if err != nil {
		return err
	}
	for _, msg := range fetched {
		converted := fromDiscordMessage(msg, w.initial.GuildID)
		w.messages[converted.MessageID] = converted
	}
	if len(fetched) == 0 {
		if direction == discord.Before {
			w.eofBefore = true
		} else {
			w.eofAfter = true
		}
	}
	return nil
}

// Remove drops the given message ids from the window. Unknown ids are
// ignored.
func (w *MessageWindow) Remove(ids []string) {
	for _, id := range ids {
		delete(w.messages, id)
	}
}

// Merge adds messages the window does not already contain.
func (w *MessageWindow) Merge(messages []topics.Message) {
	for _, message := range messages {
		if _, ok := w.messages[message.MessageID]; ok {
			continue
		}
		w.messages[message.MessageID] = message
	}
}

// Sorted returns the windowed messages in timestamp order.
func (w *MessageWindow) Sorted() []topics.Message {
	sorted := make([]topics.Message, 0, len(w.messages))
	for _, message := range w.messages {
		sorted = append(sorted, message)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// IDs returns the windowed message ids in timestamp order.
func (w *MessageWindow) IDs() []string {
	sorted := w.Sorted()
	ids := make([]string, len(sorted))
	for i, message := range sorted {
		ids[i] = message.MessageID
	}
	return ids
}

// Serialized renders the window for prompting, with end-of-history sentinels
// on exhausted sides.
func (w *MessageWindow) Serialized() string {
	sorted := w.Sorted()
	parts := make([]string, 0, len(sorted)+2)

	if w.eofBefore {
		parts = append(parts, eofMarker("before"))
	}
	for _, message := range sorted {
		parts = append(parts, serializeMessage(message))
	}
	if w.eofAfter {
		parts = append(parts, eofMarker("after"))
	}

	return joinSerialized(parts)
}

// SerializedInitial renders just the triggering message.
func (w *MessageWindow) SerializedInitial() string {
	return serializeMessage(w.initial)
}

func (w *MessageWindow) earliest() topics.Message {
	sorted := w.Sorted()
	return sorted[0]
}

func (w *MessageWindow) latest() topics.Message {
	sorted := w.Sorted()
	return sorted[len(sorted)-1]
}
