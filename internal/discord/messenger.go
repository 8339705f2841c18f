// Package discord wraps the pieces of the Discord REST surface the agent
// sequences need: message lookup and history paging around an anchor.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Direction selects which side of an anchor message history is fetched from.
type Direction string

// Temporal directions for history fetches.
const (
	Before Direction = "before"
	After  Direction = "after"
	Around Direction = "around"
)

// Session is the subset of *discordgo.Session the messenger uses.
type Session interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// Messenger fetches chat messages by id and by temporal neighborhood.
type Messenger struct {
	session Session
}

// NewMessenger creates a messenger over the given session.
func NewMessenger(session Session) *Messenger {
	return &Messenger{session: session}
}

// Message fetches a single message by id.
func (m *Messenger) Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error) {
	msg, err := m.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch message %s: %w", messageID, err)
	}
	return msg, nil
}

// Messages fetches up to limit messages adjacent to the anchor in the given
// temporal direction. The anchor itself is not included for Before/After; the
// Around variant may include it.
func (m *Messenger) Messages(ctx context.Context, channelID, anchorID string, direction Direction, limit int) ([]*discordgo.Message, error) {
	var beforeID, afterID, aroundID string
	switch direction {
	case Before:
		beforeID = anchorID
	case After:
		afterID = anchorID
	case Around:
		aroundID = anchorID
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}

	messages, err := m.session.ChannelMessages(channelID, limit, beforeID, afterID, aroundID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch messages %s of %s: %w", direction, anchorID, err)
	}
	return messages, nil
}
