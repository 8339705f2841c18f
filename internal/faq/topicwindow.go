package faq

import (
	"context"
	"fmt"

	"github.com/lorebot/lorebot/internal/topics"
)

// TopicStore is the storage access the sequences need, satisfied by
// *topics.Store.
type TopicStore interface {
	Messages(ctx context.Context, topicID string) ([]topics.Message, error)
	Create(ctx context.Context, guildID, summary string, messages []topics.Message) (*topics.Topic, error)
	Delete(ctx context.Context, id string) error
	Merge(ctx context.Context, topicID string, messages []topics.Message) (*topics.Topic, error)
	UpdateSummary(ctx context.Context, topicID, summary string) error
	Related(ctx context.Context, query, guildID string, limit int) ([]topics.Topic, error)
	RelatedWithMessages(ctx context.Context, query, guildID string, limit int) ([]topics.TopicWithMessages, error)
}

// TopicWindow is the set of existing topics an agent sequence is weighing a
// new summary or question against, plus the candidate summary itself.
type TopicWindow struct {
	store   TopicStore
	guildID string
	window  *MessageWindow

	summary string

	order      []string
	serialized map[string]string
	messages   map[string][]topics.Message
}

// NewTopicWindow creates a topic window scoped to the message window's guild.
// window may be nil for recall, which never persists.
func NewTopicWindow(store TopicStore, guildID string, window *MessageWindow) *TopicWindow {
	return &TopicWindow{
		store:      store,
		guildID:    guildID,
		window:     window,
		serialized: make(map[string]string),
		messages:   make(map[string][]topics.Message),
	}
}

// SetSummary records the candidate summary for the new topic.
func (t *TopicWindow) SetSummary(summary string) {
	t.summary = summary
}

// Summary returns the candidate summary.
func (t *TopicWindow) Summary() string {
	return t.summary
}

// IDs returns the found topic ids in discovery order.
func (t *TopicWindow) IDs() []string {
	ids := make([]string, len(t.order))
	copy(ids, t.order)
	return ids
}

// Messages returns every message of every found topic, keyed by message id.
func (t *TopicWindow) Messages() map[string]topics.Message {
	all := make(map[string]topics.Message)
	for _, id := range t.order {
		for _, message := range t.messages[id] {
			all[message.MessageID] = message
		}
	}
	return all
}

// Serialized renders the found topics for prompting.
func (t *TopicWindow) Serialized() string {
	parts := make([]string, 0, len(t.order))
	for _, id := range t.order {
		parts = append(parts, t.serialized[id])
	}
	return joinSerialized(parts)
}

func (t *TopicWindow) add(id, serialized string, messages []topics.Message) {
	if _, ok := t.serialized[id]; !ok {
		t.order = append(t.order, id)
	}
	t.serialized[id] = serialized
	if messages != nil {
		t.messages[id] = messages
	}
}

// FindSimilar populates the window with topics related to the candidate
// summary, without their messages.
func (t *TopicWindow) FindSimilar(ctx context.Context) error {
	found, err := t.store.Related(ctx, t.summary, t.guildID, 0)
	if err != nil {
		return fmt.Errorf("find similar topics: %w", err)
	}
	for _, topic := range found {
		t.add(topic.ID, serializeTopic(topic), nil)
	}
	return nil
}

// FindAnswering populates the window with topics related to the question,
// including their messages.
func (t *TopicWindow) FindAnswering(ctx context.Context, question string) error {
	found, err := t.store.RelatedWithMessages(ctx, question, t.guildID, 0)
	if err != nil {
		return fmt.Errorf("find answering topics: %w", err)
	}
	for _, topic := range found {
		t.add(topic.ID, serializeTopicWithMessages(topic), topic.Messages)
	}
	return nil
}

// CreateTopic persists the candidate summary and the current message window
// as a brand-new topic.
func (t *TopicWindow) CreateTopic(ctx context.Context) (*topics.Topic, error) {
	return t.store.Create(ctx, t.guildID, t.summary, t.window.Sorted())
}

// OverwriteTopic deletes the existing topic and persists the candidate in its
// place.
func (t *TopicWindow) OverwriteTopic(ctx context.Context, existingID string) (*topics.Topic, error) {
	if err := t.store.Delete(ctx, existingID); err != nil {
		return nil, fmt.Errorf("overwrite topic %s: %w", existingID, err)
	}
	return t.CreateTopic(ctx)
}

// MergeInto pulls the existing topic's messages into the message window and
// persists the combined set against the existing topic id.
func (t *TopicWindow) MergeInto(ctx context.Context, existingID string) (*topics.Topic, error) {
	existing, err := t.store.Messages(ctx, existingID)
	if err != nil {
		return nil, fmt.Errorf("fetch existing topic messages: %w", err)
	}
	t.window.Merge(existing)

	topic, err := t.store.Merge(ctx, existingID, t.window.Sorted())
	if err != nil {
		return nil, fmt.Errorf("merge into topic %s: %w", existingID, err)
	}
	return topic, nil
}

// UpdateSummary persists a re-generated summary for the existing topic.
func (t *TopicWindow) UpdateSummary(ctx context.Context, existingID, summary string) error {
	return t.store.UpdateSummary(ctx, existingID, summary)
}
