package faq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lorebot/lorebot/internal/discord"
	"github.com/lorebot/lorebot/internal/llm"
	"github.com/lorebot/lorebot/internal/topics"
)

var baseTime = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// dmsg builds a fetched chat message; minute offsets keep timestamps ordered
// by id suffix.
func dmsg(id string, minuteOffset int, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: "chan",
		GuildID:   "guild",
		Content:   content,
		Timestamp: baseTime.Add(time.Duration(minuteOffset) * time.Minute),
		Author:    &discordgo.User{ID: "user-" + id},
	}
}

func tmsg(id string, minuteOffset int, content string) topics.Message {
	return topics.Message{
		MessageID: id,
		GuildID:   "guild",
		ChannelID: "chan",
		AuthorID:  "user-" + id,
		Content:   content,
		Timestamp: baseTime.Add(time.Duration(minuteOffset) * time.Minute),
	}
}

type fetchCall struct {
	anchorID  string
	direction discord.Direction
	limit     int
}

// fakeFetcher pops one scripted batch per Messages call; when the script runs
// dry it returns nothing, which reads as exhausted history.
type fakeFetcher struct {
	batches [][]*discordgo.Message
	calls   []fetchCall
}

func (f *fakeFetcher) Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error) {
	return nil, fmt.Errorf("unexpected Message fetch for %s", messageID)
}

func (f *fakeFetcher) Messages(ctx context.Context, channelID, anchorID string, direction discord.Direction, limit int) ([]*discordgo.Message, error) {
	f.calls = append(f.calls, fetchCall{anchorID: anchorID, direction: direction, limit: limit})
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

// fakeStore is an in-memory TopicStore with scripted similarity results.
type fakeStore struct {
	related     []topics.Topic
	relatedWith []topics.TopicWithMessages

	stored    map[string][]topics.Message
	created   []*topics.Topic
	deleted   []string
	summaries map[string]string
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stored:    make(map[string][]topics.Message),
		summaries: make(map[string]string),
	}
}

func (s *fakeStore) Messages(ctx context.Context, topicID string) ([]topics.Message, error) {
	return s.stored[topicID], nil
}

func (s *fakeStore) Create(ctx context.Context, guildID, summary string, messages []topics.Message) (*topics.Topic, error) {
	s.nextID++
	topic := &topics.Topic{
		ID:      fmt.Sprintf("topic-%d", s.nextID),
		GuildID: guildID,
		Summary: summary,
	}
	s.stored[topic.ID] = messages
	s.created = append(s.created, topic)
	return topic, nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	delete(s.stored, id)
	return nil
}

func (s *fakeStore) Merge(ctx context.Context, topicID string, messages []topics.Message) (*topics.Topic, error) {
	existing := make(map[string]bool)
	for _, m := range s.stored[topicID] {
		existing[m.MessageID] = true
	}
	for _, m := range messages {
		if !existing[m.MessageID] {
			s.stored[topicID] = append(s.stored[topicID], m)
		}
	}
	return &topics.Topic{ID: topicID, GuildID: "guild"}, nil
}

func (s *fakeStore) UpdateSummary(ctx context.Context, topicID, summary string) error {
	s.summaries[topicID] = summary
	return nil
}

func (s *fakeStore) Related(ctx context.Context, query, guildID string, limit int) ([]topics.Topic, error) {
	return s.related, nil
}

func (s *fakeStore) RelatedWithMessages(ctx context.Context, query, guildID string, limit int) ([]topics.TopicWithMessages, error) {
	return s.relatedWith, nil
}

// scriptedProvider plays back canned model turns and records every request.
type scriptedProvider struct {
	responses []*llm.Message
	requests  [][]llm.Message
	tools     [][]llm.Tool
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Message, error) {
	snapshot := make([]llm.Message, len(messages))
	copy(snapshot, messages)
	p.requests = append(p.requests, snapshot)
	p.tools = append(p.tools, tools)

	if len(p.responses) == 0 {
		return textResp("ok"), nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func textResp(content string) *llm.Message {
	return &llm.Message{Role: llm.RoleAssistant, Content: content}
}

func callResp(calls ...llm.ToolCall) *llm.Message {
	return &llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}
}

func call(name, args string) llm.ToolCall {
	return llm.ToolCall{Function: llm.ToolCallFunction{
		Name:      name,
		Arguments: json.RawMessage(args),
	}}
}

// enumOf digs the enum list out of a tool's string property schema.
func enumOf(tool llm.Tool, property string) []string {
	props, ok := tool.Parameters["properties"].(map[string]any)
	if !ok {
		return nil
	}
	field, ok := props[property].(map[string]any)
	if !ok {
		return nil
	}
	enum, _ := field["enum"].([]string)
	return enum
}
