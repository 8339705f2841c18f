package faq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/lorebot/lorebot/internal/discord"
	"github.com/lorebot/lorebot/internal/llm"
	"github.com/lorebot/lorebot/internal/topics"
)

const (
	// defaultExpandLoopMax bounds the context-expansion loop. Exceeding it is
	// fatal for the sequence.
	defaultExpandLoopMax = 15

	// seedFetchLimit is how many neighbors the initial around-fetch pulls in.
	seedFetchLimit = 10

	// expandFetchLimit is how many more messages each expansion call fetches.
	expandFetchLimit = 5
)

// RecordState is the terminal state of a record sequence.
type RecordState string

// Terminal record states.
const (
	RecordCreated     RecordState = "created"
	RecordUpdated     RecordState = "updated"
	RecordOverwritten RecordState = "overwritten"
)

// RecordOutcome reports what the record sequence did and to which topic.
type RecordOutcome struct {
	State RecordState
	Topic *topics.Topic
}

// Recorder turns a triggering chat message into a durable topic: it expands
// the surrounding context under model direction, refines it, summarizes it,
// and integrates the result with existing topics.
type Recorder struct {
	provider llm.Provider
	store    TopicStore
	fetcher  MessageFetcher
	loopMax  int
	logger   *slog.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(provider llm.Provider, store TopicStore, fetcher MessageFetcher, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		provider: provider,
		store:    store,
		fetcher:  fetcher,
		loopMax:  defaultExpandLoopMax,
		logger:   logger,
	}
}

func userMsg(content string) llm.Message {
	return llm.Message{Role: llm.RoleUser, Content: content}
}

// toolResultMsg is the synthetic acknowledgement appended after a dispatched
// tool call.
func toolResultMsg() llm.Message {
	return llm.Message{Role: llm.RoleTool, Content: "done"}
}

func firstCall(resp *llm.Message) *llm.ToolCall {
	if resp == nil || len(resp.ToolCalls) == 0 {
		return nil
	}
	return &resp.ToolCalls[0]
}

// Record runs the sequence and discards the outcome. It satisfies the
// seeder's recorder contract.
func (r *Recorder) Record(ctx context.Context, message *discordgo.Message, status func(string)) error {
	_, err := r.Execute(ctx, message, status)
	return err
}

// Execute runs the record sequence for the triggering message. status
// receives human-readable stage labels as the sequence progresses; nil
// disables reporting. Only the first tool call of each model turn is
// dispatched, the rest are ignored.
func (r *Recorder) Execute(ctx context.Context, message *discordgo.Message, status func(string)) (*RecordOutcome, error) {
	if status == nil {
		status = func(string) {}
	}

	window := NewMessageWindow(r.fetcher, message)
	topicWindow := NewTopicWindow(r.store, window.Initial().GuildID, window)
	session := llm.NewSession(r.provider)

	status("Analyzing message...")

	if err := window.Expand(ctx, discord.Around, seedFetchLimit); err != nil {
		return nil, err
	}

	if err := r.expandContext(ctx, session, window, status); err != nil {
		return nil, err
	}

	status("Refining context...")
	session.Forget()

	if err := r.refineContext(ctx, session, window); err != nil {
		return nil, err
	}

	status("Summarizing topic...")
	session.Forget()

	resp, err := session.Send(ctx, userMsg(summarizationPrompt(window.SerializedInitial(), window.Serialized())))
	if err != nil {
		return nil, err
	}
	summary := resp.Content

	status("Checking for similar topics...")

	topicWindow.SetSummary(summary)
	if err := topicWindow.FindSimilar(ctx); err != nil {
		return nil, err
	}

	return r.integrate(ctx, session, window, topicWindow, status)
}

// expandContext runs the bounded context-expansion loop. The direction enum
// shrinks as history exhausts; once both sides hit end-of-history the tool is
// withheld entirely, so the model cannot keep asking.
func (r *Recorder) expandContext(ctx context.Context, session *llm.Session, window *MessageWindow, status func(string)) error {
	resp, err := session.Send(ctx,
		userMsg(contextExpansionPrompt(window.SerializedInitial(), window.Serialized())),
		expansionTools(window)...)
	if err != nil {
		return err
	}

	call := firstCall(resp)
	for iterations := 1; call != nil; iterations++ {
		if iterations > r.loopMax {
			return fmt.Errorf("context expansion exceeded %d iterations", r.loopMax)
		}
		if call.Function.Name != "needMoreContext" {
			return &llm.UnknownToolError{Name: call.Function.Name}
		}

		status(fmt.Sprintf("Expanding context (%d)...", iterations))
		session.Append(toolResultMsg())

		var args struct {
			TemporalDirection string `json:"temporalDirection"`
		}
		if err := json.Unmarshal(call.Function.Arguments, &args); err != nil {
			return fmt.Errorf("needMoreContext arguments: %w", err)
		}
		direction := discord.Direction(args.TemporalDirection)
		if direction != discord.Before && direction != discord.After {
			return fmt.Errorf("needMoreContext: invalid direction %q", args.TemporalDirection)
		}

		if err := window.Expand(ctx, direction, expandFetchLimit); err != nil {
			return err
		}

		resp, err = session.Send(ctx,
			userMsg(contextExpansionLoopPrompt(args.TemporalDirection, window.SerializedInitial(), window.Serialized())),
			expansionTools(window)...)
		if err != nil {
			return err
		}
		call = firstCall(resp)
	}

	return nil
}

func expansionTools(window *MessageWindow) []llm.Tool {
	var directions []string
	if !window.EOFBefore() {
		directions = append(directions, "before")
	}
	if !window.EOFAfter() {
		directions = append(directions, "after")
	}
	if len(directions) == 0 {
		return nil
	}
	return []llm.Tool{needMoreContextTool(directions)}
}

func (r *Recorder) refineContext(ctx context.Context, session *llm.Session, window *MessageWindow) error {
	resp, err := session.Send(ctx,
		userMsg(contextRefinementPrompt(window.SerializedInitial(), window.Serialized())),
		removeMessagesTool(window.IDs()))
	if err != nil {
		return err
	}

	call := firstCall(resp)
	if call == nil {
		return nil
	}
	if call.Function.Name != "removeMessages" {
		return &llm.UnknownToolError{Name: call.Function.Name}
	}

	var args struct {
		MessageIDs []string `json:"messageIds"`
	}
	if err := json.Unmarshal(call.Function.Arguments, &args); err != nil {
		return fmt.Errorf("removeMessages arguments: %w", err)
	}

	window.Remove(args.MessageIDs)
	session.Append(toolResultMsg())
	return nil
}

func (r *Recorder) integrate(ctx context.Context, session *llm.Session, window *MessageWindow, topicWindow *TopicWindow, status func(string)) (*RecordOutcome, error) {
	ids := topicWindow.IDs()

	resp, err := session.Send(ctx,
		userMsg(integrationPrompt(topicWindow.Summary(), topicWindow.Serialized())),
		updateExistingTopicTool(ids),
		overwriteExistingTopicTool(ids))
	if err != nil {
		return nil, err
	}

	call := firstCall(resp)
	if call == nil {
		status("Creating new topic...")
		topic, err := topicWindow.CreateTopic(ctx)
		if err != nil {
			return nil, err
		}
		return &RecordOutcome{State: RecordCreated, Topic: topic}, nil
	}

	session.Append(toolResultMsg())

	var args struct {
		ExistingTopicID string `json:"existingTopicId"`
	}
	if err := json.Unmarshal(call.Function.Arguments, &args); err != nil {
		return nil, fmt.Errorf("%s arguments: %w", call.Function.Name, err)
	}

	switch call.Function.Name {
	case "overwriteExistingTopic":
		status("Replacing an old topic...")
		topic, err := topicWindow.OverwriteTopic(ctx, args.ExistingTopicID)
		if err != nil {
			return nil, err
		}
		return &RecordOutcome{State: RecordOverwritten, Topic: topic}, nil

	case "updateExistingTopic":
		status("Merging with another topic...")

		topic, err := topicWindow.MergeInto(ctx, args.ExistingTopicID)
		if err != nil {
			return nil, err
		}

		session.Forget()
		resp, err := session.Send(ctx, userMsg(summarizationPrompt(window.SerializedInitial(), window.Serialized())))
		if err != nil {
			return nil, err
		}
		if err := topicWindow.UpdateSummary(ctx, args.ExistingTopicID, resp.Content); err != nil {
			return nil, err
		}

		status("Finished!")
		return &RecordOutcome{State: RecordUpdated, Topic: topic}, nil

	default:
		return nil, &llm.UnknownToolError{Name: call.Function.Name}
	}
}
