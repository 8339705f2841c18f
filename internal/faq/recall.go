package faq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lorebot/lorebot/internal/llm"
)

// defaultExchangeLoopMax bounds the exchange execution loop. Exceeding it is
// fatal for the sequence.
const defaultExchangeLoopMax = 20

// Question is one recall request.
type Question struct {
	Text      string
	Timestamp time.Time
	AskerID   string
	GuildID   string
}

// Recaller answers questions by citing previously recorded topics: it plans
// an exchange over the retrieved topic corpus, then executes the plan through
// tool calls that build the block sequence returned to the caller.
type Recaller struct {
	provider llm.Provider
	store    TopicStore
	loopMax  int
	logger   *slog.Logger
}

// NewRecaller creates a recaller.
func NewRecaller(provider llm.Provider, store TopicStore, logger *slog.Logger) *Recaller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recaller{
		provider: provider,
		store:    store,
		loopMax:  defaultExchangeLoopMax,
		logger:   logger,
	}
}

// Execute runs the recall sequence. An empty block sequence means no answer
// was found; the caller substitutes its own fallback. Unlike the record
// sequence, every tool call of a model turn is dispatched, in order.
func (r *Recaller) Execute(ctx context.Context, question Question, status func(string)) ([]Block, error) {
	if status == nil {
		status = func(string) {}
	}

	topicWindow := NewTopicWindow(r.store, question.GuildID, nil)
	if err := topicWindow.FindAnswering(ctx, question.Text); err != nil {
		return nil, err
	}

	status("Planning an exchange...")

	session := llm.NewSession(r.provider)
	exchange := newExchange(topicWindow)

	_, err := session.Send(ctx, userMsg(planExchangePrompt(
		question.Text,
		question.AskerID,
		formatTimestamp(question.Timestamp),
		topicWindow.Serialized(),
	)))
	if err != nil {
		return nil, err
	}

	bindings := r.exchangeBindings(exchange)
	resp, err := session.Send(ctx, userMsg(exchangeLoopStartPrompt()), bindings.Tools()...)
	if err != nil {
		return nil, err
	}

	for iterations := 1; len(resp.ToolCalls) > 0; iterations++ {
		if iterations > r.loopMax {
			return nil, fmt.Errorf("exchange execution exceeded %d iterations", r.loopMax)
		}

		for _, call := range resp.ToolCalls {
			if err := bindings.Dispatch(ctx, call); err != nil {
				return nil, err
			}
			session.Append(toolResultMsg())
		}

		// Rebuilt so the quote tool's id enum excludes everything quoted above.
		bindings = r.exchangeBindings(exchange)
		resp, err = session.Send(ctx,
			userMsg(exchangeLoopPrompt(strings.Join(exchange.log, "\n"))),
			bindings.Tools()...)
		if err != nil {
			return nil, err
		}
	}

	status("Finished!")
	return exchange.blocks, nil
}

func (r *Recaller) exchangeBindings(exchange *exchange) *llm.BindingSet {
	return llm.NewBindingSet(
		llm.Binding{
			Tool: userQuoteTool(exchange.availableIDs()),
			Fn: func(_ context.Context, raw json.RawMessage) error {
				var args struct {
					MessageID    string `json:"messageId"`
					IsNearAnswer bool   `json:"isNearAnswer"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return fmt.Errorf("userQuote arguments: %w", err)
				}
				if err := exchange.userQuote(args.MessageID, args.IsNearAnswer); err != nil {
					// The id enum should prevent this; a miss is skipped, not fatal.
					r.logger.Warn("skipping quote", "error", err)
				}
				return nil
			},
		},
		llm.Binding{
			Tool: separatorTool(),
			Fn: func(context.Context, json.RawMessage) error {
				exchange.separator()
				return nil
			},
		},
		llm.Binding{
			Tool: contextTool(),
			Fn: func(_ context.Context, raw json.RawMessage) error {
				var args struct {
					Content string `json:"content"`
				}
				if err := json.Unmarshal(raw, &args); err != nil {
					return fmt.Errorf("context arguments: %w", err)
				}
				exchange.context(args.Content)
				return nil
			},
		},
	)
}
