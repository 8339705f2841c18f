package faq

import (
	"fmt"
	"sort"

	"github.com/lorebot/lorebot/internal/topics"
)

// Block is one renderable element of a recall exchange. The caller decides
// how blocks map onto the chat platform's presentation.
type Block interface {
	block()
}

// QuoteBlock cites a recorded message. NearAnswer marks leads that do not
// fully answer the question.
type QuoteBlock struct {
	Message    topics.Message
	NearAnswer bool
}

// SeparatorBlock visually divides unrelated quote clusters.
type SeparatorBlock struct{}

// ContextBlock is a short guiding sentence introducing the next quotes.
type ContextBlock struct {
	Text string
}

func (QuoteBlock) block()     {}
func (SeparatorBlock) block() {}
func (ContextBlock) block()   {}

// exchange accumulates the linear block sequence the model composes through
// tool calls. It also keeps the running log re-fed to the model each turn.
type exchange struct {
	messages map[string]topics.Message
	blocks   []Block
	quoted   map[string]bool
	log      []string
}

func newExchange(window *TopicWindow) *exchange {
	return &exchange{
		messages: window.Messages(),
		quoted:   make(map[string]bool),
	}
}

// availableIDs returns the quotable message ids, excluding ones already
// quoted, in timestamp order.
func (e *exchange) availableIDs() []string {
	available := make([]topics.Message, 0, len(e.messages))
	for id, message := range e.messages {
		if e.quoted[id] {
			continue
		}
		available = append(available, message)
	}
	sort.Slice(available, func(i, j int) bool {
		return available[i].Timestamp.Before(available[j].Timestamp)
	})

	ids := make([]string, len(available))
	for i, message := range available {
		ids[i] = message.MessageID
	}
	return ids
}

func (e *exchange) userQuote(messageID string, nearAnswer bool) error {
	message, ok := e.messages[messageID]
	if !ok {
		return fmt.Errorf("unknown message id %q", messageID)
	}

	e.blocks = append(e.blocks, QuoteBlock{Message: message, NearAnswer: nearAnswer})
	e.quoted[messageID] = true

	if nearAnswer {
		e.log = append(e.log, fmt.Sprintf("userQuote(%s, isNearAnswer: true)", messageID))
	} else {
		e.log = append(e.log, fmt.Sprintf("userQuote(%s)", messageID))
	}
	return nil
}

func (e *exchange) separator() {
	e.blocks = append(e.blocks, SeparatorBlock{})
	e.log = append(e.log, "separator()")
}

func (e *exchange) context(text string) {
	e.blocks = append(e.blocks, ContextBlock{Text: text})
	e.log = append(e.log, fmt.Sprintf("context(%q)", text))
}
