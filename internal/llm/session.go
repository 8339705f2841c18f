package llm

import "context"

// Session holds the ordered conversation buffer one agent sequence threads
// through its turns. It is not safe for concurrent use; a sequence owns its
// session exclusively and all turns are strictly sequential.
type Session struct {
	provider Provider
	messages []Message
}

// NewSession creates an empty session backed by the given provider.
func NewSession(provider Provider) *Session {
	return &Session{provider: provider}
}

// Append adds a message to the buffer without requesting a completion.
// Used for synthetic tool-result entries between turns.
func (s *Session) Append(msg Message) {
	s.messages = append(s.messages, msg)
}

// Send appends the message and flushes the buffer to the model, optionally
// offering tools for this turn.
func (s *Session) Send(ctx context.Context, msg Message, tools ...Tool) (*Message, error) {
	s.messages = append(s.messages, msg)
	return s.Flush(ctx, tools...)
}

// Flush requests a completion over the current buffer. The model's thinking
// trace, when present, is appended back into the buffer as an assistant note
// ahead of the response itself.
func (s *Session) Flush(ctx context.Context, tools ...Tool) (*Message, error) {
	resp, err := s.provider.Chat(ctx, s.messages, tools)
	if err != nil {
		return nil, err
	}

	if resp.Thinking != "" {
		s.messages = append(s.messages, Message{
			Role:    RoleAssistant,
			Content: "Thinking:\n" + resp.Thinking,
		})
	}
	s.messages = append(s.messages, *resp)

	return resp, nil
}

// Forget discards the buffer, giving the next turn a fresh context.
func (s *Session) Forget() {
	s.messages = s.messages[:0]
}

// History returns the current buffer contents.
func (s *Session) History() []Message {
	return s.messages
}
