// Package llm provides the model backend client, the conversation buffer
// threaded through agent sequences, and the tool-binding layer.
package llm

import (
	"context"
	"encoding/json"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single entry in a model conversation buffer.
type Message struct {
	Role     string
	Content  string
	Thinking string

	// ToolCalls carries structured tool requests issued by the model.
	ToolCalls []ToolCall
}

// ToolCall is a model-issued request to invoke a callable tool.
type ToolCall struct {
	Function ToolCallFunction
}

// ToolCallFunction names the tool and carries its raw JSON arguments.
type ToolCallFunction struct {
	Name      string
	Arguments json.RawMessage
}

// Tool declares a callable operation offered to the model for one turn.
// Parameters is a JSON-schema object; nil means the tool takes no arguments.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Provider is a synchronous chat-completion backend.
//
// Implementations must be safe for concurrent use; distinct sequences may
// issue completions simultaneously.
type Provider interface {
	Chat(ctx context.Context, messages []Message, tools []Tool) (*Message, error)
}
