package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Binding pairs a callable tool schema with the session mutator it drives.
//
// Bindings are regenerated every turn: the schema's enum-restricted id lists
// describe the valid id set of that turn only, so a binding set is built from
// current window state immediately before each completion request.
type Binding struct {
	Tool Tool
	Fn   func(ctx context.Context, args json.RawMessage) error
}

// UnknownToolError reports a model tool call naming no bound tool. It is a
// data-integrity error, surfaced rather than silently ignored.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool call name not recognized: %q", e.Name)
}

// BindingSet is the closed set of tools offered for a single turn, with a
// dispatch table from call name to bound mutator.
type BindingSet struct {
	order  []string
	byName map[string]Binding
}

// NewBindingSet builds a binding set preserving declaration order.
func NewBindingSet(bindings ...Binding) *BindingSet {
	set := &BindingSet{byName: make(map[string]Binding, len(bindings))}
	for _, b := range bindings {
		if _, ok := set.byName[b.Tool.Name]; !ok {
			set.order = append(set.order, b.Tool.Name)
		}
		set.byName[b.Tool.Name] = b
	}
	return set
}

// Tools returns the tool schemas in declaration order, for the completion
// request of this turn.
func (s *BindingSet) Tools() []Tool {
	tools := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		tools = append(tools, s.byName[name].Tool)
	}
	return tools
}

// Dispatch invokes the bound mutator for one tool call.
func (s *BindingSet) Dispatch(ctx context.Context, call ToolCall) error {
	binding, ok := s.byName[call.Function.Name]
	if !ok {
		return &UnknownToolError{Name: call.Function.Name}
	}
	return binding.Fn(ctx, call.Function.Arguments)
}
