package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestBindingSetDispatch(t *testing.T) {
	var gotArgs string
	set := NewBindingSet(
		Binding{
			Tool: Tool{Name: "mark"},
			Fn: func(_ context.Context, raw json.RawMessage) error {
				gotArgs = string(raw)
				return nil
			},
		},
	)

	call := ToolCall{Function: ToolCallFunction{Name: "mark", Arguments: json.RawMessage(`{"id":"m1"}`)}}
	if err := set.Dispatch(context.Background(), call); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if gotArgs != `{"id":"m1"}` {
		t.Errorf("arguments = %s", gotArgs)
	}
}

func TestBindingSetUnknownTool(t *testing.T) {
	set := NewBindingSet(Binding{Tool: Tool{Name: "known"}, Fn: func(context.Context, json.RawMessage) error { return nil }})

	err := set.Dispatch(context.Background(), ToolCall{Function: ToolCallFunction{Name: "mystery"}})
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) {
		t.Fatalf("Dispatch error = %v, want UnknownToolError", err)
	}
	if unknown.Name != "mystery" {
		t.Errorf("unknown name = %q", unknown.Name)
	}
}

func TestBindingSetToolOrder(t *testing.T) {
	noop := func(context.Context, json.RawMessage) error { return nil }
	set := NewBindingSet(
		Binding{Tool: Tool{Name: "first"}, Fn: noop},
		Binding{Tool: Tool{Name: "second"}, Fn: noop},
		Binding{Tool: Tool{Name: "third"}, Fn: noop},
	)

	tools := set.Tools()
	want := []string{"first", "second", "third"}
	for i, name := range want {
		if tools[i].Name != name {
			t.Errorf("tools[%d] = %q, want %q", i, tools[i].Name, name)
		}
	}
}
