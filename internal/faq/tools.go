package faq

import "github.com/lorebot/lorebot/internal/llm"

// Tool schemas are regenerated every turn: enum-restricted id fields are
// scoped to what is currently valid, so the model can never name something
// outside the window.

func needMoreContextTool(directions []string) llm.Tool {
	return llm.Tool{
		Name:        "needMoreContext",
		Description: "Retrieve more context in the specified temporal direction",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"temporalDirection"},
			"properties": map[string]any{
				"temporalDirection": map[string]any{
					"type":        "string",
					"enum":        directions,
					"description": `The temporal direction to retrieve more context from. "before" retrieves earlier messages, "after" retrieves later messages.`,
				},
			},
		},
	}
}

func removeMessagesTool(ids []string) llm.Tool {
	return llm.Tool{
		Name:        "removeMessages",
		Description: "Remove irrelevant messages from the excerpt to help focus on the main topic",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"messageIds"},
			"properties": map[string]any{
				"messageIds": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string", "enum": ids},
					"description": "An array of message IDs (strings) to remove from the excerpt. Only use message IDs present in the excerpt.",
				},
			},
		},
	}
}

func updateExistingTopicTool(ids []string) llm.Tool {
	return llm.Tool{
		Name:        "updateExistingTopic",
		Description: "Update an existing topic with messages from the new topic and generate a new summary",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"existingTopicId"},
			"properties": map[string]any{
				"existingTopicId": map[string]any{
					"type":        "string",
					"enum":        ids,
					"description": "A topic ID to update with messages from the new topic. Only use a topic ID that is present.",
				},
			},
		},
	}
}

func overwriteExistingTopicTool(ids []string) llm.Tool {
	return llm.Tool{
		Name:        "overwriteExistingTopic",
		Description: "Overwrite an existing topic with the new topic, if old topic is outdated or conflicts with new topic",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"existingTopicId"},
			"properties": map[string]any{
				"existingTopicId": map[string]any{
					"type":        "string",
					"enum":        ids,
					"description": "A topic ID to overwrite with the new topic. Only use a topic ID that is present.",
				},
			},
		},
	}
}

func userQuoteTool(ids []string) llm.Tool {
	return llm.Tool{
		Name:        "userQuote",
		Description: "Add a quoted message from a user",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"messageId"},
			"properties": map[string]any{
				"messageId": map[string]any{
					"type":        "string",
					"enum":        ids,
					"description": "The ID of the message to quote",
				},
				"isNearAnswer": map[string]any{
					"type":        "boolean",
					"description": `Whether to mark this quote as "Maybe Helpful But Not an Answer" (default to false)`,
				},
			},
		},
	}
}

func separatorTool() llm.Tool {
	return llm.Tool{
		Name:        "separator",
		Description: "Add a separator/divider line to visually distinguish the following quote(s) from the previous one(s) (optional, for easier reading)",
	}
}

func contextTool() llm.Tool {
	return llm.Tool{
		Name:        "context",
		Description: "Add brief context to align the asked question with the following quote(s), so the user doesn't need to look back at their question",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"content"},
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "The textual content of the context",
				},
			},
		},
	}
}
