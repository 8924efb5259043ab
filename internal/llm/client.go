// Package llm wraps the chat completion providers behind one small interface
// and carries the tool catalogue the assistant exposes to them.
package llm

import "context"

// Client is a chat completion backend.
type Client interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message, tools []Tool) (*Response, error)
}

// Message is one turn of a conversation. Role is "user" or "assistant"; a
// user turn with ToolCallID set carries a tool result back to the model.
type Message struct {
	Role       string     `json:"role"`
	Name       string     `json:"name,omitempty"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// Tool describes a function the model may call. Parameters is a JSON Schema object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type Response struct {
	Content   string
	ToolCalls []ToolCall
}
