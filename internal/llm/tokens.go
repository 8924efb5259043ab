package llm

import (
	"encoding/json"
	"unicode/utf8"
)

// charsPerToken approximates tokenizer density. Counting runes rather than
// bytes keeps Cyrillic threads from being billed at twice their size.
const charsPerToken = 4

const (
	messageOverhead  = 4
	toolCallOverhead = 4
	toolDefOverhead  = 10
)

// EstimateTokens returns a rough token count for a string, rounded up.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + charsPerToken - 1) / charsPerToken
}

// EstimateMessageTokens estimates one message including author, tool calls and framing.
func EstimateMessageTokens(m Message) int {
	tokens := messageOverhead + EstimateTokens(m.Content) + EstimateTokens(m.Name)
	for _, tc := range m.ToolCalls {
		tokens += EstimateTokens(tc.Name) + toolCallOverhead
		if params, err := json.Marshal(tc.Params); err == nil {
			tokens += EstimateTokens(string(params))
		}
	}
	if m.ToolCallID != "" {
		tokens += EstimateTokens(m.ToolCallID) + 2
	}
	return tokens
}

func EstimateMessagesTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateMessageTokens(m)
	}
	return total
}

// EstimateToolsTokens estimates the tool definitions sent with a request.
func EstimateToolsTokens(tools []Tool) int {
	total := 0
	for _, t := range tools {
		total += EstimateTokens(t.Name) + EstimateTokens(t.Description) + toolDefOverhead
		if schema, err := json.Marshal(t.Parameters); err == nil {
			total += EstimateTokens(string(schema))
		}
	}
	return total
}
