// Package agent turns instructions and a conversation into one reply,
// running tool rounds when the caller allows function calling.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chris/threadbot/internal/db"
	"github.com/chris/threadbot/internal/llm"
	"github.com/chris/threadbot/internal/schedule"
)

const maxToolRounds = 10

// faqToolResults is how many FAQ lines search_faq hands the model.
const faqToolResults = 3

// kickoff stands in for the conversation when there is none, as with
// reminders that fire without history.
const kickoff = "Follow your instructions now."

// FAQSearcher finds FAQ lines relevant to a question.
type FAQSearcher interface {
	Query(ctx context.Context, query string, n int) ([]string, error)
}

// PromptLister lists the stored prompts a user can see.
type PromptLister interface {
	ListVisiblePrompts(ctx context.Context, user string) ([]db.Prompt, error)
}

// Tools backs the functions offered to the model. Nil fields make the
// matching tool report that it is unavailable.
type Tools struct {
	FAQ      FAQSearcher
	Prompts  PromptLister
	Builtins []string
	Now      func() time.Time
}

type Agent struct {
	client           llm.Client
	tools            Tools
	logger           *slog.Logger
	MaxContextTokens int
}

func New(client llm.Client, maxContextTokens int, tools Tools, logger *slog.Logger) *Agent {
	if tools.Now == nil {
		tools.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{client: client, tools: tools, logger: logger, MaxContextTokens: maxContextTokens}
}

// Request is one completion.
type Request struct {
	Instructions string
	History      []llm.Message
	UseFunctions bool
	// User is whose private prompts list_prompts may reveal.
	User string
}

type Reply struct {
	Text       string
	ToolRounds int
}

// Reply runs the completion loop and returns the model's final text.
func (a *Agent) Reply(ctx context.Context, req Request) (*Reply, error) {
	messages := make([]llm.Message, len(req.History), len(req.History)+1)
	copy(messages, req.History)
	if len(messages) == 0 {
		messages = append(messages, llm.Message{Role: "user", Content: kickoff})
	}

	var tools []llm.Tool
	if req.UseFunctions {
		tools = llm.AssistantTools
	}

	// Fixed costs: instructions + tool definitions.
	fixedTokens := llm.EstimateTokens(req.Instructions) + llm.EstimateToolsTokens(tools)
	messageBudget := a.MaxContextTokens - fixedTokens
	if messageBudget < 1000 {
		messageBudget = 1000 // floor so the newest turns always fit
	}

	for round := 0; round < maxToolRounds; round++ {
		trimmed := llm.TrimMessages(messages, messageBudget)
		if len(trimmed) < len(messages) {
			a.logger.Debug("context trimmed", "from", len(messages), "to", len(trimmed))
		}
		resp, err := a.client.Chat(ctx, req.Instructions, trimmed, tools)
		if err != nil {
			return nil, fmt.Errorf("llm chat: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			return &Reply{Text: resp.Content, ToolRounds: round}, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			result := a.executeTool(ctx, req.User, tc.Name, tc.Params)
			a.logger.Debug("tool call", "tool", tc.Name, "result", truncate(result, 200))
			messages = append(messages, llm.Message{
				Role:       "user",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	return &Reply{Text: "I hit the maximum number of tool calls without an answer. Please try rephrasing.", ToolRounds: maxToolRounds}, nil
}

func (a *Agent) executeTool(ctx context.Context, user, name string, params map[string]any) string {
	var result any
	var err error

	switch name {
	case "get_time":
		now := a.tools.Now()
		local := now.In(schedule.Location())
		result = map[string]any{
			"local":    local.Format(time.RFC3339),
			"utc":      now.UTC().Format(time.RFC3339),
			"date":     local.Format("2006-01-02"),
			"day":      local.Weekday().String(),
			"timezone": schedule.Zone,
		}

	case "search_faq":
		query, _ := getString(params, "query")
		limit, ok := getInt(params, "limit")
		if !ok || limit < 1 {
			limit = faqToolResults
		}
		switch {
		case a.tools.FAQ == nil:
			result = map[string]any{"error": "the FAQ is not available"}
		case query == "":
			result = map[string]any{"error": "query is required"}
		default:
			var lines []string
			lines, err = a.tools.FAQ.Query(ctx, query, int(limit))
			if err == nil {
				if lines == nil {
					lines = []string{}
				}
				result = map[string]any{"lines": lines}
			}
		}

	case "list_prompts":
		names := append([]string(nil), a.tools.Builtins...)
		if a.tools.Prompts != nil {
			var stored []db.Prompt
			stored, err = a.tools.Prompts.ListVisiblePrompts(ctx, user)
			for _, p := range stored {
				names = append(names, p.Name)
			}
		}
		result = map[string]any{"prompts": names}

	default:
		result = map[string]any{"error": "unknown tool: " + name}
	}

	if err != nil {
		result = map[string]any{"error": err.Error()}
	}

	b, _ := json.Marshal(result) // result is always a simple map; marshal cannot fail
	return string(b)
}

// Param extraction helpers. LLMs send numbers as float64 in JSON.
func getInt(params map[string]any, key string) (int64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func getString(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
