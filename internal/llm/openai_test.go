package llm

import (
	"encoding/json"
	"testing"

	"github.com/openai/openai-go/v3"
)

func TestOpenAIMessages_SystemAndNames(t *testing.T) {
	out := openaiMessages("Your name is @chatgpt.", []Message{
		{Role: "user", Name: "alice", Content: "hi"},
		{Role: "user", Content: "anonymous"},
	})
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	if out[0].OfSystem == nil {
		t.Fatalf("first message should be the system turn, got %+v", out[0])
	}
	if out[1].OfUser == nil || out[1].OfUser.Name.Value != "alice" {
		t.Errorf("author not carried in name: %+v", out[1].OfUser)
	}
	if out[1].OfUser.Content.OfString.Value != "hi" {
		t.Errorf("text = %q, want %q", out[1].OfUser.Content.OfString.Value, "hi")
	}
	if out[2].OfUser == nil || out[2].OfUser.Name.Valid() {
		t.Errorf("unnamed user turn should leave name unset: %+v", out[2].OfUser)
	}
}

func TestOpenAIMessages_NoSystemTurnWhenEmpty(t *testing.T) {
	out := openaiMessages("", []Message{{Role: "user", Content: "hi"}})
	if len(out) != 1 || out[0].OfUser == nil {
		t.Errorf("expected a lone user turn, got %+v", out)
	}
}

func TestOpenAIMessages_ToolExchange(t *testing.T) {
	out := openaiMessages("", []Message{
		{Role: "user", Content: "what time is it?"},
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "t1", Name: "get_time"}}},
		{Role: "user", Content: `{"local":"12:00"}`, ToolCallID: "t1"},
		{Role: "assistant", Content: "Noon."},
	})
	if len(out) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(out))
	}
	call := out[1].OfAssistant
	if call == nil || len(call.ToolCalls) != 1 {
		t.Fatalf("expected assistant tool call, got %+v", out[1])
	}
	fn := call.ToolCalls[0].OfFunction
	if fn.ID != "t1" || fn.Function.Name != "get_time" || fn.Function.Arguments != "{}" {
		t.Errorf("tool call = %+v", fn)
	}
	if out[2].OfTool == nil || out[2].OfTool.ToolCallID != "t1" {
		t.Errorf("expected tool result, got %+v", out[2])
	}
	if out[3].OfAssistant == nil || len(out[3].OfAssistant.ToolCalls) != 0 {
		t.Errorf("expected plain assistant turn, got %+v", out[3])
	}
}

func TestOpenAITools(t *testing.T) {
	if got := openaiTools(nil); got != nil {
		t.Errorf("expected nil tools, got %v", got)
	}
	got := openaiTools(AssistantTools)
	if len(got) != len(AssistantTools) {
		t.Fatalf("expected %d tools, got %d", len(AssistantTools), len(got))
	}
	if got[0].OfFunction == nil || got[0].OfFunction.Function.Name != AssistantTools[0].Name {
		t.Errorf("first tool = %+v", got[0])
	}
}

func TestFromOpenAIMessage(t *testing.T) {
	var msg openai.ChatCompletionMessage
	raw := `{"role":"assistant","content":"checking","refusal":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"search_faq","arguments":"{\"query\":\"vpn\"}"}}]}`
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	resp := fromOpenAIMessage(msg)
	if resp.Content != "checking" {
		t.Errorf("content = %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "c1" || tc.Name != "search_faq" || tc.Params["query"] != "vpn" {
		t.Errorf("tool call = %+v", tc)
	}
}
