package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

// OpenAIClient talks to the chat completions API or any server that mimics it.
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}
	return &OpenAIClient{client: openai.NewClient(opts...), model: model}
}

func (c *OpenAIClient) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []Tool) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: openaiMessages(systemPrompt, messages),
		Tools:    openaiTools(tools),
	}
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(completion.Choices) == 0 {
		return &Response{}, nil
	}
	return fromOpenAIMessage(completion.Choices[0].Message), nil
}

// openaiMessages prepends the system turn. Authors travel in the name field
// rather than the text so the model never echoes "alice:" prefixes.
func openaiMessages(systemPrompt string, messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}
	for _, m := range messages {
		switch {
		case m.Role == "user" && m.ToolCallID != "":
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case m.Role == "user":
			user := openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{OfString: param.NewOpt(m.Content)},
			}
			if m.Name != "" {
				user.Name = param.NewOpt(m.Name)
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfUser: &user})
		case m.Role == "assistant" && len(m.ToolCalls) == 0:
			out = append(out, openai.AssistantMessage(m.Content))
		case m.Role == "assistant":
			assistant := openai.ChatCompletionAssistantMessageParam{
				Content: openai.ChatCompletionAssistantMessageParamContentUnion{OfString: param.NewOpt(m.Content)},
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openaiToolCall(tc))
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return out
}

func openaiToolCall(tc ToolCall) openai.ChatCompletionMessageToolCallUnionParam {
	args, err := json.Marshal(tc.Params)
	if err != nil || tc.Params == nil {
		args = []byte("{}")
	}
	return openai.ChatCompletionMessageToolCallUnionParam{
		OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: string(args),
			},
		},
	}
}

// openaiTools returns nil for an empty set; the API rejects an empty tools array.
func openaiTools(tools []Tool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}
	return out
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) *Response {
	resp := &Response{Content: msg.Content}
	for _, call := range msg.ToolCalls {
		fn := call.AsFunction()
		args := map[string]any{}
		_ = json.Unmarshal([]byte(fn.Function.Arguments), &args)
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: fn.ID, Name: fn.Function.Name, Params: args})
	}
	return resp
}

// Embed returns the embedding of text as float32, the precision vector stores work in.
func (c *OpenAIClient) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embedding: empty response")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
