package llm

import (
	"context"
	"fmt"
	"time"
)

type ProviderConfig struct {
	Provider  string
	APIKey    string
	AuthToken string // OAuth token (Bearer auth)
	Model     string
	BaseURL   string
}

func NewClient(cfg ProviderConfig) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.AuthToken, cfg.Model), nil
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, ""), nil
	case "ollama":
		if cfg.Model == "" {
			cfg.Model = "llama3.1"
		}
		return NewOpenAIClient("ollama", cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}

// Observer is told how long each completion took and whether it failed.
type Observer func(elapsed time.Duration, err error)

type observedClient struct {
	Client
	observe Observer
}

// WithObserver wraps c so every Chat call is reported to observe.
func WithObserver(c Client, observe Observer) Client {
	if observe == nil {
		return c
	}
	return &observedClient{Client: c, observe: observe}
}

func (o *observedClient) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []Tool) (*Response, error) {
	start := time.Now()
	resp, err := o.Client.Chat(ctx, systemPrompt, messages, tools)
	o.observe(time.Since(start), err)
	return resp, err
}
