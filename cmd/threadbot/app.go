package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/chris/threadbot/config"
	"github.com/chris/threadbot/internal/agent"
	"github.com/chris/threadbot/internal/chat"
	"github.com/chris/threadbot/internal/db"
	"github.com/chris/threadbot/internal/discord"
	"github.com/chris/threadbot/internal/faq"
	"github.com/chris/threadbot/internal/llm"
	"github.com/chris/threadbot/internal/mattermost"
	"github.com/chris/threadbot/internal/metrics"
	"github.com/chris/threadbot/internal/prompts"
	"github.com/chris/threadbot/internal/scheduler"
)

// app holds everything the subcommands share.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *db.DB
	prompts  *prompts.Resolver
	faq      *faq.Index
	agent    *agent.Agent
	platform chat.Platform
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func newApp() (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.MustNew(a.registry)

	var err error
	if a.db, err = db.Open(cfg.DatabasePath); err != nil {
		return nil, err
	}
	if a.prompts, err = prompts.New(a.db); err != nil {
		a.Close()
		return nil, err
	}

	embedder, err := faq.NewEmbedder(embeddingClient(cfg), cfg.EmbeddingModel, 0)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.faq, err = faq.Open(cfg.FAQIndexPath, embedder.Embed); err != nil {
		a.Close()
		return nil, err
	}

	client, err := llm.NewClient(llm.ProviderConfig{
		Provider:  cfg.LLMProvider,
		APIKey:    cfg.APIKey(),
		AuthToken: cfg.AnthropicToken,
		Model:     cfg.LLMModel,
		BaseURL:   cfg.OllamaBaseURL,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	client = llm.WithObserver(client, func(elapsed time.Duration, err error) {
		logger.Debug("llm call", "provider", cfg.LLMProvider, "elapsed", elapsed, "err", err)
	})

	builtins := a.prompts.Builtins()
	names := make([]string, 0, len(builtins))
	for _, p := range builtins {
		names = append(names, p.Name)
	}
	a.agent = agent.New(client, cfg.MaxContextTokens, agent.Tools{
		FAQ:      a.faq,
		Prompts:  a.db,
		Builtins: names,
	}, logger)

	if a.platform, err = newPlatform(cfg, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// embeddingClient picks the OpenAI-compatible endpoint FAQ vectors come from.
func embeddingClient(cfg *config.Config) *llm.OpenAIClient {
	if cfg.LLMProvider == "ollama" {
		return llm.NewOpenAIClient("ollama", "", cfg.OllamaBaseURL)
	}
	return llm.NewOpenAIClient(cfg.OpenAIKey, "", "")
}

func newPlatform(cfg *config.Config, logger *slog.Logger) (chat.Platform, error) {
	switch cfg.ChatPlatform {
	case config.Discord:
		return discord.New(cfg.DiscordToken, logger)
	case config.Mattermost:
		return mattermost.New(cfg.MattermostURL, cfg.MattermostToken, logger), nil
	}
	return nil, fmt.Errorf("unknown chat platform %q", cfg.ChatPlatform)
}

func (a *app) scheduler() *scheduler.Scheduler {
	return scheduler.New(a.db, a.prompts, a.platform, a.agent, scheduler.Options{
		DailySpec:    a.cfg.DailySweepCron,
		EntryTimeout: a.cfg.RequestTimeout,
		ContextPosts: a.cfg.ContextPosts,
		Metrics:      a.metrics,
		Logger:       a.logger,
	})
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("closing database", "err", err)
		}
	}
}

func botName(name string) string {
	return "@" + strings.TrimPrefix(name, "@")
}
