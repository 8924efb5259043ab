package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Chat platforms.
const (
	Mattermost = "mattermost"
	Discord    = "discord"
)

type Config struct {
	LLMProvider    string // anthropic, openai, ollama
	AnthropicKey   string // API key (X-Api-Key header)
	AnthropicToken string // OAuth token (Authorization: Bearer header)
	OpenAIKey      string
	LLMModel       string
	OllamaBaseURL  string

	ChatPlatform    string // mattermost, discord
	MattermostURL   string
	MattermostToken string
	DiscordToken    string

	DatabasePath     string
	BotName          string
	BotInstruction   string
	ContextPosts     int
	MaxContextTokens int
	RequestTimeout   time.Duration
	DailySweepCron   string
	AlertPrompt      string

	FAQIndexPath   string
	EmbeddingModel string

	MetricsAddr string
	LogLevel    string

	problems []string
}

func Load() *Config {
	_ = godotenv.Load() // ignore error if no .env

	c := &Config{
		LLMProvider:    envOr("LLM_PROVIDER", "anthropic"),
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicToken: os.Getenv("ANTHROPIC_AUTH_TOKEN"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		LLMModel:       os.Getenv("LLM_MODEL"),
		OllamaBaseURL:  envOr("OLLAMA_BASE_URL", "http://localhost:11434/v1"),

		ChatPlatform:    strings.ToLower(envOr("CHAT_PLATFORM", Mattermost)),
		MattermostURL:   strings.TrimRight(os.Getenv("MATTERMOST_URL"), "/"),
		MattermostToken: os.Getenv("MATTERMOST_TOKEN"),
		DiscordToken:    os.Getenv("DISCORD_BOT_TOKEN"),

		DatabasePath:   envOr("DATABASE_PATH", "./data.db"),
		BotName:        envOr("MATTERMOST_BOTNAME", "@chatgpt"),
		BotInstruction: os.Getenv("BOT_INSTRUCTION"),
		DailySweepCron: envOr("DAILY_SWEEP_CRON", "0 22 * * *"),
		AlertPrompt:    envOr("ALERT_PROMPT", "alerts"),

		FAQIndexPath:   envOr("FAQ_INDEX_PATH", "./faq-index"),
		EmbeddingModel: envOr("EMBEDDING_MODEL", "text-embedding-3-small"),

		MetricsAddr: envOr("METRICS_ADDR", ":9090"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
	}
	c.ContextPosts = c.intOr("BOT_CONTEXT_MSG", 2500)
	c.MaxContextTokens = c.intOr("MAX_CONTEXT_TOKENS", 100000)
	c.RequestTimeout = c.durationOr("REQUEST_TIMEOUT", 2*time.Minute)
	return c
}

// Validate reports every setting that would keep the bot from starting.
func (c *Config) Validate() error {
	problems := append([]string(nil), c.problems...)

	switch c.ChatPlatform {
	case Mattermost:
		if c.MattermostURL == "" {
			problems = append(problems, "MATTERMOST_URL is required")
		}
		if c.MattermostToken == "" {
			problems = append(problems, "MATTERMOST_TOKEN is required")
		}
	case Discord:
		if c.DiscordToken == "" {
			problems = append(problems, "DISCORD_BOT_TOKEN is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("CHAT_PLATFORM %q is not one of mattermost, discord", c.ChatPlatform))
	}

	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicKey == "" && c.AnthropicToken == "" {
			problems = append(problems, "ANTHROPIC_API_KEY or ANTHROPIC_AUTH_TOKEN is required")
		}
		// Anthropic has no embeddings endpoint; FAQ vectors come from OpenAI.
		if c.OpenAIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is required for FAQ embeddings")
		}
	case "openai":
		if c.OpenAIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is required")
		}
	case "ollama":
	default:
		problems = append(problems, fmt.Sprintf("LLM_PROVIDER %q is not one of anthropic, openai, ollama", c.LLMProvider))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("config: " + strings.Join(problems, "; "))
}

// APIKey returns the key for the configured provider.
func (c *Config) APIKey() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIKey
	}
	return c.AnthropicKey
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) intOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.problems = append(c.problems, fmt.Sprintf("%s must be a positive integer, got %q", key, v))
		return fallback
	}
	return n
}

func (c *Config) durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		c.problems = append(c.problems, fmt.Sprintf("%s must be a positive duration, got %q", key, v))
		return fallback
	}
	return d
}
