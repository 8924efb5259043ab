// Package command holds the operator commands the bot answers without
// consulting the model. A Registry is built once at startup and handed to
// the dispatcher.
package command

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/chris/threadbot/internal/chat"
	"github.com/chris/threadbot/internal/db"
)

// Result is what a command wants posted back.
type Result struct {
	Instructions string
	UseFunctions bool
}

// Request is one command invocation. Text has the bot mention stripped.
type Request struct {
	Text        string
	Post        chat.Post
	ChannelType chat.ChannelType
	SenderName  string
}

// HandlerFunc runs a command. Bad input is answered through Result; an error
// means a collaborator failed.
type HandlerFunc func(ctx context.Context, req Request) (Result, error)

type Command struct {
	Name        string
	Description string
	Example     string
	Scopes      []chat.ChannelType
	Handler     HandlerFunc
}

// Allows reports whether the command may run in a channel of type t.
func (c Command) Allows(t chat.ChannelType) bool {
	return slices.Contains(c.Scopes, t)
}

// Store is the persistence the commands need.
type Store interface {
	GetGuard(ctx context.Context, channel string) (*db.ChannelGuard, error)
	ListActiveGuards(ctx context.Context) ([]db.ChannelGuard, error)
	SetGuard(ctx context.Context, channel, prompt, createdBy string) error
	DeleteGuard(ctx context.Context, id int64) error

	GetPrompt(ctx context.Context, name string) (*db.Prompt, error)
	ListVisiblePrompts(ctx context.Context, user string) ([]db.Prompt, error)
	CreatePrompt(ctx context.Context, name, text, visibility, createdBy string) (int64, error)
	DeletePrompt(ctx context.Context, name string) error

	CreateScheduledPrompt(ctx context.Context, sp db.ScheduledPrompt) (int64, error)
	FindOpenScheduledPrompt(ctx context.Context, threadID string, from, to time.Time) (*db.ScheduledPrompt, error)

	CreateReminder(ctx context.Context, r db.Reminder) (int64, error)
	FindActiveReminder(ctx context.Context, promptName, channelID string) (*db.Reminder, error)
	ListActiveReminders(ctx context.Context, channelID string) ([]db.Reminder, error)
	DeactivateReminder(ctx context.Context, id int64, at time.Time) error

	GetFAQ(ctx context.Context, name string) (*db.FAQ, error)
	ListFAQs(ctx context.Context) ([]db.FAQ, error)
	CreateFAQ(ctx context.Context, name, text, createdBy string, at time.Time) (int64, error)
	DeleteFAQ(ctx context.Context, id int64) error
}

// Prompts resolves prompt names across the built-in and stored tiers.
type Prompts interface {
	Resolve(ctx context.Context, name, user string) (*db.Prompt, error)
	IsBuiltin(name string) bool
	Builtin(name string) *db.Prompt
	Builtins() []db.Prompt
}

// FAQIndex is the vector index behind !faq.
type FAQIndex interface {
	Add(ctx context.Context, faqID int64, text string) error
	Delete(ctx context.Context, faqID int64) error
	Query(ctx context.Context, query string, n int) ([]string, error)
}

type Deps struct {
	Store   Store
	Prompts Prompts
	FAQ     FAQIndex
	Now     func() time.Time
	Logger  *slog.Logger
}

type Registry struct {
	order  []string
	byName map[string]Command
}

// NewRegistry returns a registry holding every operator command.
func NewRegistry(d Deps) *Registry {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	r := &Registry{byName: make(map[string]Command)}
	h := &handlers{Deps: d}

	r.Register(r.helpCommand())
	r.Register(h.guardCommand())
	r.Register(h.promptCommand())
	r.Register(h.scheduleCommand())
	r.Register(h.reminderCommand())
	r.Register(h.faqCommand())
	return r
}

// Register adds c, replacing any command with the same name in place.
func (r *Registry) Register(c Command) {
	if _, ok := r.byName[c.Name]; !ok {
		r.order = append(r.order, c.Name)
	}
	r.byName[c.Name] = c
}

// Lookup finds the command named by a message's leading token. Matching is case-sensitive.
func (r *Registry) Lookup(token string) (Command, bool) {
	c, ok := r.byName[token]
	return c, ok
}

// Commands returns the registered commands in registration order.
func (r *Registry) Commands() []Command {
	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

type handlers struct {
	Deps
}

const badFormat = "⚠️ Invalid command format. Use `!help` for reference."

func notice(s string) Result {
	return Result{Instructions: s}
}
