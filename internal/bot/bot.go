package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chris/threadbot/internal/agent"
	"github.com/chris/threadbot/internal/chat"
	"github.com/chris/threadbot/internal/command"
	"github.com/chris/threadbot/internal/metrics"
	"github.com/chris/threadbot/internal/schedule"
)

// Apology replaces any reply that failed to materialise.
const Apology = "Sorry, but I encountered an internal error when trying to process your message"

const (
	defaultTimeout        = 2 * time.Minute
	defaultTypingInterval = 2 * time.Second
	directLookBack        = 7 * 24 * time.Hour
	apologyTimeout        = 10 * time.Second
)

// Replier produces the model's answer to a conversation.
type Replier interface {
	Reply(ctx context.Context, req agent.Request) (*agent.Reply, error)
}

type Options struct {
	// AlertPrompt is the prompt whose replies read the channel's whole day
	// instead of a thread.
	AlertPrompt    string
	ContextPosts   int
	RequestTimeout time.Duration
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	Now            func() time.Time
}

// Bot answers chat events. Each call to Handle is one independent unit of work.
type Bot struct {
	platform   chat.Platform
	dispatcher *Dispatcher
	replier    Replier
	opts       Options

	typingInterval time.Duration
	botID          string
	// username is the bot's account name on the platform. Mentions use it,
	// while the persona name only shapes the system prompt.
	username       string
}

func New(platform chat.Platform, dispatcher *Dispatcher, replier Replier, opts Options) *Bot {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bot{
		platform:       platform,
		dispatcher:     dispatcher,
		replier:        replier,
		opts:           opts,
		typingInterval: defaultTypingInterval,
	}
}

// Run learns the bot's identity and serves events until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.identify(ctx); err != nil {
		return err
	}
	b.opts.Logger.Info("bot: listening", "bot_id", b.botID, "username", b.username, "persona", b.dispatcher.BotName)
	return b.platform.Listen(ctx, b.Handle)
}

func (b *Bot) identify(ctx context.Context) error {
	id, name, err := b.platform.Me(ctx)
	if err != nil {
		return fmt.Errorf("identifying bot: %w", err)
	}
	b.botID = id
	b.username = name
	if b.dispatcher.BotName == "" {
		b.dispatcher.BotName = name
	}
	return nil
}

// Handle dispatches one inbound event. Failures end in an apology post and
// never reach the caller.
func (b *Bot) Handle(ctx context.Context, ev chat.Event) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.RequestTimeout)
	defer cancel()

	log := b.opts.Logger.With(
		"request", uuid.NewString(),
		"channel", ev.Post.ChannelID,
		"post", ev.Post.ID,
		"sender", ev.SenderName,
	)

	if strings.HasPrefix(ev.Post.Type, "system_") {
		b.opts.Metrics.Dispatch(Ignore.String())
		return
	}

	m := Message{
		Text:        Normalize(ev.Post.Message, b.username),
		Raw:         ev.Post.Message,
		Post:        ev.Post,
		ChannelType: ev.ChannelType,
		ChannelName: ev.ChannelDisplayName,
		SenderName:  ev.SenderName,
		Mentioned:   ev.Mentioned,
		FromBot:     ev.Post.UserID == b.botID,
	}

	d, err := b.dispatcher.Decide(ctx, m)
	if err != nil {
		log.Error("dispatch failed", "err", err)
		b.opts.Metrics.Dispatch("error")
		b.apologize(ctx, log, ev.Post)
		return
	}
	b.opts.Metrics.Dispatch(outcome(d))
	log.Debug("dispatched", "outcome", outcome(d), "prompt", d.Prompt)

	switch d.Kind {
	case Ignore:
	case ScopeViolation:
		b.post(ctx, log, ev.Post, d.Instructions)
	case RunCommand:
		b.runCommand(ctx, log, d.Command, m)
	case Complete:
		b.complete(ctx, log, d, ev)
	}
}

func outcome(d Decision) string {
	if d.Kind == Complete {
		return string(d.Source)
	}
	return d.Kind.String()
}

func (b *Bot) runCommand(ctx context.Context, log *slog.Logger, c command.Command, m Message) {
	stop := b.typing(ctx, log, m.Post)
	res, err := c.Handler(ctx, command.Request{
		Text:        m.Text,
		Post:        m.Post,
		ChannelType: m.ChannelType,
		SenderName:  m.SenderName,
	})
	stop()
	if err != nil {
		log.Error("command failed", "command", c.Name, "err", err)
		b.apologize(ctx, log, m.Post)
		return
	}
	if res.Instructions == "" {
		return
	}
	b.post(ctx, log, m.Post, res.Instructions)
}

func (b *Bot) complete(ctx context.Context, log *slog.Logger, d Decision, ev chat.Event) {
	posts, err := b.history(ctx, d, ev)
	if err != nil {
		log.Error("reading history failed", "err", err)
		b.apologize(ctx, log, ev.Post)
		return
	}
	conv := chat.Conversation{BotID: b.botID, Limit: b.opts.ContextPosts, Names: b.platform.DisplayName}

	stop := b.typing(ctx, log, ev.Post)
	start := time.Now()
	reply, err := b.replier.Reply(ctx, agent.Request{
		Instructions: d.Instructions,
		History:      conv.Messages(ctx, posts),
		UseFunctions: d.UseFunctions,
		User:         ev.SenderName,
	})
	stop()
	b.opts.Metrics.ObserveLLM(time.Since(start))
	if err != nil {
		log.Error("completion failed", "err", err)
		b.apologize(ctx, log, ev.Post)
		return
	}
	log.Debug("replied", "tool_rounds", reply.ToolRounds, "posts", len(posts))
	b.post(ctx, log, ev.Post, reply.Text)
}

// history applies the look-back policy: a week of a direct channel, the
// day's posts of a thread, or the day's whole channel for the alert prompt.
func (b *Bot) history(ctx context.Context, d Decision, ev chat.Event) ([]chat.Post, error) {
	now := b.opts.Now()
	dayStart, _ := schedule.DayBounds(now)

	switch {
	case ev.ChannelType == chat.Direct:
		return b.platform.ChannelPosts(ctx, ev.Post.ChannelID, now.Add(-directLookBack), b.opts.ContextPosts)
	case d.Source == FromPrompt && d.Prompt != "" && d.Prompt == b.opts.AlertPrompt:
		return b.platform.ChannelPosts(ctx, ev.Post.ChannelID, dayStart, b.opts.ContextPosts)
	default:
		posts, err := b.platform.ThreadPosts(ctx, ev.Post.ChannelID, threadOf(ev.Post))
		if err != nil {
			return nil, err
		}
		return chat.Since(posts, dayStart), nil
	}
}

// typing keeps the typing indicator alive until the returned func is called.
func (b *Bot) typing(ctx context.Context, log *slog.Logger, p chat.Post) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	send := func() {
		if err := b.platform.Typing(ctx, p.ChannelID, threadOf(p)); err != nil && ctx.Err() == nil {
			log.Debug("typing failed", "err", err)
		}
	}

	send()
	go func() {
		defer close(done)
		t := time.NewTicker(b.typingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				send()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (b *Bot) post(ctx context.Context, log *slog.Logger, to chat.Post, message string) {
	_, err := b.platform.CreatePost(ctx, chat.OutgoingPost{
		ChannelID: to.ChannelID,
		RootID:    threadOf(to),
		Message:   message,
	})
	if err != nil {
		log.Error("posting reply failed", "err", err)
	}
}

// apologize posts Apology even when ctx has already expired.
func (b *Bot) apologize(ctx context.Context, log *slog.Logger, to chat.Post) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), apologyTimeout)
	defer cancel()
	b.post(ctx, log, to, Apology)
}

// threadOf returns the root a reply to p belongs under.
func threadOf(p chat.Post) string {
	if p.RootID != "" {
		return p.RootID
	}
	return p.ID
}
