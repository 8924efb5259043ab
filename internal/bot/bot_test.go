package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris/threadbot/internal/agent"
	"github.com/chris/threadbot/internal/chat"
	"github.com/chris/threadbot/internal/command"
	"github.com/chris/threadbot/internal/metrics"
)

type fakePlatform struct {
	mu          sync.Mutex
	thread      []chat.Post
	channel     []chat.Post
	threadCalls []string
	since       []time.Time
	posts       []chat.OutgoingPost
	typing      int
	postErr     error
	username    string
}

func (f *fakePlatform) Me(context.Context) (string, string, error) {
	if f.username != "" {
		return "bot1", f.username, nil
	}
	return "bot1", "chatgpt", nil
}

func (f *fakePlatform) ThreadPosts(_ context.Context, _, rootID string) ([]chat.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threadCalls = append(f.threadCalls, rootID)
	return f.thread, nil
}

func (f *fakePlatform) ChannelPosts(_ context.Context, _ string, since time.Time, _ int) ([]chat.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = append(f.since, since)
	return chat.Since(f.channel, since), nil
}

func (f *fakePlatform) CreatePost(_ context.Context, p chat.OutgoingPost) (*chat.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return nil, f.postErr
	}
	f.posts = append(f.posts, p)
	return &chat.Post{ID: "new", ChannelID: p.ChannelID, RootID: p.RootID, Message: p.Message}, nil
}

func (f *fakePlatform) Typing(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

func (f *fakePlatform) DisplayName(_ context.Context, userID string) (string, error) {
	return userID, nil
}

func (f *fakePlatform) Listen(ctx context.Context, _ chat.Handler) error {
	<-ctx.Done()
	return nil
}

type fakeReplier struct {
	text  string
	err   error
	delay time.Duration
	reqs  []agent.Request
}

func (f *fakeReplier) Reply(ctx context.Context, req agent.Request) (*agent.Reply, error) {
	f.reqs = append(f.reqs, req)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Reply{Text: f.text}, nil
}

type harness struct {
	bot      *Bot
	platform *fakePlatform
	replier  *fakeReplier
	metrics  *metrics.Metrics
	reg      *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	d, _ := newDispatcher(t)
	h := &harness{
		platform: &fakePlatform{},
		replier:  &fakeReplier{text: "Here you go."},
		reg:      prometheus.NewRegistry(),
	}
	h.metrics = metrics.MustNew(h.reg)
	h.bot = New(h.platform, d, h.replier, Options{
		AlertPrompt:  "summary_day",
		ContextPosts: 100,
		Metrics:      h.metrics,
		Now:          func() time.Time { return fridayAfternoon },
	})
	require.NoError(t, h.bot.identify(context.Background()))
	return h
}

func event(text string, opts ...func(*chat.Event)) chat.Event {
	ev := chat.Event{
		Post: chat.Post{
			ID:        "p1",
			ChannelID: "c1",
			UserID:    "u1",
			Message:   text,
			CreateAt:  fridayAfternoon,
		},
		ChannelType:        chat.Open,
		ChannelDisplayName: "ops",
		SenderName:         "ivan",
	}
	for _, o := range opts {
		o(&ev)
	}
	return ev
}

func withMention(ev *chat.Event) { ev.Mentioned = true }
func inRoot(ev *chat.Event)      { ev.Post.RootID = "root1" }
func inDirect(ev *chat.Event)    { ev.ChannelType = chat.Direct }

func TestHandle_DefaultReplyInThread(t *testing.T) {
	h := newHarness(t)
	h.platform.thread = []chat.Post{
		{ID: "old", UserID: "u2", Message: "yesterday", CreateAt: fridayAfternoon.Add(-24 * time.Hour)},
		{ID: "root1", UserID: "u2", Message: "deploy failed", CreateAt: fridayAfternoon.Add(-time.Hour)},
		{ID: "p1", UserID: "u1", Message: "@chatgpt why?", CreateAt: fridayAfternoon},
	}

	h.bot.Handle(context.Background(), event("@chatgpt why?", withMention, inRoot))

	require.Len(t, h.platform.posts, 1)
	assert.Equal(t, chat.OutgoingPost{ChannelID: "c1", RootID: "root1", Message: "Here you go."}, h.platform.posts[0])
	assert.Equal(t, []string{"root1"}, h.platform.threadCalls)

	require.Len(t, h.replier.reqs, 1)
	req := h.replier.reqs[0]
	assert.True(t, req.UseFunctions)
	assert.Equal(t, "ivan", req.User)
	assert.Len(t, req.History, 2, "posts before today's operational day are dropped")
	assert.GreaterOrEqual(t, h.platform.typing, 1)
	assert.Equal(t, 1.0, dispatchCount(h, "persona"))
}

func TestHandle_RootMentionRepliesUnderPost(t *testing.T) {
	h := newHarness(t)
	h.bot.Handle(context.Background(), event("@chatgpt hi", withMention))

	require.Len(t, h.platform.posts, 1)
	assert.Equal(t, "p1", h.platform.posts[0].RootID)
	assert.Equal(t, []string{"p1"}, h.platform.threadCalls)
}

func TestHandle_DirectLooksBackAWeek(t *testing.T) {
	h := newHarness(t)
	h.platform.channel = []chat.Post{
		{ID: "a", UserID: "u1", Message: "ancient", CreateAt: fridayAfternoon.Add(-8 * 24 * time.Hour)},
		{ID: "b", UserID: "u1", Message: "last monday", CreateAt: fridayAfternoon.Add(-4 * 24 * time.Hour)},
		{ID: "p1", UserID: "u1", Message: "and now?", CreateAt: fridayAfternoon},
	}

	h.bot.Handle(context.Background(), event("and now?", inDirect, withMention))

	require.Len(t, h.replier.reqs, 1)
	assert.Len(t, h.replier.reqs[0].History, 2)
	assert.Empty(t, h.platform.threadCalls)
	assert.Equal(t, []time.Time{fridayAfternoon.Add(-7 * 24 * time.Hour)}, h.platform.since)
}

func TestHandle_AlertPromptReadsChannelDay(t *testing.T) {
	h := newHarness(t)
	h.platform.channel = []chat.Post{
		{ID: "a", UserID: "u2", Message: "yesterday's alert", CreateAt: fridayAfternoon.Add(-20 * time.Hour)},
		{ID: "b", UserID: "u2", Message: "disk full", CreateAt: fridayAfternoon.Add(-2 * time.Hour)},
		{ID: "p1", UserID: "u1", Message: "@chatgpt summary_day", CreateAt: fridayAfternoon},
	}

	h.bot.Handle(context.Background(), event("@chatgpt summary_day", withMention))

	require.Len(t, h.replier.reqs, 1)
	assert.False(t, h.replier.reqs[0].UseFunctions)
	assert.Len(t, h.replier.reqs[0].History, 2)
	assert.Empty(t, h.platform.threadCalls)
	assert.Equal(t, 1.0, dispatchCount(h, "prompt"))
}

func TestHandle_CommandPostedVerbatim(t *testing.T) {
	h := newHarness(t)
	h.bot.Handle(context.Background(), event("@chatgpt !ping", withMention, inRoot))

	require.Len(t, h.platform.posts, 1)
	assert.Equal(t, "pong", h.platform.posts[0].Message)
	assert.Equal(t, "root1", h.platform.posts[0].RootID)
	assert.Empty(t, h.replier.reqs, "commands never reach the model")
	assert.GreaterOrEqual(t, h.platform.typing, 1)
}

func TestHandle_CommandErrorApologizes(t *testing.T) {
	h := newHarness(t)
	h.bot.dispatcher.Commands.Register(command.Command{
		Name:   "!ping",
		Scopes: []chat.ChannelType{chat.Open},
		Handler: func(context.Context, command.Request) (command.Result, error) {
			return command.Result{}, errors.New("database is locked")
		},
	})

	h.bot.Handle(context.Background(), event("!ping", withMention))

	require.Len(t, h.platform.posts, 1)
	assert.Equal(t, Apology, h.platform.posts[0].Message)
}

func TestHandle_StripsAccountMentionNotPersona(t *testing.T) {
	h := newHarness(t)
	h.platform.username = "helper"
	require.NoError(t, h.bot.identify(context.Background()))
	require.Equal(t, "@chatgpt", h.bot.dispatcher.BotName)

	h.bot.Handle(context.Background(), event("@helper !help", withMention, func(ev *chat.Event) {
		ev.ChannelType = chat.Direct
	}))

	require.Len(t, h.platform.posts, 1)
	assert.Contains(t, h.platform.posts[0].Message, "Available commands")
	assert.Empty(t, h.replier.reqs)
	assert.Equal(t, 1.0, dispatchCount(h, "command"))
}

func TestHandle_ScopeViolationNotice(t *testing.T) {
	h := newHarness(t)
	h.bot.Handle(context.Background(), event("@chatgpt !help", withMention))

	require.Len(t, h.platform.posts, 1)
	assert.Contains(t, h.platform.posts[0].Message, "only available in direct messages")
	assert.Empty(t, h.replier.reqs)
	assert.Equal(t, 1.0, dispatchCount(h, "scope_violation"))
}

func TestHandle_Ignored(t *testing.T) {
	h := newHarness(t)

	h.bot.Handle(context.Background(), event("@chatgpt @channel standup in 5", withMention))
	h.bot.Handle(context.Background(), event("just chatting"))
	own := event("@chatgpt hi", withMention)
	own.Post.UserID = "bot1"
	h.bot.Handle(context.Background(), own)

	assert.Empty(t, h.platform.posts)
	assert.Empty(t, h.replier.reqs)
	assert.Equal(t, 3.0, dispatchCount(h, "ignored"))
}

func TestHandle_SystemPostDropped(t *testing.T) {
	h := newHarness(t)
	ev := event("@chatgpt added to the channel", withMention)
	ev.Post.Type = "system_add_to_channel"

	h.bot.Handle(context.Background(), ev)

	assert.Empty(t, h.platform.posts)
	assert.Zero(t, h.platform.typing)
}

func TestHandle_CompletionErrorApologizes(t *testing.T) {
	h := newHarness(t)
	h.replier.err = errors.New("rate limited")

	h.bot.Handle(context.Background(), event("@chatgpt hi", withMention))

	require.Len(t, h.platform.posts, 1)
	assert.Equal(t, Apology, h.platform.posts[0].Message)
}

func TestHandle_TimeoutStillApologizes(t *testing.T) {
	h := newHarness(t)
	h.bot.opts.RequestTimeout = 20 * time.Millisecond
	h.replier.delay = time.Second

	h.bot.Handle(context.Background(), event("@chatgpt hi", withMention))

	require.Len(t, h.platform.posts, 1)
	assert.Equal(t, Apology, h.platform.posts[0].Message)
}

func TestHandle_PostFailureIsContained(t *testing.T) {
	h := newHarness(t)
	h.platform.postErr = errors.New("mattermost is down")

	assert.NotPanics(t, func() {
		h.bot.Handle(context.Background(), event("@chatgpt hi", withMention))
	})
}

func TestTyping_HeartbeatUntilStopped(t *testing.T) {
	h := newHarness(t)
	h.bot.typingInterval = 5 * time.Millisecond

	stop := h.bot.typing(context.Background(), h.bot.opts.Logger, chat.Post{ID: "p1", ChannelID: "c1"})
	time.Sleep(30 * time.Millisecond)
	stop()

	h.platform.mu.Lock()
	n := h.platform.typing
	h.platform.mu.Unlock()
	assert.GreaterOrEqual(t, n, 2, "issued immediately and again on the interval")

	time.Sleep(20 * time.Millisecond)
	h.platform.mu.Lock()
	defer h.platform.mu.Unlock()
	assert.Equal(t, n, h.platform.typing, "no typing after stop")
}

func TestRun_ListensUntilCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, h.bot.Run(ctx))
	assert.Equal(t, "bot1", h.bot.botID)
}

func dispatchCount(h *harness, outcome string) float64 {
	families, err := h.reg.Gather()
	if err != nil {
		return -1
	}
	for _, f := range families {
		if f.GetName() != "threadbot_dispatch_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
