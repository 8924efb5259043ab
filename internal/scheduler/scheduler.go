// Package scheduler runs the end-of-day scheduled-prompt sweep and the
// five-minute reminder sweep.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/chris/threadbot/internal/agent"
	"github.com/chris/threadbot/internal/chat"
	"github.com/chris/threadbot/internal/db"
	"github.com/chris/threadbot/internal/metrics"
	"github.com/chris/threadbot/internal/schedule"
)

const (
	// DefaultDailySpec is 22:00 operational time.
	DefaultDailySpec = "0 22 * * *"
	ReminderSpec     = "*/5 * * * *"

	defaultEntryTimeout = 2 * time.Minute
)

// Sweep names, also used as metric labels.
const (
	Daily     = "daily"
	Reminders = "reminders"
)

type Store interface {
	ListDueScheduledPrompts(ctx context.Context, from, to time.Time) ([]db.ScheduledPrompt, error)
	MarkScheduledPromptFinished(ctx context.Context, id int64, at time.Time) error
	ListRemindersAt(ctx context.Context, clock string) ([]db.Reminder, error)
	DeactivateReminder(ctx context.Context, id int64, at time.Time) error
	RescheduleReminder(ctx context.Context, id int64, next time.Time) error
}

type PromptResolver interface {
	Resolve(ctx context.Context, name, user string) (*db.Prompt, error)
}

type Replier interface {
	Reply(ctx context.Context, req agent.Request) (*agent.Reply, error)
}

type Options struct {
	DailySpec    string
	EntryTimeout time.Duration
	ContextPosts int
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Now          func() time.Time
}

// SweepStats summarises one pass.
type SweepStats struct {
	Due     int
	Done    int
	Skipped int
	Failed  int
}

type Scheduler struct {
	cron     *cron.Cron
	store    Store
	prompts  PromptResolver
	platform chat.Platform
	replier  Replier
	opts     Options
}

func New(store Store, prompts PromptResolver, platform chat.Platform, replier Replier, opts Options) *Scheduler {
	if opts.DailySpec == "" {
		opts.DailySpec = DefaultDailySpec
	}
	if opts.EntryTimeout <= 0 {
		opts.EntryTimeout = defaultEntryTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := cron.VerbosePrintfLogger(slog.NewLogLogger(opts.Logger.Handler(), slog.LevelDebug))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(schedule.Location()),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		store:    store,
		prompts:  prompts,
		platform: platform,
		replier:  replier,
		opts:     opts,
	}
}

// Start registers both sweeps and starts the cron loop. Sweeps run with ctx
// as their parent.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.opts.DailySpec, func() { s.RunDailySweep(ctx) }); err != nil {
		return fmt.Errorf("scheduling daily sweep %q: %w", s.opts.DailySpec, err)
	}
	if _, err := s.cron.AddFunc(ReminderSpec, func() { s.RunReminderSweep(ctx) }); err != nil {
		return fmt.Errorf("scheduling reminder sweep: %w", err)
	}
	s.cron.Start()
	s.opts.Logger.Info("scheduler started", "daily", s.opts.DailySpec, "reminders", ReminderSpec, "tz", schedule.Zone)
	return nil
}

// Stop halts the cron loop and waits for running sweeps to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunDailySweep applies every unfinished prompt scheduled for today to its thread.
func (s *Scheduler) RunDailySweep(ctx context.Context) SweepStats {
	log := s.opts.Logger.With("sweep", Daily, "run", uuid.NewString())
	now := s.opts.Now()
	from, to := schedule.DayBounds(now)

	var stats SweepStats
	due, err := s.store.ListDueScheduledPrompts(ctx, from, to)
	if err != nil {
		log.Error("listing scheduled prompts", "err", err)
		return stats
	}
	stats.Due = len(due)

	botID, err := s.botID(ctx)
	if err != nil {
		log.Error("identifying bot", "err", err)
		stats.Failed = len(due)
		return stats
	}

	for _, sp := range due {
		res := s.runScheduled(ctx, log.With("id", sp.ID, "prompt", sp.PromptName, "thread", sp.ThreadID), botID, sp)
		stats.count(res)
		s.opts.Metrics.SweepEntry(Daily, res)
	}
	log.Info("daily sweep finished", "due", stats.Due, "done", stats.Done, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats
}

func (s *Scheduler) runScheduled(ctx context.Context, log *slog.Logger, botID string, sp db.ScheduledPrompt) string {
	ctx, cancel := context.WithTimeout(ctx, s.opts.EntryTimeout)
	defer cancel()

	p, err := s.prompts.Resolve(ctx, sp.PromptName, sp.SenderName)
	if err != nil {
		log.Error("resolving prompt", "err", err)
		return failed
	}
	if p == nil {
		log.Debug("prompt no longer exists")
		return skipped
	}

	posts, err := s.platform.ThreadPosts(ctx, sp.ChannelID, sp.ThreadID)
	if err != nil {
		log.Error("reading thread", "err", err)
		return failed
	}
	text, err := s.reply(ctx, botID, p.Text, posts, sp.SenderName)
	if err != nil {
		log.Error("completion failed", "err", err)
		return failed
	}
	if _, err := s.platform.CreatePost(ctx, chat.OutgoingPost{ChannelID: sp.ChannelID, RootID: sp.ThreadID, Message: text}); err != nil {
		log.Error("posting result", "err", err)
		return failed
	}
	if err := s.store.MarkScheduledPromptFinished(ctx, sp.ID, s.opts.Now()); err != nil {
		log.Error("marking finished", "err", err)
		return failed
	}
	log.Debug("scheduled prompt delivered")
	return done
}

// RunReminderSweep fires the reminders set for the current five-minute slot.
func (s *Scheduler) RunReminderSweep(ctx context.Context) SweepStats {
	now := s.opts.Now()
	clock := schedule.Clock(now)
	log := s.opts.Logger.With("sweep", Reminders, "run", uuid.NewString(), "clock", clock)

	var stats SweepStats
	all, err := s.store.ListRemindersAt(ctx, clock)
	if err != nil {
		log.Error("listing reminders", "err", err)
		return stats
	}
	var due []db.Reminder
	for _, r := range all {
		if schedule.ActiveOn(r.Days, now) {
			due = append(due, r)
		}
	}
	stats.Due = len(due)
	if len(due) == 0 {
		return stats
	}

	botID, err := s.botID(ctx)
	if err != nil {
		log.Error("identifying bot", "err", err)
		stats.Failed = len(due)
		return stats
	}

	for _, r := range due {
		res := s.fireReminder(ctx, log.With("id", r.ID, "prompt", r.PromptName, "channel", r.ChannelID), botID, r)
		stats.count(res)
		s.opts.Metrics.SweepEntry(Reminders, res)
	}
	log.Info("reminder sweep finished", "due", stats.Due, "done", stats.Done, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats
}

func (s *Scheduler) fireReminder(ctx context.Context, log *slog.Logger, botID string, r db.Reminder) string {
	ctx, cancel := context.WithTimeout(ctx, s.opts.EntryTimeout)
	defer cancel()

	p, err := s.prompts.Resolve(ctx, r.PromptName, r.CreatedBy)
	if err != nil {
		log.Error("resolving prompt", "err", err)
		return failed
	}
	if p == nil {
		log.Debug("prompt no longer exists")
		return skipped
	}

	var posts []chat.Post
	if r.WithHistory {
		dayStart, _ := schedule.DayBounds(s.opts.Now())
		if posts, err = s.platform.ChannelPosts(ctx, r.ChannelID, dayStart, s.opts.ContextPosts); err != nil {
			log.Error("reading channel", "err", err)
			return failed
		}
	}

	text, err := s.reply(ctx, botID, p.Text, posts, r.CreatedBy)
	if err != nil {
		log.Error("completion failed", "err", err)
		return failed
	}
	if _, err := s.platform.CreatePost(ctx, chat.OutgoingPost{ChannelID: r.ChannelID, Message: text}); err != nil {
		log.Error("posting reminder", "err", err)
		return failed
	}
	if !r.Repeat {
		if err := s.store.DeactivateReminder(ctx, r.ID, s.opts.Now()); err != nil {
			log.Error("deactivating one-shot reminder", "err", err)
			return failed
		}
		log.Debug("reminder delivered")
		return done
	}
	// run_date is informational; failing to record it does not undo the delivery.
	next, err := schedule.NextRun(s.opts.Now().Add(time.Minute), r.Time, r.Days)
	if err == nil {
		err = s.store.RescheduleReminder(ctx, r.ID, next)
	}
	if err != nil {
		log.Warn("recording next run", "err", err)
	}
	log.Debug("reminder delivered", "next", next)
	return done
}

func (s *Scheduler) reply(ctx context.Context, botID, instructions string, posts []chat.Post, user string) (string, error) {
	conv := chat.Conversation{BotID: botID, Limit: s.opts.ContextPosts, Names: s.platform.DisplayName}
	start := time.Now()
	reply, err := s.replier.Reply(ctx, agent.Request{
		Instructions: instructions,
		History:      conv.Messages(ctx, posts),
		User:         user,
	})
	s.opts.Metrics.ObserveLLM(time.Since(start))
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

func (s *Scheduler) botID(ctx context.Context) (string, error) {
	id, _, err := s.platform.Me(ctx)
	return id, err
}

const (
	done    = "done"
	skipped = "skipped"
	failed  = "failed"
)

func (st *SweepStats) count(result string) {
	switch result {
	case done:
		st.Done++
	case skipped:
		st.Skipped++
	case failed:
		st.Failed++
	}
}
