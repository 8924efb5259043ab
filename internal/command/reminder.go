package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chris/threadbot/internal/chat"
	"github.com/chris/threadbot/internal/db"
	"github.com/chris/threadbot/internal/schedule"
)

const reminderDescription = `Manage reminders (add, list, delete)

        📌 Usage:
        • !reminder add <HH:mm> <repeat|once> [<days|all>] [<withHistory>] <prompt_name>: create a reminder. Days: sun, mon, tue, wed, thu, fri, sat; ` + "`all`" + ` means business days. Weekends only run when listed explicitly. withHistory (true|false) feeds today's channel messages to the prompt.
        • !reminder list: show active reminders in this channel
        • !reminder delete <prompt_name>: delete a reminder`

const nextRunLayout = "Mon, 15:04"

func (h *handlers) reminderCommand() Command {
	return Command{
		Name:        "!reminder",
		Description: reminderDescription,
		Example:     "\n1. !reminder add 09:00 repeat mon,wed,fri false daily_meeting\n2. !reminder list\n3. !reminder delete daily_meeting",
		Scopes:      []chat.ChannelType{chat.Open, chat.Private},
		Handler:     h.reminder,
	}
}

func (h *handlers) reminder(ctx context.Context, req Request) (Result, error) {
	if req.Post.RootID != "" {
		return notice("⚠️ Reminders can only be managed from the channel itself, not from a thread."), nil
	}

	fields := SplitN(req.Text, 6)
	switch action := field(fields, 1); {
	case action == "add" && len(fields) >= 5:
		return h.addReminder(ctx, req, fields[2:])
	case action == "list":
		return h.listReminders(ctx, req.Post.ChannelID)
	case action == "delete" && field(fields, 2) != "":
		return h.deleteReminder(ctx, req.Post.ChannelID, fields[2])
	}
	return notice(badFormat), nil
}

// reminderSpec is a parsed "!reminder add" argument list.
type reminderSpec struct {
	clock       string
	repeat      bool
	days        []string
	withHistory bool
	prompt      string
}

// parseReminderArgs accepts
//
//	HH:mm repeat|once prompt
//	HH:mm repeat|once days|all prompt
//	HH:mm repeat|once true|false prompt
//	HH:mm repeat|once days|all true|false prompt
func parseReminderArgs(args []string) (reminderSpec, bool) {
	if len(args) < 3 || len(args) > 5 {
		return reminderSpec{}, false
	}
	spec := reminderSpec{clock: args[0], prompt: args[len(args)-1]}
	switch args[1] {
	case "repeat":
		spec.repeat = true
	case "once":
	default:
		return reminderSpec{}, false
	}

	middle := args[2 : len(args)-1]
	if len(middle) > 0 {
		if b, ok := parseBool(middle[len(middle)-1]); ok {
			spec.withHistory = b
			middle = middle[:len(middle)-1]
		}
	}
	switch len(middle) {
	case 0:
	case 1:
		spec.days = parseDays(middle[0])
	default:
		return reminderSpec{}, false
	}
	return spec, spec.prompt != ""
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func parseDays(s string) []string {
	var days []string
	for _, d := range strings.Split(s, ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "all" {
			return append([]string(nil), schedule.BusinessDays...)
		}
		if d != "" {
			days = append(days, d)
		}
	}
	return days
}

func (h *handlers) addReminder(ctx context.Context, req Request, args []string) (Result, error) {
	spec, ok := parseReminderArgs(args)
	if !ok {
		return notice(badFormat), nil
	}
	if _, _, err := schedule.ParseClock(spec.clock); err != nil {
		return notice("⚠️ Time must be in HH:mm format. Example: `!reminder add 09:00 repeat daily_meeting`"), nil
	}
	if !schedule.OnGrid(spec.clock) {
		return notice("⚠️ Time must be a multiple of 5 minutes (for example 09:00, 09:05, 09:10)."), nil
	}

	now := h.Now()
	if spec.days == nil {
		spec.days = schedule.DefaultDays(now, spec.clock)
	}
	if !schedule.ValidDays(spec.days) {
		return notice("⚠️ Invalid weekdays. Use: mon,tue,wed,thu,fri,sat,sun or all."), nil
	}

	p, err := h.Prompts.Resolve(ctx, spec.prompt, req.SenderName)
	if err != nil {
		return Result{}, err
	}
	if p == nil {
		return notice(fmt.Sprintf("⚠️ No prompt named **%s** was found.", spec.prompt)), nil
	}

	existing, err := h.Store.FindActiveReminder(ctx, spec.prompt, req.Post.ChannelID)
	if err != nil {
		return Result{}, fmt.Errorf("checking reminders for %s: %w", spec.prompt, err)
	}
	if existing != nil {
		return notice(fmt.Sprintf("⚠️ A reminder named **%s** already exists.", spec.prompt)), nil
	}

	next, err := schedule.NextRun(now, spec.clock, spec.days)
	if err != nil {
		return notice(badFormat), nil
	}
	_, err = h.Store.CreateReminder(ctx, db.Reminder{
		ChannelID:   req.Post.ChannelID,
		MessageID:   req.Post.ID,
		PromptName:  spec.prompt,
		Time:        spec.clock,
		Repeat:      spec.repeat,
		Days:        spec.days,
		WithHistory: spec.withHistory,
		CreatedBy:   req.SenderName,
		Active:      true,
		CreatedAt:   now,
		RunDate:     next,
	})
	if err != nil {
		return Result{}, fmt.Errorf("creating reminder %s: %w", spec.prompt, err)
	}
	return notice(fmt.Sprintf("🔔 Reminder **%s** set for %s (%s).", spec.prompt, spec.clock, repeatLabel(spec.repeat))), nil
}

// listReminders shows each reminder's next occurrence recomputed from its
// time and days; the stored run date goes stale once a reminder fires.
func (h *handlers) listReminders(ctx context.Context, channelID string) (Result, error) {
	reminders, err := h.Store.ListActiveReminders(ctx, channelID)
	if err != nil {
		return Result{}, fmt.Errorf("listing reminders: %w", err)
	}
	if len(reminders) == 0 {
		return notice("ℹ️ No active reminders."), nil
	}

	now := h.Now()
	lines := make([]string, 0, len(reminders))
	for _, r := range reminders {
		lines = append(lines, fmt.Sprintf("• %s at %s (%s) on %s (next: %s)",
			r.PromptName, r.Time, repeatLabel(r.Repeat), strings.Join(r.Days, ", "), nextOccurrence(now, r)))
	}
	return notice("📋 **Active reminders:**\n" + strings.Join(lines, "\n")), nil
}

func nextOccurrence(now time.Time, r db.Reminder) string {
	next, err := schedule.NextRun(now, r.Time, r.Days)
	if err != nil {
		return "unknown"
	}
	return next.In(schedule.Location()).Format(nextRunLayout) + ", " + humanize.RelTime(next, now, "ago", "from now")
}

func (h *handlers) deleteReminder(ctx context.Context, channelID, name string) (Result, error) {
	r, err := h.Store.FindActiveReminder(ctx, name, channelID)
	if err != nil {
		return Result{}, fmt.Errorf("loading reminder %s: %w", name, err)
	}
	if r == nil {
		return notice(fmt.Sprintf("⚠️ Reminder **%s** not found.", name)), nil
	}
	if err := h.Store.DeactivateReminder(ctx, r.ID, h.Now()); err != nil {
		return Result{}, fmt.Errorf("deactivating reminder %d: %w", r.ID, err)
	}
	return notice(fmt.Sprintf("🗑 Reminder **%s** deleted.", name)), nil
}

func repeatLabel(repeat bool) string {
	if repeat {
		return "repeats"
	}
	return "once"
}
