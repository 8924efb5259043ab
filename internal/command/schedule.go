package command

import (
	"context"
	"fmt"

	"github.com/chris/threadbot/internal/chat"
	"github.com/chris/threadbot/internal/db"
	"github.com/chris/threadbot/internal/schedule"
)

func (h *handlers) scheduleCommand() Command {
	return Command{
		Name:        "!schedule_prompt",
		Description: "Apply a prompt to the current thread at the end of the day",
		Example:     "\n1. !schedule_prompt <prompt_name>",
		Scopes:      []chat.ChannelType{chat.Open, chat.Private},
		Handler:     h.schedulePrompt,
	}
}

func (h *handlers) schedulePrompt(ctx context.Context, req Request) (Result, error) {
	name := field(SplitN(req.Text, 1), 1)
	if name == "" {
		return notice("⚠️ Give a prompt name. Example: `!schedule_prompt summary`"), nil
	}
	if req.Post.RootID == "" {
		return notice("⚠️ This command only works inside a thread."), nil
	}

	p, err := h.Prompts.Resolve(ctx, name, req.SenderName)
	if err != nil {
		return Result{}, err
	}
	if p == nil {
		return notice(fmt.Sprintf("⚠️ No prompt named **%s** was found.", name)), nil
	}

	now := h.Now()
	from, to := schedule.DayBounds(now)
	existing, err := h.Store.FindOpenScheduledPrompt(ctx, req.Post.RootID, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("checking scheduled prompts for %s: %w", req.Post.RootID, err)
	}
	if existing != nil {
		return notice(fmt.Sprintf("⚠️ A prompt is already scheduled for this thread today: **%s**.", existing.PromptName)), nil
	}

	_, err = h.Store.CreateScheduledPrompt(ctx, db.ScheduledPrompt{
		ThreadID:   req.Post.RootID,
		ChannelID:  req.Post.ChannelID,
		MessageID:  req.Post.ID,
		SenderName: req.SenderName,
		PromptName: name,
		CreatedAt:  now,
		RunDate:    now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("scheduling %s: %w", name, err)
	}
	return notice(fmt.Sprintf("📌 Prompt **%s** will be applied to this thread at the end of the day.", name)), nil
}
