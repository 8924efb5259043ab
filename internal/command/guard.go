package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/chris/threadbot/internal/chat"
)

func (h *handlers) guardCommand() Command {
	return Command{
		Name:        "!content_guard",
		Description: "Force a fixed prompt for every message the bot answers in a channel",
		Example:     "\n1. !content_guard set <channel_name> <prompt>\n2. !content_guard list\n3. !content_guard delete <channel_name>",
		Scopes:      []chat.ChannelType{chat.Direct},
		Handler:     h.contentGuard,
	}
}

func (h *handlers) contentGuard(ctx context.Context, req Request) (Result, error) {
	fields := SplitN(req.Text, 3)
	action, channel, prompt := field(fields, 1), field(fields, 2), field(fields, 3)

	switch {
	case action == "set" && channel != "" && prompt != "":
		if err := h.Store.SetGuard(ctx, channel, prompt, req.SenderName); err != nil {
			return Result{}, fmt.Errorf("setting guard for %s: %w", channel, err)
		}
		return notice(fmt.Sprintf("✅ Content guard set for **%s**\n🔹 **Prompt**: %s\n👤 **Added by**: %s", channel, prompt, req.SenderName)), nil

	case action == "list":
		guards, err := h.Store.ListActiveGuards(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("listing guards: %w", err)
		}
		if len(guards) == 0 {
			return notice("ℹ️ No content guards are set."), nil
		}
		items := make([]string, 0, len(guards))
		for _, g := range guards {
			items = append(items, fmt.Sprintf("📌 **Channel**: %s\n🔹 **Prompt**: %s\n👤 **Added by**: %s", g.ChannelDisplayName, g.Prompt, g.CreatedBy))
		}
		return notice("📖 **Active content guards:**\n\n" + strings.Join(items, "\n\n")), nil

	case action == "delete" && channel != "":
		g, err := h.Store.GetGuard(ctx, channel)
		if err != nil {
			return Result{}, fmt.Errorf("loading guard for %s: %w", channel, err)
		}
		if g == nil {
			return notice(fmt.Sprintf("⚠️ No content guard found for **%s**.", channel)), nil
		}
		if g.CreatedBy != req.SenderName {
			return notice("⚠️ You can only delete content guards you added."), nil
		}
		if err := h.Store.DeleteGuard(ctx, g.ID); err != nil {
			return Result{}, fmt.Errorf("deleting guard %d: %w", g.ID, err)
		}
		return notice(fmt.Sprintf("🗑 Content guard for **%s** deleted.", channel)), nil
	}
	return notice(badFormat), nil
}
