package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/chris/threadbot/internal/llm"
	"github.com/chris/threadbot/internal/schedule"
)

// DefaultContextPosts is how many trailing posts reach the model by default.
const DefaultContextPosts = 2500

const timestampLayout = "02-01-2006 15:04:05"

// Conversation turns platform posts into model messages. Bot posts become
// assistant turns; everything else is a user turn tagged with its author and
// prefixed with the post time.
type Conversation struct {
	BotID string
	Limit int
	Names LookupFunc
}

func (c Conversation) Messages(ctx context.Context, posts []Post) []llm.Message {
	limit := c.Limit
	if limit <= 0 {
		limit = DefaultContextPosts
	}
	if len(posts) > limit {
		posts = posts[len(posts)-limit:]
	}

	msgs := make([]llm.Message, 0, len(posts))
	for _, p := range posts {
		content := c.render(ctx, p)
		if p.UserID == c.BotID {
			msgs = append(msgs, llm.Message{Role: "assistant", Content: content})
			continue
		}
		msgs = append(msgs, llm.Message{
			Role:    "user",
			Name:    c.name(ctx, p.UserID),
			Content: p.CreateAt.In(schedule.Location()).Format(timestampLayout) + " " + content,
		})
	}
	return msgs
}

func (c Conversation) render(ctx context.Context, p Post) string {
	var parts []string
	if p.Type == PostTypeAttachment && len(p.Attachments) > 0 {
		for _, a := range p.Attachments {
			if title := strings.TrimSpace(a.Title); title != "" {
				parts = append(parts, "🔔 "+title)
			}
			if text := strings.TrimSpace(a.Text); text != "" {
				parts = append(parts, text)
			}
		}
	} else if msg := strings.TrimSpace(p.Message); msg != "" {
		parts = append(parts, msg)
	}

	if len(p.Reactions) > 0 {
		var order []string
		byEmoji := map[string][]string{}
		for _, r := range p.Reactions {
			if _, seen := byEmoji[r.Emoji]; !seen {
				order = append(order, r.Emoji)
			}
			byEmoji[r.Emoji] = append(byEmoji[r.Emoji], c.name(ctx, r.UserID))
		}
		lines := make([]string, 0, len(order))
		for _, e := range order {
			lines = append(lines, fmt.Sprintf(":%s: by %s", e, strings.Join(byEmoji[e], ", ")))
		}
		parts = append(parts, "💬 Reactions:\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

func (c Conversation) name(ctx context.Context, userID string) string {
	if c.Names != nil && userID != "" {
		if n, err := c.Names(ctx, userID); err == nil && n != "" {
			return n
		}
	}
	return SanitizeName(userID)
}
