package command

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/chris/threadbot/internal/chat"
)

func (r *Registry) helpCommand() Command {
	return Command{
		Name:        "!help",
		Description: "Show this help message",
		Example:     "\n!help",
		Scopes:      []chat.ChannelType{chat.Direct},
		Handler: func(_ context.Context, _ Request) (Result, error) {
			cmds := r.Commands()
			sections := make([]string, 0, len(cmds))
			for _, c := range cmds {
				sections = append(sections, fmt.Sprintf("**%s** - %s\n%s\nExample: %s", c.Name, c.Description, scopeNote(c.Scopes), c.Example))
			}
			return notice("**Available commands:**\n\n" + strings.Join(sections, "\n\n")), nil
		},
	}
}

func scopeNote(scopes []chat.ChannelType) string {
	direct := slices.Contains(scopes, chat.Direct)
	switch {
	case direct && len(scopes) > 1:
		return "🔹 Available in direct messages and channels"
	case direct:
		return "🔹 Available in direct messages"
	default:
		return "🔹 Available in channels (mention the bot)"
	}
}
