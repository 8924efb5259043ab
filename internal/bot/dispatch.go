// Package bot decides how to answer each inbound chat message and carries
// the answer out against the chat platform and the model.
package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/chris/threadbot/internal/chat"
	"github.com/chris/threadbot/internal/command"
	"github.com/chris/threadbot/internal/db"
	"github.com/chris/threadbot/internal/llm"
)

// Kind says what a Decision asks the caller to do.
type Kind int

const (
	// Ignore means no reply and no post.
	Ignore Kind = iota
	// RunCommand means run Decision.Command and post its result verbatim.
	RunCommand
	// ScopeViolation means post Decision.Instructions as a notice.
	ScopeViolation
	// Complete means ask the model using Decision.Instructions.
	Complete
)

func (k Kind) String() string {
	switch k {
	case Ignore:
		return "ignored"
	case RunCommand:
		return "command"
	case ScopeViolation:
		return "scope_violation"
	case Complete:
		return "completion"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Source names what supplied a completion's instructions.
type Source string

const (
	FromGuard   Source = "guard"
	FromPrompt  Source = "prompt"
	FromPersona Source = "persona"
)

// Message is a normalized inbound message.
type Message struct {
	// Text has the bot's mention stripped and is trimmed.
	Text string
	// Raw is the message as posted.
	Raw         string
	Post        chat.Post
	ChannelType chat.ChannelType
	ChannelName string
	SenderName  string
	Mentioned   bool
	FromBot     bool
}

// InThread reports whether the message was posted as a reply.
func (m Message) InThread() bool {
	return m.Post.RootID != ""
}

type Decision struct {
	Kind         Kind
	Source       Source
	Instructions string
	UseFunctions bool
	// Prompt is the resolved prompt name when Source is FromPrompt.
	Prompt  string
	Command command.Command
}

// GuardStore reads content guards.
type GuardStore interface {
	GetGuard(ctx context.Context, channel string) (*db.ChannelGuard, error)
}

// PromptResolver resolves a prompt name for a user.
type PromptResolver interface {
	Resolve(ctx context.Context, name, user string) (*db.Prompt, error)
}

// Dispatcher picks the answer policy for a message. It never posts anything.
type Dispatcher struct {
	Commands    *command.Registry
	Guards      GuardStore
	Prompts     PromptResolver
	BotName     string
	Instruction string
}

var broadcasts = []string{"@here", "@channel", "@everyone"}

// Decide applies, in order: command match with its scope check, the
// channel's content guard, the ignore filter, stored-prompt substitution and
// finally the default persona.
func (d *Dispatcher) Decide(ctx context.Context, m Message) (Decision, error) {
	if token := firstToken(m.Text); token != "" && d.Commands != nil {
		if c, ok := d.Commands.Lookup(token); ok {
			if !c.Allows(m.ChannelType) {
				return Decision{Kind: ScopeViolation, Command: c, Instructions: scopeNotice(c)}, nil
			}
			return Decision{Kind: RunCommand, Command: c}, nil
		}
	}

	if !m.FromBot && (!m.InThread() || m.Mentioned) {
		g, err := d.Guards.GetGuard(ctx, m.ChannelName)
		if err != nil {
			return Decision{}, fmt.Errorf("reading guard for %q: %w", m.ChannelName, err)
		}
		if g != nil && g.ShouldValidate {
			return Decision{Kind: Complete, Source: FromGuard, Instructions: g.Prompt}, nil
		}
	}

	if Ignored(m) {
		return Decision{Kind: Ignore}, nil
	}

	fields := command.SplitN(m.Raw, 2)
	if name := field(fields, 1); name != "" {
		p, err := d.Prompts.Resolve(ctx, name, m.SenderName)
		if err != nil {
			return Decision{}, err
		}
		if p != nil {
			instructions := p.Text
			if rest := strings.TrimSpace(field(fields, 2)); rest != "" {
				instructions += "\n\n" + rest
			}
			return Decision{Kind: Complete, Source: FromPrompt, Prompt: p.Name, Instructions: instructions}, nil
		}
	}

	return Decision{
		Kind:         Complete,
		Source:       FromPersona,
		Instructions: llm.Persona(d.BotName, d.Instruction),
		UseFunctions: true,
	}, nil
}

// Ignored reports whether the bot should stay silent. Broadcasts are
// ignored even when the bot is mentioned.
func Ignored(m Message) bool {
	if !m.InThread() && !m.Mentioned {
		return true
	}
	for _, b := range broadcasts {
		if strings.Contains(m.Raw, b) {
			return true
		}
	}
	if m.FromBot {
		return true
	}
	if m.ChannelType == chat.Direct || m.Mentioned {
		return false
	}
	return true
}

// Normalize strips the bot's @mention from text and trims it.
func Normalize(text, botName string) string {
	if botName != "" {
		text = strings.ReplaceAll(text, "@"+strings.TrimPrefix(botName, "@"), "")
	}
	return strings.TrimSpace(text)
}

func scopeNotice(c command.Command) string {
	scopes := make([]string, 0, len(c.Scopes))
	for _, s := range c.Scopes {
		scopes = append(scopes, scopeName(s))
	}
	return fmt.Sprintf("⚠️ `%s` is only available in %s.", c.Name, strings.Join(scopes, " and "))
}

func scopeName(t chat.ChannelType) string {
	switch t {
	case chat.Direct:
		return "direct messages"
	case chat.Open:
		return "public channels"
	case chat.Private:
		return "private channels"
	}
	return string(t)
}

func firstToken(s string) string {
	return field(command.SplitN(s, 1), 0)
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}
