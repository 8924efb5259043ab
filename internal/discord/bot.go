// Package discord implements the chat platform on a Discord bot session.
// Threads stand in for Mattermost root posts and DMs for direct channels.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/chris/threadbot/internal/chat"
)

// maxMessages is the most ChannelMessages returns in one call.
const maxMessages = 100

// maxMessageLen is Discord's limit on message content.
const maxMessageLen = 2000

type Bot struct {
	session *discordgo.Session
	logger  *slog.Logger
	names   *chat.NameCache
}

func New(token string, logger *slog.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{session: s, logger: logger}
	b.names = chat.NewNameCache(b.username, chat.NameTTL)
	return b, nil
}

var _ chat.Platform = (*Bot)(nil)

func (b *Bot) Me(ctx context.Context) (string, string, error) {
	if u := b.session.State.User; u != nil {
		return u.ID, u.Username, nil
	}
	u, err := b.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", "", fmt.Errorf("discord: fetching bot user: %w", err)
	}
	return u.ID, u.Username, nil
}

// ThreadPosts reads a thread. Threads are channels, so rootID is the thread's channel id.
func (b *Bot) ThreadPosts(ctx context.Context, channelID, rootID string) ([]chat.Post, error) {
	if rootID == "" {
		rootID = channelID
	}
	return b.ChannelPosts(ctx, rootID, time.Time{}, maxMessages)
}

// ChannelPosts walks back through the channel with the before cursor until it
// passes since or has collected limit messages.
func (b *Bot) ChannelPosts(ctx context.Context, channelID string, since time.Time, limit int) ([]chat.Post, error) {
	if limit <= 0 {
		limit = maxMessages
	}
	var newest []chat.Post
	before := ""
	for len(newest) < limit {
		n := min(limit-len(newest), maxMessages)
		// Discord returns newest first.
		msgs, err := b.session.ChannelMessages(channelID, n, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("discord: reading %s: %w", channelID, err)
		}
		for _, m := range msgs {
			if m.Timestamp.Before(since) {
				slices.Reverse(newest)
				return newest, nil
			}
			newest = append(newest, toPost(m, ""))
		}
		if len(msgs) < n {
			break
		}
		before = msgs[len(msgs)-1].ID
	}
	slices.Reverse(newest)
	return newest, nil
}

// CreatePost sends p, split into Discord-sized chunks. A RootID naming a
// message (not the channel itself) makes the first chunk a reply to it.
func (b *Bot) CreatePost(ctx context.Context, p chat.OutgoingPost) (*chat.Post, error) {
	var first *discordgo.Message
	for i, chunk := range splitMessage(p.Message, maxMessageLen) {
		send := &discordgo.MessageSend{Content: chunk}
		if i == 0 && p.RootID != "" && p.RootID != p.ChannelID {
			send.Reference = &discordgo.MessageReference{MessageID: p.RootID, ChannelID: p.ChannelID}
		}
		m, err := b.session.ChannelMessageSendComplex(p.ChannelID, send, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("discord: posting to %s: %w", p.ChannelID, err)
		}
		if first == nil {
			first = m
		}
	}
	post := toPost(first, p.RootID)
	return &post, nil
}

func (b *Bot) Typing(ctx context.Context, channelID, _ string) error {
	return b.session.ChannelTyping(channelID, discordgo.WithContext(ctx))
}

func (b *Bot) DisplayName(ctx context.Context, userID string) (string, error) {
	return b.names.Resolve(ctx, userID)
}

func (b *Bot) username(ctx context.Context, userID string) (string, error) {
	u, err := b.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: fetching user %s: %w", userID, err)
	}
	return u.Username, nil
}

// Listen opens the gateway and delivers messages to h until ctx is cancelled.
func (b *Bot) Listen(ctx context.Context, h chat.Handler) error {
	var wg sync.WaitGroup
	remove := b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		ev, ok := b.event(s, m.Message)
		if !ok {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h(ctx, ev)
		}()
	})
	defer remove()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening Discord connection: %w", err)
	}
	b.logger.Info("discord: connected")

	<-ctx.Done()
	err := b.session.Close()
	wg.Wait()
	return err
}
