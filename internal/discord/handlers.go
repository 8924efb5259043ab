package discord

import (
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/chris/threadbot/internal/chat"
)

func (b *Bot) event(s *discordgo.Session, m *discordgo.Message) (chat.Event, bool) {
	if m.Author == nil {
		return chat.Event{}, false
	}
	var ch *discordgo.Channel
	if m.GuildID != "" {
		var err error
		if ch, err = s.State.Channel(m.ChannelID); err != nil {
			if ch, err = s.Channel(m.ChannelID); err != nil {
				b.logger.Warn("discord: unknown channel", "channel", m.ChannelID, "err", err)
				return chat.Event{}, false
			}
		}
		if ch.IsThread() && ch.ParentID != "" {
			if parent, err := s.State.Channel(ch.ParentID); err == nil {
				ch = threadOf(ch, parent)
			}
		}
	}
	return toEvent(m, ch, s.State.User.ID, s.State.User.Username), true
}

// threadOf returns a copy of thread named after its parent, so content
// guards keyed by channel name cover the parent's threads too.
func threadOf(thread, parent *discordgo.Channel) *discordgo.Channel {
	c := *thread
	c.Name = parent.Name
	return &c
}

// toEvent maps a Discord message onto the platform-neutral event. ch is nil
// for DMs. Mentions of the bot are rewritten to "@name" so commands and
// prompt names parse the same way they do on Mattermost.
func toEvent(m *discordgo.Message, ch *discordgo.Channel, botID, botName string) chat.Event {
	ev := chat.Event{SenderName: m.Author.Username}

	rootID := ""
	switch {
	case ch == nil:
		ev.ChannelType = chat.Direct
		ev.Mentioned = true
	case ch.Type == discordgo.ChannelTypeGuildPrivateThread:
		ev.ChannelType = chat.Private
		rootID = ch.ID
	case ch.IsThread():
		ev.ChannelType = chat.Open
		rootID = ch.ID
	default:
		ev.ChannelType = chat.Open
	}
	if ch != nil {
		ev.ChannelDisplayName = ch.Name
		for _, u := range m.Mentions {
			if u.ID == botID {
				ev.Mentioned = true
			}
		}
	}

	ev.Post = toPost(m, rootID)
	ev.Post.Message = strings.TrimSpace(replaceMention(ev.Post.Message, botID, "@"+botName))
	return ev
}

func toPost(m *discordgo.Message, rootID string) chat.Post {
	p := chat.Post{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		RootID:    rootID,
		Message:   m.Content,
		CreateAt:  m.Timestamp,
	}
	if m.Author != nil {
		p.UserID = m.Author.ID
	}
	if len(m.Embeds) > 0 && strings.TrimSpace(m.Content) == "" {
		p.Type = chat.PostTypeAttachment
		for _, e := range m.Embeds {
			p.Attachments = append(p.Attachments, chat.Attachment{Title: e.Title, Text: e.Description})
		}
	}
	return p
}

func replaceMention(s, userID, with string) string {
	s = strings.ReplaceAll(s, "<@"+userID+">", with)
	s = strings.ReplaceAll(s, "<@!"+userID+">", with)
	return s
}

// splitMessage cuts s into chunks of at most limit runes, breaking after
// the last newline inside the window when there is one.
func splitMessage(s string, limit int) []string {
	var chunks []string
	for utf8.RuneCountInString(s) > limit {
		cut := runeOffset(s, limit)
		if nl := strings.LastIndexByte(s[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		chunks = append(chunks, s[:cut])
		s = s[cut:]
	}
	return append(chunks, s)
}

// runeOffset returns the byte index just past the first n runes of s.
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
