// Package chat defines what the bot needs from a chat platform and the
// helpers shared by every transport.
package chat

import (
	"context"
	"time"
)

// ChannelType tags where a message was posted.
type ChannelType string

const (
	Direct  ChannelType = "D"
	Open    ChannelType = "O"
	Private ChannelType = "P"
)

// PostTypeAttachment marks posts whose content lives in attachment blocks.
const PostTypeAttachment = "slack_attachment"

type Post struct {
	ID          string
	UserID      string
	ChannelID   string
	RootID      string
	Message     string
	Type        string
	CreateAt    time.Time
	Attachments []Attachment
	Reactions   []Reaction
}

type Attachment struct {
	Title string
	Text  string
}

type Reaction struct {
	UserID string
	Emoji  string
}

// Event is an inbound message together with what the platform knows about its channel.
type Event struct {
	Post               Post
	ChannelType        ChannelType
	ChannelDisplayName string
	SenderName         string
	Mentioned          bool
}

// OutgoingPost is a message the bot wants to publish. An empty RootID starts a new root post.
type OutgoingPost struct {
	ChannelID string
	RootID    string
	Message   string
	FileIDs   []string
	Props     map[string]any
}

// Handler receives inbound events. Transports call it on their own goroutines.
type Handler func(ctx context.Context, ev Event)

// Platform is the chat-platform collaborator.
type Platform interface {
	// Me returns the bot's own user id and username.
	Me(ctx context.Context) (id, username string, err error)
	// ThreadPosts returns the thread containing rootID, oldest first.
	ThreadPosts(ctx context.Context, channelID, rootID string) ([]Post, error)
	// ChannelPosts returns the newest channel posts created at or after since,
	// at most limit of them, oldest first. Transports page back as far as needed.
	ChannelPosts(ctx context.Context, channelID string, since time.Time, limit int) ([]Post, error)
	CreatePost(ctx context.Context, p OutgoingPost) (*Post, error)
	Typing(ctx context.Context, channelID, parentID string) error
	DisplayName(ctx context.Context, userID string) (string, error)
	// Listen delivers events to h until ctx is cancelled or the connection fails for good.
	Listen(ctx context.Context, h Handler) error
}

// Since drops posts created before t.
func Since(posts []Post, t time.Time) []Post {
	out := posts[:0:0]
	for _, p := range posts {
		if !p.CreateAt.Before(t) {
			out = append(out, p)
		}
	}
	return out
}
