package mattermost

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/tidwall/gjson"

	"github.com/chris/threadbot/internal/chat"
)

// Listen streams "posted" events to h, reconnecting with exponential backoff
// until ctx is cancelled. Each event is handled on its own goroutine.
func (c *Client) Listen(ctx context.Context, h chat.Handler) error {
	botID, _, err := c.Me(ctx)
	if err != nil {
		return fmt.Errorf("mattermost: identifying bot: %w", err)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	b := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: true}
	for {
		connected, err := c.stream(ctx, botID, func(ev chat.Event) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h(ctx, ev)
			}()
		})
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			b.Reset()
		}
		wait := b.Duration()
		c.logger.Warn("mattermost: websocket disconnected", "err", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// stream runs one websocket session. connected reports whether the
// handshake succeeded, so the caller knows to reset its backoff.
func (c *Client) stream(ctx context.Context, botID string, emit func(chat.Event)) (connected bool, err error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, websocketURL(c.baseURL), header)
	if err != nil {
		return false, fmt.Errorf("dialing websocket: %w", err)
	}
	defer conn.Close()

	challenge := map[string]any{
		"seq":    1,
		"action": "authentication_challenge",
		"data":   map[string]string{"token": c.token},
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return false, fmt.Errorf("authenticating websocket: %w", err)
	}
	c.logger.Info("mattermost: websocket connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return true, ctx.Err()
			}
			return true, fmt.Errorf("reading websocket: %w", err)
		}
		if ev, ok := parseEvent(msg, botID); ok {
			emit(ev)
		}
	}
}

func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/v4/websocket"
}

// parseEvent decodes a "posted" websocket event. Other events and system
// posts (joins, header changes) are dropped.
func parseEvent(msg []byte, botID string) (chat.Event, bool) {
	ev := gjson.ParseBytes(msg)
	if ev.Get("event").String() != "posted" {
		return chat.Event{}, false
	}
	data := ev.Get("data")

	// data.post and data.mentions are JSON documents encoded as strings.
	postJSON := data.Get("post").String()
	if postJSON == "" {
		return chat.Event{}, false
	}
	post := parsePost(gjson.Parse(postJSON))
	if strings.HasPrefix(post.Type, "system_") {
		return chat.Event{}, false
	}

	var mentions []string
	for _, m := range gjson.Parse(data.Get("mentions").String()).Array() {
		mentions = append(mentions, m.String())
	}

	return chat.Event{
		Post:               post,
		ChannelType:        chat.ChannelType(data.Get("channel_type").String()),
		ChannelDisplayName: data.Get("channel_display_name").String(),
		SenderName:         strings.TrimPrefix(data.Get("sender_name").String(), "@"),
		Mentioned:          slices.Contains(mentions, botID),
	}, true
}
