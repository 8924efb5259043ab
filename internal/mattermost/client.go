// Package mattermost is the Mattermost transport: REST v4 calls for history,
// posting and typing, and the websocket event stream for inbound messages.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/chris/threadbot/internal/chat"
)

// maxPerPage is the largest page the channel posts endpoint serves.
const maxPerPage = 200

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
	names   *chat.NameCache

	mu      sync.Mutex
	botID   string
	botName string
}

// New returns a client for the server at baseURL authenticating with a bot token.
func New(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
	c.names = chat.NewNameCache(c.username, chat.NameTTL)
	return c
}

var _ chat.Platform = (*Client)(nil)

// do sends a request to the v4 API and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("mattermost: marshal %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v4"+path, body)
	if err != nil {
		return nil, fmt.Errorf("mattermost: creating request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mattermost: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mattermost: reading %s: %w", path, err)
	}
	if resp.StatusCode >= 300 {
		msg := gjson.GetBytes(data, "message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("mattermost: %s %s: %d %s", method, path, resp.StatusCode, msg)
	}
	return data, nil
}

func (c *Client) Me(ctx context.Context) (string, string, error) {
	c.mu.Lock()
	id, name := c.botID, c.botName
	c.mu.Unlock()
	if id != "" {
		return id, name, nil
	}

	data, err := c.do(ctx, http.MethodGet, "/users/me", nil)
	if err != nil {
		return "", "", err
	}
	me := gjson.ParseBytes(data)
	id, name = me.Get("id").String(), me.Get("username").String()
	if id == "" {
		return "", "", fmt.Errorf("mattermost: /users/me returned no id")
	}

	c.mu.Lock()
	c.botID, c.botName = id, name
	c.mu.Unlock()
	return id, name, nil
}

func (c *Client) ThreadPosts(ctx context.Context, channelID, rootID string) ([]chat.Post, error) {
	data, err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(rootID)+"/thread", nil)
	if err != nil {
		return nil, err
	}
	return parsePostList(data), nil
}

// ChannelPosts pages back from the newest post until it passes since or has
// collected limit posts. A non-positive limit means one full page.
func (c *Client) ChannelPosts(ctx context.Context, channelID string, since time.Time, limit int) ([]chat.Post, error) {
	if limit <= 0 {
		limit = maxPerPage
	}
	perPage := min(limit, maxPerPage)

	var newest []chat.Post
	for page := 0; ; page++ {
		path := fmt.Sprintf("/channels/%s/posts?page=%d&per_page=%d", url.PathEscape(channelID), page, perPage)
		data, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		batch := parsePostList(data)
		done := len(batch) < perPage
		for _, p := range slices.Backward(batch) {
			if p.CreateAt.Before(since) || len(newest) == limit {
				done = true
				break
			}
			newest = append(newest, p)
		}
		if done || len(newest) == limit {
			break
		}
	}
	slices.Reverse(newest)
	return newest, nil
}

func (c *Client) CreatePost(ctx context.Context, p chat.OutgoingPost) (*chat.Post, error) {
	payload := map[string]any{
		"channel_id": p.ChannelID,
		"message":    p.Message,
	}
	if p.RootID != "" {
		payload["root_id"] = p.RootID
	}
	if len(p.FileIDs) > 0 {
		payload["file_ids"] = p.FileIDs
	}
	if len(p.Props) > 0 {
		payload["props"] = p.Props
	}

	data, err := c.do(ctx, http.MethodPost, "/posts", payload)
	if err != nil {
		return nil, err
	}
	post := parsePost(gjson.ParseBytes(data))
	return &post, nil
}

func (c *Client) Typing(ctx context.Context, channelID, parentID string) error {
	payload := map[string]string{"channel_id": channelID}
	if parentID != "" {
		payload["parent_id"] = parentID
	}
	_, err := c.do(ctx, http.MethodPost, "/users/me/typing", payload)
	return err
}

// DisplayName resolves a user id through the five-minute name cache.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	return c.names.Resolve(ctx, userID)
}

func (c *Client) username(ctx context.Context, userID string) (string, error) {
	data, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(data, "username").String(), nil
}

// parsePostList flattens a PostList ({order, posts}) into posts sorted oldest first.
func parsePostList(data []byte) []chat.Post {
	list := gjson.ParseBytes(data)
	posts := list.Get("posts")

	seen := make(map[string]bool)
	var out []chat.Post
	for _, id := range list.Get("order").Array() {
		if seen[id.String()] {
			continue
		}
		seen[id.String()] = true
		raw := posts.Get(gjson.Escape(id.String()))
		if !raw.Exists() {
			continue
		}
		out = append(out, parsePost(raw))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreateAt.Before(out[j].CreateAt) })
	return out
}

func parsePost(p gjson.Result) chat.Post {
	post := chat.Post{
		ID:        p.Get("id").String(),
		UserID:    p.Get("user_id").String(),
		ChannelID: p.Get("channel_id").String(),
		RootID:    p.Get("root_id").String(),
		Message:   p.Get("message").String(),
		Type:      p.Get("type").String(),
		CreateAt:  time.UnixMilli(p.Get("create_at").Int()),
	}
	if orig := p.Get("props.originalMessage"); orig.Exists() {
		post.Message = orig.String()
	}
	for _, a := range p.Get("props.attachments").Array() {
		post.Attachments = append(post.Attachments, chat.Attachment{
			Title: a.Get("title").String(),
			Text:  a.Get("text").String(),
		})
	}
	for _, r := range p.Get("metadata.reactions").Array() {
		post.Reactions = append(post.Reactions, chat.Reaction{
			UserID: r.Get("user_id").String(),
			Emoji:  r.Get("emoji_name").String(),
		})
	}
	return post
}
