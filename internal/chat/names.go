package chat

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// NameTTL is how long a resolved display name is trusted.
const NameTTL = 5 * time.Minute

const nameCacheSize = 1024

var (
	validName   = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	punctuation = regexp.MustCompile(`[.@!?]`)
	nameChars   = regexp.MustCompile(`[a-zA-Z0-9_-]`)
)

// LookupFunc fetches a username from the platform.
type LookupFunc func(ctx context.Context, userID string) (string, error)

// NameCache resolves user ids to sanitised names, caching each for a fixed TTL.
type NameCache struct {
	lookup LookupFunc
	cache  *expirable.LRU[string, string]
}

func NewNameCache(lookup LookupFunc, ttl time.Duration) *NameCache {
	return &NameCache{
		lookup: lookup,
		cache:  expirable.NewLRU[string, string](nameCacheSize, nil, ttl),
	}
}

// Resolve returns the cached name for userID, fetching it on a miss.
func (c *NameCache) Resolve(ctx context.Context, userID string) (string, error) {
	if name, ok := c.cache.Get(userID); ok {
		return name, nil
	}
	raw, err := c.lookup(ctx, userID)
	if err != nil {
		return "", err
	}
	name := SanitizeName(raw)
	c.cache.Add(userID, name)
	return name, nil
}

// SanitizeName makes a username acceptable as an LLM message author:
// 1-64 characters from [a-zA-Z0-9_-].
func SanitizeName(s string) string {
	if validName.MatchString(s) {
		return s
	}
	s = truncateRunes(punctuation.ReplaceAllString(s, "_"), 64)
	if validName.MatchString(s) {
		return s
	}
	return truncateRunes(strings.Join(nameChars.FindAllString(s, -1), ""), 64)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
