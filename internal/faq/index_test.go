package faq

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris/threadbot/internal/db"
)

const dims = 64

// bagOfWords is a deterministic stand-in for a real embedding model: each
// word bumps one hashed dimension, plus a constant so no vector is zero.
func bagOfWords(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, dims+1)
	v[dims] = 0.1
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,?!")))
		v[h.Sum32()%dims]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v, nil
}

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	x, err := Open("", bagOfWords)
	require.NoError(t, err)
	return x
}

func TestIndexAddAndQuery(t *testing.T) {
	x := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, x.Add(ctx, 1, "Ask IT for a VPN token\n\nInstall the VPN client from the portal"))
	require.NoError(t, x.Add(ctx, 2, "Lunch is served at 13:00 in the kitchen"))
	assert.Equal(t, 3, x.Count(), "blank lines are not indexed")

	lines, err := x.Query(ctx, "vpn token", 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Ask IT for a VPN token", lines[0])

	lines, err = x.Query(ctx, "lunch kitchen", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lunch is served at 13:00 in the kitchen"}, lines)
}

func TestIndexQueryClampsToCount(t *testing.T) {
	x := openTestIndex(t)
	ctx := context.Background()

	lines, err := x.Query(ctx, "anything", 2)
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.NoError(t, x.Add(ctx, 1, "only line"))
	lines, err = x.Query(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestIndexDeleteRemovesEveryLine(t *testing.T) {
	x := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, x.Add(ctx, 1, "one\ntwo\nthree"))
	require.NoError(t, x.Add(ctx, 2, "keep me"))
	require.NoError(t, x.Delete(ctx, 1))
	assert.Equal(t, 1, x.Count())

	lines, err := x.Query(ctx, "two", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep me"}, lines)
}

func TestIndexReindex(t *testing.T) {
	x := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, x.Add(ctx, 9, "stale entry"))
	require.NoError(t, x.Reindex(ctx, []db.FAQ{
		{ID: 1, Name: "VPN", Text: "Ask IT for a VPN token"},
		{ID: 2, Name: "Lunch", Text: "13:00\nkitchen"},
	}))
	assert.Equal(t, 3, x.Count())

	lines, err := x.Query(ctx, "stale entry", 3)
	require.NoError(t, err)
	assert.NotContains(t, lines, "stale entry")

	// The rebuilt collection still honours deletes.
	require.NoError(t, x.Delete(ctx, 2))
	assert.Equal(t, 1, x.Count())
}

func TestIndexPersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	x, err := Open(dir, bagOfWords)
	require.NoError(t, err)
	require.NoError(t, x.Add(ctx, 1, "Ask IT for a VPN token"))

	reopened, err := Open(dir, bagOfWords)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count())
}

func TestDocuments(t *testing.T) {
	docs := documents(7, "  first \n\nthird")
	require.Len(t, docs, 2)
	assert.Equal(t, "7:0", docs[0].ID)
	assert.Equal(t, "first", docs[0].Content)
	assert.Equal(t, "7:2", docs[1].ID)
	assert.Equal(t, map[string]string{faqIDKey: "7"}, docs[1].Metadata)
}

// --- embedder ---

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return bagOfWords(ctx, model+" "+text)
}

func TestEmbedderCaches(t *testing.T) {
	client := &countingEmbedder{}
	e, err := NewEmbedder(client, "text-embedding-3-small", 0)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := e.Embed(ctx, "vpn")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "vpn")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, client.calls)

	_, err = e.Embed(ctx, "lunch")
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestEmbedderDoesNotCacheErrors(t *testing.T) {
	client := &countingEmbedder{err: errors.New("rate limited")}
	e, err := NewEmbedder(client, "m", 8)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "vpn")
	require.Error(t, err)
	client.err = nil
	_, err = e.Embed(context.Background(), "vpn")
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}
