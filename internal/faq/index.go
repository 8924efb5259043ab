// Package faq keeps the vector index behind the !faq command and the
// search_faq tool. Every non-empty line of an FAQ entry is one document, so a
// query returns the individual lines that match best.
package faq

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/chris/threadbot/internal/db"
)

const (
	collectionName = "faq"
	faqIDKey       = "faq_id"
	persistDir     = "chromem"
)

type Index struct {
	db    *chromem.DB
	embed chromem.EmbeddingFunc

	mu   sync.RWMutex
	coll *chromem.Collection
}

// Open loads the index persisted under dir, or keeps it in memory when dir is empty.
func Open(dir string, embed chromem.EmbeddingFunc) (*Index, error) {
	var vdb *chromem.DB
	if dir != "" {
		var err error
		vdb, err = chromem.NewPersistentDB(filepath.Join(dir, persistDir), false)
		if err != nil {
			return nil, fmt.Errorf("opening faq index: %w", err)
		}
	} else {
		vdb = chromem.NewDB()
	}

	coll, err := vdb.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("opening faq collection: %w", err)
	}
	return &Index{db: vdb, embed: embed, coll: coll}, nil
}

func (x *Index) collection() *chromem.Collection {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.coll
}

// Add indexes every line of text under faqID.
func (x *Index) Add(ctx context.Context, faqID int64, text string) error {
	docs := documents(faqID, text)
	if len(docs) == 0 {
		return nil
	}
	if err := x.collection().AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("indexing faq %d: %w", faqID, err)
	}
	return nil
}

// Delete removes every line indexed under faqID.
func (x *Index) Delete(ctx context.Context, faqID int64) error {
	where := map[string]string{faqIDKey: strconv.FormatInt(faqID, 10)}
	if err := x.collection().Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("removing faq %d from index: %w", faqID, err)
	}
	return nil
}

// Query returns up to n indexed lines closest to q, best match first.
func (x *Index) Query(ctx context.Context, q string, n int) ([]string, error) {
	coll := x.collection()
	if count := coll.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}
	results, err := coll.Query(ctx, q, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying faq index: %w", err)
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, r.Content)
	}
	return lines, nil
}

// Count returns the number of indexed lines.
func (x *Index) Count() int {
	return x.collection().Count()
}

// Reindex drops the collection and rebuilds it from the stored entries.
func (x *Index) Reindex(ctx context.Context, faqs []db.FAQ) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("dropping faq collection: %w", err)
	}
	coll, err := x.db.GetOrCreateCollection(collectionName, nil, x.embed)
	if err != nil {
		return fmt.Errorf("recreating faq collection: %w", err)
	}
	x.coll = coll

	for _, f := range faqs {
		docs := documents(f.ID, f.Text)
		if len(docs) == 0 {
			continue
		}
		if err := coll.AddDocuments(ctx, docs, 1); err != nil {
			return fmt.Errorf("indexing faq %q: %w", f.Name, err)
		}
	}
	return nil
}

func documents(faqID int64, text string) []chromem.Document {
	id := strconv.FormatInt(faqID, 10)
	var docs []chromem.Document
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:       id + ":" + strconv.Itoa(i),
			Metadata: map[string]string{faqIDKey: id},
			Content:  line,
		})
	}
	return docs
}
