package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	urlKeyPrefix     = "url:"
	videoIDKeyPrefix = "vid:"
)

// Cache is a read-through, write-through memory layer in front of Store.
// Records handed out are copies; mutating them never affects cached state.
type Cache struct {
	store  *Store
	memory *gocache.Cache
}

// New wraps store with a memory layer whose entries expire after ttl. A
// non-positive ttl disables the memory layer.
func New(store *Store, ttl time.Duration) *Cache {
	c := &Cache{store: store}
	if ttl > 0 {
		c.memory = gocache.New(ttl, 2*ttl)
	}
	return c
}

// Store returns the backing SQLite store.
func (c *Cache) Store() *Store {
	return c.store
}

// Lookup serves from memory when possible and falls back to the store.
func (c *Cache) Lookup(ctx context.Context, canonicalURL, videoID string) (*Record, error) {
	canonicalURL = strings.TrimSpace(canonicalURL)
	videoID = strings.TrimSpace(videoID)
	switch {
	case canonicalURL != "":
		if rec, ok := c.fromMemory(urlKeyPrefix + canonicalURL); ok {
			return rec, nil
		}
	case videoID != "":
		if rec, ok := c.fromMemory(videoIDKeyPrefix + videoID); ok {
			return rec, nil
		}
	}
	rec, err := c.store.Lookup(ctx, canonicalURL, videoID)
	if err != nil || rec == nil {
		return nil, err
	}
	if c.memory != nil {
		_ = c.memory.Add(urlKeyPrefix+rec.CanonicalURL, rec.Clone(), gocache.DefaultExpiration)
		if rec.VideoID != "" {
			_ = c.memory.Add(videoIDKeyPrefix+rec.VideoID, rec.Clone(), gocache.DefaultExpiration)
		}
	}
	return rec, nil
}

// Upsert writes to SQLite first and then refreshes the memory layer with the
// stored snapshot. Keys held by the row being overwritten are dropped too, so
// a retired video id stops resolving.
func (c *Cache) Upsert(ctx context.Context, rec Record) (*Record, error) {
	var previous *Record
	if c.memory != nil {
		var err error
		previous, err = c.store.Lookup(ctx, rec.CanonicalURL, rec.VideoID)
		if err != nil {
			return nil, err
		}
	}
	stored, err := c.store.Upsert(ctx, rec)
	if err != nil {
		return nil, err
	}
	if c.memory != nil {
		c.forget(rec.CanonicalURL, rec.VideoID)
		if previous != nil {
			c.forget(previous.CanonicalURL, previous.VideoID)
		}
		c.memory.Set(urlKeyPrefix+stored.CanonicalURL, stored.Clone(), gocache.DefaultExpiration)
		if stored.VideoID != "" {
			c.memory.Set(videoIDKeyPrefix+stored.VideoID, stored.Clone(), gocache.DefaultExpiration)
		}
	}
	return stored.Clone(), nil
}

func (c *Cache) forget(canonicalURL, videoID string) {
	if u := strings.TrimSpace(canonicalURL); u != "" {
		c.memory.Delete(urlKeyPrefix + u)
	}
	if id := strings.TrimSpace(videoID); id != "" {
		c.memory.Delete(videoIDKeyPrefix + id)
	}
}

// Get reads a record by id straight from the store.
func (c *Cache) Get(ctx context.Context, id string) (*Record, error) {
	return c.store.Get(ctx, id)
}

// List reads the most recent records straight from the store.
func (c *Cache) List(ctx context.Context, limit int) ([]*Record, error) {
	return c.store.List(ctx, limit)
}

// Count returns the number of stored records.
func (c *Cache) Count(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}

// InsertVerification stores a text verification; verifications bypass the
// memory layer.
func (c *Cache) InsertVerification(ctx context.Context, v Verification) (*Verification, error) {
	return c.store.InsertVerification(ctx, v)
}

// Flush drops every memory entry.
func (c *Cache) Flush() {
	if c.memory != nil {
		c.memory.Flush()
	}
}

// Close closes the backing store.
func (c *Cache) Close() error {
	c.Flush()
	return c.store.Close()
}

func (c *Cache) fromMemory(key string) (*Record, bool) {
	if c.memory == nil {
		return nil, false
	}
	val, ok := c.memory.Get(key)
	if !ok {
		return nil, false
	}
	rec, ok := val.(*Record)
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}
