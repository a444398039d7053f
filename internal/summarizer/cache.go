package summarizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"threatlineage/internal/logger"
)

// RemoteCache is a cache shared between runs, such as Redis.
type RemoteCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Cached wraps a summarizer with an in-memory LRU and an optional remote
// cache. Failed summaries are never cached.
type Cached struct {
	next   Summarizer
	local  *lru.Cache[string, string]
	remote RemoteCache
	scope  string
}

// NewCached creates a cache layer. scope separates entries produced by
// different models or providers.
func NewCached(next Summarizer, size int, remote RemoteCache, scope string) (*Cached, error) {
	if size <= 0 {
		size = 4096
	}
	local, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, local: local, remote: remote, scope: scope}, nil
}

// Summarize returns a cached summary or asks the wrapped summarizer.
func (c *Cached) Summarize(ctx context.Context, details string) (string, error) {
	key := c.key(details)
	if v, ok := c.local.Get(key); ok {
		return v, nil
	}
	if c.remote != nil {
		v, ok, err := c.remote.Get(ctx, key)
		if err != nil {
			logger.Warnf("Summary cache read failed: %v", err)
		} else if ok {
			c.local.Add(key, v)
			return v, nil
		}
	}

	v, err := c.next.Summarize(ctx, details)
	if err != nil {
		return "", err
	}
	c.local.Add(key, v)
	if c.remote != nil {
		if err := c.remote.Set(ctx, key, v); err != nil {
			logger.Warnf("Summary cache write failed: %v", err)
		}
	}
	return v, nil
}

// Len returns the number of entries held in memory.
func (c *Cached) Len() int {
	return c.local.Len()
}

func (c *Cached) key(details string) string {
	sum := sha256.Sum256([]byte(c.scope + "\x00" + details))
	return hex.EncodeToString(sum[:])
}
