// Package parsecache keeps CoNLL-U parses in Redis so repeated tweets are parsed once.
package parsecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caoba.org/botcheck/conllu"
	"caoba.org/botcheck/logger"
	"caoba.org/botcheck/redis"
	"caoba.org/botcheck/utils"
	"github.com/rs/zerolog"
)

const ParseDB redis.DB = 3

type Store interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Lock(key string) (redis.ReleaseLock, error)
}

// Cache is a conllu.Source that consults Redis before the wrapped source.
type Cache struct {
	source    conllu.Source
	store     Store
	namespace string
	ttl       time.Duration
	bcLogger  zerolog.Logger
}

func New(source conllu.Source, store Store, namespace string, ttl time.Duration) *Cache {
	return &Cache{
		source:    source,
		store:     store,
		namespace: namespace,
		ttl:       ttl,
		bcLogger:  logger.NewLogger("Parse cache").With().Str("namespace", namespace).Logger(),
	}
}

func (c *Cache) Key(text string) string {
	return fmt.Sprintf("botcheck:parse:%s:%016x", c.namespace, utils.HashString(text))
}

// Process returns the cached parse or fills the cache under a lock.
// Store failures are logged and the source is used directly.
func (c *Cache) Process(ctx context.Context, text string) (string, error) {
	key := c.Key(text)
	if out, ok := c.lookup(ctx, key); ok {
		return out, nil
	}

	release, err := c.store.Lock(key)
	if err != nil {
		c.bcLogger.Warn().Err(err).Str("key", key).Msg("Could not lock parse key, parsing without cache")
		return c.source.Process(ctx, text)
	}
	defer func() {
		if err := release(); err != nil {
			c.bcLogger.Warn().Err(err).Str("key", key).Msg("Failed to release parse lock")
		}
	}()

	// another worker may have filled it while we waited
	if out, ok := c.lookup(ctx, key); ok {
		return out, nil
	}

	out, err := c.source.Process(ctx, text)
	if err != nil {
		return "", err
	}
	if err := c.store.SetBytes(ctx, key, []byte(out), c.ttl); err != nil {
		c.bcLogger.Warn().Err(err).Str("key", key).Msg("Failed to store parse")
	}
	return out, nil
}

func (c *Cache) lookup(ctx context.Context, key string) (string, bool) {
	b, err := c.store.GetBytes(ctx, key)
	switch {
	case err == nil:
		c.bcLogger.Debug().Str("key", key).Msg("Parse cache hit")
		return string(b), true
	case errors.Is(err, redis.ErrNotFound):
	default:
		c.bcLogger.Warn().Err(err).Str("key", key).Msg("Parse cache lookup failed")
	}
	return "", false
}
