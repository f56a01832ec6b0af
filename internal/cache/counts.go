package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"chatwarden/internal/models"
	"chatwarden/internal/observability"

	"github.com/redis/go-redis/v9"
)

const countKeyPrefix = "ledger:count:%s:%s"

// DefaultCountTTL bounds how stale a cached count can get when an append
// fails to invalidate it.
const DefaultCountTTL = 30 * time.Second

// CountKey returns the cache key for action counts in chatID, or across all
// chats when chatID is nil.
func CountKey(action models.ActionType, chatID *int64) string {
	scope := "all"
	if chatID != nil {
		scope = strconv.FormatInt(*chatID, 10)
	}
	return fmt.Sprintf(countKeyPrefix, action, scope)
}

// genTTL keeps generation counters well past any count TTL. An expired
// generation only causes a skipped write, never a stale one.
const genTTL = 24 * time.Hour

// ErrStaleCount is returned by Set when the key was invalidated after the
// count was read.
var ErrStaleCount = errors.New("count invalidated since read")

func genKey(countKey string) string {
	return countKey + ":gen"
}

// Stamp is the invalidation generation observed when a count missed the
// cache. Set only stores a count whose Stamp is still current.
type Stamp struct {
	gen   int64
	valid bool
}

// CountCache caches ledger counts. A CountCache with a nil client is a no-op
// that always misses.
type CountCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCountCache returns a cache over client. A non-positive ttl selects
// DefaultCountTTL.
func NewCountCache(client *redis.Client, ttl time.Duration) *CountCache {
	if ttl <= 0 {
		ttl = DefaultCountTTL
	}
	return &CountCache{client: client, ttl: ttl}
}

// Enabled reports whether the cache is backed by Redis.
func (c *CountCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached count and whether it was present. On a miss the
// returned Stamp must be passed to Set along with the freshly read count.
func (c *CountCache) Get(ctx context.Context, action models.ActionType, chatID *int64) (int64, Stamp, bool) {
	if !c.Enabled() {
		return 0, Stamp{}, false
	}
	key := CountKey(action, chatID)
	vals, err := c.client.MGet(ctx, key, genKey(key)).Result()
	if err != nil {
		observability.CountCacheLookups.WithLabelValues("error").Inc()
		observability.Logger.WarnContext(ctx, "count cache read failed", slog.String("error", err.Error()))
		return 0, Stamp{}, false
	}

	if n, ok := parseInt(vals[0]); ok {
		observability.CountCacheLookups.WithLabelValues("hit").Inc()
		return n, Stamp{}, true
	}
	observability.CountCacheLookups.WithLabelValues("miss").Inc()
	gen, _ := parseInt(vals[1])
	return 0, Stamp{gen: gen, valid: true}, false
}

func parseInt(v any) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// Set stores n for the ttl unless the key was invalidated after stamp was
// taken. ErrStaleCount reports a skipped write; other errors are Redis
// failures. Both are already logged.
func (c *CountCache) Set(ctx context.Context, action models.ActionType, chatID *int64, n int64, stamp Stamp) error {
	if !c.Enabled() || !stamp.valid {
		return nil
	}
	key := CountKey(action, chatID)
	gk := genKey(key)

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != stamp.gen {
			return ErrStaleCount
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, n, c.ttl)
			return nil
		})
		return err
	}, gk)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleCount), errors.Is(err, redis.TxFailedErr):
		observability.Logger.DebugContext(ctx, "skipped stale count cache write", slog.String("key", key))
		return ErrStaleCount
	default:
		observability.Logger.WarnContext(ctx, "count cache write failed", slog.String("error", err.Error()))
		return err
	}
}

// Invalidate drops the cached counts an event of action in chatID affects,
// the chat's own count and the all-chats count, and bumps their generations
// so counts read before this call are not written back.
func (c *CountCache) Invalidate(ctx context.Context, action models.ActionType, chatID int64) {
	if !c.Enabled() {
		return
	}
	keys := []string{CountKey(action, &chatID), CountKey(action, nil)}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, genKey(key))
			pipe.Expire(ctx, genKey(key), genTTL)
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		observability.Logger.WarnContext(ctx, "count cache invalidation failed", slog.String("error", err.Error()))
	}
}
