// Package cache keeps single posts in Redis so repeated reads of a popular
// post skip SQLite.
//
// The cache is best-effort. Every Redis error is logged and treated as a
// miss, and the application runs without Redis at all by using Nop.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sakif/catgram/internal/model"
)

const (
	postKeyPrefix    = "catgram:post:%s"
	versionKeyPrefix = "catgram:post:%s:version"

	// versionTTL only has to outlive a single read-through, but is kept
	// long so a version never resets while a reader still holds it.
	versionTTL = 24 * time.Hour

	// DefaultPostTTL is used when a zero TTL is configured.
	DefaultPostTTL = 5 * time.Minute

	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// PostKey returns the Redis key a post is cached under.
func PostKey(postID string) string {
	return fmt.Sprintf(postKeyPrefix, postID)
}

// VersionKey returns the Redis key holding a post's invalidation counter.
func VersionKey(postID string) string {
	return fmt.Sprintf(versionKeyPrefix, postID)
}

var errStaleVersion = errors.New("cache: post changed since it was read")

// Connect builds a client from REDIS_URL and pings it.
// url may be a redis:// URL or a bare host:port.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("cache: invalid redis url %q: %w", url, err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: url}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: pinging redis: %w", err)
	}
	return client, nil
}

// RedisPostCache stores posts as JSON strings with a TTL.
type RedisPostCache struct {
	client  *redis.Client
	ttl     time.Duration
	results *prometheus.CounterVec
	logger  *slog.Logger
}

// NewRedisPostCache wraps client. results is optional; when set it is
// incremented with one of ResultHit, ResultMiss or ResultError per lookup.
func NewRedisPostCache(client *redis.Client, ttl time.Duration, results *prometheus.CounterVec, logger *slog.Logger) *RedisPostCache {
	if ttl <= 0 {
		ttl = DefaultPostTTL
	}
	return &RedisPostCache{
		client:  client,
		ttl:     ttl,
		results: results,
		logger:  logger,
	}
}

// GetPost returns the cached post and true on a hit.
func (c *RedisPostCache) GetPost(ctx context.Context, id string) (*model.Post, bool) {
	raw, err := c.client.Get(ctx, PostKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.record(ResultMiss)
		return nil, false
	}
	if err != nil {
		c.record(ResultError)
		c.logger.Warn("post cache read failed", "post_id", id, "error", err)
		return nil, false
	}

	var post model.Post
	if err := json.Unmarshal(raw, &post); err != nil {
		c.record(ResultError)
		c.logger.Warn("post cache entry is corrupt, dropping it", "post_id", id, "error", err)
		c.InvalidatePost(ctx, id)
		return nil, false
	}

	c.record(ResultHit)
	return &post, true
}

// PostVersion returns the post's invalidation counter. Read it before
// loading the post from the database and hand it to SetPost. ok is false
// when Redis cannot answer, in which case the caller should not cache.
func (c *RedisPostCache) PostVersion(ctx context.Context, id string) (int64, bool) {
	version, err := c.client.Get(ctx, VersionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.logger.Warn("post cache version read failed", "post_id", id, "error", err)
		return 0, false
	}
	return version, true
}

// SetPost caches post unless it was invalidated after version was read.
// The check and the write run in one WATCH transaction, so a write that
// lands between a reader's database load and its SetPost always wins.
func (c *RedisPostCache) SetPost(ctx context.Context, post *model.Post, version int64) {
	raw, err := json.Marshal(post)
	if err != nil {
		c.logger.Warn("encoding post for cache", "post_id", post.ID, "error", err)
		return
	}

	versionKey := VersionKey(post.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleVersion
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, PostKey(post.ID), raw, c.ttl)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleVersion), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("post changed during read, not caching", "post_id", post.ID)
	default:
		c.logger.Warn("post cache write failed", "post_id", post.ID, "error", err)
	}
}

// InvalidatePost drops the cached copy and bumps the version so in-flight
// readers holding the old version do not put it back.
func (c *RedisPostCache) InvalidatePost(ctx context.Context, id string) {
	versionKey := VersionKey(id)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, versionTTL)
		pipe.Del(ctx, PostKey(id))
		return nil
	})
	if err != nil {
		c.logger.Warn("post cache invalidation failed", "post_id", id, "error", err)
	}
}

func (c *RedisPostCache) record(result string) {
	if c.results != nil {
		c.results.WithLabelValues(result).Inc()
	}
}

// Nop is used when no Redis URL is configured. Every lookup misses.
type Nop struct{}

func (Nop) GetPost(context.Context, string) (*model.Post, bool) { return nil, false }
func (Nop) PostVersion(context.Context, string) (int64, bool) { return 0, false }
func (Nop) SetPost(context.Context, *model.Post, int64) {}
func (Nop) InvalidatePost(context.Context, string) {}
