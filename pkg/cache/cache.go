// Package cache keeps rendered read models (dashboards, team pages) in Redis
// and drops them when a workflow changes the underlying rows.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultTTL = 10 * time.Minute

type ViewCache interface {
	// Get decodes the cached value into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string)
}

type redisViewCache struct {
	client *redis.Client
}

// New returns a Redis backed cache, or a no-op cache when client is nil.
func New(client *redis.Client) ViewCache {
	if client == nil {
		return noop{}
	}
	return &redisViewCache{client: client}
}

func (c *redisViewCache) Get(ctx context.Context, key string, dest any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logrus.WithError(err).WithField("key", key).Warn("view cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("view cache entry is corrupt")
		c.client.Del(ctx, key)
		return false
	}
	return true
}

func (c *redisViewCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("view cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("view cache write failed")
	}
}

func (c *redisViewCache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logrus.WithError(err).WithField("keys", keys).Warn("view cache invalidation failed")
	}
}

type noop struct{}

func (noop) Get(context.Context, string, any) bool           { return false }
func (noop) Set(context.Context, string, any, time.Duration) {}
func (noop) Invalidate(context.Context, ...string)           {}

func InstructorDashboardKey(userID uuid.UUID) string {
	return fmt.Sprintf("view:dashboard:instructor:%s", userID)
}

func StudentDashboardKey(userID uuid.UUID) string {
	return fmt.Sprintf("view:dashboard:student:%s", userID)
}

func ClassKey(classID uuid.UUID) string {
	return fmt.Sprintf("view:class:%s", classID)
}

func TeamKey(teamID uuid.UUID) string {
	return fmt.Sprintf("view:team:%s", teamID)
}

// StudentDashboardKeys expands a list of user ids into their dashboard keys.
func StudentDashboardKeys(userIDs []uuid.UUID) []string {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, StudentDashboardKey(id))
	}
	return keys
}
