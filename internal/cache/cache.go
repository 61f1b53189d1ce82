// Package cache provides a small key/value cache for read-heavy lookups such as
// popular searches. Values are stored JSON encoded so both backends behave the same.
package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// New picks Redis when an address is configured and reachable, else the in-process LRU.
func New(ctx context.Context, redisAddr string, log logrus.FieldLogger) (Cache, error) {
	if redisAddr != "" {
		r, err := NewRedis(ctx, redisAddr)
		if err == nil {
			log.WithField("addr", redisAddr).Info("using redis cache")
			return r, nil
		}
		log.WithError(err).Warn("redis unavailable, falling back to in-memory cache")
	}
	return NewLRU(500)
}
