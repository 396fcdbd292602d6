// Package cache provides a redis read-through cache in front of the
// classifier.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/logger"
	"github.com/mounikasaka1/hackai/internal/telemetry"
)

const (
	keyPrefix         = "hackai:classification:"
	connectionTimeout = 2 * time.Second
)

// Classifier is the wrapped classification call.
type Classifier interface {
	Classify(ctx context.Context, msg domain.Message) (*domain.ClassificationResult, error)
}

// Options configures a CachingClassifier.
type Options struct {
	TTL time.Duration
	// Namespace separates entries produced under different modes, pattern
	// versions or model artifacts.
	Namespace string
}

// CachingClassifier stores results in redis keyed by a hash of the namespace,
// sender and text. Redis failures are logged and fall through to the wrapped
// classifier.
type CachingClassifier struct {
	next      Classifier
	client    redis.UniversalClient
	opts      Options
	logger    logger.Logger
	telemetry *telemetry.Provider
}

// NewClient connects to redis and pings it.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// NewCachingClassifier wraps next.
func NewCachingClassifier(
	next Classifier,
	client redis.UniversalClient,
	opts Options,
	log logger.Logger,
	tp *telemetry.Provider,
) *CachingClassifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &CachingClassifier{next: next, client: client, opts: opts, logger: log, telemetry: tp}
}

// Key returns the redis key for msg.
func (c *CachingClassifier) Key(msg domain.Message) string {
	h := sha256.New()
	h.Write([]byte(c.opts.Namespace))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(msg.SenderID))))
	h.Write([]byte{0})
	h.Write([]byte(msg.Text))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Classify returns a cached result when present, otherwise classifies and
// stores the result. Errors from the wrapped classifier are never cached.
func (c *CachingClassifier) Classify(ctx context.Context, msg domain.Message) (*domain.ClassificationResult, error) {
	key := c.Key(msg)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached domain.ClassificationResult
		jsonErr := json.Unmarshal(data, &cached)
		if jsonErr == nil {
			c.telemetry.RecordCacheLookup("hit")
			return &cached, nil
		}
		c.logger.Warn("Discarding unreadable cache entry", logger.String("key", key), logger.Error(jsonErr))
	case errors.Is(err, redis.Nil):
		c.telemetry.RecordCacheLookup("miss")
	default:
		c.telemetry.RecordCacheLookup("error")
		c.logger.Warn("Cache lookup failed", logger.String("key", key), logger.Error(err))
	}

	result, err := c.next.Classify(ctx, msg)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("Failed to encode result for cache", logger.Error(err))
		return result, nil
	}
	if err := c.client.Set(ctx, key, payload, c.opts.TTL).Err(); err != nil {
		c.logger.Warn("Cache store failed", logger.String("key", key), logger.Error(err))
	}
	return result, nil
}
