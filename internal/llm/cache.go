package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore is the slice of a key/value store the completion cache needs.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheInvalidator is implemented by clients that can forget a cached completion,
// so that a completion that later proves malformed is not served again.
type CacheInvalidator interface {
	Forget(ctx context.Context, req CompletionRequest) error
}

// CachedCompletionClient memoizes completions by a hash of model and prompts.
type CachedCompletionClient struct {
	next   CompletionClient
	store  CacheStore
	ttl    time.Duration
	model  string
	logger *slog.Logger
}

func NewCachedCompletionClient(next CompletionClient, store CacheStore, ttl time.Duration, logger *slog.Logger) *CachedCompletionClient {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	model := ""
	if mn, ok := next.(ModelNamer); ok {
		model = mn.ModelName()
	}
	return &CachedCompletionClient{next: next, store: store, ttl: ttl, model: model, logger: logger}
}

func (c *CachedCompletionClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	key := CacheKey(c.model, req)
	if v, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("llm.cache.get_error", "key", key, "error", err)
	} else if ok {
		c.logger.Info("llm.cache.hit", "key", key, "bytes", len(v))
		return v, nil
	}

	out, err := c.next.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, key, out, c.ttl); err != nil {
		c.logger.Warn("llm.cache.set_error", "key", key, "error", err)
	}
	return out, nil
}

func (c *CachedCompletionClient) Forget(ctx context.Context, req CompletionRequest) error {
	key := CacheKey(c.model, req)
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("forget %s: %w", key, err)
	}
	c.logger.Info("llm.cache.forget", "key", key)
	return nil
}

func (c *CachedCompletionClient) ModelName() string { return c.model }

// CacheKey is stable for identical model, parameters and prompts.
func CacheKey(model string, req CompletionRequest) string {
	h := sha256.New()
	for _, part := range []string{
		model,
		strconv.FormatFloat(float64(req.Temperature), 'f', -1, 32),
		strconv.FormatBool(req.JSONMode),
		req.SystemPrompt,
		req.UserPrompt,
		req.SchemaHint,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "resume-parser:completion:" + hex.EncodeToString(h.Sum(nil))
}

// RedisCacheStore backs the completion cache with redis.
type RedisCacheStore struct {
	rdb *redis.Client
}

// NewRedisCacheStore parses a redis:// URL.
func NewRedisCacheStore(url string) (*RedisCacheStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCacheStore{rdb: redis.NewClient(opt)}, nil
}

func (s *RedisCacheStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisCacheStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// Name and Check let the store act as a readiness checker.
func (s *RedisCacheStore) Name() string { return "redis" }

func (s *RedisCacheStore) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisCacheStore) Close() error {
	return s.rdb.Close()
}
