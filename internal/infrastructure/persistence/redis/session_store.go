package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storybook-ai-api/pkg/errors"
)

const (
	sessionFieldToken       = "token"
	sessionFieldInitialized = "initialized"
)

// SessionStore 基于 Redis 的会话存储驱动
// 每个故事一个 hash（token + initialized），带 TTL；
// 多实例部署时共享会话状态
type SessionStore struct {
	client    *Client
	keyPrefix string
	ttl       time.Duration
}

// NewSessionStore 创建 Redis 会话存储
func NewSessionStore(client *Client, keyPrefix string, ttl time.Duration) *SessionStore {
	if keyPrefix == "" {
		keyPrefix = "storybook:session:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *SessionStore) key(storyID string) string {
	return s.keyPrefix + storyID
}

// Get 获取故事当前会话令牌
func (s *SessionStore) Get(ctx context.Context, storyID string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "session_store.Get",
		trace.WithAttributes(attribute.String("story.id", storyID)))
	defer span.End()

	token, err := s.client.Redis().HGet(ctx, s.key(storyID), sessionFieldToken).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		return "", false, errors.Wrap(err, errors.CodeCacheError, "failed to read session token")
	}
	return token, token != "", nil
}

// Set 写入故事会话令牌并刷新 TTL
func (s *SessionStore) Set(ctx context.Context, storyID, token string) error {
	ctx, span := tracer.Start(ctx, "session_store.Set",
		trace.WithAttributes(attribute.String("story.id", storyID)))
	defer span.End()

	key := s.key(storyID)
	pipe := s.client.Redis().TxPipeline()
	pipe.HSet(ctx, key, sessionFieldToken, token)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.CodeCacheError, "failed to store session token")
	}
	return nil
}

// Clear 清除故事的令牌和初始化标记
func (s *SessionStore) Clear(ctx context.Context, storyID string) error {
	ctx, span := tracer.Start(ctx, "session_store.Clear",
		trace.WithAttributes(attribute.String("story.id", storyID)))
	defer span.End()

	if err := s.client.Redis().Del(ctx, s.key(storyID)).Err(); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.CodeCacheError, "failed to clear session")
	}
	return nil
}

// IsInitialized 故事视觉上下文是否已建立
func (s *SessionStore) IsInitialized(ctx context.Context, storyID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "session_store.IsInitialized",
		trace.WithAttributes(attribute.String("story.id", storyID)))
	defer span.End()

	val, err := s.client.Redis().HGet(ctx, s.key(storyID), sessionFieldInitialized).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		return false, errors.Wrap(err, errors.CodeCacheError, "failed to read session flag")
	}
	return val == "1", nil
}

// MarkInitialized 标记故事视觉上下文已建立
func (s *SessionStore) MarkInitialized(ctx context.Context, storyID string) error {
	ctx, span := tracer.Start(ctx, "session_store.MarkInitialized",
		trace.WithAttributes(attribute.String("story.id", storyID)))
	defer span.End()

	key := s.key(storyID)
	pipe := s.client.Redis().TxPipeline()
	pipe.HSet(ctx, key, sessionFieldInitialized, "1")
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, errors.CodeCacheError, "failed to mark session initialized")
	}
	return nil
}
