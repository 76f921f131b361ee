package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	Iservices "messenger-connector/internal/domain/interfaces/services"
	"messenger-connector/internal/infra/logger"
)

const dedupKeyPrefix = "messenger:mid:"

// RedisConfig defines connection parameters for Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisDeduplicator remembers message ids in Redis so redelivered webhooks are
// dropped across restarts and replicas.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

var _ Iservices.IDeduplicator = (*RedisDeduplicator)(nil)

func NewRedisDeduplicator(cfg RedisConfig, ttl time.Duration, log *logger.Logger) *RedisDeduplicator {
	return &RedisDeduplicator{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl:    ttl,
		logger: log.With(logrus.Fields{"component": "redis"}),
	}
}

// Ping verifies Redis connectivity.
func (r *RedisDeduplicator) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Seen marks messageID and reports whether it had been marked before. When
// Redis is unavailable the message is treated as new.
func (r *RedisDeduplicator) Seen(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	created, err := r.client.SetNX(ctx, dedupKeyPrefix+messageID, 1, r.ttl).Result()
	if err != nil {
		r.logger.Warn(fmt.Sprintf("Dedup lookup for %s failed, processing anyway: %v", messageID, err))
		return false, nil
	}
	return !created, nil
}

// Forget removes the mark of messageID.
func (r *RedisDeduplicator) Forget(ctx context.Context, messageID string) error {
	if messageID == "" {
		return nil
	}
	if err := r.client.Del(ctx, dedupKeyPrefix+messageID).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", messageID, err)
	}
	return nil
}

// Close releases Redis resources.
func (r *RedisDeduplicator) Close() error {
	return r.client.Close()
}

// MemoryDeduplicator keeps message ids in process memory until their TTL expires.
type MemoryDeduplicator struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

var _ Iservices.IDeduplicator = (*MemoryDeduplicator)(nil)

func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	return &MemoryDeduplicator{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (m *MemoryDeduplicator) Seen(_ context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, expires := range m.seen {
		if now.After(expires) {
			delete(m.seen, id)
		}
	}

	if _, ok := m.seen[messageID]; ok {
		return true, nil
	}
	m.seen[messageID] = now.Add(m.ttl)
	return false, nil
}

func (m *MemoryDeduplicator) Forget(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, messageID)
	return nil
}
