package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/veloform/activity-enhancer-go/internal/constants"
	"github.com/veloform/activity-enhancer-go/internal/domain"
	"github.com/veloform/activity-enhancer-go/pkg/errors"
	"go.uber.org/zap"
)

// RedisStore keeps pending enhancements in Redis so the handoff survives the
// process and can be shared across service instances. Records carry a
// server-side TTL, but expiry is always decided from the record timestamp.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), constants.RedisConfig.ReadyTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.NewCacheError("failed to connect to Redis", "ping", "", err)
	}

	logger.Info("Redis connected",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.Int("db", cfg.DB),
	)

	return &RedisStore{
		client: client,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (s *RedisStore) Save(ctx context.Context, pending *domain.PendingEnhancement) error {
	if pending == nil || pending.ActivityID == "" {
		return errors.NewCacheError("pending record requires an activity ID", "set", "", nil)
	}

	pending.Timestamp = s.now()
	key := pendingKey(pending.ActivityID)

	jsonData, err := json.Marshal(pending)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", key, err)
	}

	if err := s.client.Set(ctx, key, jsonData, constants.SessionConfig.PendingTTL).Err(); err != nil {
		s.logger.Error("Pending save failed", zap.String("key", key), zap.Error(err))
		return errors.NewCacheError("set failed", "set", key, err)
	}

	s.logger.Debug("Pending enhancement saved",
		zap.String("activity_id", pending.ActivityID),
	)
	return nil
}

func (s *RedisStore) Get(ctx context.Context, activityID string) (*domain.PendingEnhancement, error) {
	key := pendingKey(activityID)

	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("Pending get failed", zap.String("key", key), zap.Error(err))
		return nil, errors.NewCacheError("get failed", "get", key, err)
	}

	var pending domain.PendingEnhancement
	if err := json.Unmarshal([]byte(value), &pending); err != nil {
		s.logger.Error("Pending unmarshal failed", zap.String("key", key), zap.Error(err))
		return nil, errors.NewCacheError("unmarshal failed", "get", key, err)
	}

	if s.expired(&pending) {
		s.logger.Debug("Pending enhancement expired",
			zap.String("activity_id", activityID),
			zap.Time("stamped_at", pending.Timestamp),
		)
		if err := s.client.Del(ctx, key).Err(); err != nil {
			s.logger.Warn("Failed to clear expired pending record", zap.String("key", key), zap.Error(err))
		}
		return nil, nil
	}

	return &pending, nil
}

func (s *RedisStore) Update(ctx context.Context, activityID string, update domain.PendingUpdate) error {
	pending, err := s.Get(ctx, activityID)
	if err != nil {
		return err
	}
	if pending == nil {
		return nil
	}

	if update.EnhancedTitle != nil {
		pending.EnhancedTitle = *update.EnhancedTitle
	}
	if update.EnhancedDescription != nil {
		pending.EnhancedDescription = *update.EnhancedDescription
	}

	// Persist with the original stamp and remaining TTL so the merge does not
	// extend the record's lifetime.
	key := pendingKey(activityID)
	jsonData, err := json.Marshal(pending)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", key, err)
	}

	remaining := constants.SessionConfig.PendingTTL - s.now().Sub(pending.Timestamp)
	if remaining <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, key, jsonData, remaining).Err(); err != nil {
		s.logger.Error("Pending update failed", zap.String("key", key), zap.Error(err))
		return errors.NewCacheError("set failed", "set", key, err)
	}

	return nil
}

func (s *RedisStore) Clear(ctx context.Context, activityID string) error {
	key := pendingKey(activityID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Error("Pending clear failed", zap.String("key", key), zap.Error(err))
		return errors.NewCacheError("delete failed", "del", key, err)
	}
	return nil
}

func (s *RedisStore) expired(pending *domain.PendingEnhancement) bool {
	return s.now().Sub(pending.Timestamp) >= constants.SessionConfig.PendingTTL
}

func (s *RedisStore) IsConnected(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

func (s *RedisStore) WaitUntilReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for Redis to be ready")
		case <-ticker.C:
			if s.IsConnected(ctx) {
				return nil
			}
		}
	}
}

func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		s.logger.Error("Failed to close Redis connection", zap.Error(err))
		return err
	}
	s.logger.Info("Redis disconnected")
	return nil
}

// Client exposes the underlying connection for components sharing the same
// Redis instance.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
