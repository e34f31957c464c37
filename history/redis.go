package history

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/types"
)

// RedisStore 基于 Redis List 的滚动窗口历史存储，可多实例共享。
type RedisStore struct {
	client *redis.Client
	prefix string
	size   int
	logger *zap.Logger
}

// NewRedisStore 创建 Redis 历史存储。
func NewRedisStore(client *redis.Client, keyPrefix string, windowSize int, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if windowSize <= 0 {
		windowSize = 200
	}
	return &RedisStore{
		client: client,
		prefix: keyPrefix,
		size:   windowSize,
		logger: logger.With(zap.String("component", "history_redis")),
	}
}

func (s *RedisStore) key(id types.StrategyID) string {
	return s.prefix + "history:" + string(id)
}

// RecordOutcomes 用 LPUSH + LTRIM 维护每策略的滚动窗口。
func (s *RedisStore) RecordOutcomes(ctx context.Context, _ string, outcomes []types.StrategyOutcome) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, o := range outcomes {
			val := "0"
			if o.Success {
				val = "1"
			}
			key := s.key(o.Strategy)
			pipe.LPush(ctx, key, val)
			pipe.LTrim(ctx, key, 0, int64(s.size-1))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record outcomes: %w", err)
	}
	return nil
}

// SuccessRate 统计窗口内成功占比；无数据时为中性值 0.5。
func (s *RedisStore) SuccessRate(ctx context.Context, id types.StrategyID) (float64, error) {
	entries, err := s.client.LRange(ctx, s.key(id), 0, int64(s.size-1)).Result()
	if err != nil {
		return 0, fmt.Errorf("read window: %w", err)
	}
	if len(entries) == 0 {
		return neutralRate, nil
	}
	succeeded := 0
	for _, e := range entries {
		if e == "1" {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(entries)), nil
}

// Close 关闭 Redis 连接。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
