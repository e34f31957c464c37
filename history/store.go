package history

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/config"
	"github.com/BaSui01/fusionflow/types"
)

// 无历史数据时的中性成功率：路由权重因子 (0.5 + rate) 恰为 1。
const neutralRate = 0.5

// Store 策略运行历史存储。
type Store interface {
	// RecordOutcomes 追加一次调用的策略执行记录
	RecordOutcomes(ctx context.Context, invocationID string, outcomes []types.StrategyOutcome) error
	// SuccessRate 返回策略在滚动窗口内的成功率 [0,1]；无数据时为 0.5
	SuccessRate(ctx context.Context, id types.StrategyID) (float64, error)
	// Close 释放底层资源
	Close() error
}

// New 按配置创建历史存储。
func New(cfg *config.Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.History.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.History.WindowSize, logger), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		return NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.History.WindowSize, logger), nil

	case "sql":
		return OpenSQL(cfg.History, logger)

	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
}
