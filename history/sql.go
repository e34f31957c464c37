package history

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/fusionflow/config"
	"github.com/BaSui01/fusionflow/types"
)

// StrategyRecord 单次策略执行的持久化记录。
type StrategyRecord struct {
	ID           uint      `gorm:"primaryKey"`
	InvocationID string    `gorm:"size:64;index"`
	Strategy     string    `gorm:"size:32;index"`
	Success      bool      `gorm:"not null"`
	LatencyMS    int64     `gorm:"not null"`
	ResultCount  int       `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// TableName 实现 gorm 表名约定。
func (StrategyRecord) TableName() string { return "strategy_records" }

// SQLStore 基于 GORM 的持久化历史存储。
type SQLStore struct {
	db     *gorm.DB
	size   int
	logger *zap.Logger
}

// OpenSQL 打开数据库连接、应用 Schema 迁移并创建存储。
func OpenSQL(cfg config.HistoryConfig, logger *zap.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported history driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := applyMigrations(db, cfg.Driver); err != nil {
		return nil, fmt.Errorf("apply history migrations: %w", err)
	}

	logger.Info("history sql store opened", zap.String("driver", cfg.Driver))

	return NewSQLStore(db, cfg.WindowSize, logger), nil
}

// NewSQLStore 基于已打开的连接创建存储（迁移由调用方负责）。
func NewSQLStore(db *gorm.DB, windowSize int, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if windowSize <= 0 {
		windowSize = 200
	}
	return &SQLStore{
		db:     db,
		size:   windowSize,
		logger: logger.With(zap.String("component", "history_sql")),
	}
}

// RecordOutcomes 批量插入策略执行记录。
func (s *SQLStore) RecordOutcomes(ctx context.Context, invocationID string, outcomes []types.StrategyOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	records := make([]StrategyRecord, 0, len(outcomes))
	for _, o := range outcomes {
		records = append(records, StrategyRecord{
			InvocationID: invocationID,
			Strategy:     string(o.Strategy),
			Success:      o.Success,
			LatencyMS:    o.Latency.Milliseconds(),
			ResultCount:  len(o.Results),
		})
	}

	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("insert records: %w", err)
	}
	return nil
}

// SuccessRate 统计最近 windowSize 条记录的成功率；无数据时为 0.5。
func (s *SQLStore) SuccessRate(ctx context.Context, id types.StrategyID) (float64, error) {
	var successes []bool
	err := s.db.WithContext(ctx).
		Model(&StrategyRecord{}).
		Where("strategy = ?", string(id)).
		Order("id DESC").
		Limit(s.size).
		Pluck("success", &successes).Error
	if err != nil {
		return 0, fmt.Errorf("query window: %w", err)
	}
	if len(successes) == 0 {
		return neutralRate, nil
	}
	succeeded := 0
	for _, ok := range successes {
		if ok {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(successes)), nil
}

// Close 关闭底层连接。
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
