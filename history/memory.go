package history

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/types"
)

// MemoryStore 进程内滚动窗口历史存储。
type MemoryStore struct {
	mu      sync.RWMutex
	windows map[types.StrategyID][]bool
	size    int
	logger  *zap.Logger
}

// NewMemoryStore 创建内存历史存储。
func NewMemoryStore(windowSize int, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if windowSize <= 0 {
		windowSize = 200
	}
	return &MemoryStore{
		windows: make(map[types.StrategyID][]bool),
		size:    windowSize,
		logger:  logger.With(zap.String("component", "history_memory")),
	}
}

// RecordOutcomes 追加策略执行记录，超出窗口的旧记录被淘汰。
func (s *MemoryStore) RecordOutcomes(_ context.Context, _ string, outcomes []types.StrategyOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range outcomes {
		window := append(s.windows[o.Strategy], o.Success)
		if len(window) > s.size {
			window = window[len(window)-s.size:]
		}
		s.windows[o.Strategy] = window
	}
	return nil
}

// SuccessRate 返回窗口内成功率；无数据时为中性值 0.5。
func (s *MemoryStore) SuccessRate(_ context.Context, id types.StrategyID) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := s.windows[id]
	if len(window) == 0 {
		return neutralRate, nil
	}
	succeeded := 0
	for _, ok := range window {
		if ok {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(window)), nil
}

// Close 实现 Store 接口，内存后端无资源可释放。
func (s *MemoryStore) Close() error { return nil }
