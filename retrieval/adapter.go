package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/BaSui01/fusionflow/types"
)

// StrategyAdapter 统一封装一种检索后端。
// 新增策略 = 实现该接口 + Registry.Register，一行注册，不改分发逻辑。
type StrategyAdapter interface {
	// ID 返回策略变体标签
	ID() types.StrategyID

	// Retrieve 用查询与分析结果检索至多 k 条候选。
	// 返回的结果应带上策略自身的归一化分数（无法归一化时置 0，
	// 融合阶段会使用默认 baseScore）。
	Retrieve(ctx context.Context, query types.Query, analysis types.QueryAnalysis, k int) ([]types.RetrievalResult, error)

	// Confidence 返回该策略声明的置信度 [0,1]
	Confidence() float64
}

// Registry 策略适配器注册表。按变体标签分发，写少读多。
type Registry struct {
	mu       sync.RWMutex
	adapters map[types.StrategyID]StrategyAdapter
}

// NewRegistry 创建空注册表。
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[types.StrategyID]StrategyAdapter)}
}

// Register 注册适配器。重复注册同一 ID 返回错误。
func (r *Registry) Register(adapter StrategyAdapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := adapter.ID()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("strategy %q already registered", id)
	}
	r.adapters[id] = adapter
	return nil
}

// Get 按 ID 查找适配器。
func (r *Registry) Get(id types.StrategyID) (StrategyAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[id]
	return adapter, ok
}

// IDs 返回已注册策略 ID（排序后，保证确定性）。
func (r *Registry) IDs() []types.StrategyID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]types.StrategyID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// tagResults 给结果统一打上策略标签。
func tagResults(results []types.RetrievalResult, id types.StrategyID) []types.RetrievalResult {
	for i := range results {
		results[i].Strategy = id
	}
	return results
}
