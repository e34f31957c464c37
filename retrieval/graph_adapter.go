package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/types"
)

// GraphAdapter 图遍历检索适配器。
// 以分析阶段提取的实体为遍历起点；遍历深度随查询复杂度增加。
type GraphAdapter struct {
	store  types.GraphStore
	logger *zap.Logger
}

// NewGraphAdapter 创建图检索适配器。
func NewGraphAdapter(store types.GraphStore, logger *zap.Logger) *GraphAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphAdapter{
		store:  store,
		logger: logger.With(zap.String("component", "graph_adapter")),
	}
}

// ID 返回策略标签。
func (a *GraphAdapter) ID() types.StrategyID { return types.StrategyGraph }

// Confidence 图检索的声明置信度。
func (a *GraphAdapter) Confidence() float64 { return 0.75 }

// Retrieve 执行图遍历检索。
func (a *GraphAdapter) Retrieve(ctx context.Context, _ types.Query, analysis types.QueryAnalysis, k int) ([]types.RetrievalResult, error) {
	entities := analysis.Entities
	if len(entities) == 0 {
		// 无实体时退回关键词作为起点
		entities = analysis.Keywords
	}
	if len(entities) == 0 {
		return nil, nil
	}

	depth := 1
	switch analysis.Complexity {
	case types.ComplexityMedium:
		depth = 2
	case types.ComplexityHigh:
		depth = 3
	}

	results, err := a.store.Traverse(ctx, entities, depth)
	if err != nil {
		return nil, fmt.Errorf("graph traverse: %w", err)
	}
	if len(results) > k {
		results = results[:k]
	}

	a.logger.Debug("graph retrieval done",
		zap.Int("results", len(results)),
		zap.Int("depth", depth),
		zap.Int("entities", len(entities)))
	return tagResults(results, a.ID()), nil
}
