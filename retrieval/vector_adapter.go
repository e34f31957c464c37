package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/types"
)

// VectorAdapter 稠密向量相似度检索适配器。
// 查询先经 EmbeddingService 向量化，再在 VectorIndex 上做近邻搜索，
// 分析阶段提取的结构化过滤条件原样下推给索引。
type VectorAdapter struct {
	embedder types.EmbeddingService
	index    types.VectorIndex
	logger   *zap.Logger
}

// NewVectorAdapter 创建向量检索适配器。
func NewVectorAdapter(embedder types.EmbeddingService, index types.VectorIndex, logger *zap.Logger) *VectorAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorAdapter{
		embedder: embedder,
		index:    index,
		logger:   logger.With(zap.String("component", "vector_adapter")),
	}
}

// ID 返回策略标签。
func (a *VectorAdapter) ID() types.StrategyID { return types.StrategyVector }

// Confidence 向量检索的声明置信度。
func (a *VectorAdapter) Confidence() float64 { return 0.9 }

// Retrieve 执行向量检索。
func (a *VectorAdapter) Retrieve(ctx context.Context, query types.Query, analysis types.QueryAnalysis, k int) ([]types.RetrievalResult, error) {
	vector, err := a.embedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := a.index.Search(ctx, vector, k, analysis.Filters)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	a.logger.Debug("vector retrieval done", zap.Int("results", len(results)))
	return tagResults(results, a.ID()), nil
}
