package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/types"
)

// LexicalAdapter 词法/关键词检索适配器（BM25 风格打分由索引实现）。
type LexicalAdapter struct {
	index  types.LexicalIndex
	logger *zap.Logger
}

// NewLexicalAdapter 创建词法检索适配器。
func NewLexicalAdapter(index types.LexicalIndex, logger *zap.Logger) *LexicalAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LexicalAdapter{
		index:  index,
		logger: logger.With(zap.String("component", "lexical_adapter")),
	}
}

// ID 返回策略标签。
func (a *LexicalAdapter) ID() types.StrategyID { return types.StrategyLexical }

// Confidence 词法检索的声明置信度。
func (a *LexicalAdapter) Confidence() float64 { return 0.85 }

// Retrieve 执行词法检索。
func (a *LexicalAdapter) Retrieve(ctx context.Context, query types.Query, _ types.QueryAnalysis, k int) ([]types.RetrievalResult, error) {
	results, err := a.index.Search(ctx, query.Text, k)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	a.logger.Debug("lexical retrieval done", zap.Int("results", len(results)))
	return tagResults(results, a.ID()), nil
}
