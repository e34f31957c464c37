package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/types"
)

// SemanticAdapter 语义检索适配器：把分析阶段提取的关键词与实体
// 追加到查询文本再向量化，加重核心词相对停用词的向量权重。
// 相比 VectorAdapter 匹配更宽松，适合探索型查询。
type SemanticAdapter struct {
	embedder    types.EmbeddingService
	index       types.VectorIndex
	maxEmphasis int
	logger      *zap.Logger
}

// NewSemanticAdapter 创建语义检索适配器。
func NewSemanticAdapter(embedder types.EmbeddingService, index types.VectorIndex, logger *zap.Logger) *SemanticAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticAdapter{
		embedder:    embedder,
		index:       index,
		maxEmphasis: 5,
		logger:      logger.With(zap.String("component", "semantic_adapter")),
	}
}

// ID 返回策略标签。
func (a *SemanticAdapter) ID() types.StrategyID { return types.StrategySemantic }

// Confidence 语义检索的声明置信度。
func (a *SemanticAdapter) Confidence() float64 { return 0.8 }

// Retrieve 执行语义检索。
func (a *SemanticAdapter) Retrieve(ctx context.Context, query types.Query, analysis types.QueryAnalysis, k int) ([]types.RetrievalResult, error) {
	emphasized := a.emphasizeTerms(query.Text, analysis)

	vector, err := a.embedder.Embed(ctx, emphasized)
	if err != nil {
		return nil, fmt.Errorf("embed emphasized query: %w", err)
	}

	// 语义检索不下推过滤条件：加权后的查询本身已经放宽了匹配
	results, err := a.index.Search(ctx, vector, k, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	a.logger.Debug("semantic retrieval done",
		zap.Int("results", len(results)),
		zap.String("emphasized", truncate(emphasized, 80)))
	return tagResults(results, a.ID()), nil
}

// emphasizeTerms 重复追加关键词与实体（去重、封顶）。
// 不是同义词扩展：分析阶段的词都来自查询本身，追加只改变
// 各词在向量里的相对权重。
func (a *SemanticAdapter) emphasizeTerms(text string, analysis types.QueryAnalysis) string {
	var terms []string
	seen := make(map[string]bool)

	for _, kw := range analysis.Keywords {
		if len(terms) >= a.maxEmphasis {
			break
		}
		if seen[kw] {
			continue
		}
		seen[kw] = true
		terms = append(terms, kw)
	}
	for _, e := range analysis.Entities {
		if len(terms) >= a.maxEmphasis {
			break
		}
		le := strings.ToLower(e)
		if seen[le] {
			continue
		}
		seen[le] = true
		terms = append(terms, e)
	}

	if len(terms) == 0 {
		return text
	}
	return text + " " + strings.Join(terms, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
