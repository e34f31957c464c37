package types

import "context"

// 引擎消费的外部协作者接口。实现无关：向量索引怎样存储、
// embedding 怎样计算都不在引擎职责内。

// EmbeddingService 文本向量化服务
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorIndex 向量相似度检索后端
type VectorIndex interface {
	Search(ctx context.Context, vector []float64, k int, filters []StructuredFilter) ([]RetrievalResult, error)
}

// LexicalIndex 词法/关键词检索后端（BM25 风格打分）
type LexicalIndex interface {
	Search(ctx context.Context, text string, k int) ([]RetrievalResult, error)
}

// GraphStore 图遍历检索后端
type GraphStore interface {
	Traverse(ctx context.Context, entities []string, depth int) ([]RetrievalResult, error)
}

// FederatedNode 联邦检索节点。单节点失败不应使整个联邦调用失败。
type FederatedNode interface {
	ID() string
	Query(ctx context.Context, text string) ([]RetrievalResult, error)
}

// PairwiseScorer 交叉编码器风格的 (query, document) 成对打分器
type PairwiseScorer interface {
	Score(ctx context.Context, query, documentText string) (float64, error)
}

// EmbeddingScorer 双编码器风格的向量相似度打分器
type EmbeddingScorer interface {
	Similarity(a, b []float64) float64
}
