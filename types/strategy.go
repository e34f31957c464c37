package types

import "time"

// StrategyID 标识一种检索策略。策略是封闭可扩展的变体集合，
// 新增策略 = 新增一个适配器实现 + 一条注册表记录，不修改分发逻辑。
type StrategyID string

const (
	StrategyVector    StrategyID = "vector"    // Dense-vector similarity
	StrategyLexical   StrategyID = "lexical"   // Keyword / BM25-style matching
	StrategySemantic  StrategyID = "semantic"  // Expanded-query semantic search
	StrategyGraph     StrategyID = "graph"     // Graph traversal
	StrategyFederated StrategyID = "federated" // Multi-source federated lookup
)

// StrategyDescriptor 标识一种检索方法及其声明权重与超时预算
type StrategyDescriptor struct {
	ID      StrategyID    `json:"id"`
	Weight  float64       `json:"weight"`
	Timeout time.Duration `json:"timeout"`
}

// RoutingPlan 路由器输出：有序策略集合，权重归一化为 1
type RoutingPlan struct {
	Strategies []StrategyDescriptor `json:"strategies"`
	Reasoning  string               `json:"reasoning,omitempty"`
}

// IDs 返回计划中策略的有序 ID 列表。
func (p RoutingPlan) IDs() []StrategyID {
	ids := make([]StrategyID, 0, len(p.Strategies))
	for _, s := range p.Strategies {
		ids = append(ids, s.ID)
	}
	return ids
}
