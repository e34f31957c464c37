package retrieval

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/fusionflow/types"
)

// FederatedAdapter 联邦检索适配器：并发查询一组联邦节点并合并结果。
// 单节点失败只记日志，不影响整个联邦调用；全部节点失败才返回错误。
type FederatedAdapter struct {
	nodes  []types.FederatedNode
	logger *zap.Logger
}

// NewFederatedAdapter 创建联邦检索适配器。
func NewFederatedAdapter(nodes []types.FederatedNode, logger *zap.Logger) *FederatedAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FederatedAdapter{
		nodes:  nodes,
		logger: logger.With(zap.String("component", "federated_adapter")),
	}
}

// ID 返回策略标签。
func (a *FederatedAdapter) ID() types.StrategyID { return types.StrategyFederated }

// Confidence 联邦检索的声明置信度。
func (a *FederatedAdapter) Confidence() float64 { return 0.7 }

// Retrieve 并发查询所有节点。结果按节点 ID 排序后合并，
// 保证输出与节点完成顺序无关。
func (a *FederatedAdapter) Retrieve(ctx context.Context, query types.Query, _ types.QueryAnalysis, k int) ([]types.RetrievalResult, error) {
	if len(a.nodes) == 0 {
		return nil, nil
	}

	type nodeResult struct {
		nodeID  string
		results []types.RetrievalResult
	}

	var mu sync.Mutex
	collected := make([]nodeResult, 0, len(a.nodes))
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	for _, node := range a.nodes {
		g.Go(func() error {
			results, err := node.Query(gctx, query.Text)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				a.logger.Warn("federated node failed",
					zap.String("node", node.ID()),
					zap.Error(err))
				// 部分失败不终止兄弟节点
				return nil
			}
			collected = append(collected, nodeResult{nodeID: node.ID(), results: results})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if failures == len(a.nodes) {
		return nil, types.NewError(types.ErrAdapterFailure, "all federated nodes failed").
			WithStrategy(a.ID()).
			WithRetryable(true)
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].nodeID < collected[j].nodeID })

	merged := make([]types.RetrievalResult, 0, k)
	seen := make(map[string]bool)
	for _, nr := range collected {
		for _, r := range nr.results {
			if seen[r.DocID] {
				continue
			}
			seen[r.DocID] = true
			if r.Metadata == nil {
				r.Metadata = map[string]any{}
			}
			r.Metadata["federated_node"] = nr.nodeID
			merged = append(merged, r)
		}
	}
	if len(merged) > k {
		merged = merged[:k]
	}

	a.logger.Debug("federated retrieval done",
		zap.Int("nodes", len(a.nodes)),
		zap.Int("failures", failures),
		zap.Int("results", len(merged)))
	return tagResults(merged, a.ID()), nil
}
