package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/types"
)

// FusionConfig 融合阶段配置。
type FusionConfig struct {
	// 适配器未提供归一化分数时的默认 baseScore
	DefaultBaseScore float64
	// 延迟惩罚: max(Floor, 1 - latencySeconds/Scale)
	LatencyPenaltyFloor float64
	LatencyPenaltyScale float64
	// 多样性过滤后的列表上限
	MaxResults int
}

// DefaultFusionConfig 返回默认融合配置。
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		DefaultBaseScore:    0.5,
		LatencyPenaltyFloor: 0.5,
		LatencyPenaltyScale: 5.0,
		MaxResults:          20,
	}
}

// FusionEngine 加权倒数排名融合（weighted RRF）+ 延迟惩罚 + 多样性过滤。
// 融合结果是各策略结果集合与权重的纯函数：并发适配器的完成顺序
// 不影响融合排序。
type FusionEngine struct {
	config FusionConfig
	logger *zap.Logger
}

// NewFusionEngine 创建融合引擎。
func NewFusionEngine(config FusionConfig, logger *zap.Logger) *FusionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultBaseScore <= 0 {
		config.DefaultBaseScore = 0.5
	}
	if config.LatencyPenaltyScale <= 0 {
		config.LatencyPenaltyScale = 5.0
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 20
	}
	return &FusionEngine{
		config: config,
		logger: logger.With(zap.String("component", "fusion_engine")),
	}
}

// Fuse 融合各策略结果为去重后的单一排序列表。
// 不变式：融合后每个唯一文档 ID 恰好一条 FusedResult。
func (f *FusionEngine) Fuse(plan types.RoutingPlan, outcomes []types.StrategyOutcome) []types.FusedResult {
	weights := f.effectiveWeights(plan, outcomes)

	// 按文档聚合各策略贡献
	type docAccum struct {
		contributions []types.Contribution
		content       string
		metadata      map[string]any
	}
	docs := make(map[string]*docAccum)

	for _, outcome := range outcomes {
		w := weights[outcome.Strategy]
		if w == 0 || len(outcome.Results) == 0 {
			continue
		}

		penalty := f.latencyPenalty(outcome.Latency.Seconds())
		bases := f.baseScores(outcome.Results)

		for i, result := range outcome.Results {
			// 贡献 = 权重 × baseScore × 1/(rank+1) × 延迟惩罚
			contribution := w * bases[i] * (1.0 / float64(i+1)) * penalty

			acc, ok := docs[result.DocID]
			if !ok {
				acc = &docAccum{}
				docs[result.DocID] = acc
			}
			acc.contributions = append(acc.contributions, types.Contribution{
				Strategy: outcome.Strategy,
				Score:    contribution,
			})
			if acc.content == "" {
				acc.content = result.Content
			}
			if acc.metadata == nil && result.Metadata != nil {
				acc.metadata = result.Metadata
			}
		}
	}

	fused := make([]types.FusedResult, 0, len(docs))
	for docID, acc := range docs {
		// 按策略 ID 排序后求和：浮点加法顺序固定，
		// 保证融合分数与适配器完成顺序无关
		sort.Slice(acc.contributions, func(i, j int) bool {
			return acc.contributions[i].Strategy < acc.contributions[j].Strategy
		})
		combined := 0.0
		for _, c := range acc.contributions {
			combined += c.Score
		}
		fused = append(fused, types.FusedResult{
			DocID:         docID,
			Content:       acc.content,
			CombinedScore: combined,
			Contributions: acc.contributions,
			Metadata:      acc.metadata,
		})
	}

	// 分数降序；同分时文档 ID 字典序靠前者优先（确定性）
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].CombinedScore != fused[j].CombinedScore {
			return fused[i].CombinedScore > fused[j].CombinedScore
		}
		return fused[i].DocID < fused[j].DocID
	})

	filtered := f.diversityFilter(fused)

	f.logger.Debug("fusion done",
		zap.Int("candidates", len(fused)),
		zap.Int("after_diversity", len(filtered)))

	return filtered
}

// effectiveWeights 计算本次调用的有效权重：
// 失败策略权重为 0；成功策略按声明置信度微调后重新归一化，
// 保证和恒为 1（全部失败时为 0）。
func (f *FusionEngine) effectiveWeights(plan types.RoutingPlan, outcomes []types.StrategyOutcome) map[types.StrategyID]float64 {
	planned := make(map[types.StrategyID]float64, len(plan.Strategies))
	for _, desc := range plan.Strategies {
		planned[desc.ID] = desc.Weight
	}

	weights := make(map[types.StrategyID]float64, len(outcomes))
	total := 0.0
	for _, o := range outcomes {
		if !o.Success {
			weights[o.Strategy] = 0
			continue
		}
		w := planned[o.Strategy]
		if conf := o.Confidence; conf > 0 {
			w *= conf
		}
		weights[o.Strategy] = w
		total += w
	}

	if total > 0 {
		for id, w := range weights {
			weights[id] = w / total
		}
	}
	return weights
}

// baseScores 对单个策略的原始分数做 min-max 归一化。
// 分数缺失或退化（全部相同）时统一使用默认 baseScore。
func (f *FusionEngine) baseScores(results []types.RetrievalResult) []float64 {
	minScore, maxScore := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < minScore {
			minScore = r.Score
		}
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}

	bases := make([]float64, len(results))
	if maxScore == minScore {
		for i := range bases {
			bases[i] = f.config.DefaultBaseScore
		}
		return bases
	}
	for i, r := range results {
		bases[i] = (r.Score - minScore) / (maxScore - minScore)
	}
	return bases
}

// latencyPenalty 限制慢策略的影响但不丢弃其结果。
func (f *FusionEngine) latencyPenalty(latencySeconds float64) float64 {
	penalty := 1.0 - latencySeconds/f.config.LatencyPenaltyScale
	if penalty < f.config.LatencyPenaltyFloor {
		return f.config.LatencyPenaltyFloor
	}
	return penalty
}

// diversityFilter 按内容指纹去重：顺序扫描排序后的列表，
// 指纹重复的文档被丢弃（保留高分者），并截断到 MaxResults。
// 幂等：对自身输出再过滤一次结果不变。
func (f *FusionEngine) diversityFilter(fused []types.FusedResult) []types.FusedResult {
	seen := make(map[string]bool, len(fused))
	out := make([]types.FusedResult, 0, len(fused))

	for _, fr := range fused {
		fp := contentFingerprint(fr.Content)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, fr)
		if len(out) >= f.config.MaxResults {
			break
		}
	}
	return out
}

// contentFingerprint 归一化内容哈希（小写、空白折叠）。
func contentFingerprint(content string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
