package retrieval

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/types"
)

// PerformanceHistory 只读的策略表现历史（可选，由外部存储实现）。
type PerformanceHistory interface {
	SuccessRate(ctx context.Context, id types.StrategyID) (float64, error)
}

// RouterConfig 路由器配置。
type RouterConfig struct {
	// 每个策略的基础权重与超时；未出现的策略视为禁用
	Strategies map[types.StrategyID]StrategyWeight
	// 单轮最多策略数
	MaxStrategies int
	// 默认单策略超时
	DefaultTimeout time.Duration
}

// StrategyWeight 单策略的路由参数。
type StrategyWeight struct {
	Weight  float64
	Timeout time.Duration
}

// DefaultRouterConfig 返回默认路由配置。
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Strategies: map[types.StrategyID]StrategyWeight{
			types.StrategyVector:   {Weight: 1.0},
			types.StrategyLexical:  {Weight: 0.9},
			types.StrategySemantic: {Weight: 0.9},
			types.StrategyGraph:    {Weight: 0.8},
		},
		MaxStrategies:  3,
		DefaultTimeout: 30 * time.Second,
	}
}

// RouteOverrides 纠错动作对路由的覆盖（switch_strategy 使用）。
type RouteOverrides struct {
	// Exclude 本轮排除的策略
	Exclude []types.StrategyID
	// Prefer 本轮优先加入的策略
	Prefer []types.StrategyID
}

// StrategyRouter 把查询分析结果映射为带权重的有序策略集合。
// 规则表确定性映射；历史表现（如配置）只做权重微调。
type StrategyRouter struct {
	config   RouterConfig
	registry *Registry
	history  PerformanceHistory
	logger   *zap.Logger
}

// NewStrategyRouter 创建策略路由器。history 可为 nil。
func NewStrategyRouter(config RouterConfig, registry *Registry, history PerformanceHistory, logger *zap.Logger) *StrategyRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxStrategies <= 0 {
		config.MaxStrategies = 3
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 30 * time.Second
	}
	return &StrategyRouter{
		config:   config,
		registry: registry,
		history:  history,
		logger:   logger.With(zap.String("component", "strategy_router")),
	}
}

// 类型→首选策略规则表。顺序即优先级。
var preferredStrategies = map[types.QueryType][]types.StrategyID{
	types.QueryFactual:     {types.StrategyLexical, types.StrategyVector},
	types.QueryExploratory: {types.StrategySemantic, types.StrategyGraph},
	types.QueryAnalytical:  {types.StrategyVector, types.StrategyLexical, types.StrategySemantic},
	types.QueryMultimodal:  {types.StrategyVector, types.StrategySemantic},
	types.QueryGeneral:     {types.StrategyVector, types.StrategyLexical},
}

// Route 计算路由计划。权重归一化为 1（只对选中的策略）。
func (r *StrategyRouter) Route(ctx context.Context, analysis types.QueryAnalysis, overrides RouteOverrides) types.RoutingPlan {
	excluded := make(map[types.StrategyID]bool, len(overrides.Exclude))
	for _, id := range overrides.Exclude {
		excluded[id] = true
	}

	candidates := preferredStrategies[analysis.Type]
	if len(candidates) == 0 {
		candidates = preferredStrategies[types.QueryGeneral]
	}

	var reasons []string
	reasons = append(reasons, "type="+string(analysis.Type))

	// 优先策略（纠错覆盖）插到最前
	if len(overrides.Prefer) > 0 {
		candidates = append(append([]types.StrategyID{}, overrides.Prefer...), candidates...)
		reasons = append(reasons, "prefer_override")
	}

	// 跨领域查询追加联邦检索
	if isCrossDomain(analysis.Domain) {
		candidates = append(candidates, types.StrategyFederated)
		reasons = append(reasons, "cross_domain")
	}

	// 高复杂度至少两个策略：从默认序补齐
	if analysis.Complexity == types.ComplexityHigh {
		candidates = append(candidates,
			types.StrategyVector, types.StrategyLexical, types.StrategySemantic)
		reasons = append(reasons, "high_complexity")
	}

	selected := r.filter(candidates, excluded)

	// 规则全部落空时的兜底
	if len(selected) == 0 {
		selected = r.filter(preferredStrategies[types.QueryGeneral], excluded)
		reasons = append(reasons, "fallback_default")
	}
	if len(selected) == 0 {
		// 连默认策略都被排除/未注册：放开排除重试一次
		selected = r.filter(preferredStrategies[types.QueryGeneral], nil)
		reasons = append(reasons, "exclusions_relaxed")
	}

	if len(selected) > r.config.MaxStrategies {
		selected = selected[:r.config.MaxStrategies]
	}

	plan := types.RoutingPlan{
		Strategies: r.weigh(ctx, selected),
		Reasoning:  strings.Join(reasons, ","),
	}

	r.logger.Debug("routing decision",
		zap.Any("strategies", plan.IDs()),
		zap.String("reasoning", plan.Reasoning))

	return plan
}

// filter 去重并剔除未注册/禁用/排除的策略，保持输入顺序。
func (r *StrategyRouter) filter(candidates []types.StrategyID, excluded map[types.StrategyID]bool) []types.StrategyID {
	seen := make(map[types.StrategyID]bool, len(candidates))
	var out []types.StrategyID
	for _, id := range candidates {
		if seen[id] || excluded[id] {
			continue
		}
		if _, enabled := r.config.Strategies[id]; !enabled {
			continue
		}
		if _, registered := r.registry.Get(id); !registered {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// weigh 计算归一化权重：基础权重 ×（0.5 + 历史成功率）。
func (r *StrategyRouter) weigh(ctx context.Context, selected []types.StrategyID) []types.StrategyDescriptor {
	descriptors := make([]types.StrategyDescriptor, 0, len(selected))
	total := 0.0

	for _, id := range selected {
		sw := r.config.Strategies[id]
		weight := sw.Weight
		if weight <= 0 {
			weight = 0.5
		}

		if r.history != nil {
			rate, err := r.history.SuccessRate(ctx, id)
			if err != nil {
				// 历史不可用不阻断路由
				r.logger.Warn("history lookup failed",
					zap.String("strategy", string(id)), zap.Error(err))
			} else {
				weight *= 0.5 + rate
			}
		}

		timeout := sw.Timeout
		if timeout <= 0 {
			timeout = r.config.DefaultTimeout
		}

		descriptors = append(descriptors, types.StrategyDescriptor{
			ID:      id,
			Weight:  weight,
			Timeout: timeout,
		})
		total += weight
	}

	// 权重归一化不变式：选中策略权重和恒为 1
	if total > 0 {
		for i := range descriptors {
			descriptors[i].Weight /= total
		}
	}

	return descriptors
}

// isCrossDomain 领域提示含多个领域或显式标记时视为跨领域。
func isCrossDomain(domain string) bool {
	if domain == "" {
		return false
	}
	if strings.Contains(domain, ",") {
		return true
	}
	return strings.Contains(strings.ToLower(domain), "cross")
}
