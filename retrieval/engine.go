package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/config"
	"github.com/BaSui01/fusionflow/internal/metrics"
	"github.com/BaSui01/fusionflow/internal/telemetry"
	"github.com/BaSui01/fusionflow/types"
)

// RunHistory 检索运行历史：写入策略执行记录，读取策略成功率。
// 路由器用成功率微调权重，形成反馈闭环。
type RunHistory interface {
	PerformanceHistory
	RecordOutcomes(ctx context.Context, invocationID string, outcomes []types.StrategyOutcome) error
}

// RerankBackends 重排阶段的外部打分后端。
type RerankBackends struct {
	Pairwise   types.PairwiseScorer
	Embedder   types.EmbeddingService
	Similarity types.EmbeddingScorer
}

// RetrieveOptions 单次调用的可选覆盖，零值使用引擎配置。
type RetrieveOptions struct {
	// MaxRounds 本次调用的轮次上限（不超过引擎配置）
	MaxRounds int
	// TopK 最终列表上限
	TopK int
	// CandidatesPerStrategy 每策略候选数
	CandidatesPerStrategy int
	// MaxStrategies 单轮策略数上限（不超过引擎配置）
	MaxStrategies int
	// StrategyTimeout 单策略超时上限
	StrategyTimeout time.Duration
	// IncludeRounds 返回值中携带逐轮审计记录
	IncludeRounds bool
}

// applyPlanCaps 按调用方上限收紧路由计划并重新归一化权重。
func applyPlanCaps(plan types.RoutingPlan, opts *RetrieveOptions) types.RoutingPlan {
	if opts.MaxStrategies > 0 && len(plan.Strategies) > opts.MaxStrategies {
		plan.Strategies = plan.Strategies[:opts.MaxStrategies]
		total := 0.0
		for _, d := range plan.Strategies {
			total += d.Weight
		}
		if total > 0 {
			for i := range plan.Strategies {
				plan.Strategies[i].Weight /= total
			}
		}
	}
	if opts.StrategyTimeout > 0 {
		for i := range plan.Strategies {
			if plan.Strategies[i].Timeout > opts.StrategyTimeout {
				plan.Strategies[i].Timeout = opts.StrategyTimeout
			}
		}
	}
	return plan
}

// Option 引擎可选依赖。
type Option func(*Engine)

// WithLogger 设置日志器。
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics 设置指标收集器。
func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = collector }
}

// WithHistory 设置运行历史存储。
func WithHistory(history RunHistory) Option {
	return func(e *Engine) { e.history = history }
}

// Engine 检索引擎门面：
// 分析 → 路由 → 并发检索 → 融合 → 重排 → 质量评估 → 有界纠错循环。
type Engine struct {
	analyzer  *QueryAnalyzer
	router    *StrategyRouter
	executor  *RetrievalExecutor
	fusion    *FusionEngine
	reranker  *Reranker
	assessor  *QualityAssessor
	planner   *CorrectionPlanner
	history   RunHistory
	metrics   *metrics.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
	maxRounds int
	defaultK  int
	finalSize int
}

// 每策略默认候选数
const defaultCandidates = 10

// NewEngine 按配置装配引擎。registry 中的适配器决定可用策略。
func NewEngine(cfg *config.Config, registry *Registry, backends RerankBackends, opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	logger := e.logger
	tokenizer := NewTiktokenCounter(cfg.Engine.TokenizerModel, logger)

	e.analyzer = NewQueryAnalyzer(tokenizer, logger)
	e.router = NewStrategyRouter(routerConfigFrom(cfg), registry, e.history, logger)
	e.executor = NewRetrievalExecutor(registry, cfg.Engine.MaxStrategies, logger)
	e.fusion = NewFusionEngine(FusionConfig{
		DefaultBaseScore:    cfg.Fusion.DefaultBaseScore,
		LatencyPenaltyFloor: cfg.Fusion.LatencyPenaltyFloor,
		LatencyPenaltyScale: cfg.Fusion.LatencyPenaltyScale,
		MaxResults:          cfg.Fusion.MaxResults,
	}, logger)
	e.reranker = NewReranker(RerankConfig{
		ModeOverride:             ScoringMode(cfg.Rerank.ModeOverride),
		PairwiseWeight:           cfg.Rerank.PairwiseWeight,
		EmbeddingWeight:          cfg.Rerank.EmbeddingWeight,
		ContextBoostCap:          cfg.Rerank.ContextBoostCap,
		MultiObjectiveMinResults: cfg.Rerank.MultiObjectiveMinResults,
		RelevanceWeight:          cfg.Rerank.RelevanceWeight,
		DiversityWeight:          cfg.Rerank.DiversityWeight,
		NoveltyWeight:            cfg.Rerank.NoveltyWeight,
		SourceQualityWeight:      cfg.Rerank.SourceQualityWeight,
	}, backends.Pairwise, backends.Embedder, backends.Similarity, tokenizer, logger)

	qcfg := QualityConfig{
		OverallThreshold:      cfg.Quality.OverallThreshold,
		RelevanceThreshold:    cfg.Quality.RelevanceThreshold,
		CompletenessThreshold: cfg.Quality.CompletenessThreshold,
		AccuracyThreshold:     cfg.Quality.AccuracyThreshold,
		DiversityThreshold:    cfg.Quality.DiversityThreshold,
		TopN:                  cfg.Quality.TopN,
	}
	e.assessor = NewQualityAssessor(qcfg, logger)
	e.planner = NewCorrectionPlanner(qcfg, logger)

	e.tracer = telemetry.Tracer()
	e.maxRounds = cfg.Engine.MaxRounds
	e.defaultK = defaultCandidates
	e.finalSize = cfg.Engine.FinalListSize

	return e
}

// routerConfigFrom 把外部策略配置映射为路由配置。
func routerConfigFrom(cfg *config.Config) RouterConfig {
	strategies := make(map[types.StrategyID]StrategyWeight, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		if !sc.Enabled {
			continue
		}
		strategies[types.StrategyID(sc.ID)] = StrategyWeight{
			Weight:  sc.Weight,
			Timeout: sc.Timeout,
		}
	}
	return RouterConfig{
		Strategies:     strategies,
		MaxStrategies:  cfg.Engine.MaxStrategies,
		DefaultTimeout: cfg.Engine.StrategyTimeout,
	}
}

// Close 释放引擎资源。
func (e *Engine) Close() {
	e.executor.Close()
}

// Retrieve 执行一次完整的自适应检索。
// 空查询返回空结果集与零轮次，不算错误。
// 全部策略失败时返回 ALL_STRATEGIES_FAILED 错误（附诊断）。
func (e *Engine) Retrieve(ctx context.Context, query types.Query, opts *RetrieveOptions) (*types.RetrieveResponse, error) {
	invocationID := uuid.NewString()
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "engine.retrieve",
		trace.WithAttributes(attribute.String("invocation_id", invocationID)))
	defer span.End()

	if opts == nil {
		opts = &RetrieveOptions{}
	}

	if strings.TrimSpace(query.Text) == "" {
		e.logger.Info("empty query, returning empty response",
			zap.String("invocation_id", invocationID))
		e.recordRetrieve("invalid_query", time.Since(start), 0, 0)
		return &types.RetrieveResponse{
			InvocationID:   invocationID,
			Results:        []types.RerankedResult{},
			RoundsUsed:     0,
			StrategiesUsed: []types.StrategyID{},
		}, nil
	}

	maxRounds := e.maxRounds
	if opts.MaxRounds > 0 && opts.MaxRounds < maxRounds {
		maxRounds = opts.MaxRounds
	}
	k := e.defaultK
	if opts.CandidatesPerStrategy > 0 {
		k = opts.CandidatesPerStrategy
	}
	finalSize := e.finalSize
	if opts.TopK > 0 && opts.TopK < finalSize {
		finalSize = opts.TopK
	}

	loop := NewCorrectionLoopController(e.planner, maxRounds, e.logger)

	result, err := loop.Run(ctx, query, k, func(roundCtx context.Context, in RoundInput) (RoundOutput, error) {
		return e.runRound(roundCtx, invocationID, in, opts, finalSize)
	})
	if err != nil {
		e.recordRetrieve("error", time.Since(start), 0, 0)
		span.RecordError(err)
		return nil, err
	}

	resp := &types.RetrieveResponse{
		InvocationID:    invocationID,
		Results:         result.Results,
		RoundsUsed:      result.RoundsUsed,
		FinalAssessment: result.Assessment,
		StrategiesUsed:  result.StrategiesUsed,
	}
	if resp.Results == nil {
		resp.Results = []types.RerankedResult{}
	}
	if opts.IncludeRounds {
		resp.Rounds = result.Rounds
	}

	if e.metrics != nil {
		for _, round := range result.Rounds {
			if round.Action != nil {
				e.metrics.RecordCorrectiveAction(string(round.Action.Type))
			}
		}
	}

	e.recordRetrieve("ok", time.Since(start), resp.RoundsUsed, len(resp.Results))
	e.logger.Info("retrieve completed",
		zap.String("invocation_id", invocationID),
		zap.Int("rounds", resp.RoundsUsed),
		zap.Int("results", len(resp.Results)),
		zap.Float64("quality", resp.FinalAssessment.Overall))

	return resp, nil
}

// runRound 执行一轮 分析→路由→检索→融合→重排→评估。
func (e *Engine) runRound(ctx context.Context, invocationID string, in RoundInput, opts *RetrieveOptions, finalSize int) (RoundOutput, error) {
	ctx, span := e.tracer.Start(ctx, "engine.round")
	defer span.End()

	analysis := e.analyzer.Analyze(in.Query)
	plan := applyPlanCaps(e.router.Route(ctx, analysis, in.Overrides), opts)

	outcomes, err := e.executor.Execute(ctx, plan, in.Query, analysis, in.K)
	e.recordOutcomes(ctx, invocationID, outcomes)
	if err != nil {
		span.RecordError(err)
		return RoundOutput{}, err
	}

	fused := e.fusion.Fuse(plan, outcomes)

	reranked, err := e.reranker.Rerank(ctx, in.Query, analysis, fused)
	if err != nil {
		span.RecordError(err)
		return RoundOutput{}, err
	}
	if len(reranked) > finalSize {
		reranked = reranked[:finalSize]
	}
	if len(reranked) > 0 && e.metrics != nil {
		e.metrics.RecordRerankMode(reranked[0].ScoringMode)
	}

	assessment := e.assessor.Assess(in.Query, analysis, reranked)
	if e.metrics != nil {
		e.metrics.RecordQuality(assessment.Relevance, assessment.Completeness,
			assessment.Accuracy, assessment.Diversity, assessment.Overall)
	}

	span.SetAttributes(
		attribute.Int("results", len(reranked)),
		attribute.Float64("quality", assessment.Overall))

	return RoundOutput{
		Analysis:   analysis,
		Plan:       plan,
		Outcomes:   outcomes,
		Results:    reranked,
		Assessment: assessment,
	}, nil
}

// recordOutcomes 上报策略指标并写入运行历史（失败不阻断检索）。
func (e *Engine) recordOutcomes(ctx context.Context, invocationID string, outcomes []types.StrategyOutcome) {
	for _, o := range outcomes {
		if e.metrics != nil {
			status := "ok"
			if !o.Success {
				status = "error"
			}
			e.metrics.RecordStrategy(string(o.Strategy), status, o.Latency, len(o.Results))
		}
	}
	if e.history != nil && len(outcomes) > 0 {
		if err := e.history.RecordOutcomes(ctx, invocationID, outcomes); err != nil {
			e.logger.Warn("history write failed", zap.Error(err))
		}
	}
}

func (e *Engine) recordRetrieve(status string, duration time.Duration, rounds, results int) {
	if e.metrics != nil {
		e.metrics.RecordRetrieve(status, duration, rounds, results)
	}
}
