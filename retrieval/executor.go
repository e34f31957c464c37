package retrieval

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/internal/pool"
	"github.com/BaSui01/fusionflow/types"
)

// RetrievalExecutor 并发执行路由计划中的各策略适配器。
// 每个策略有独立超时；失败或超时的策略产出空结果并带错误标记，
// 不会中断兄弟策略。只有全部策略失败才返回硬错误。
type RetrievalExecutor struct {
	registry *Registry
	pool     *pool.WorkerPool
	logger   *zap.Logger
}

// NewRetrievalExecutor 创建执行器。
// maxFanout 为工作池大小，应等于路由器的 MaxStrategies。
func NewRetrievalExecutor(registry *Registry, maxFanout int, logger *zap.Logger) *RetrievalExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrievalExecutor{
		registry: registry,
		pool:     pool.New(maxFanout, maxFanout*2),
		logger:   logger.With(zap.String("component", "retrieval_executor")),
	}
}

// Close 关闭底层工作池。
func (e *RetrievalExecutor) Close() {
	e.pool.Close()
}

// Execute 按计划扇出检索，所有策略完成或超时后返回。
// 返回的 outcomes 与 plan.Strategies 一一对应（顺序一致）。
// 全部失败时 error 为 ALL_STRATEGIES_FAILED。
func (e *RetrievalExecutor) Execute(ctx context.Context, plan types.RoutingPlan, query types.Query, analysis types.QueryAnalysis, k int) ([]types.StrategyOutcome, error) {
	n := len(plan.Strategies)
	if n == 0 {
		return nil, types.NewError(types.ErrAllStrategiesFailed, "no strategies selected")
	}

	// 每个任务写自己的槽位，扇入前无共享可变状态
	outcomes := make([]types.StrategyOutcome, n)
	waits := make([]<-chan struct{}, 0, n)

	for i, desc := range plan.Strategies {
		adapter, ok := e.registry.Get(desc.ID)
		if !ok {
			outcomes[i] = types.StrategyOutcome{
				Strategy: desc.ID,
				Success:  false,
				Err:      "strategy not registered",
			}
			continue
		}

		slot := &outcomes[i]
		timeout := desc.Timeout

		done, err := e.pool.Submit(ctx, func(taskCtx context.Context) {
			*slot = e.runOne(taskCtx, adapter, query, analysis, k, timeout)
		})
		if err != nil {
			outcomes[i] = types.StrategyOutcome{
				Strategy: desc.ID,
				Success:  false,
				Err:      err.Error(),
			}
			continue
		}
		waits = append(waits, done)
	}

	// 扇入点：等全部任务完成（任务自身受各自超时约束）
	for _, done := range waits {
		<-done
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
		}
	}

	if succeeded == 0 {
		return outcomes, types.NewError(types.ErrAllStrategiesFailed, "all retrieval strategies failed").
			WithOutcomes(outcomes)
	}

	return outcomes, nil
}

// runOne 执行单个适配器，带超时与错误隔离。
func (e *RetrievalExecutor) runOne(ctx context.Context, adapter StrategyAdapter, query types.Query, analysis types.QueryAnalysis, k int, timeout time.Duration) types.StrategyOutcome {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	results, err := adapter.Retrieve(callCtx, query, analysis, k)
	latency := time.Since(start)

	outcome := types.StrategyOutcome{
		Strategy:   adapter.ID(),
		Latency:    latency,
		Confidence: adapter.Confidence(),
	}

	if err != nil {
		code := types.ErrAdapterFailure
		if errors.Is(err, context.DeadlineExceeded) {
			code = types.ErrAdapterTimeout
		}
		outcome.Err = string(code) + ": " + err.Error()
		e.logger.Warn("strategy failed",
			zap.String("strategy", string(adapter.ID())),
			zap.Duration("latency", latency),
			zap.Error(err))
		return outcome
	}

	for i := range results {
		results[i].Latency = latency
	}
	outcome.Results = results
	outcome.Success = true

	e.logger.Debug("strategy completed",
		zap.String("strategy", string(adapter.ID())),
		zap.Int("results", len(results)),
		zap.Duration("latency", latency))

	return outcome
}
