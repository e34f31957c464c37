package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/types"
)

// LoopState 纠错循环状态机的状态。
type LoopState string

const (
	StateRetrieving LoopState = "retrieving"
	StateAssessing  LoopState = "assessing"
	StateCorrecting LoopState = "correcting"
	StateDone       LoopState = "done"
)

// CorrectionPlanner 根据质量缺口选择纠错动作。
// 确定性规则：最大缺口维度决定动作类型，已用过的动作类型不再重复。
type CorrectionPlanner struct {
	thresholds QualityConfig
	logger     *zap.Logger
}

// NewCorrectionPlanner 创建纠错规划器。
func NewCorrectionPlanner(thresholds QualityConfig, logger *zap.Logger) *CorrectionPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CorrectionPlanner{
		thresholds: thresholds,
		logger:     logger.With(zap.String("component", "correction_planner")),
	}
}

// gapCandidate 一个维度缺口与其对应的动作。
type gapCandidate struct {
	dimension string
	gap       float64
	action    types.ActionType
}

// Plan 选择下一个纠错动作。
// 映射：相关性缺口→refine_query；完整性→expand_search；
// 多样性→switch_strategy；其余（准确性）→inject_context。
// 所有候选动作都已用过时返回 nil（循环应终止）。
func (p *CorrectionPlanner) Plan(assessment types.QualityAssessment, taken map[types.ActionType]bool) *types.CorrectiveAction {
	candidates := []gapCandidate{
		{"relevance", p.thresholds.RelevanceThreshold - assessment.Relevance, types.ActionRefineQuery},
		{"completeness", p.thresholds.CompletenessThreshold - assessment.Completeness, types.ActionExpandSearch},
		{"diversity", p.thresholds.DiversityThreshold - assessment.Diversity, types.ActionSwitchStrategy},
		{"accuracy", p.thresholds.AccuracyThreshold - assessment.Accuracy, types.ActionInjectContext},
	}

	// 缺口降序；同缺口时保持固定维度序（确定性）
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].gap > candidates[j].gap
	})

	for _, c := range candidates {
		if taken[c.action] {
			continue
		}
		action := &types.CorrectiveAction{
			Type:                c.action,
			Confidence:          actionConfidence[c.action],
			ExpectedImprovement: actionImprovement[c.action],
			Reason:              fmt.Sprintf("%s gap %.2f", c.dimension, c.gap),
		}
		p.logger.Debug("corrective action planned",
			zap.String("action", string(c.action)),
			zap.String("dimension", c.dimension),
			zap.Float64("gap", c.gap))
		return action
	}
	return nil
}

// 动作类型的固定置信度/期望改善（仅用于日志与遥测）。
var actionConfidence = map[types.ActionType]float64{
	types.ActionRefineQuery:    0.8,
	types.ActionExpandSearch:   0.7,
	types.ActionSwitchStrategy: 0.6,
	types.ActionInjectContext:  0.5,
}

var actionImprovement = map[types.ActionType]float64{
	types.ActionRefineQuery:    0.15,
	types.ActionExpandSearch:   0.10,
	types.ActionSwitchStrategy: 0.10,
	types.ActionInjectContext:  0.05,
}

// RoundInput 单轮检索的输入参数，动作应用后逐轮演化。
type RoundInput struct {
	Query     types.Query
	K         int
	Overrides RouteOverrides
}

// RoundOutput 单轮完整流水线的产出。
type RoundOutput struct {
	Analysis   types.QueryAnalysis
	Plan       types.RoutingPlan
	Outcomes   []types.StrategyOutcome
	Results    []types.RerankedResult
	Assessment types.QualityAssessment
}

// RoundFunc 执行一轮 分析→路由→检索→融合→重排→评估 流水线。
type RoundFunc func(ctx context.Context, in RoundInput) (RoundOutput, error)

// LoopResult 循环终止后的汇总。
type LoopResult struct {
	Results        []types.RerankedResult
	Assessment     types.QualityAssessment
	RoundsUsed     int
	Rounds         []types.CorrectionRound
	StrategiesUsed []types.StrategyID
}

// CorrectionLoopController 有界纠错循环。
// 终止条件（满足其一）：质量达标、轮次预算用尽、无可用动作。
// 取消只在轮与轮之间生效，进行中的一轮总是跑完。
// 返回历史最优轮的结果；同分时取最早的轮。
type CorrectionLoopController struct {
	planner   *CorrectionPlanner
	maxRounds int
	logger    *zap.Logger
}

// NewCorrectionLoopController 创建循环控制器。
func NewCorrectionLoopController(planner *CorrectionPlanner, maxRounds int, logger *zap.Logger) *CorrectionLoopController {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRounds <= 0 {
		maxRounds = 3
	}
	return &CorrectionLoopController{
		planner:   planner,
		maxRounds: maxRounds,
		logger:    logger.With(zap.String("component", "correction_loop")),
	}
}

// Run 执行纠错循环。
func (c *CorrectionLoopController) Run(ctx context.Context, query types.Query, k int, run RoundFunc) (*LoopResult, error) {
	in := RoundInput{Query: query, K: k}
	taken := make(map[types.ActionType]bool, 4)

	result := &LoopResult{}
	bestOverall := -1.0
	strategySeen := make(map[types.StrategyID]bool)

	for round := 1; round <= c.maxRounds; round++ {
		// 轮间取消检查：已开始的轮不被打断
		if round > 1 {
			select {
			case <-ctx.Done():
				c.logger.Info("loop cancelled between rounds",
					zap.Int("completed_rounds", result.RoundsUsed))
				result.StrategiesUsed = sortedStrategyIDs(strategySeen)
				return result, nil
			default:
			}
		}

		c.transition(round, StateRetrieving)
		start := time.Now()
		out, err := run(ctx, in)
		if err != nil {
			// 首轮硬失败直接上抛；后续轮失败保留已有最优结果
			if round == 1 {
				return nil, err
			}
			c.logger.Warn("correction round failed, keeping best so far",
				zap.Int("round", round), zap.Error(err))
			break
		}

		c.transition(round, StateAssessing)
		record := types.CorrectionRound{
			ID:             uuid.NewString(),
			Round:          round,
			Query:          in.Query,
			Assessment:     out.Assessment,
			StrategiesUsed: out.Plan.IDs(),
			Outcomes:       out.Outcomes,
			Duration:       time.Since(start),
		}

		for _, id := range out.Plan.IDs() {
			strategySeen[id] = true
		}

		// 最优轮跟踪：严格更优才替换（同分保最早轮）
		if out.Assessment.Overall > bestOverall {
			bestOverall = out.Assessment.Overall
			result.Results = out.Results
			result.Assessment = out.Assessment
		}
		result.RoundsUsed = round

		if !out.Assessment.NeedsCorrection || round == c.maxRounds {
			if out.Assessment.NeedsCorrection {
				// 预算用尽不是错误：返回最优轮的尽力结果
				c.logger.Info("correction budget exhausted",
					zap.Int("max_rounds", c.maxRounds),
					zap.Float64("best_overall", bestOverall))
			}
			c.transition(round, StateDone)
			result.Rounds = append(result.Rounds, record)
			break
		}

		c.transition(round, StateCorrecting)
		action := c.planner.Plan(out.Assessment, taken)
		if action == nil {
			c.transition(round, StateDone)
			result.Rounds = append(result.Rounds, record)
			c.logger.Debug("no corrective action available", zap.Int("round", round))
			break
		}
		taken[action.Type] = true
		record.Action = action
		result.Rounds = append(result.Rounds, record)

		in = c.applyAction(in, out, action)
	}

	result.StrategiesUsed = sortedStrategyIDs(strategySeen)

	c.logger.Info("correction loop finished",
		zap.Int("rounds", result.RoundsUsed),
		zap.Float64("best_overall", result.Assessment.Overall))

	return result, nil
}

func (c *CorrectionLoopController) transition(round int, state LoopState) {
	c.logger.Debug("state transition",
		zap.Int("round", round), zap.String("state", string(state)))
}

// applyAction 把纠错动作落实到下一轮输入。
func (c *CorrectionLoopController) applyAction(in RoundInput, out RoundOutput, action *types.CorrectiveAction) RoundInput {
	next := in
	next.Overrides = RouteOverrides{}

	switch action.Type {
	case types.ActionRefineQuery:
		next.Query = in.Query.WithText(refineQueryText(in.Query.Text, out.Analysis))
		action.Params = map[string]string{"refined_query": next.Query.Text}

	case types.ActionExpandSearch:
		// 扩大每策略候选数，上限防止失控
		next.K = in.K * 2
		if next.K > 100 {
			next.K = 100
		}
		action.Params = map[string]string{"k": fmt.Sprintf("%d", next.K)}

	case types.ActionSwitchStrategy:
		exclude, prefer := switchStrategyOverrides(out)
		next.Overrides = RouteOverrides{Exclude: exclude, Prefer: prefer}
		action.Params = map[string]string{
			"exclude": joinStrategies(exclude),
			"prefer":  joinStrategies(prefer),
		}

	case types.ActionInjectContext:
		// 把本轮最优结果片段注入上下文，引导下一轮检索
		ctx := next.Query.Context
		for i, r := range out.Results {
			if i >= 2 {
				break
			}
			ctx.ConversationHistory = append(ctx.ConversationHistory, snippet(r.Content, 200))
		}
		next.Query.Context = ctx
		action.Params = map[string]string{"injected_snippets": fmt.Sprintf("%d", min(len(out.Results), 2))}
	}

	return next
}

// refineQueryText 去掉停用词并追加已识别实体，收紧查询焦点。
func refineQueryText(text string, analysis types.QueryAnalysis) string {
	var kept []string
	for _, w := range strings.Fields(text) {
		if stopwords[strings.ToLower(strings.Trim(w, ".,?!;:\"'()"))] {
			continue
		}
		kept = append(kept, w)
	}
	refined := strings.Join(kept, " ")

	lower := strings.ToLower(refined)
	for _, e := range analysis.Entities {
		if !strings.Contains(lower, strings.ToLower(e)) {
			refined += " " + e
		}
	}
	if refined == "" {
		return text
	}
	return refined
}

// switchStrategyOverrides 排除本轮表现最差的策略，优先未用过的策略。
func switchStrategyOverrides(out RoundOutput) (exclude, prefer []types.StrategyID) {
	used := make(map[types.StrategyID]bool, len(out.Outcomes))

	worst := types.StrategyID("")
	worstScore := 2.0
	for _, o := range out.Outcomes {
		used[o.Strategy] = true
		score := 0.0
		if o.Success {
			score = 1.0
			if len(o.Results) == 0 {
				score = 0.5
			}
		}
		if score < worstScore {
			worstScore = score
			worst = o.Strategy
		}
	}
	if worst != "" {
		exclude = append(exclude, worst)
	}

	for _, id := range []types.StrategyID{
		types.StrategySemantic, types.StrategyGraph,
		types.StrategyLexical, types.StrategyVector,
	} {
		if !used[id] {
			prefer = append(prefer, id)
			break
		}
	}
	return exclude, prefer
}

func sortedStrategyIDs(seen map[types.StrategyID]bool) []types.StrategyID {
	ids := make([]types.StrategyID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func joinStrategies(ids []types.StrategyID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

func snippet(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen]
}
