package types

import "time"

// RetrievalResult 单个候选结果（由某一策略返回）
type RetrievalResult struct {
	DocID    string         `json:"doc_id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"` // Raw, method-specific scale
	Strategy StrategyID     `json:"strategy"`
	Latency  time.Duration  `json:"latency"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// StrategyOutcome 执行器对单个策略的诊断记录
type StrategyOutcome struct {
	Strategy   StrategyID        `json:"strategy"`
	Results    []RetrievalResult `json:"results"`
	Latency    time.Duration     `json:"latency"`
	Confidence float64           `json:"confidence"`
	Success    bool              `json:"success"`
	Err        string            `json:"error,omitempty"`
}

// Contribution 融合阶段单个策略对某文档的贡献（可解释性）
type Contribution struct {
	Strategy StrategyID `json:"strategy"`
	Score    float64    `json:"score"`
}

// FusedResult 融合后的结果：每个唯一文档 ID 恰好一条
type FusedResult struct {
	DocID         string         `json:"doc_id"`
	Content       string         `json:"content"`
	CombinedScore float64        `json:"combined_score"`
	Contributions []Contribution `json:"contributions"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// RerankedResult 重排后的结果
type RerankedResult struct {
	FusedResult
	RerankScore float64 `json:"rerank_score"`
	// Rank 是 1 起始的稠密排名，严格递增无空洞
	Rank        int     `json:"rank"`
	Confidence  float64 `json:"confidence"` // [0,1]
	ScoringMode string  `json:"scoring_mode"`
}

// QualityAssessment 对最终列表的四轴质量评估，分值均在 [0,1]
type QualityAssessment struct {
	Relevance       float64  `json:"relevance"`
	Completeness    float64  `json:"completeness"`
	Accuracy        float64  `json:"accuracy"`
	Diversity       float64  `json:"diversity"`
	Overall         float64  `json:"overall"`
	NeedsCorrection bool     `json:"needs_correction"`
	Gaps            []string `json:"gaps,omitempty"`
}

// ActionType 纠错动作变体标签
type ActionType string

const (
	ActionRefineQuery    ActionType = "refine_query"
	ActionExpandSearch   ActionType = "expand_search"
	ActionSwitchStrategy ActionType = "switch_strategy"
	ActionInjectContext  ActionType = "inject_context"
)

// CorrectiveAction 一次纠错动作及其参数。
// Confidence 与 ExpectedImprovement 仅用于日志/遥测，不参与控制流。
type CorrectiveAction struct {
	Type                ActionType        `json:"type"`
	Params              map[string]string `json:"params,omitempty"`
	Confidence          float64           `json:"confidence"`
	ExpectedImprovement float64           `json:"expected_improvement"`
	Reason              string            `json:"reason,omitempty"`
}

// CorrectionRound 一轮检索-评估-纠错的审计记录
type CorrectionRound struct {
	ID         string            `json:"id"`
	Round      int               `json:"round"` // 1-based
	Query      Query             `json:"query"`
	Assessment QualityAssessment `json:"assessment"`
	// Action 是本轮之后选择的纠错动作；终止轮为 nil
	Action         *CorrectiveAction `json:"action,omitempty"`
	StrategiesUsed []StrategyID      `json:"strategies_used"`
	Outcomes       []StrategyOutcome `json:"outcomes,omitempty"`
	Duration       time.Duration     `json:"duration"`
}

// RetrieveResponse Retrieve 的完整返回值
type RetrieveResponse struct {
	InvocationID    string            `json:"invocation_id"`
	Results         []RerankedResult  `json:"results"`
	RoundsUsed      int               `json:"rounds_used"`
	FinalAssessment QualityAssessment `json:"final_assessment"`
	StrategiesUsed  []StrategyID      `json:"strategies_used"`
	Rounds          []CorrectionRound `json:"rounds,omitempty"`
}
