package types

// QueryComplexity 查询复杂度等级
type QueryComplexity string

const (
	ComplexityLow    QueryComplexity = "low"
	ComplexityMedium QueryComplexity = "medium"
	ComplexityHigh   QueryComplexity = "high"
)

// QueryType 查询类型，驱动策略与重排模型选择
type QueryType string

const (
	QueryFactual     QueryType = "factual"            // Simple fact lookup
	QueryExploratory QueryType = "exploratory"        // Open-ended exploration
	QueryAnalytical  QueryType = "complex_analytical" // Multi-step reasoning
	QueryMultimodal  QueryType = "multimodal"         // References non-text content
	QueryGeneral     QueryType = "general"            // No clearer signal
)

// FilterOperator 结构化过滤器操作符
type FilterOperator string

const (
	FilterGreaterThan FilterOperator = "gt"
	FilterLessThan    FilterOperator = "lt"
	FilterEquals      FilterOperator = "eq"
	FilterRange       FilterOperator = "range"
)

// StructuredFilter 从查询文本中提取的结构化过滤条件
// （日期/数值/分类范围）
type StructuredFilter struct {
	Field    string         `json:"field"`
	Operator FilterOperator `json:"operator"`
	Value    string         `json:"value"`
	// ValueEnd 仅在 Operator == FilterRange 时使用
	ValueEnd string `json:"value_end,omitempty"`
}

// QueryContext 调用方附带的上下文（对话历史、用户画像、领域提示）
type QueryContext struct {
	ConversationHistory []string          `json:"conversation_history,omitempty"`
	UserProfile         map[string]string `json:"user_profile,omitempty"`
	DomainHint          string            `json:"domain_hint,omitempty"`
}

// HasSignal 报告上下文是否携带任何可用信号。
func (c QueryContext) HasSignal() bool {
	return len(c.ConversationHistory) > 0 || len(c.UserProfile) > 0
}

// Query 一次检索调用的不可变查询值
type Query struct {
	Text    string             `json:"text"`
	Filters []StructuredFilter `json:"filters,omitempty"`
	Context QueryContext       `json:"context,omitempty"`
}

// WithText 返回替换了文本的查询副本（纠错动作使用，原值不变）。
func (q Query) WithText(text string) Query {
	q.Text = text
	return q
}

// QueryAnalysis 查询分析结果（确定性规则计算，无外部调用）
type QueryAnalysis struct {
	Complexity QueryComplexity    `json:"complexity"`
	Type       QueryType          `json:"type"`
	Domain     string             `json:"domain,omitempty"`
	Filters    []StructuredFilter `json:"filters,omitempty"`
	Keywords   []string           `json:"keywords,omitempty"`
	Entities   []string           `json:"entities,omitempty"`
	IsQuestion bool               `json:"is_question"`
	WordCount  int                `json:"word_count"`
	TokenCount int                `json:"token_count"`
}
