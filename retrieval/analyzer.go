package retrieval

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/types"
)

// QueryAnalyzer 对查询做确定性分析：复杂度、类型、领域提示与
// 结构化过滤条件。全部基于字面模式检查，不做外部调用；
// 唯一的退化情形是空查询（type=general, complexity=low）。
type QueryAnalyzer struct {
	tokenizer Tokenizer
	logger    *zap.Logger
}

// NewQueryAnalyzer 创建查询分析器。tokenizer 可为 nil（只影响 TokenCount）。
func NewQueryAnalyzer(tokenizer Tokenizer, logger *zap.Logger) *QueryAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryAnalyzer{
		tokenizer: tokenizer,
		logger:    logger.With(zap.String("component", "query_analyzer")),
	}
}

// 类型检测用的字面模式表。
var (
	comparisonTerms  = []string{"compare", "difference between", "versus", " vs ", "better than"}
	causalTerms      = []string{"why", "impact of", "effect of", "cause of", "lead to", "result in"}
	analyticalTerms  = []string{"analyze", "evaluate", "assess", "trade-off", "tradeoff", "implications"}
	exploratoryTerms = []string{"overview", "tell me about", "what are some", "explore", "introduction to", "related to"}
	multimodalTerms  = []string{"image", "diagram", "chart", "figure", "video", "audio", "screenshot"}
	factualPrefixes  = []string{"what is", "who is", "when was", "when did", "where is", "define", "how many", "how much"}
	quantifierTerms  = []string{"all", "every", "each", "most", "at least", "more than", "less than"}
)

// 结构化过滤条件的字面模式。
var (
	gtPattern    = regexp.MustCompile(`(?i)(?:greater|more|larger|higher)\s+than\s+(\d+(?:\.\d+)?)`)
	ltPattern    = regexp.MustCompile(`(?i)(?:less|fewer|smaller|lower)\s+than\s+(\d+(?:\.\d+)?)`)
	yearRange    = regexp.MustCompile(`(?i)(?:between|from)\s+(\d{4})\s+(?:and|to)\s+(\d{4})`)
	afterYear    = regexp.MustCompile(`(?i)(?:after|since)\s+(\d{4})`)
	beforeYear   = regexp.MustCompile(`(?i)before\s+(\d{4})`)
	categoryHint = regexp.MustCompile(`(?i)\bin\s+(?:the\s+)?category\s+["']?([\w-]+)["']?`)
	domainHint   = regexp.MustCompile(`(?i)\bin\s+(?:the\s+)?(?:field|domain|area)\s+of\s+([\w\s-]+?)(?:[,.?]|$)`)
)

// stopwords 关键词提取时忽略的常用词。
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "of": true, "in": true, "on": true, "to": true, "for": true,
	"and": true, "or": true, "what": true, "which": true, "how": true,
	"why": true, "who": true, "when": true, "where": true, "does": true,
	"do": true, "did": true, "with": true, "about": true, "that": true,
	"this": true, "it": true, "its": true, "be": true, "by": true, "at": true,
	"as": true, "from": true, "between": true, "than": true, "me": true,
}

// Analyze 分析查询。确定性：相同输入总是产生相同输出。
func (a *QueryAnalyzer) Analyze(query types.Query) types.QueryAnalysis {
	text := strings.TrimSpace(query.Text)
	if text == "" {
		return types.QueryAnalysis{
			Complexity: types.ComplexityLow,
			Type:       types.QueryGeneral,
		}
	}

	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	analysis := types.QueryAnalysis{
		WordCount:  len(words),
		IsQuestion: isQuestion(lower),
		Keywords:   extractKeywords(words),
		Entities:   extractEntities(text),
		Filters:    append(extractFilters(text), query.Filters...),
	}

	if a.tokenizer != nil {
		analysis.TokenCount = a.tokenizer.CountTokens(text)
	}

	analysis.Domain = detectDomain(text, query.Context)
	analysis.Type = a.classifyType(lower)
	analysis.Complexity = a.classifyComplexity(lower, analysis)

	a.logger.Debug("query analyzed",
		zap.String("type", string(analysis.Type)),
		zap.String("complexity", string(analysis.Complexity)),
		zap.Int("filters", len(analysis.Filters)))

	return analysis
}

// classifyType 按字面模式确定查询类型。
func (a *QueryAnalyzer) classifyType(lower string) types.QueryType {
	if containsAny(lower, multimodalTerms) {
		return types.QueryMultimodal
	}
	if containsAny(lower, comparisonTerms) || containsAny(lower, analyticalTerms) || containsAny(lower, causalTerms) {
		return types.QueryAnalytical
	}
	for _, prefix := range factualPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return types.QueryFactual
		}
	}
	if containsAny(lower, exploratoryTerms) {
		return types.QueryExploratory
	}
	return types.QueryGeneral
}

// classifyComplexity 复杂度打分：长度、过滤条件、量词、
// 因果/比较模式逐项累加后分级。
func (a *QueryAnalyzer) classifyComplexity(lower string, analysis types.QueryAnalysis) types.QueryComplexity {
	score := 0.0

	if analysis.WordCount > 20 {
		score += 0.3
	} else if analysis.WordCount > 10 {
		score += 0.15
	}

	if len(analysis.Filters) > 0 {
		score += 0.2
	}
	if len(analysis.Entities) > 2 {
		score += 0.2
	} else if len(analysis.Entities) > 0 {
		score += 0.1
	}
	if containsAny(lower, quantifierTerms) {
		score += 0.1
	}
	if containsAny(lower, comparisonTerms) {
		score += 0.2
	}
	if containsAny(lower, causalTerms) {
		score += 0.2
	}
	if containsAny(lower, analyticalTerms) {
		score += 0.2
	}

	if score >= 0.6 {
		return types.ComplexityHigh
	}
	if score >= 0.3 {
		return types.ComplexityMedium
	}
	return types.ComplexityLow
}

// extractFilters 从文本提取结构化过滤条件（数值/日期/分类）。
func extractFilters(text string) []types.StructuredFilter {
	var filters []types.StructuredFilter

	if m := gtPattern.FindStringSubmatch(text); m != nil {
		filters = append(filters, types.StructuredFilter{
			Field: "value", Operator: types.FilterGreaterThan, Value: m[1],
		})
	}
	if m := ltPattern.FindStringSubmatch(text); m != nil {
		filters = append(filters, types.StructuredFilter{
			Field: "value", Operator: types.FilterLessThan, Value: m[1],
		})
	}
	if m := yearRange.FindStringSubmatch(text); m != nil {
		filters = append(filters, types.StructuredFilter{
			Field: "date", Operator: types.FilterRange, Value: m[1], ValueEnd: m[2],
		})
	} else {
		if m := afterYear.FindStringSubmatch(text); m != nil {
			filters = append(filters, types.StructuredFilter{
				Field: "date", Operator: types.FilterGreaterThan, Value: m[1],
			})
		}
		if m := beforeYear.FindStringSubmatch(text); m != nil {
			filters = append(filters, types.StructuredFilter{
				Field: "date", Operator: types.FilterLessThan, Value: m[1],
			})
		}
	}
	if m := categoryHint.FindStringSubmatch(text); m != nil {
		filters = append(filters, types.StructuredFilter{
			Field: "category", Operator: types.FilterEquals, Value: m[1],
		})
	}

	return filters
}

// detectDomain 领域提示：调用方上下文优先，其次查询文本。
func detectDomain(text string, qc types.QueryContext) string {
	if qc.DomainHint != "" {
		return qc.DomainHint
	}
	if m := domainHint.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(strings.ToLower(m[1]))
	}
	return ""
}

// extractKeywords 去除停用词后的关键词（保序去重）。
func extractKeywords(words []string) []string {
	seen := make(map[string]bool, len(words))
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,?!;:\"'()")
		if w == "" || len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
	}
	return keywords
}

// extractEntities 简化实体提取：句中大写开头的词组。
func extractEntities(text string) []string {
	var entities []string
	var current []string

	words := strings.Fields(text)
	for i, w := range words {
		trimmed := strings.Trim(w, ".,?!;:\"'()")
		if trimmed == "" {
			continue
		}
		isUpper := trimmed[0] >= 'A' && trimmed[0] <= 'Z'
		// 句首大写不算实体信号
		if isUpper && i > 0 {
			current = append(current, trimmed)
			continue
		}
		if len(current) > 0 {
			entities = append(entities, strings.Join(current, " "))
			current = nil
		}
	}
	if len(current) > 0 {
		entities = append(entities, strings.Join(current, " "))
	}
	return entities
}

func isQuestion(lower string) bool {
	if strings.HasSuffix(strings.TrimSpace(lower), "?") {
		return true
	}
	for _, prefix := range []string{"what", "how", "why", "when", "where", "who", "which"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
