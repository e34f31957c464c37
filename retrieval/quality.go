package retrieval

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/types"
)

// QualityConfig 质量评估配置。
type QualityConfig struct {
	// 各维度阈值，低于阈值记为缺口
	OverallThreshold      float64
	RelevanceThreshold    float64
	CompletenessThreshold float64
	AccuracyThreshold     float64
	DiversityThreshold    float64
	// 相关性只看前 N 条
	TopN int
}

// DefaultQualityConfig 返回默认质量阈值。
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		OverallThreshold:      0.65,
		RelevanceThreshold:    0.7,
		CompletenessThreshold: 0.6,
		AccuracyThreshold:     0.8,
		DiversityThreshold:    0.5,
		TopN:                  5,
	}
}

// QualityAssessor 对重排后的最终列表做四轴启发式评估。
// 纯函数式：相同输入产出相同评估，不依赖外部服务。
type QualityAssessor struct {
	config QualityConfig
	logger *zap.Logger
}

// NewQualityAssessor 创建质量评估器。
func NewQualityAssessor(config QualityConfig, logger *zap.Logger) *QualityAssessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TopN <= 0 {
		config.TopN = 5
	}
	return &QualityAssessor{
		config: config,
		logger: logger.With(zap.String("component", "quality_assessor")),
	}
}

// Assess 评估结果列表相对查询的质量。
// overall = 0.4·relevance + 0.3·completeness + 0.2·accuracy + 0.1·diversity。
func (q *QualityAssessor) Assess(query types.Query, analysis types.QueryAnalysis, results []types.RerankedResult) types.QualityAssessment {
	assessment := types.QualityAssessment{
		Relevance:    q.relevance(analysis, results),
		Completeness: q.completeness(analysis, results),
		Accuracy:     q.accuracy(results),
		Diversity:    q.diversity(results),
	}
	assessment.Overall = 0.4*assessment.Relevance +
		0.3*assessment.Completeness +
		0.2*assessment.Accuracy +
		0.1*assessment.Diversity

	assessment.Gaps = q.gaps(assessment)
	assessment.NeedsCorrection = assessment.Overall < q.config.OverallThreshold

	q.logger.Debug("quality assessed",
		zap.Float64("overall", assessment.Overall),
		zap.Float64("relevance", assessment.Relevance),
		zap.Float64("completeness", assessment.Completeness),
		zap.Float64("accuracy", assessment.Accuracy),
		zap.Float64("diversity", assessment.Diversity),
		zap.Bool("needs_correction", assessment.NeedsCorrection))

	return assessment
}

// relevance 前 N 条结果与查询关键词的平均重叠率。
func (q *QualityAssessor) relevance(analysis types.QueryAnalysis, results []types.RerankedResult) float64 {
	if len(results) == 0 || len(analysis.Keywords) == 0 {
		return 0
	}

	topN := results
	if len(topN) > q.config.TopN {
		topN = topN[:q.config.TopN]
	}

	total := 0.0
	for _, r := range topN {
		total += keywordOverlap(analysis.Keywords, r.Content)
	}
	return total / float64(len(topN))
}

// completeness 查询各方面（关键词 + 实体）在结果全集中的覆盖率。
func (q *QualityAssessor) completeness(analysis types.QueryAnalysis, results []types.RerankedResult) float64 {
	aspects := queryAspects(analysis)
	if len(aspects) == 0 || len(results) == 0 {
		return 0
	}

	var allContent strings.Builder
	for _, r := range results {
		allContent.WriteString(strings.ToLower(r.Content))
		allContent.WriteByte(' ')
	}
	corpus := allContent.String()

	covered := 0
	for _, aspect := range aspects {
		if strings.Contains(corpus, aspect) {
			covered++
		}
	}
	return float64(covered) / float64(len(aspects))
}

// accuracy 声明的来源质量均值；未声明的文档按 0.5 计。
func (q *QualityAssessor) accuracy(results []types.RerankedResult) float64 {
	if len(results) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range results {
		total += sourceQuality(r.Metadata)
	}
	return total / float64(len(results))
}

// diversity 1 − 平均两两内容相似度（词集 Jaccard）。
// 单条或空列表时为 0（无多样性可言）。
func (q *QualityAssessor) diversity(results []types.RerankedResult) float64 {
	if len(results) <= 1 {
		return 0
	}

	sets := make([]map[string]bool, len(results))
	for i, r := range results {
		sets[i] = wordSet(r.Content)
	}

	totalSim := 0.0
	pairs := 0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			totalSim += jaccard(sets[i], sets[j])
			pairs++
		}
	}
	return 1.0 - totalSim/float64(pairs)
}

// gaps 为每个低于阈值的维度生成一条缺口描述。
func (q *QualityAssessor) gaps(a types.QualityAssessment) []string {
	var gaps []string
	if a.Relevance < q.config.RelevanceThreshold {
		gaps = append(gaps, fmt.Sprintf("relevance %.2f below %.2f", a.Relevance, q.config.RelevanceThreshold))
	}
	if a.Completeness < q.config.CompletenessThreshold {
		gaps = append(gaps, fmt.Sprintf("completeness %.2f below %.2f", a.Completeness, q.config.CompletenessThreshold))
	}
	if a.Accuracy < q.config.AccuracyThreshold {
		gaps = append(gaps, fmt.Sprintf("accuracy %.2f below %.2f", a.Accuracy, q.config.AccuracyThreshold))
	}
	if a.Diversity < q.config.DiversityThreshold {
		gaps = append(gaps, fmt.Sprintf("diversity %.2f below %.2f", a.Diversity, q.config.DiversityThreshold))
	}
	return gaps
}

// queryAspects 查询的可覆盖方面：关键词 ∪ 实体（小写去重）。
func queryAspects(analysis types.QueryAnalysis) []string {
	seen := make(map[string]bool, len(analysis.Keywords)+len(analysis.Entities))
	var aspects []string
	for _, kw := range analysis.Keywords {
		w := strings.ToLower(kw)
		if w != "" && !seen[w] {
			seen[w] = true
			aspects = append(aspects, w)
		}
	}
	for _, e := range analysis.Entities {
		w := strings.ToLower(e)
		if w != "" && !seen[w] {
			seen[w] = true
			aspects = append(aspects, w)
		}
	}
	return aspects
}

// keywordOverlap 关键词在内容中的命中比例。
func keywordOverlap(keywords []string, content string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hit := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hit++
		}
	}
	return float64(hit) / float64(len(keywords))
}

func wordSet(content string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(content)) {
		set[strings.Trim(w, ".,?!;:\"'()")] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
