package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/fusionflow/types"
)

// ScoringMode 重排打分模式变体标签。
type ScoringMode string

const (
	ModePairwise       ScoringMode = "pairwise"        // Cross-encoder style
	ModeEmbedding      ScoringMode = "embedding"       // Bi-encoder cosine
	ModeHybrid         ScoringMode = "hybrid"          // Blend of the two
	ModeContextAware   ScoringMode = "context_aware"   // Conversation-augmented
	ModeMultiObjective ScoringMode = "multi_objective" // Relevance+diversity+novelty+quality
)

// RerankConfig 重排阶段配置。
type RerankConfig struct {
	// 强制指定模式（空 = 自适应选择）
	ModeOverride ScoringMode
	// hybrid 权重
	PairwiseWeight  float64
	EmbeddingWeight float64
	// context-aware 加成上限
	ContextBoostCap float64
	// 自适应：结果数超过该值选 multi-objective
	MultiObjectiveMinResults int
	// multi-objective 各目标权重
	RelevanceWeight     float64
	DiversityWeight     float64
	NoveltyWeight       float64
	SourceQualityWeight float64
}

// DefaultRerankConfig 返回默认重排配置。
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		PairwiseWeight:           0.7,
		EmbeddingWeight:          0.3,
		ContextBoostCap:          0.2,
		MultiObjectiveMinResults: 50,
		RelevanceWeight:          0.5,
		DiversityWeight:          0.2,
		NoveltyWeight:            0.2,
		SourceQualityWeight:      0.1,
	}
}

// scoringFunc 一种打分模式：对 fused 列表逐项产出原始重排分数。
type scoringFunc func(ctx context.Context, query types.Query, analysis types.QueryAnalysis, fused []types.FusedResult) ([]float64, error)

// Reranker 用多种打分模式对融合列表做第二遍精排。
// 模式经注册表按变体标签分发；选择规则确定性，调用方可显式覆盖。
type Reranker struct {
	config    RerankConfig
	pairwise  types.PairwiseScorer
	embedder  types.EmbeddingService
	simScorer types.EmbeddingScorer
	tokenizer Tokenizer
	modes     map[ScoringMode]scoringFunc
	logger    *zap.Logger
}

// NewReranker 创建重排器。tokenizer 可为 nil（新颖度退化为词长启发式）。
func NewReranker(config RerankConfig, pairwise types.PairwiseScorer, embedder types.EmbeddingService, simScorer types.EmbeddingScorer, tokenizer Tokenizer, logger *zap.Logger) *Reranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reranker{
		config:    config,
		pairwise:  pairwise,
		embedder:  embedder,
		simScorer: simScorer,
		tokenizer: tokenizer,
		logger:    logger.With(zap.String("component", "reranker")),
	}
	// 模式注册表：新增模式 = 一个函数 + 一条表项
	r.modes = map[ScoringMode]scoringFunc{
		ModePairwise:       r.scorePairwise,
		ModeEmbedding:      r.scoreEmbedding,
		ModeHybrid:         r.scoreHybrid,
		ModeContextAware:   r.scoreContextAware,
		ModeMultiObjective: r.scoreMultiObjective,
	}
	return r
}

// Rerank 重排融合列表。
// 输出严格按重排分数降序；Rank 为 1 起始稠密排名；
// 同分时按融合分数、再按文档 ID 决定次序。
func (r *Reranker) Rerank(ctx context.Context, query types.Query, analysis types.QueryAnalysis, fused []types.FusedResult) ([]types.RerankedResult, error) {
	if len(fused) == 0 {
		return nil, nil
	}

	mode := r.selectMode(query, analysis, len(fused))
	scoreFn := r.modes[mode]

	scores, err := scoreFn(ctx, query, analysis, fused)
	if err != nil {
		// 打分后端失败时退回融合排序，保证调用方总能拿到有序列表
		r.logger.Warn("rerank scoring failed, falling back to fused order",
			zap.String("mode", string(mode)), zap.Error(err))
		mode = "fused_order"
		scores = make([]float64, len(fused))
		for i, fr := range fused {
			scores[i] = fr.CombinedScore
		}
	}

	return r.assemble(fused, scores, mode), nil
}

// selectMode 自适应模式选择的确定性规则表。
func (r *Reranker) selectMode(query types.Query, analysis types.QueryAnalysis, resultCount int) ScoringMode {
	if r.config.ModeOverride != "" {
		return r.config.ModeOverride
	}
	if analysis.Complexity == types.ComplexityHigh {
		return ModeHybrid
	}
	if resultCount > r.config.MultiObjectiveMinResults {
		return ModeMultiObjective
	}
	if query.Context.HasSignal() {
		return ModeContextAware
	}
	return ModePairwise
}

// assemble 排序、定秩并计算置信度。
func (r *Reranker) assemble(fused []types.FusedResult, scores []float64, mode ScoringMode) []types.RerankedResult {
	results := make([]types.RerankedResult, len(fused))
	for i, fr := range fused {
		results[i] = types.RerankedResult{
			FusedResult: fr,
			RerankScore: scores[i],
			ScoringMode: string(mode),
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].RerankScore != results[j].RerankScore {
			return results[i].RerankScore > results[j].RerankScore
		}
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].DocID < results[j].DocID
	})

	confidences := normalizeScores(scores)
	sort.Float64s(confidences) // ascending; highest confidence belongs to highest score

	for i := range results {
		results[i].Rank = i + 1
		results[i].Confidence = confidences[len(confidences)-1-i]
	}
	return results
}

// scorePairwise 交叉编码器风格：逐对 (query, document) 打分。
func (r *Reranker) scorePairwise(ctx context.Context, query types.Query, _ types.QueryAnalysis, fused []types.FusedResult) ([]float64, error) {
	if r.pairwise == nil {
		return nil, fmt.Errorf("pairwise scorer not configured")
	}
	scores := make([]float64, len(fused))
	for i, fr := range fused {
		s, err := r.pairwise.Score(ctx, query.Text, fr.Content)
		if err != nil {
			return nil, fmt.Errorf("pairwise score doc %s: %w", fr.DocID, err)
		}
		scores[i] = s
	}
	return scores, nil
}

// scoreEmbedding 双编码器风格：查询/文档向量余弦相似度。
// 文档向量优先取 metadata["embedding"]，缺失时现场向量化。
func (r *Reranker) scoreEmbedding(ctx context.Context, query types.Query, _ types.QueryAnalysis, fused []types.FusedResult) ([]float64, error) {
	if r.embedder == nil || r.simScorer == nil {
		return nil, fmt.Errorf("embedding scorer not configured")
	}
	queryVec, err := r.embedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scores := make([]float64, len(fused))
	for i, fr := range fused {
		docVec, ok := embeddingFromMetadata(fr.Metadata)
		if !ok {
			docVec, err = r.embedder.Embed(ctx, fr.Content)
			if err != nil {
				return nil, fmt.Errorf("embed doc %s: %w", fr.DocID, err)
			}
		}
		scores[i] = r.simScorer.Similarity(queryVec, docVec)
	}
	return scores, nil
}

// scoreHybrid 两路分数各自 min-max 归一化后加权混合。
func (r *Reranker) scoreHybrid(ctx context.Context, query types.Query, analysis types.QueryAnalysis, fused []types.FusedResult) ([]float64, error) {
	pairScores, err := r.scorePairwise(ctx, query, analysis, fused)
	if err != nil {
		return nil, err
	}
	embScores, err := r.scoreEmbedding(ctx, query, analysis, fused)
	if err != nil {
		return nil, err
	}

	pairNorm := normalizeScores(pairScores)
	embNorm := normalizeScores(embScores)

	wSum := r.config.PairwiseWeight + r.config.EmbeddingWeight
	scores := make([]float64, len(fused))
	for i := range scores {
		scores[i] = (pairNorm[i]*r.config.PairwiseWeight + embNorm[i]*r.config.EmbeddingWeight) / wSum
	}
	return scores, nil
}

// scoreContextAware 用近期对话轮次与用户画像词扩充查询后成对打分，
// 再对命中上下文词的文档加有界加成（≤ ContextBoostCap）。
func (r *Reranker) scoreContextAware(ctx context.Context, query types.Query, analysis types.QueryAnalysis, fused []types.FusedResult) ([]float64, error) {
	contextTerms := collectContextTerms(query.Context)

	augmented := query
	if len(contextTerms) > 0 {
		augmented = query.WithText(query.Text + " " + strings.Join(contextTerms, " "))
	}

	scores, err := r.scorePairwise(ctx, augmented, analysis, fused)
	if err != nil {
		return nil, err
	}

	for i, fr := range fused {
		scores[i] += r.contextBoost(fr.Content, contextTerms)
	}
	return scores, nil
}

// contextBoost 上下文词命中比例 × 上限。
func (r *Reranker) contextBoost(content string, contextTerms []string) float64 {
	if len(contextTerms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	matched := 0
	for _, term := range contextTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			matched++
		}
	}
	return r.config.ContextBoostCap * float64(matched) / float64(len(contextTerms))
}

// scoreMultiObjective 多目标混合：
// 相关性 0.5 + 多样性 0.2（内容长度相对批次的离散度）
// + 新颖度 0.2（长度/术语密度启发式）+ 来源质量 0.1。
func (r *Reranker) scoreMultiObjective(ctx context.Context, query types.Query, analysis types.QueryAnalysis, fused []types.FusedResult) ([]float64, error) {
	relevance, err := r.scorePairwise(ctx, query, analysis, fused)
	if err != nil {
		return nil, err
	}
	relNorm := normalizeScores(relevance)

	// 多样性：长度偏离批次均值越多，越能补充不同粒度的信息
	meanLen := 0.0
	for _, fr := range fused {
		meanLen += float64(len(fr.Content))
	}
	meanLen /= float64(len(fused))

	diversity := make([]float64, len(fused))
	for i, fr := range fused {
		diversity[i] = math.Abs(float64(len(fr.Content)) - meanLen)
	}
	divNorm := normalizeScores(diversity)

	novelty := make([]float64, len(fused))
	for i, fr := range fused {
		novelty[i] = r.noveltyScore(fr.Content)
	}
	novNorm := normalizeScores(novelty)

	scores := make([]float64, len(fused))
	for i, fr := range fused {
		quality := sourceQuality(fr.Metadata)
		scores[i] = relNorm[i]*r.config.RelevanceWeight +
			divNorm[i]*r.config.DiversityWeight +
			novNorm[i]*r.config.NoveltyWeight +
			quality*r.config.SourceQualityWeight
	}
	return scores, nil
}

// noveltyScore 术语密度启发式：token 数 / 词数 越高，
// 术语越密集（长词、复合词被切成更多 token）。
func (r *Reranker) noveltyScore(content string) float64 {
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0
	}
	if r.tokenizer != nil {
		return float64(r.tokenizer.CountTokens(content)) / float64(len(words))
	}
	// 无 tokenizer 时退化为平均词长
	total := 0
	for _, w := range words {
		total += len(w)
	}
	return float64(total) / float64(len(words))
}

// collectContextTerms 汇总近期对话词与用户画像词（去重保序）。
func collectContextTerms(qc types.QueryContext) []string {
	var terms []string
	seen := make(map[string]bool)

	// 最近 3 轮对话
	history := qc.ConversationHistory
	if len(history) > 3 {
		history = history[len(history)-3:]
	}
	for _, turn := range history {
		for _, w := range extractKeywords(strings.Fields(strings.ToLower(turn))) {
			if !seen[w] {
				seen[w] = true
				terms = append(terms, w)
			}
		}
	}

	// 用户画像值按 key 排序，保证确定性
	keys := make([]string, 0, len(qc.UserProfile))
	for k := range qc.UserProfile {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.ToLower(qc.UserProfile[k])
		if v != "" && !seen[v] {
			seen[v] = true
			terms = append(terms, v)
		}
	}
	return terms
}

// sourceQuality 读取声明的来源质量元数据，缺省 0.5。
func sourceQuality(metadata map[string]any) float64 {
	if metadata == nil {
		return 0.5
	}
	if v, ok := metadata["source_quality"]; ok {
		switch q := v.(type) {
		case float64:
			return clamp01(q)
		case float32:
			return clamp01(float64(q))
		case int:
			return clamp01(float64(q))
		}
	}
	return 0.5
}

// embeddingFromMetadata 读取预计算的文档向量。
func embeddingFromMetadata(metadata map[string]any) ([]float64, bool) {
	if metadata == nil {
		return nil, false
	}
	v, ok := metadata["embedding"]
	if !ok {
		return nil, false
	}
	switch vec := v.(type) {
	case []float64:
		return vec, len(vec) > 0
	case []float32:
		out := make([]float64, len(vec))
		for i, x := range vec {
			out[i] = float64(x)
		}
		return out, len(out) > 0
	}
	return nil, false
}

// normalizeScores Min-Max 归一化到 [0,1]；退化（全部相同）时统一 0.5。
func normalizeScores(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	minS, maxS := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minS {
			minS = s
		}
		if s > maxS {
			maxS = s
		}
	}
	if maxS == minS {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - minS) / (maxS - minS)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
