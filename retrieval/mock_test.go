package retrieval

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/BaSui01/fusionflow/types"
)

// fakeAdapter is a configurable in-memory strategy adapter for tests.
type fakeAdapter struct {
	id         types.StrategyID
	results    []types.RetrievalResult
	err        error
	delay      time.Duration
	confidence float64
}

func (f *fakeAdapter) ID() types.StrategyID { return f.id }

func (f *fakeAdapter) Confidence() float64 {
	if f.confidence == 0 {
		return 1.0
	}
	return f.confidence
}

func (f *fakeAdapter) Retrieve(ctx context.Context, _ types.Query, _ types.QueryAnalysis, k int) ([]types.RetrievalResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	results := f.results
	if len(results) > k {
		results = results[:k]
	}
	return tagResults(append([]types.RetrievalResult{}, results...), f.id), nil
}

// fakePairwise scores documents by a fixed content keyed map.
type fakePairwise struct {
	scores map[string]float64
	err    error
}

func (f *fakePairwise) Score(_ context.Context, _ string, documentText string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.scores[documentText], nil
}

// fakeEmbedder produces a deterministic 3-dim vector from text length.
type fakeEmbedder struct{ err error }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	n := float64(len(text))
	w := float64(len(strings.Fields(text)))
	return []float64{n, w, n - w}, nil
}

// cosineScorer is a plain cosine similarity scorer.
type cosineScorer struct{}

func (cosineScorer) Similarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// wordTokenizer counts whitespace separated words as tokens.
type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text string) int { return len(strings.Fields(text)) }

func doc(id, content string, score float64) types.RetrievalResult {
	return types.RetrievalResult{DocID: id, Content: content, Score: score}
}

func successOutcome(id types.StrategyID, latency time.Duration, results ...types.RetrievalResult) types.StrategyOutcome {
	return types.StrategyOutcome{
		Strategy:   id,
		Results:    tagResults(results, id),
		Latency:    latency,
		Confidence: 1.0,
		Success:    true,
	}
}

func failedOutcome(id types.StrategyID) types.StrategyOutcome {
	return types.StrategyOutcome{
		Strategy: id,
		Success:  false,
		Err:      string(types.ErrAdapterFailure) + ": boom",
	}
}

func planOf(weights map[types.StrategyID]float64) types.RoutingPlan {
	plan := types.RoutingPlan{}
	// fixed order keeps the plans deterministic across test runs
	for _, id := range []types.StrategyID{
		types.StrategyVector, types.StrategyLexical, types.StrategySemantic,
		types.StrategyGraph, types.StrategyFederated,
	} {
		if w, ok := weights[id]; ok {
			plan.Strategies = append(plan.Strategies, types.StrategyDescriptor{
				ID: id, Weight: w, Timeout: time.Second,
			})
		}
	}
	return plan
}
