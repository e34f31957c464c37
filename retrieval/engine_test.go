package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/BaSui01/fusionflow/config"
	"github.com/BaSui01/fusionflow/types"
)

// recordingHistory captures written outcomes and serves canned rates.
type recordingHistory struct {
	mu       sync.Mutex
	recorded [][]types.StrategyOutcome
	err      error
}

func (h *recordingHistory) RecordOutcomes(_ context.Context, _ string, outcomes []types.StrategyOutcome) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.recorded = append(h.recorded, outcomes)
	return nil
}

func (h *recordingHistory) SuccessRate(_ context.Context, _ types.StrategyID) (float64, error) {
	return 0.5, nil
}

func newTestEngine(t *testing.T, registry *Registry, opts ...Option) *Engine {
	t.Helper()
	pairwise := &fakePairwise{scores: map[string]float64{}}
	engine := NewEngine(config.DefaultConfig(), registry, RerankBackends{
		Pairwise:   pairwise,
		Embedder:   &fakeEmbedder{},
		Similarity: cosineScorer{},
	}, opts...)
	t.Cleanup(engine.Close)
	return engine
}

func TestEngine_EmptyQuery(t *testing.T) {
	engine := newTestEngine(t, NewRegistry())

	resp, err := engine.Retrieve(context.Background(), types.Query{Text: "   "}, nil)
	if err != nil {
		t.Fatalf("empty query must not be an error, got %v", err)
	}
	if resp.InvocationID == "" {
		t.Error("expected an invocation id")
	}
	if len(resp.Results) != 0 {
		t.Errorf("expected empty results, got %d", len(resp.Results))
	}
	if resp.RoundsUsed != 0 {
		t.Errorf("expected zero rounds, got %d", resp.RoundsUsed)
	}
	if resp.Results == nil || resp.StrategiesUsed == nil {
		t.Error("expected non-nil empty slices")
	}
}

func TestEngine_HappyPath(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeAdapter{
		id: types.StrategyVector,
		results: []types.RetrievalResult{
			doc("d1", "kafka partition rebalancing guide", 0.9),
			doc("d2", "consumer group coordination", 0.7),
		},
	})
	registry.Register(&fakeAdapter{
		id: types.StrategyLexical,
		results: []types.RetrievalResult{
			doc("d1", "kafka partition rebalancing guide", 0.8),
		},
	})
	engine := newTestEngine(t, registry)

	resp, err := engine.Retrieve(context.Background(),
		types.Query{Text: "how does kafka handle partition rebalancing"}, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(resp.Results) == 0 {
		t.Fatal("expected results")
	}
	if resp.RoundsUsed < 1 || resp.RoundsUsed > 3 {
		t.Errorf("rounds must stay within the budget, got %d", resp.RoundsUsed)
	}
	if len(resp.StrategiesUsed) == 0 {
		t.Error("expected strategies recorded")
	}
	for i, r := range resp.Results {
		if r.Rank != i+1 {
			t.Errorf("position %d: expected rank %d, got %d", i, i+1, r.Rank)
		}
	}
	// d1 came from two strategies and must surface once.
	seen := make(map[string]int)
	for _, r := range resp.Results {
		seen[r.DocID]++
	}
	if seen["d1"] != 1 {
		t.Errorf("expected d1 exactly once, got %d", seen["d1"])
	}
}

func TestEngine_AllStrategiesFailed(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeAdapter{id: types.StrategyVector, err: errors.New("down")})
	registry.Register(&fakeAdapter{id: types.StrategyLexical, err: errors.New("down")})
	engine := newTestEngine(t, registry)

	_, err := engine.Retrieve(context.Background(), types.Query{Text: "anything"}, nil)
	if err == nil {
		t.Fatal("expected an error when every strategy fails")
	}
	if !types.IsCode(err, types.ErrAllStrategiesFailed) {
		t.Errorf("expected ALL_STRATEGIES_FAILED, got %s", types.CodeOf(err))
	}
}

func TestEngine_PerCallOptions(t *testing.T) {
	registry := NewRegistry()
	var results []types.RetrievalResult
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		results = append(results, doc(id, "document "+id, 0.5))
	}
	registry.Register(&fakeAdapter{id: types.StrategyVector, results: results})
	engine := newTestEngine(t, registry)

	resp, err := engine.Retrieve(context.Background(),
		types.Query{Text: "documents"},
		&RetrieveOptions{MaxRounds: 1, TopK: 2})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if resp.RoundsUsed != 1 {
		t.Errorf("expected MaxRounds 1 honored, got %d rounds", resp.RoundsUsed)
	}
	if len(resp.Results) > 2 {
		t.Errorf("expected TopK 2 honored, got %d results", len(resp.Results))
	}
}

func TestEngine_IncludeRounds(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeAdapter{
		id:      types.StrategyVector,
		results: []types.RetrievalResult{doc("d1", "alpha", 0.9)},
	})
	engine := newTestEngine(t, registry)

	withRounds, err := engine.Retrieve(context.Background(),
		types.Query{Text: "alpha"}, &RetrieveOptions{IncludeRounds: true})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(withRounds.Rounds) == 0 {
		t.Error("expected per-round audit records")
	}

	without, err := engine.Retrieve(context.Background(), types.Query{Text: "alpha"}, nil)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(without.Rounds) != 0 {
		t.Error("expected no round records by default")
	}
}

func TestEngine_HistoryWriteFailureNonFatal(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeAdapter{
		id:      types.StrategyVector,
		results: []types.RetrievalResult{doc("d1", "alpha", 0.9)},
	})
	history := &recordingHistory{err: errors.New("store down")}
	engine := newTestEngine(t, registry, WithHistory(history))

	resp, err := engine.Retrieve(context.Background(), types.Query{Text: "alpha"}, nil)
	if err != nil {
		t.Fatalf("history failure must not fail retrieval: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Error("expected results despite history failure")
	}
}

func TestEngine_RecordsOutcomes(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeAdapter{
		id:      types.StrategyVector,
		results: []types.RetrievalResult{doc("d1", "alpha", 0.9)},
	})
	history := &recordingHistory{}
	engine := newTestEngine(t, registry, WithHistory(history))

	if _, err := engine.Retrieve(context.Background(), types.Query{Text: "alpha"}, nil); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	history.mu.Lock()
	defer history.mu.Unlock()
	if len(history.recorded) == 0 {
		t.Fatal("expected outcomes written to history")
	}
	if history.recorded[0][0].Strategy != types.StrategyVector {
		t.Errorf("expected vector outcome recorded, got %s", history.recorded[0][0].Strategy)
	}
}

func TestApplyPlanCaps(t *testing.T) {
	plan := planOf(map[types.StrategyID]float64{
		types.StrategyVector:   0.5,
		types.StrategyLexical:  0.3,
		types.StrategySemantic: 0.2,
	})

	capped := applyPlanCaps(plan, &RetrieveOptions{MaxStrategies: 2})
	if len(capped.Strategies) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(capped.Strategies))
	}
	sum := 0.0
	for _, d := range capped.Strategies {
		sum += d.Weight
	}
	if sum < 0.999999 || sum > 1.000001 {
		t.Errorf("expected renormalized weights, sum %v", sum)
	}

	tightened := applyPlanCaps(planOf(map[types.StrategyID]float64{
		types.StrategyVector: 1.0,
	}), &RetrieveOptions{StrategyTimeout: 1})
	if tightened.Strategies[0].Timeout != 1 {
		t.Errorf("expected timeout clamp, got %v", tightened.Strategies[0].Timeout)
	}
}
