package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/BaSui01/fusionflow/types"
)

func newTestRegistry(t *testing.T, ids ...types.StrategyID) *Registry {
	t.Helper()
	registry := NewRegistry()
	for _, id := range ids {
		if err := registry.Register(&fakeAdapter{id: id}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	return registry
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(&fakeAdapter{id: types.StrategyVector}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := registry.Register(&fakeAdapter{id: types.StrategyVector}); err == nil {
		t.Error("expected error on duplicate registration")
	}
}

func TestStrategyRouter_RuleTable(t *testing.T) {
	registry := newTestRegistry(t,
		types.StrategyVector, types.StrategyLexical,
		types.StrategySemantic, types.StrategyGraph)
	router := NewStrategyRouter(DefaultRouterConfig(), registry, nil, nil)

	cases := []struct {
		queryType types.QueryType
		first     types.StrategyID
	}{
		{types.QueryFactual, types.StrategyLexical},
		{types.QueryExploratory, types.StrategySemantic},
		{types.QueryAnalytical, types.StrategyVector},
		{types.QueryGeneral, types.StrategyVector},
	}
	for _, tc := range cases {
		plan := router.Route(context.Background(),
			types.QueryAnalysis{Type: tc.queryType, Complexity: types.ComplexityLow},
			RouteOverrides{})
		if len(plan.Strategies) == 0 {
			t.Fatalf("type %s: empty plan", tc.queryType)
		}
		if plan.Strategies[0].ID != tc.first {
			t.Errorf("type %s: expected %s first, got %s",
				tc.queryType, tc.first, plan.Strategies[0].ID)
		}
	}
}

func TestStrategyRouter_WeightsSumToOne(t *testing.T) {
	registry := newTestRegistry(t,
		types.StrategyVector, types.StrategyLexical, types.StrategySemantic)
	router := NewStrategyRouter(DefaultRouterConfig(), registry, nil, nil)

	plan := router.Route(context.Background(),
		types.QueryAnalysis{Type: types.QueryAnalytical, Complexity: types.ComplexityHigh},
		RouteOverrides{})

	sum := 0.0
	for _, d := range plan.Strategies {
		sum += d.Weight
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("expected weights to sum to 1, got %v", sum)
	}
}

func TestStrategyRouter_MaxStrategiesCap(t *testing.T) {
	registry := newTestRegistry(t,
		types.StrategyVector, types.StrategyLexical,
		types.StrategySemantic, types.StrategyGraph)
	config := DefaultRouterConfig()
	config.MaxStrategies = 2
	router := NewStrategyRouter(config, registry, nil, nil)

	plan := router.Route(context.Background(),
		types.QueryAnalysis{Type: types.QueryAnalytical, Complexity: types.ComplexityHigh},
		RouteOverrides{})

	if len(plan.Strategies) > 2 {
		t.Errorf("expected at most 2 strategies, got %d", len(plan.Strategies))
	}
}

func TestStrategyRouter_SkipsUnregistered(t *testing.T) {
	// Only vector is registered; the factual preference for lexical
	// cannot be honored.
	registry := newTestRegistry(t, types.StrategyVector)
	router := NewStrategyRouter(DefaultRouterConfig(), registry, nil, nil)

	plan := router.Route(context.Background(),
		types.QueryAnalysis{Type: types.QueryFactual},
		RouteOverrides{})

	for _, d := range plan.Strategies {
		if d.ID != types.StrategyVector {
			t.Errorf("unexpected strategy %s in plan", d.ID)
		}
	}
	if len(plan.Strategies) != 1 {
		t.Errorf("expected single strategy plan, got %d", len(plan.Strategies))
	}
}

func TestStrategyRouter_Exclusions(t *testing.T) {
	registry := newTestRegistry(t, types.StrategyVector, types.StrategyLexical)
	router := NewStrategyRouter(DefaultRouterConfig(), registry, nil, nil)

	plan := router.Route(context.Background(),
		types.QueryAnalysis{Type: types.QueryGeneral},
		RouteOverrides{Exclude: []types.StrategyID{types.StrategyVector}})

	for _, d := range plan.Strategies {
		if d.ID == types.StrategyVector {
			t.Error("excluded strategy present in plan")
		}
	}
}

func TestStrategyRouter_ExclusionsRelaxedWhenEmpty(t *testing.T) {
	// Excluding every registered strategy must not produce an empty plan.
	registry := newTestRegistry(t, types.StrategyVector, types.StrategyLexical)
	router := NewStrategyRouter(DefaultRouterConfig(), registry, nil, nil)

	plan := router.Route(context.Background(),
		types.QueryAnalysis{Type: types.QueryGeneral},
		RouteOverrides{Exclude: []types.StrategyID{types.StrategyVector, types.StrategyLexical}})

	if len(plan.Strategies) == 0 {
		t.Fatal("expected exclusions to be relaxed instead of an empty plan")
	}
}

func TestStrategyRouter_PreferOverride(t *testing.T) {
	registry := newTestRegistry(t,
		types.StrategyVector, types.StrategyLexical, types.StrategySemantic)
	router := NewStrategyRouter(DefaultRouterConfig(), registry, nil, nil)

	plan := router.Route(context.Background(),
		types.QueryAnalysis{Type: types.QueryGeneral},
		RouteOverrides{Prefer: []types.StrategyID{types.StrategySemantic}})

	if plan.Strategies[0].ID != types.StrategySemantic {
		t.Errorf("expected preferred strategy first, got %s", plan.Strategies[0].ID)
	}
}

func TestStrategyRouter_CrossDomainAddsFederated(t *testing.T) {
	registry := newTestRegistry(t,
		types.StrategyVector, types.StrategyLexical, types.StrategyFederated)
	config := DefaultRouterConfig()
	config.Strategies[types.StrategyFederated] = StrategyWeight{Weight: 0.7}
	router := NewStrategyRouter(config, registry, nil, nil)

	plan := router.Route(context.Background(),
		types.QueryAnalysis{Type: types.QueryGeneral, Domain: "finance,law"},
		RouteOverrides{})

	found := false
	for _, d := range plan.Strategies {
		if d.ID == types.StrategyFederated {
			found = true
		}
	}
	if !found {
		t.Error("expected federated strategy for cross-domain query")
	}
}

// stubHistory serves canned success rates.
type stubHistory struct {
	rates map[types.StrategyID]float64
	err   error
}

func (s *stubHistory) SuccessRate(_ context.Context, id types.StrategyID) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.rates[id], nil
}

func TestStrategyRouter_HistoryBlending(t *testing.T) {
	registry := newTestRegistry(t, types.StrategyVector, types.StrategyLexical)
	config := DefaultRouterConfig()
	// Equal base weights so history alone decides the ordering of weights.
	config.Strategies[types.StrategyVector] = StrategyWeight{Weight: 1.0}
	config.Strategies[types.StrategyLexical] = StrategyWeight{Weight: 1.0}

	history := &stubHistory{rates: map[types.StrategyID]float64{
		types.StrategyVector:  1.0,
		types.StrategyLexical: 0.0,
	}}
	router := NewStrategyRouter(config, registry, history, nil)

	plan := router.Route(context.Background(),
		types.QueryAnalysis{Type: types.QueryGeneral},
		RouteOverrides{})

	weights := make(map[types.StrategyID]float64)
	for _, d := range plan.Strategies {
		weights[d.ID] = d.Weight
	}
	// vector: 1.0*(0.5+1.0)=1.5, lexical: 1.0*(0.5+0.0)=0.5 → 0.75 / 0.25
	if math.Abs(weights[types.StrategyVector]-0.75) > 1e-9 {
		t.Errorf("expected vector weight 0.75, got %v", weights[types.StrategyVector])
	}
	if math.Abs(weights[types.StrategyLexical]-0.25) > 1e-9 {
		t.Errorf("expected lexical weight 0.25, got %v", weights[types.StrategyLexical])
	}
}

func TestStrategyRouter_HistoryFailureNonFatal(t *testing.T) {
	registry := newTestRegistry(t, types.StrategyVector, types.StrategyLexical)
	history := &stubHistory{err: errors.New("store down")}
	router := NewStrategyRouter(DefaultRouterConfig(), registry, history, nil)

	plan := router.Route(context.Background(),
		types.QueryAnalysis{Type: types.QueryGeneral},
		RouteOverrides{})

	if len(plan.Strategies) == 0 {
		t.Fatal("history failure must not block routing")
	}
	sum := 0.0
	for _, d := range plan.Strategies {
		sum += d.Weight
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("expected normalized weights, sum %v", sum)
	}
}
