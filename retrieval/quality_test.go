package retrieval

import (
	"math"
	"testing"

	"github.com/BaSui01/fusionflow/types"
)

func ranked(id, content string) types.RerankedResult {
	return types.RerankedResult{
		FusedResult: types.FusedResult{DocID: id, Content: content},
	}
}

func TestQualityAssessor_OverallWeighting(t *testing.T) {
	assessor := NewQualityAssessor(DefaultQualityConfig(), nil)

	analysis := types.QueryAnalysis{Keywords: []string{"kafka", "partitions"}}
	results := []types.RerankedResult{
		ranked("a", "kafka partitions explained"),
		ranked("b", "kafka internals deep dive"),
	}
	assessment := assessor.Assess(types.Query{Text: "q"}, analysis, results)

	want := 0.4*assessment.Relevance +
		0.3*assessment.Completeness +
		0.2*assessment.Accuracy +
		0.1*assessment.Diversity
	if math.Abs(assessment.Overall-want) > 1e-9 {
		t.Errorf("expected overall %v, got %v", want, assessment.Overall)
	}
}

func TestQualityAssessor_Relevance(t *testing.T) {
	assessor := NewQualityAssessor(DefaultQualityConfig(), nil)
	analysis := types.QueryAnalysis{Keywords: []string{"kafka", "partitions"}}

	// Both keywords present in every doc.
	full := assessor.relevance(analysis, []types.RerankedResult{
		ranked("a", "kafka partitions explained"),
	})
	if math.Abs(full-1.0) > 1e-9 {
		t.Errorf("expected full relevance, got %v", full)
	}

	// One of two keywords per doc.
	half := assessor.relevance(analysis, []types.RerankedResult{
		ranked("a", "kafka only"),
		ranked("b", "partitions only"),
	})
	if math.Abs(half-0.5) > 1e-9 {
		t.Errorf("expected relevance 0.5, got %v", half)
	}

	if assessor.relevance(analysis, nil) != 0 {
		t.Error("expected zero relevance for empty results")
	}
	if assessor.relevance(types.QueryAnalysis{}, []types.RerankedResult{ranked("a", "x")}) != 0 {
		t.Error("expected zero relevance without keywords")
	}
}

func TestQualityAssessor_RelevanceOnlyTopN(t *testing.T) {
	config := DefaultQualityConfig()
	config.TopN = 2
	assessor := NewQualityAssessor(config, nil)
	analysis := types.QueryAnalysis{Keywords: []string{"kafka"}}

	// Matches beyond position TopN must not count.
	results := []types.RerankedResult{
		ranked("a", "nothing relevant"),
		ranked("b", "nothing relevant either"),
		ranked("c", "kafka kafka kafka"),
	}
	if got := assessor.relevance(analysis, results); got != 0 {
		t.Errorf("expected tail matches ignored, got %v", got)
	}
}

func TestQualityAssessor_Completeness(t *testing.T) {
	assessor := NewQualityAssessor(DefaultQualityConfig(), nil)
	analysis := types.QueryAnalysis{
		Keywords: []string{"kafka", "partitions"},
		Entities: []string{"Apache Kafka"},
	}

	// Aspects: kafka, partitions, apache kafka. Corpus covers two.
	results := []types.RerankedResult{
		ranked("a", "kafka basics"),
		ranked("b", "partitions and replication"),
	}
	got := assessor.completeness(analysis, results)
	if math.Abs(got-2.0/3.0) > 1e-9 {
		t.Errorf("expected completeness 2/3, got %v", got)
	}

	if assessor.completeness(types.QueryAnalysis{}, results) != 0 {
		t.Error("expected zero completeness without aspects")
	}
}

func TestQualityAssessor_Accuracy(t *testing.T) {
	assessor := NewQualityAssessor(DefaultQualityConfig(), nil)

	declared := ranked("a", "x")
	declared.Metadata = map[string]any{"source_quality": 1.0}
	undeclared := ranked("b", "y")

	got := assessor.accuracy([]types.RerankedResult{declared, undeclared})
	if math.Abs(got-0.75) > 1e-9 {
		t.Errorf("expected accuracy 0.75, got %v", got)
	}
	if assessor.accuracy(nil) != 0 {
		t.Error("expected zero accuracy for empty results")
	}
}

func TestQualityAssessor_Diversity(t *testing.T) {
	assessor := NewQualityAssessor(DefaultQualityConfig(), nil)

	if assessor.diversity(nil) != 0 {
		t.Error("expected zero diversity for empty results")
	}
	if assessor.diversity([]types.RerankedResult{ranked("a", "x")}) != 0 {
		t.Error("expected zero diversity for a single result")
	}

	identical := assessor.diversity([]types.RerankedResult{
		ranked("a", "same words here"),
		ranked("b", "same words here"),
	})
	if math.Abs(identical) > 1e-9 {
		t.Errorf("identical docs should have zero diversity, got %v", identical)
	}

	disjoint := assessor.diversity([]types.RerankedResult{
		ranked("a", "alpha beta"),
		ranked("b", "gamma delta"),
	})
	if math.Abs(disjoint-1.0) > 1e-9 {
		t.Errorf("disjoint docs should have full diversity, got %v", disjoint)
	}
}

func TestQualityAssessor_GapsAndCorrectionFlag(t *testing.T) {
	assessor := NewQualityAssessor(DefaultQualityConfig(), nil)

	// Empty results score zero on every axis.
	assessment := assessor.Assess(types.Query{Text: "q"},
		types.QueryAnalysis{Keywords: []string{"kafka"}}, nil)

	if !assessment.NeedsCorrection {
		t.Error("zero scores must request correction")
	}
	if len(assessment.Gaps) != 4 {
		t.Errorf("expected a gap per dimension, got %d: %v", len(assessment.Gaps), assessment.Gaps)
	}
}

func TestQualityAssessor_NoGapsAboveThresholds(t *testing.T) {
	// Thresholds of zero cannot be undercut.
	config := QualityConfig{TopN: 5}
	assessor := NewQualityAssessor(config, nil)

	assessment := assessor.Assess(types.Query{Text: "q"},
		types.QueryAnalysis{Keywords: []string{"kafka"}},
		[]types.RerankedResult{
			ranked("a", "kafka alpha"),
			ranked("b", "kafka beta"),
		})

	if len(assessment.Gaps) != 0 {
		t.Errorf("expected no gaps, got %v", assessment.Gaps)
	}
	if assessment.NeedsCorrection {
		t.Error("expected no correction when overall meets threshold")
	}
}

func TestJaccard(t *testing.T) {
	a := wordSet("alpha beta gamma")
	b := wordSet("beta gamma delta")
	if got := jaccard(a, b); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected jaccard 0.5, got %v", got)
	}
	if jaccard(map[string]bool{}, map[string]bool{}) != 1 {
		t.Error("two empty sets count as identical")
	}
}
