// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 检索调用指标
	retrieveTotal    *prometheus.CounterVec
	retrieveDuration prometheus.Histogram
	correctionRounds prometheus.Histogram
	finalResults     prometheus.Histogram

	// 策略指标
	strategyTotal    *prometheus.CounterVec
	strategyDuration *prometheus.HistogramVec
	strategyResults  *prometheus.HistogramVec

	// 重排指标
	rerankModeTotal *prometheus.CounterVec

	// 质量指标
	qualityScore *prometheus.HistogramVec

	// 纠错指标
	correctiveActions *prometheus.CounterVec

	// 联邦节点指标
	federationTotal    *prometheus.CounterVec
	federationDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 检索调用指标
	c.retrieveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieve_requests_total",
			Help:      "Total number of retrieve invocations",
		},
		[]string{"status"},
	)

	c.retrieveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieve_duration_seconds",
			Help:      "End-to-end retrieve duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	c.correctionRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "correction_rounds",
			Help:      "Correction rounds used per invocation",
			Buckets:   []float64{1, 2, 3},
		},
	)

	c.finalResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "final_results",
			Help:      "Result count of the final ranked list",
			Buckets:   []float64{0, 1, 5, 10, 20, 50},
		},
	)

	// 策略指标
	c.strategyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_executions_total",
			Help:      "Total number of strategy executions",
		},
		[]string{"strategy", "status"},
	)

	c.strategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "strategy_duration_seconds",
			Help:      "Strategy execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"strategy"},
	)

	c.strategyResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "strategy_results",
			Help:      "Result count returned per strategy execution",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
		[]string{"strategy"},
	)

	// 重排指标
	c.rerankModeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_mode_total",
			Help:      "Scoring mode selected per rerank pass",
		},
		[]string{"mode"},
	)

	// 质量指标
	c.qualityScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quality_score",
			Help:      "Quality assessment scores per dimension",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"dimension"},
	)

	// 纠错指标
	c.correctiveActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrective_actions_total",
			Help:      "Total number of corrective actions taken",
		},
		[]string{"action"},
	)

	// 联邦节点指标
	c.federationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "federation_node_requests_total",
			Help:      "Total number of federated node requests",
		},
		[]string{"node", "status"},
	)

	c.federationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "federation_node_duration_seconds",
			Help:      "Federated node request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 检索调用指标记录
// =============================================================================

// RecordRetrieve 记录一次完整检索调用
func (c *Collector) RecordRetrieve(status string, duration time.Duration, rounds, resultCount int) {
	c.retrieveTotal.WithLabelValues(status).Inc()
	c.retrieveDuration.Observe(duration.Seconds())
	c.correctionRounds.Observe(float64(rounds))
	c.finalResults.Observe(float64(resultCount))
}

// =============================================================================
// 🧭 策略指标记录
// =============================================================================

// RecordStrategy 记录单个策略执行
func (c *Collector) RecordStrategy(strategy, status string, duration time.Duration, resultCount int) {
	c.strategyTotal.WithLabelValues(strategy, status).Inc()
	c.strategyDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	c.strategyResults.WithLabelValues(strategy).Observe(float64(resultCount))
}

// =============================================================================
// 🏅 重排与质量指标记录
// =============================================================================

// RecordRerankMode 记录重排打分模式选择
func (c *Collector) RecordRerankMode(mode string) {
	c.rerankModeTotal.WithLabelValues(mode).Inc()
}

// RecordQuality 记录质量评估分值
func (c *Collector) RecordQuality(relevance, completeness, accuracy, diversity, overall float64) {
	c.qualityScore.WithLabelValues("relevance").Observe(relevance)
	c.qualityScore.WithLabelValues("completeness").Observe(completeness)
	c.qualityScore.WithLabelValues("accuracy").Observe(accuracy)
	c.qualityScore.WithLabelValues("diversity").Observe(diversity)
	c.qualityScore.WithLabelValues("overall").Observe(overall)
}

// RecordCorrectiveAction 记录纠错动作
func (c *Collector) RecordCorrectiveAction(action string) {
	c.correctiveActions.WithLabelValues(action).Inc()
}

// =============================================================================
// 🌐 联邦节点指标记录
// =============================================================================

// RecordFederationRequest 记录联邦节点请求
func (c *Collector) RecordFederationRequest(node, status string, duration time.Duration) {
	c.federationTotal.WithLabelValues(node, status).Inc()
	c.federationDuration.WithLabelValues(node).Observe(duration.Seconds())
}
