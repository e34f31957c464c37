// =============================================================================
// 📦 FusionFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Engine:     DefaultEngineConfig(),
		Strategies: DefaultStrategyConfigs(),
		Fusion:     DefaultFusionConfig(),
		Rerank:     DefaultRerankConfig(),
		Quality:    DefaultQualityConfig(),
		Redis:      DefaultRedisConfig(),
		History:    DefaultHistoryConfig(),
		Federation: DefaultFederationConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultEngineConfig 返回默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxRounds:       3,
		MaxStrategies:   3,
		StrategyTimeout: 30 * time.Second,
		FinalListSize:   20,
		TokenizerModel:  "gpt-4o",
	}
}

// DefaultStrategyConfigs 返回默认策略配置
func DefaultStrategyConfigs() []StrategyConfig {
	return []StrategyConfig{
		{ID: "vector", Enabled: true, Weight: 1.0},
		{ID: "lexical", Enabled: true, Weight: 0.9},
		{ID: "semantic", Enabled: true, Weight: 0.9},
		{ID: "graph", Enabled: true, Weight: 0.8},
		{ID: "federated", Enabled: false, Weight: 0.7},
	}
}

// DefaultFusionConfig 返回默认融合配置
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		DefaultBaseScore:    0.5,
		LatencyPenaltyFloor: 0.5,
		LatencyPenaltyScale: 5.0,
		MaxResults:          20,
	}
}

// DefaultRerankConfig 返回默认重排配置
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		ModeOverride:             "",
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

// DefaultQualityConfig 返回默认质量评估配置
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

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		Password:  "",
		DB:        0,
		PoolSize:  10,
		KeyPrefix: "fusionflow:",
	}
}

// DefaultHistoryConfig 返回默认历史存储配置
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Backend:    "memory",
		Driver:     "sqlite",
		Name:       "fusionflow_history.db",
		SSLMode:    "disable",
		WindowSize: 200,
	}
}

// DefaultFederationConfig 返回默认联邦配置
func DefaultFederationConfig() FederationConfig {
	return FederationConfig{
		NodeTimeout:    10 * time.Second,
		RateLimitRPS:   20,
		RateLimitBurst: 40,
		TokenTTL:       time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "fusionflow",
		SampleRate:   1.0,
	}
}
