// =============================================================================
// 📦 FusionFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("FUSIONFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是检索引擎的完整配置结构
type Config struct {
	// Engine 引擎编排配置
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Strategies 各检索策略的启用/权重/超时配置
	Strategies []StrategyConfig `yaml:"strategies" env:"-"`

	// Fusion 融合阶段配置
	Fusion FusionConfig `yaml:"fusion" env:"FUSION"`

	// Rerank 重排阶段配置
	Rerank RerankConfig `yaml:"rerank" env:"RERANK"`

	// Quality 质量评估配置
	Quality QualityConfig `yaml:"quality" env:"QUALITY"`

	// Redis 历史存储 Redis 后端配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// History 策略表现历史存储配置
	History HistoryConfig `yaml:"history" env:"HISTORY"`

	// Federation 联邦节点客户端配置
	Federation FederationConfig `yaml:"federation" env:"FEDERATION"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// EngineConfig 引擎编排配置
type EngineConfig struct {
	// 纠错循环最大轮数
	MaxRounds int `yaml:"max_rounds" env:"MAX_ROUNDS"`
	// 单轮最多并发策略数（限制扇出成本）
	MaxStrategies int `yaml:"max_strategies" env:"MAX_STRATEGIES"`
	// 单策略超时预算
	StrategyTimeout time.Duration `yaml:"strategy_timeout" env:"STRATEGY_TIMEOUT"`
	// 最终结果列表上限
	FinalListSize int `yaml:"final_list_size" env:"FINAL_LIST_SIZE"`
	// tiktoken 模型名（查询分析用）
	TokenizerModel string `yaml:"tokenizer_model" env:"TOKENIZER_MODEL"`
}

// StrategyConfig 单个检索策略的配置
type StrategyConfig struct {
	// 策略 ID: vector, lexical, semantic, graph, federated
	ID string `yaml:"id"`
	// 是否启用
	Enabled bool `yaml:"enabled"`
	// 基础权重
	Weight float64 `yaml:"weight"`
	// 超时（0 使用 Engine.StrategyTimeout）
	Timeout time.Duration `yaml:"timeout"`
}

// FusionConfig 融合阶段配置
type FusionConfig struct {
	// 适配器未提供归一化分数时的默认 baseScore
	DefaultBaseScore float64 `yaml:"default_base_score" env:"DEFAULT_BASE_SCORE"`
	// 延迟惩罚下限 max(floor, 1 - latency/scale)
	LatencyPenaltyFloor float64 `yaml:"latency_penalty_floor" env:"LATENCY_PENALTY_FLOOR"`
	// 延迟惩罚尺度（秒）
	LatencyPenaltyScale float64 `yaml:"latency_penalty_scale" env:"LATENCY_PENALTY_SCALE"`
	// 多样性过滤后的列表上限
	MaxResults int `yaml:"max_results" env:"MAX_RESULTS"`
}

// RerankConfig 重排阶段配置
type RerankConfig struct {
	// 强制指定打分模式（空 = adaptive 自适应选择）
	ModeOverride string `yaml:"mode_override" env:"MODE_OVERRIDE"`
	// hybrid 模式的成对打分权重
	PairwiseWeight float64 `yaml:"pairwise_weight" env:"PAIRWISE_WEIGHT"`
	// hybrid 模式的向量相似度权重
	EmbeddingWeight float64 `yaml:"embedding_weight" env:"EMBEDDING_WEIGHT"`
	// context-aware 模式的上下文加成上限
	ContextBoostCap float64 `yaml:"context_boost_cap" env:"CONTEXT_BOOST_CAP"`
	// 结果数超过该阈值时 adaptive 选择 multi-objective
	MultiObjectiveMinResults int `yaml:"multi_objective_min_results" env:"MULTI_OBJECTIVE_MIN_RESULTS"`
	// multi-objective 各目标权重
	RelevanceWeight     float64 `yaml:"relevance_weight" env:"RELEVANCE_WEIGHT"`
	DiversityWeight     float64 `yaml:"diversity_weight" env:"DIVERSITY_WEIGHT"`
	NoveltyWeight       float64 `yaml:"novelty_weight" env:"NOVELTY_WEIGHT"`
	SourceQualityWeight float64 `yaml:"source_quality_weight" env:"SOURCE_QUALITY_WEIGHT"`
}

// QualityConfig 质量评估配置
type QualityConfig struct {
	// 总体阈值，低于则 needsCorrection
	OverallThreshold float64 `yaml:"overall_threshold" env:"OVERALL_THRESHOLD"`
	// 各子分阈值，低于则产生 gap 描述
	RelevanceThreshold    float64 `yaml:"relevance_threshold" env:"RELEVANCE_THRESHOLD"`
	CompletenessThreshold float64 `yaml:"completeness_threshold" env:"COMPLETENESS_THRESHOLD"`
	AccuracyThreshold     float64 `yaml:"accuracy_threshold" env:"ACCURACY_THRESHOLD"`
	DiversityThreshold    float64 `yaml:"diversity_threshold" env:"DIVERSITY_THRESHOLD"`
	// 相关性计算取前 N 条结果
	TopN int `yaml:"top_n" env:"TOP_N"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// Key 前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// HistoryConfig 策略表现历史存储配置
type HistoryConfig struct {
	// 后端类型: memory, redis, sql
	Backend string `yaml:"backend" env:"BACKEND"`
	// SQL 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 时为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 滚动窗口内保留的记录条数（按策略）
	WindowSize int `yaml:"window_size" env:"WINDOW_SIZE"`
}

// FederationConfig 联邦节点客户端配置
type FederationConfig struct {
	// Nodes 联邦节点列表
	Nodes []FederationNodeConfig `yaml:"nodes" env:"-"`
	// 单节点请求超时
	NodeTimeout time.Duration `yaml:"node_timeout" env:"NODE_TIMEOUT"`
	// 单节点限流 RPS
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 请求签名密钥（HS256）
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// 签名 token 有效期
	TokenTTL time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
}

// FederationNodeConfig 单个联邦节点
type FederationNodeConfig struct {
	// 节点 ID
	ID string `yaml:"id"`
	// 节点查询端点 URL
	Endpoint string `yaml:"endpoint"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "FUSIONFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Engine.MaxRounds <= 0 {
		errs = append(errs, "engine.max_rounds must be positive")
	}
	if c.Engine.MaxStrategies <= 0 {
		errs = append(errs, "engine.max_strategies must be positive")
	}
	if c.Engine.StrategyTimeout <= 0 {
		errs = append(errs, "engine.strategy_timeout must be positive")
	}
	if c.Fusion.LatencyPenaltyFloor < 0 || c.Fusion.LatencyPenaltyFloor > 1 {
		errs = append(errs, "fusion.latency_penalty_floor must be in [0,1]")
	}
	if w := c.Rerank.PairwiseWeight + c.Rerank.EmbeddingWeight; w <= 0 {
		errs = append(errs, "rerank hybrid weights must sum to a positive value")
	}
	if c.Quality.OverallThreshold < 0 || c.Quality.OverallThreshold > 1 {
		errs = append(errs, "quality.overall_threshold must be in [0,1]")
	}
	switch c.History.Backend {
	case "", "memory", "redis", "sql":
	default:
		errs = append(errs, fmt.Sprintf("unknown history backend %q", c.History.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回历史存储数据库连接字符串
func (h *HistoryConfig) DSN() string {
	switch h.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			h.Host, h.Port, h.User, h.Password, h.Name, h.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			h.User, h.Password, h.Host, h.Port, h.Name,
		)
	case "sqlite":
		return h.Name
	default:
		return ""
	}
}
