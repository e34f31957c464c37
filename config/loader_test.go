// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 3, cfg.Engine.MaxRounds)
	assert.Equal(t, "memory", cfg.History.Backend)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
engine:
  max_rounds: 5
  max_strategies: 4
  strategy_timeout: 45s
  final_list_size: 10

strategies:
  - id: vector
    enabled: true
    weight: 0.6
  - id: lexical
    enabled: false
    weight: 0.4

quality:
  overall_threshold: 0.8
  top_n: 3

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

log:
  level: "debug"
  format: "console"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 加载配置
	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 验证 YAML 值覆盖了默认值
	assert.Equal(t, 5, cfg.Engine.MaxRounds)
	assert.Equal(t, 4, cfg.Engine.MaxStrategies)
	assert.Equal(t, 45*time.Second, cfg.Engine.StrategyTimeout)
	assert.Equal(t, 10, cfg.Engine.FinalListSize)

	require.Len(t, cfg.Strategies, 2)
	assert.Equal(t, "vector", cfg.Strategies[0].ID)
	assert.Equal(t, 0.6, cfg.Strategies[0].Weight)
	assert.False(t, cfg.Strategies[1].Enabled)

	assert.Equal(t, 0.8, cfg.Quality.OverallThreshold)
	assert.Equal(t, 3, cfg.Quality.TopN)

	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	// 设置环境变量
	envVars := map[string]string{
		"FUSIONFLOW_ENGINE_MAX_ROUNDS":       "4",
		"FUSIONFLOW_ENGINE_STRATEGY_TIMEOUT": "12s",
		"FUSIONFLOW_FUSION_MAX_RESULTS":      "50",
		"FUSIONFLOW_RERANK_MODE_OVERRIDE":    "pairwise",
		"FUSIONFLOW_HISTORY_BACKEND":         "redis",
		"FUSIONFLOW_REDIS_ADDR":              "env-redis:6379",
		"FUSIONFLOW_LOG_LEVEL":               "warn",
	}

	for k, v := range envVars {
		os.Setenv(k, v)
	}
	// 清理环境变量
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	// 加载配置
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	// 验证环境变量覆盖了默认值
	assert.Equal(t, 4, cfg.Engine.MaxRounds)
	assert.Equal(t, 12*time.Second, cfg.Engine.StrategyTimeout)
	assert.Equal(t, 50, cfg.Fusion.MaxResults)
	assert.Equal(t, "pairwise", cfg.Rerank.ModeOverride)
	assert.Equal(t, "redis", cfg.History.Backend)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
engine:
  max_rounds: 5
log:
  level: "debug"
  format: "console"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 设置环境变量（应该覆盖 YAML）
	os.Setenv("FUSIONFLOW_ENGINE_MAX_ROUNDS", "7")
	os.Setenv("FUSIONFLOW_LOG_LEVEL", "error")
	defer func() {
		os.Unsetenv("FUSIONFLOW_ENGINE_MAX_ROUNDS")
		os.Unsetenv("FUSIONFLOW_LOG_LEVEL")
	}()

	// 加载配置
	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 环境变量应该覆盖 YAML
	assert.Equal(t, 7, cfg.Engine.MaxRounds)
	assert.Equal(t, "error", cfg.Log.Level)
	// YAML 值应该保留（没有被环境变量覆盖）
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	// 设置自定义前缀的环境变量
	os.Setenv("MYAPP_ENGINE_MAX_ROUNDS", "9")
	os.Setenv("MYAPP_REDIS_ADDR", "custom:6379")
	defer func() {
		os.Unsetenv("MYAPP_ENGINE_MAX_ROUNDS")
		os.Unsetenv("MYAPP_REDIS_ADDR")
	}()

	// 使用自定义前缀加载
	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Engine.MaxRounds)
	assert.Equal(t, "custom:6379", cfg.Redis.Addr)
}

func TestLoader_WithValidator(t *testing.T) {
	// 添加验证器
	validator := func(cfg *Config) error {
		if cfg.Engine.MaxRounds > 5 {
			return assert.AnError
		}
		return nil
	}

	os.Setenv("FUSIONFLOW_ENGINE_MAX_ROUNDS", "10")
	defer os.Unsetenv("FUSIONFLOW_ENGINE_MAX_ROUNDS")

	// 加载应该失败
	_, err := NewLoader().
		WithValidator(validator).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	// 指定不存在的文件，应该使用默认值（不报错）
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// 应该返回默认值
	assert.Equal(t, 3, cfg.Engine.MaxRounds)
}

func TestLoader_InvalidYAML(t *testing.T) {
	// 创建无效的 YAML 文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
engine:
  max_rounds: [invalid
  this is not valid yaml
`
	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	// 加载应该失败
	_, err = NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid max rounds",
			modify: func(c *Config) {
				c.Engine.MaxRounds = 0
			},
			wantErr: true,
		},
		{
			name: "invalid max strategies",
			modify: func(c *Config) {
				c.Engine.MaxStrategies = -1
			},
			wantErr: true,
		},
		{
			name: "invalid latency penalty floor",
			modify: func(c *Config) {
				c.Fusion.LatencyPenaltyFloor = 1.5
			},
			wantErr: true,
		},
		{
			name: "zero hybrid weights",
			modify: func(c *Config) {
				c.Rerank.PairwiseWeight = 0
				c.Rerank.EmbeddingWeight = 0
			},
			wantErr: true,
		},
		{
			name: "invalid overall threshold",
			modify: func(c *Config) {
				c.Quality.OverallThreshold = 2.0
			},
			wantErr: true,
		},
		{
			name: "unknown history backend",
			modify: func(c *Config) {
				c.History.Backend = "cassandra"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHistoryConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   HistoryConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: HistoryConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: HistoryConfig{
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name: "sqlite DSN",
			config: HistoryConfig{
				Driver: "sqlite",
				Name:   "/path/to/history.db",
			},
			expected: "/path/to/history.db",
		},
		{
			name: "unknown driver",
			config: HistoryConfig{
				Driver: "unknown",
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	// 创建有效配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
engine:
  max_rounds: 2
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 不应该 panic
	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 2, cfg.Engine.MaxRounds)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	// 创建无效配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	err := os.WriteFile(configPath, []byte("invalid: [yaml"), 0644)
	require.NoError(t, err)

	// 应该 panic
	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}
