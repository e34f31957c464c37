package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/fusionflow/config"
	"github.com/BaSui01/fusionflow/internal/metrics"
	"github.com/BaSui01/fusionflow/types"
)

// NodeConfig 单个远端节点客户端的配置。
type NodeConfig struct {
	ID             string
	Endpoint       string
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	JWTSecret      string
	TokenTTL       time.Duration
	TopK           int
}

// HTTPNode 远端检索节点的 HTTP 客户端。
// 请求带 HS256 签名 token，客户端侧按节点限流。
type HTTPNode struct {
	config   NodeConfig
	client   *http.Client
	limiter  *rate.Limiter
	registry *Registry
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewHTTPNode 创建节点客户端。registry 与 collector 可为 nil。
func NewHTTPNode(cfg NodeConfig, registry *Registry, collector *metrics.Collector, logger *zap.Logger) *HTTPNode {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = int(cfg.RateLimitRPS) * 2
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Minute
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}

	if registry != nil {
		registry.Register(cfg.ID, cfg.Endpoint)
	}

	return &HTTPNode{
		config:   cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		registry: registry,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "federation_node"), zap.String("node", cfg.ID)),
	}
}

// ID 返回节点 ID。
func (n *HTTPNode) ID() string { return n.config.ID }

// 节点查询的线格式
type nodeRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type nodeResponse struct {
	Results []nodeResult `json:"results"`
}

type nodeResult struct {
	DocID    string         `json:"doc_id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Query 向远端节点发起签名检索请求。
func (n *HTTPNode) Query(ctx context.Context, text string) ([]types.RetrievalResult, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	results, err := n.doQuery(ctx, text)
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		if n.registry != nil {
			n.registry.MarkFailure(n.config.ID)
		}
	} else if n.registry != nil {
		n.registry.MarkSuccess(n.config.ID)
	}
	if n.metrics != nil {
		n.metrics.RecordFederationRequest(n.config.ID, status, duration)
	}

	return results, err
}

func (n *HTTPNode) doQuery(ctx context.Context, text string) ([]types.RetrievalResult, error) {
	body, err := json.Marshal(nodeRequest{Query: text, TopK: n.config.TopK})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if n.config.JWTSecret != "" {
		token, err := n.signToken()
		if err != nil {
			return nil, fmt.Errorf("sign token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("node request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("node returned %d: %s", resp.StatusCode, string(payload))
	}

	var decoded nodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]types.RetrievalResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		results = append(results, types.RetrievalResult{
			DocID:    r.DocID,
			Content:  r.Content,
			Score:    r.Score,
			Metadata: r.Metadata,
		})
	}

	n.logger.Debug("node query done", zap.Int("results", len(results)))
	return results, nil
}

// signToken 生成短时效 HS256 请求 token。
func (n *HTTPNode) signToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "fusionflow",
		Subject:   n.config.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(n.config.TokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(n.config.JWTSecret))
}

// BuildNodes 按配置创建全部节点客户端。
func BuildNodes(cfg config.FederationConfig, registry *Registry, collector *metrics.Collector, logger *zap.Logger) []types.FederatedNode {
	nodes := make([]types.FederatedNode, 0, len(cfg.Nodes))
	for _, nc := range cfg.Nodes {
		nodes = append(nodes, NewHTTPNode(NodeConfig{
			ID:             nc.ID,
			Endpoint:       nc.Endpoint,
			Timeout:        cfg.NodeTimeout,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
			JWTSecret:      cfg.JWTSecret,
			TokenTTL:       cfg.TokenTTL,
		}, registry, collector, logger))
	}
	return nodes
}
