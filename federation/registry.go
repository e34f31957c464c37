package federation

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NodeStatus 节点状态。
type NodeStatus string

const (
	NodeStatusOnline   NodeStatus = "online"
	NodeStatusDegraded NodeStatus = "degraded"
	NodeStatusOffline  NodeStatus = "offline"
)

// 连续失败阈值
const (
	degradedAfter = 1
	offlineAfter  = 3
)

// NodeInfo 注册表中的节点条目。
type NodeInfo struct {
	ID       string     `json:"id"`
	Endpoint string     `json:"endpoint"`
	Status   NodeStatus `json:"status"`
	LastSeen time.Time  `json:"last_seen"`
	Failures int        `json:"consecutive_failures"`
}

// Registry 联邦节点注册表，按连续失败数推导节点状态。
type Registry struct {
	mu     sync.RWMutex
	nodes  map[string]*NodeInfo
	logger *zap.Logger
}

// NewRegistry 创建节点注册表。
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		nodes:  make(map[string]*NodeInfo),
		logger: logger.With(zap.String("component", "federation_registry")),
	}
}

// Register 登记节点，初始状态 online。重复登记重置状态。
func (r *Registry) Register(id, endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodes[id] = &NodeInfo{
		ID:       id,
		Endpoint: endpoint,
		Status:   NodeStatusOnline,
		LastSeen: time.Now(),
	}
	r.logger.Info("node registered", zap.String("node", id), zap.String("endpoint", endpoint))
}

// MarkSuccess 记录节点成功响应，恢复 online。
func (r *Registry) MarkSuccess(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return
	}
	node.Failures = 0
	node.LastSeen = time.Now()
	if node.Status != NodeStatusOnline {
		r.logger.Info("node recovered", zap.String("node", id))
		node.Status = NodeStatusOnline
	}
}

// MarkFailure 记录节点失败，按连续失败数降级。
func (r *Registry) MarkFailure(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return
	}
	node.Failures++

	prev := node.Status
	switch {
	case node.Failures >= offlineAfter:
		node.Status = NodeStatusOffline
	case node.Failures >= degradedAfter:
		node.Status = NodeStatusDegraded
	}
	if node.Status != prev {
		r.logger.Warn("node status changed",
			zap.String("node", id),
			zap.String("from", string(prev)),
			zap.String("to", string(node.Status)),
			zap.Int("failures", node.Failures))
	}
}

// Status 返回节点当前状态；未登记的节点视为 offline。
func (r *Registry) Status(id string) NodeStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if node, ok := r.nodes[id]; ok {
		return node.Status
	}
	return NodeStatusOffline
}

// Snapshot 返回所有节点条目（按 ID 排序的副本）。
func (r *Registry) Snapshot() []NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]NodeInfo, 0, len(r.nodes))
	for _, node := range r.nodes {
		out = append(out, *node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
