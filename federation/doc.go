// Package federation 提供跨组织联邦检索的节点客户端与节点注册表。
//
// 每个节点是一个远端检索服务：请求用 HS256 JWT 签名、按节点限流，
// 节点状态（online / degraded / offline）由注册表跟踪。
// 单节点失败只影响自身状态，不影响其他节点的查询。
package federation
