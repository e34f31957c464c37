// Package history 提供策略运行历史的持久化与成功率统计。
//
// 路由器用各策略的滚动窗口成功率微调权重，形成检索反馈闭环。
// 支持三种后端：
//
//   - memory: 进程内滚动窗口（默认，适合单机与测试）
//   - redis: 多实例共享的滚动窗口
//   - sql: GORM 持久化（postgres / mysql / sqlite），附带版本化 Schema 迁移
package history
