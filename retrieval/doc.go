// Package retrieval 实现自适应多策略检索引擎的核心流水线：
// 查询分析 → 策略路由 → 并发执行 → 分数融合 → 多模型重排 →
// 质量评估 → 有界纠错循环。
//
// 流水线各阶段对输入无副作用；唯一的并发扇出点在执行器
// （每个选中策略一个任务），其余阶段均为单线程纯函数。
// 所有中间记录在一次 Retrieve 调用内创建并随调用结束丢弃。
package retrieval
