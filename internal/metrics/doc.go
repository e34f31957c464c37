// 版权所有 2024 FusionFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
检索调用、策略执行、重排、质量评估与联邦节点五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - 检索指标：调用总数、端到端耗时、纠错轮次、最终结果数，
    按 status 分组。
  - 策略指标：执行总数、执行耗时、单策略结果数，
    按 strategy/status 分组。
  - 重排指标：打分模式选择计数，按 mode 分组。
  - 质量指标：各维度评估分值分布，按 dimension 分组。
  - 纠错指标：纠错动作计数，按 action 分组。
  - 联邦指标：节点请求计数与耗时，按 node/status 分组。
*/
package metrics
