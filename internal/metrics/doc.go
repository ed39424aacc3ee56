// 版权所有 2026 DialogRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、检索、嵌入、缓存与索引五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，按 namespace
隔离并注册到调用方给定的 Registerer，支持多维度 label 分组，
便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时，按 method/path/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 检索指标：查询总数、查询耗时、结果条数分布、精排回退计数。
  - 嵌入指标：提供者请求总数与耗时，按 provider/status 分组。
  - 缓存指标：命中与未命中计数，按 cache_type 分组。
  - 索引指标：活跃索引槽位数 Gauge、重建次数计数。
*/
package metrics
