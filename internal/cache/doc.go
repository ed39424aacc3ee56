// 版权所有 2026 DialogRAG Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的检索响应缓存，按规范化查询、top_k 与
上一轮对话标签组合键存取完整响应。

# 概述

本包封装 go-redis 客户端。缓存只是加速层：连接失败、条目损坏或
Redis 不可用时调用方直接走检索，请求永不因缓存失败而失败。
索引重建换入新快照后必须调用 Flush，避免旧索引结果继续命中。

# 核心类型

  - QueryCache：查询缓存，提供 Get/Put/Flush/Ping/Close，
    响应以 JSON 序列化存储并带 TTL。
  - Config：缓存配置，包含地址、密码、连接池大小、TTL
    与健康检查间隔等参数。
  - Recorder：命中/未命中观测回调，由指标收集器实现。

# 主要能力

  - 键派生：Key 把规范化查询、top_k 与上一轮标签编码为稳定键。
  - 健康检查：后台定时 Ping 检测，异常时通过 zap 日志告警。
  - 优雅关闭：Close 方法安全释放底层 Redis 连接。
  - 错误语义：提供 ErrCacheMiss 哨兵错误与 IsCacheMiss 判断函数。
*/
package cache
