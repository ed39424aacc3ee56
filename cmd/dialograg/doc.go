// Copyright (c) DialogRAG Authors.
// Licensed under the MIT License.

/*
Package main 提供 DialogRAG 服务端程序入口。

# 概述

cmd/dialograg 是对话模拟器混合语义检索服务的可执行入口，提供
HTTP 检索 API、索引构建、单次查询、健康检查和版本查询等子命令。
程序支持 YAML 配置文件加载、结构化日志（zap）、Prometheus 指标
采集以及语料文件变更后的索引自动重建。

# 核心类型

  - Server           — 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - components       — 核心部件装配：分词、繁简转换、嵌入、索引、检索引擎
  - Middleware        — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter    — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、build（构建索引）、query（单次查询）、
    version、health
  - 中间件链：Recovery、RequestID（uuid）、SecurityHeaders、
    RequestLogger、OTelTracing、MetricsMiddleware、RateLimiter（基于 IP）
  - 查询缓存：Redis 缓存检索响应，索引切换时整体失效
  - 语料监听：文件变更去抖后自动重建并持久化索引
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 停止监听 → 关闭 HTTP → 关闭 Metrics → 关缓存
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
