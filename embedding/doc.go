// Package embedding 提供统一的嵌入提供者接口与 HTTP / WebSocket 客户端实现。
// 提供者对同一文本必须返回相同向量（索引一致性要求），
// 且批量结果顺序必须与提交顺序一致。
package embedding
