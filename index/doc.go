// Package index 负责向量索引的槽位枚举、构建、搜索、持久化与原子切换。
//
// 一个槽位（slot）是提交给向量索引的一条文本：规范问题、一条变体、
// 或“问题+回答前缀”合成文本。槽位 id 按构建顺序从 0 连续分配，
// 槽位映射（slot map）把每个槽位指回其所属文档。
package index
