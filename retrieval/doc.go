// Package retrieval 实现多变体混合检索：向量召回与词面相似度融合、
// 可选的精排重打分、以及对话连续性加权。
//
// Engine 是对外入口，编排一次查询的完整流水线：
// 规范化 → 召回（加权时超量召回）→ 可选精排 → 连续性加权 → 响应成形。
// 精排失败只回退到混合得分排序，从不使查询失败。
package retrieval
