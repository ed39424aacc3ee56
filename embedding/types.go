package embedding

import (
	"context"
	"math"
)

// Provider 定义统一的嵌入提供者接口。
type Provider interface {
	// EmbedQuery 嵌入单个查询文本。
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// EmbedDocuments 批量嵌入文档文本，结果顺序与输入顺序一致。
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)

	// Name 返回提供者名称。
	Name() string

	// Dimensions 返回嵌入维度。
	Dimensions() int

	// MaxBatchSize 返回单次请求支持的最大批量。
	MaxBatchSize() int
}

// Normalize 将向量原地归一化为单位长度。零向量保持不变。
// 归一化后内积即余弦相似度，这是向量索引的正确性前提。
func Normalize(vec []float64) {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
}

// CosineSimilarity 计算两个向量的余弦相似度。
// 维度不一致或零向量返回 0。
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
