package index

import (
	"fmt"
	"sort"
)

// Hit 一次搜索命中：槽位 id 与相似度（归一化向量的内积 ≈ 余弦相似度）。
type Hit struct {
	Slot  int
	Score float64
}

// VectorIndex 向量索引接口。实现构建后不可变，重建通过整体替换完成。
type VectorIndex interface {
	// Search 返回与查询向量最相似的至多 k 个槽位。
	Search(query []float64, k int) ([]Hit, error)

	// Size 返回槽位（向量）数量。
	Size() int

	// Dimensions 返回向量维度。
	Dimensions() int
}

// FlatIndex 精确内积暴力搜索索引，适用于小规模槽位集。
type FlatIndex struct {
	dim     int
	vectors [][]float64
}

// NewFlatIndex 从向量集创建精确索引。
func NewFlatIndex(vectors [][]float64) *FlatIndex {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	return &FlatIndex{dim: dim, vectors: vectors}
}

// Search 暴力计算全部内积并返回 Top-K。
func (idx *FlatIndex) Search(query []float64, k int) ([]Hit, error) {
	if len(idx.vectors) == 0 {
		return []Hit{}, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), idx.dim)
	}

	hits := make([]Hit, len(idx.vectors))
	for i, vec := range idx.vectors {
		hits[i] = Hit{Slot: i, Score: dotProduct(query, vec)}
	}

	sortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Size 返回槽位数量。
func (idx *FlatIndex) Size() int { return len(idx.vectors) }

// Dimensions 返回向量维度。
func (idx *FlatIndex) Dimensions() int { return idx.dim }

func dotProduct(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// sortHits 按相似度降序、同分按槽位升序排序，保证结果稳定。
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Slot < hits[j].Slot
	})
}
