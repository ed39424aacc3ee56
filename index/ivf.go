package index

import (
	"fmt"
	"math"
)

// IVFIndex 倒排聚类索引：向量按 k-means 聚类分桶，
// 搜索时只扫描与查询最近的 nprobe 个桶，以召回率换速度。
type IVFIndex struct {
	dim       int
	nprobe    int
	centroids [][]float64
	lists     [][]int // 每个聚类的槽位 id 列表
	vectors   [][]float64
}

// NewIVFIndex 在向量集上训练聚类并构建倒排索引。
// nlist 为聚类数，nprobe 为搜索时探测的聚类数（0 取 min(nlist, 10)）。
func NewIVFIndex(vectors [][]float64, nlist, nprobe int) (*IVFIndex, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("cannot build IVF index over empty vector set")
	}
	if nlist < 1 {
		nlist = 1
	}
	if nlist > len(vectors) {
		nlist = len(vectors)
	}
	if nprobe <= 0 {
		nprobe = min(nlist, 10)
	}
	if nprobe > nlist {
		nprobe = nlist
	}

	centroids := kMeans(vectors, nlist, 10)

	lists := make([][]int, len(centroids))
	for slot, vec := range vectors {
		c := nearestCentroid(vec, centroids)
		lists[c] = append(lists[c], slot)
	}

	return &IVFIndex{
		dim:       len(vectors[0]),
		nprobe:    nprobe,
		centroids: centroids,
		lists:     lists,
		vectors:   vectors,
	}, nil
}

// Search 探测 nprobe 个最近聚类并在其中做精确内积搜索。
func (idx *IVFIndex) Search(query []float64, k int) ([]Hit, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), idx.dim)
	}

	// 选出内积最大的 nprobe 个聚类。
	type probe struct {
		cluster int
		score   float64
	}
	probes := make([]probe, len(idx.centroids))
	for c, centroid := range idx.centroids {
		probes[c] = probe{cluster: c, score: dotProduct(query, centroid)}
	}
	for i := 0; i < idx.nprobe; i++ {
		best := i
		for j := i + 1; j < len(probes); j++ {
			if probes[j].score > probes[best].score {
				best = j
			}
		}
		probes[i], probes[best] = probes[best], probes[i]
	}

	var hits []Hit
	for _, p := range probes[:idx.nprobe] {
		for _, slot := range idx.lists[p.cluster] {
			hits = append(hits, Hit{Slot: slot, Score: dotProduct(query, idx.vectors[slot])})
		}
	}

	sortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Size 返回槽位数量。
func (idx *IVFIndex) Size() int { return len(idx.vectors) }

// Dimensions 返回向量维度。
func (idx *IVFIndex) Dimensions() int { return idx.dim }

// kMeans 确定性 Lloyd 迭代：等距抽取初始中心，固定迭代轮数。
// 不引入随机源，保证同一向量集训练出相同聚类。
func kMeans(vectors [][]float64, k, iterations int) [][]float64 {
	n := len(vectors)
	dim := len(vectors[0])

	centroids := make([][]float64, k)
	for i := range centroids {
		centroids[i] = append([]float64(nil), vectors[i*n/k]...)
	}

	assignments := make([]int, n)
	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, vec := range vectors {
			c := nearestCentroid(vec, centroids)
			if assignments[i] != c {
				assignments[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, vec := range vectors {
			c := assignments[i]
			counts[c]++
			for d, v := range vec {
				sums[c][d] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				// 空聚类保留旧中心。
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	return centroids
}

// nearestCentroid 返回与向量内积最大的聚类下标。
func nearestCentroid(vec []float64, centroids [][]float64) int {
	best := 0
	bestScore := math.Inf(-1)
	for c, centroid := range centroids {
		if score := dotProduct(vec, centroid); score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best
}
