package index

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vitalsim/dialograg/corpus"
	"github.com/vitalsim/dialograg/embedding"
)

// Snapshot 一次构建产出的完整检索状态：向量结构、槽位映射与文档数组。
// 三者总是作为配套整体加载与替换，服务期间只读。
type Snapshot struct {
	Index     VectorIndex
	SlotMap   []int
	Documents []corpus.Document
}

// Resolve 把槽位 id 解析为其所属文档。
func (s *Snapshot) Resolve(slot int) (*corpus.Document, bool) {
	if slot < 0 || slot >= len(s.SlotMap) {
		return nil, false
	}
	docID := s.SlotMap[slot]
	if docID < 0 || docID >= len(s.Documents) {
		return nil, false
	}
	return &s.Documents[docID], true
}

// Document 按文档 id 返回文档。id 即文档数组下标。
func (s *Snapshot) Document(docID int) (*corpus.Document, bool) {
	if docID < 0 || docID >= len(s.Documents) {
		return nil, false
	}
	return &s.Documents[docID], true
}

// BuildConfig 索引构建配置。
type BuildConfig struct {
	// FlatThreshold 槽位数低于该阈值时使用精确索引，否则使用 IVF。
	FlatThreshold int `yaml:"flat_threshold" json:"flat_threshold"`
	// NProbe IVF 搜索时探测的聚类数（0 取 min(nlist, 10)）。
	NProbe int `yaml:"nprobe" json:"nprobe"`
	// Concurrency 并发嵌入批次数。
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

// DefaultBuildConfig 返回默认构建配置。
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		FlatThreshold: 1000,
		NProbe:        0,
		Concurrency:   4,
	}
}

// Builder 批量嵌入槽位文本并构建向量索引。
type Builder struct {
	config   BuildConfig
	provider embedding.Provider
	logger   *zap.Logger
}

// NewBuilder 创建索引构建器。
func NewBuilder(config BuildConfig, provider embedding.Provider, logger *zap.Logger) *Builder {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &Builder{
		config:   config,
		provider: provider,
		logger:   logger,
	}
}

// Build 构建完整快照。嵌入调用按批并发，但结果按提交顺序写回固定偏移，
// 向量顺序与槽位 id 顺序严格一致——顺序是正确性不变量，而非完成时序。
func (b *Builder) Build(ctx context.Context, docs []corpus.Document) (*Snapshot, error) {
	texts, slotMap := EnumerateSlots(docs)

	b.logger.Info("building vector index",
		zap.Int("documents", len(docs)),
		zap.Int("slots", len(texts)))

	if len(texts) == 0 {
		return &Snapshot{Index: NewFlatIndex(nil), SlotMap: slotMap, Documents: docs}, nil
	}

	vectors, err := b.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	var idx VectorIndex
	if len(vectors) < b.config.FlatThreshold {
		idx = NewFlatIndex(vectors)
	} else {
		nlist := int(math.Sqrt(float64(len(vectors))))
		idx, err = NewIVFIndex(vectors, nlist, b.config.NProbe)
		if err != nil {
			return nil, fmt.Errorf("build IVF index: %w", err)
		}
		b.logger.Info("trained IVF structure", zap.Int("nlist", nlist))
	}

	b.logger.Info("vector index built",
		zap.Int("slots", idx.Size()),
		zap.Int("dimensions", idx.Dimensions()))

	return &Snapshot{Index: idx, SlotMap: slotMap, Documents: docs}, nil
}

// embedAll 分批并发嵌入全部槽位文本，按偏移写回保持提交顺序。
func (b *Builder) embedAll(ctx context.Context, texts []string) ([][]float64, error) {
	batchSize := b.provider.MaxBatchSize()
	if batchSize < 1 {
		batchSize = 32
	}

	vectors := make([][]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Concurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			batch, err := b.provider.EmbedDocuments(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed slots [%d,%d): %w", start, end, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("embed slots [%d,%d): got %d vectors", start, end, len(batch))
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("slot %d has dimension %d, expected %d", i, len(vec), dim)
		}
	}
	return vectors, nil
}
