package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitalsim/dialograg/corpus"
	"github.com/vitalsim/dialograg/embedding"
)

// hashProvider 确定性假嵌入器：按字符哈希到固定维度的词袋向量并归一化。
// 相同文本恒得相同向量，字符重叠越多相似度越高。
type hashProvider struct {
	dim   int
	batch int
}

func newHashProvider() *hashProvider { return &hashProvider{dim: 64, batch: 8} }

func (p *hashProvider) encode(text string) []float64 {
	vec := make([]float64, p.dim)
	for _, r := range text {
		vec[int(r)%p.dim]++
	}
	embedding.Normalize(vec)
	return vec
}

func (p *hashProvider) EmbedQuery(_ context.Context, query string) ([]float64, error) {
	return p.encode(query), nil
}

func (p *hashProvider) EmbedDocuments(_ context.Context, documents []string) ([][]float64, error) {
	out := make([][]float64, len(documents))
	for i, d := range documents {
		out[i] = p.encode(d)
	}
	return out, nil
}

func (p *hashProvider) Name() string      { return "hash" }
func (p *hashProvider) Dimensions() int   { return p.dim }
func (p *hashProvider) MaxBatchSize() int { return p.batch }

func testDocs() []corpus.Document {
	return []corpus.Document{
		{ID: 0, Question: "小孩發燒怎麼辦", Answer: "先量體溫再觀察", Tags: []string{"A"}, Variants: []string{"孩子發燒怎麼辦", "小孩發熱怎麼辦"}},
		{ID: 1, Question: "肚子疼多久了", Answer: "大概兩天了", Tags: []string{"B"}},
		{ID: 2, Question: "小孩拉肚子怎麼處理", Answer: "注意補充水分", Tags: []string{"C"}, Variants: []string{"小孩腹瀉怎麼處理"}},
	}
}

func TestEnumerateSlotsMapsEverySlotToOwner(t *testing.T) {
	t.Parallel()

	docs := testDocs()
	texts, slotMap := EnumerateSlots(docs)

	require.Equal(t, len(texts), len(slotMap))
	// 问题 + 变体 + 合成槽位：3 + (2+0+1) + 3 = 9。
	assert.Len(t, texts, 9)

	// 每个槽位都解析回其所属文档。
	cursor := 0
	for _, doc := range docs {
		count := 1 + len(doc.Variants) + 1 // 有回答时含合成槽位
		for i := 0; i < count; i++ {
			assert.Equal(t, doc.ID, slotMap[cursor], "slot %d", cursor)
			cursor++
		}
	}
}

func TestEnumerateSlotsSkipsCompositeWithoutAnswer(t *testing.T) {
	t.Parallel()

	docs := []corpus.Document{{ID: 0, Question: "只有問題"}}
	texts, slotMap := EnumerateSlots(docs)

	require.Len(t, texts, 1)
	assert.Equal(t, "只有問題", texts[0])
	assert.Equal(t, []int{0}, slotMap)
}

func TestCompositeSlotTruncatesAnswer(t *testing.T) {
	t.Parallel()

	long := make([]rune, 0, 150)
	for i := 0; i < 150; i++ {
		long = append(long, '水')
	}
	got := compositeSlot("問", string(long))
	assert.Equal(t, "Q: 問 A: "+string(long[:100]), got)
}

func TestFlatIndexSearch(t *testing.T) {
	t.Parallel()

	idx := NewFlatIndex([][]float64{
		{1, 0},
		{0, 1},
		{0.9, 0.1},
	})

	hits, err := idx.Search([]float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Slot)
	assert.Equal(t, 2, hits[1].Slot)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestFlatIndexDimensionMismatch(t *testing.T) {
	t.Parallel()

	idx := NewFlatIndex([][]float64{{1, 0}})
	_, err := idx.Search([]float64{1, 0, 0}, 1)
	require.Error(t, err)
}

func TestIVFIndexFindsNearest(t *testing.T) {
	t.Parallel()

	// 两簇明显分离的向量。
	var vectors [][]float64
	for i := 0; i < 20; i++ {
		vectors = append(vectors, []float64{1, float64(i) * 0.001})
	}
	for i := 0; i < 20; i++ {
		vectors = append(vectors, []float64{float64(i) * 0.001, 1})
	}

	idx, err := NewIVFIndex(vectors, 4, 4)
	require.NoError(t, err)

	hits, err := idx.Search([]float64{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 5)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Slot, 20, "expected hits from the second cluster")
	}
}

func TestBuilderPreservesSlotOrder(t *testing.T) {
	t.Parallel()

	provider := newHashProvider()
	builder := NewBuilder(DefaultBuildConfig(), provider, zap.NewNop())

	docs := testDocs()
	snap, err := builder.Build(context.Background(), docs)
	require.NoError(t, err)

	texts, slotMap := EnumerateSlots(docs)
	require.Equal(t, len(texts), snap.Index.Size())
	require.Equal(t, slotMap, snap.SlotMap)

	// 每个槽位向量与其文本的直接嵌入一致（顺序不变量）。
	flat, ok := snap.Index.(*FlatIndex)
	require.True(t, ok)
	for i, text := range texts {
		assert.Equal(t, provider.encode(text), flat.vectors[i], "slot %d", i)
	}
}

func TestBuilderSelectsIVFAboveThreshold(t *testing.T) {
	t.Parallel()

	cfg := DefaultBuildConfig()
	cfg.FlatThreshold = 10

	var docs []corpus.Document
	for i := 0; i < 20; i++ {
		docs = append(docs, corpus.Document{ID: i, Question: fmt.Sprintf("問題%d", i), Answer: "答"})
	}

	builder := NewBuilder(cfg, newHashProvider(), zap.NewNop())
	snap, err := builder.Build(context.Background(), docs)
	require.NoError(t, err)

	_, ok := snap.Index.(*IVFIndex)
	assert.True(t, ok, "expected IVF index above threshold")
}

func TestSaveLoadRoundTripIdenticalResults(t *testing.T) {
	t.Parallel()

	provider := newHashProvider()
	builder := NewBuilder(DefaultBuildConfig(), provider, zap.NewNop())

	snap, err := builder.Build(context.Background(), testDocs())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, Save(dir, snap))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, snap.SlotMap, loaded.SlotMap)
	require.Equal(t, snap.Documents, loaded.Documents)

	// 固定探针查询集上 Top-K 完全一致。
	for _, probe := range []string{"小孩發燒", "肚子疼", "拉肚子", "請問醫生"} {
		vec := provider.encode(probe)
		before, err := snap.Index.Search(vec, 5)
		require.NoError(t, err)
		after, err := loaded.Index.Search(vec, 5)
		require.NoError(t, err)
		assert.Equal(t, before, after, "probe %q", probe)
	}
}

func TestLoadMissingArtifactIsFatal(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(DefaultBuildConfig(), newHashProvider(), zap.NewNop())
	snap, err := builder.Build(context.Background(), testDocs())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, Save(dir, snap))
	require.NoError(t, os.Remove(filepath.Join(dir, slotMapFile)))

	_, err = Load(dir)
	require.ErrorIs(t, err, ErrCorruptIndex)
}

func TestLoadSizeMismatchIsFatal(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(DefaultBuildConfig(), newHashProvider(), zap.NewNop())
	snap, err := builder.Build(context.Background(), testDocs())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, Save(dir, snap))
	// 截断槽位映射制造规模不一致。
	require.NoError(t, writeJSON(filepath.Join(dir, slotMapFile), snap.SlotMap[:len(snap.SlotMap)-1]))

	_, err = Load(dir)
	require.ErrorIs(t, err, ErrCorruptIndex)
}

func TestManagerRebuildSwapsAtomically(t *testing.T) {
	t.Parallel()

	builder := NewBuilder(DefaultBuildConfig(), newHashProvider(), zap.NewNop())
	m := NewManager(builder, zap.NewNop())

	require.Nil(t, m.Snapshot())

	swapped := 0
	m.OnSwap(func() { swapped++ })

	require.NoError(t, m.Rebuild(context.Background(), testDocs()))
	first := m.Snapshot()
	require.NotNil(t, first)
	assert.Equal(t, 1, swapped)

	// 重建产生新快照，旧引用保持可用。
	require.NoError(t, m.Rebuild(context.Background(), testDocs()[:1]))
	second := m.Snapshot()
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, swapped)
	assert.Len(t, first.Documents, 3)
	assert.Len(t, second.Documents, 1)
}
