package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/vitalsim/dialograg/embedding"
	"github.com/vitalsim/dialograg/index"
	"github.com/vitalsim/dialograg/textnorm"
)

// Candidate 一条检索候选及其各阶段分数。
// 记录不可变：精排与连续性加权都产生新记录而非原地改写。
type Candidate struct {
	DocID         int
	VectorScore   float64
	LexicalScore  float64
	CombinedScore float64
	// RerankScore 仅在精排通过后填充。
	RerankScore float64
}

// RetrieverConfig 候选召回参数。
type RetrieverConfig struct {
	VectorWeight  float64 `yaml:"vector_weight"`
	LexicalWeight float64 `yaml:"lexical_weight"`
	// MaxVariants 查询变体上限：规范形、简体形、繁体形。
	MaxVariants int `yaml:"max_variants"`
}

// DefaultRetrieverConfig 返回默认召回参数。
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		VectorWeight:  0.7,
		LexicalWeight: 0.3,
		MaxVariants:   3,
	}
}

// Retriever 多变体混合召回器：向量召回与词面分数融合。
type Retriever struct {
	config    RetrieverConfig
	provider  embedding.Provider
	lexical   *Lexical
	converter textnorm.ScriptConverter
	logger    *zap.Logger
}

// NewRetriever 创建召回器。
func NewRetriever(config RetrieverConfig, provider embedding.Provider, lexical *Lexical, converter textnorm.ScriptConverter, logger *zap.Logger) *Retriever {
	return &Retriever{
		config:    config,
		provider:  provider,
		lexical:   lexical,
		converter: converter,
		logger:    logger,
	}
}

// queryVariants 生成至多 MaxVariants 个互异的查询变体：
// 规范化原文、简体形、繁体形。
func (r *Retriever) queryVariants(query string) []string {
	base := textnorm.NormalizeQuery(textnorm.CleanText(query))

	variants := []string{base}
	add := func(v string) {
		if len(variants) >= r.config.MaxVariants {
			return
		}
		for _, existing := range variants {
			if existing == v {
				return
			}
		}
		variants = append(variants, v)
	}

	add(r.converter.ToSimplified(base))
	add(r.converter.ToTraditional(base))
	return variants
}

// Retrieve 对查询做多变体召回，返回按混合分降序、按文档去重的候选。
// 单个变体嵌入失败只降低召回率，不中断请求。
func (r *Retriever) Retrieve(ctx context.Context, snap *index.Snapshot, query string, topK int) ([]Candidate, error) {
	if snap == nil {
		return nil, fmt.Errorf("no active index snapshot")
	}
	if topK <= 0 {
		return nil, nil
	}

	best := make(map[int]Candidate)
	failed := 0

	variants := r.queryVariants(query)
	for _, variant := range variants {
		vec, err := r.provider.EmbedQuery(ctx, variant)
		if err != nil {
			failed++
			r.logger.Warn("嵌入查询变体失败，跳过该变体",
				zap.String("variant", variant),
				zap.Error(err))
			continue
		}

		hits, err := snap.Index.Search(vec, topK)
		if err != nil {
			return nil, fmt.Errorf("search index: %w", err)
		}

		for _, hit := range hits {
			doc, ok := snap.Resolve(hit.Slot)
			if !ok {
				continue
			}

			vecScore := clamp01(hit.Score)
			lexScore := r.lexical.Score(query, doc.Question)
			combined := r.config.VectorWeight*vecScore + r.config.LexicalWeight*lexScore

			if prev, ok := best[doc.ID]; !ok || combined > prev.CombinedScore {
				best[doc.ID] = Candidate{
					DocID:         doc.ID,
					VectorScore:   vecScore,
					LexicalScore:  lexScore,
					CombinedScore: combined,
				}
			}
		}
	}

	if failed == len(variants) {
		return nil, fmt.Errorf("all %d query variants failed to embed", failed)
	}

	candidates := make([]Candidate, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CombinedScore != candidates[j].CombinedScore {
			return candidates[i].CombinedScore > candidates[j].CombinedScore
		}
		return candidates[i].DocID < candidates[j].DocID
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
