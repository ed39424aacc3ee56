package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/vitalsim/dialograg/embedding"
	"github.com/vitalsim/dialograg/index"
)

// 非对称嵌入模型要求查询与文档带不同标记前缀。
const (
	rerankQueryPrefix   = "query: "
	rerankPassagePrefix = "passage: "
)

// Reranker 用更高精度的嵌入模型对窄候选集做二次排序。
// 只处理已收窄的候选，从不扫描全量语料。
type Reranker struct {
	provider embedding.Provider
	logger   *zap.Logger
}

// NewReranker 创建精排器。provider 应当与召回嵌入器是不同的模型。
func NewReranker(provider embedding.Provider, logger *zap.Logger) *Reranker {
	return &Reranker{provider: provider, logger: logger}
}

// Rerank 按精排余弦分数重排候选，返回前 returnK 条新记录，
// 原混合分保留在记录中以便观测对比。
func (r *Reranker) Rerank(ctx context.Context, snap *index.Snapshot, query string, candidates []Candidate, returnK int) ([]Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	queryVec, err := r.provider.EmbedQuery(ctx, rerankQueryPrefix+query)
	if err != nil {
		return nil, fmt.Errorf("embed rerank query: %w", err)
	}

	passages := make([]string, 0, len(candidates))
	for _, c := range candidates {
		doc, ok := snap.Document(c.DocID)
		if !ok {
			return nil, fmt.Errorf("candidate doc %d not in snapshot", c.DocID)
		}
		passages = append(passages, rerankPassagePrefix+doc.Question)
	}

	passageVecs, err := r.provider.EmbedDocuments(ctx, passages)
	if err != nil {
		return nil, fmt.Errorf("embed rerank passages: %w", err)
	}
	if len(passageVecs) != len(candidates) {
		return nil, fmt.Errorf("rerank returned %d vectors for %d candidates", len(passageVecs), len(candidates))
	}

	reranked := make([]Candidate, len(candidates))
	for i, c := range candidates {
		c.RerankScore = embedding.CosineSimilarity(queryVec, passageVecs[i])
		reranked[i] = c
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RerankScore > reranked[j].RerankScore
	})

	r.logger.Debug("精排完成",
		zap.Int("candidates", len(reranked)),
		zap.Float64("top_score", reranked[0].RerankScore))

	if len(reranked) > returnK {
		reranked = reranked[:returnK]
	}
	return reranked, nil
}
