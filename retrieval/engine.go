package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vitalsim/dialograg/index"
)

// ErrNoIndex 当前没有任何可用的索引快照（未构建也未加载）。
var ErrNoIndex = errors.New("no index loaded")

// EngineConfig 查询编排参数。
type EngineConfig struct {
	// TopK 默认返回条数。
	TopK int `yaml:"top_k"`
	// OverFetch 连续性加权时额外多召回的条数，
	// 给加权重排留出候选余量。
	OverFetch int `yaml:"over_fetch"`
}

// DefaultEngineConfig 返回默认编排参数。
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TopK:      5,
		OverFetch: 5,
	}
}

// Request 一次检索请求。
type Request struct {
	Query string
	TopK  int
	// PreviousTag 上一轮对话的分支标签。仅当 Reweight 为真时参与加权；
	// 空串表示会话开场。
	PreviousTag string
	Reweight    bool
}

// Result 对外响应中的一条匹配。
type Result struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Score       float64  `json:"score"`
	Tags        []string `json:"tags"`
	Code        string   `json:"code,omitempty"`
	AnswerType  string   `json:"answerType"`
	ImageToShow string   `json:"imageToShow,omitempty"`
	AudioURL    string   `json:"audioUrl,omitempty"`
}

// Metrics 查询阶段的观测回调。
type Metrics interface {
	ObserveQuery(duration time.Duration, results int)
	RerankFallback()
}

// NopMetrics 空实现。
type NopMetrics struct{}

func (NopMetrics) ObserveQuery(time.Duration, int) {}
func (NopMetrics) RerankFallback()                 {}

// Engine 检索引擎：编排召回、可选精排与连续性加权，并整形响应。
type Engine struct {
	config     EngineConfig
	snapshots  *index.Manager
	retriever  *Retriever
	reranker   *Reranker
	reweighter *Reweighter
	metrics    Metrics
	tracer     trace.Tracer
	logger     *zap.Logger
}

// NewEngine 创建检索引擎。reranker 为 nil 时跳过精排阶段。
func NewEngine(config EngineConfig, snapshots *index.Manager, retriever *Retriever, reranker *Reranker, reweighter *Reweighter, metrics Metrics, logger *zap.Logger) *Engine {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Engine{
		config:     config,
		snapshots:  snapshots,
		retriever:  retriever,
		reranker:   reranker,
		reweighter: reweighter,
		metrics:    metrics,
		tracer:     otel.Tracer("dialograg/retrieval"),
		logger:     logger,
	}
}

// Query 处理一次检索请求。零候选返回空列表，不是错误。
func (e *Engine) Query(ctx context.Context, req Request) ([]Result, error) {
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "engine.query",
		trace.WithAttributes(
			attribute.Int("query.top_k", req.TopK),
			attribute.Bool("query.reweight", req.Reweight),
		))
	defer span.End()

	topK := req.TopK
	if topK <= 0 {
		topK = e.config.TopK
	}

	reweight := req.Reweight
	if reweight && !ValidPreviousTag(req.PreviousTag) {
		e.logger.Warn("上一轮标签不合法，跳过连续性加权",
			zap.String("previous_tag", req.PreviousTag))
		reweight = false
	}

	snap := e.snapshots.Snapshot()
	if snap == nil {
		span.SetStatus(codes.Error, ErrNoIndex.Error())
		return nil, ErrNoIndex
	}

	fetchK := topK
	if reweight {
		fetchK = topK + e.config.OverFetch
	}

	candidates, err := e.retriever.Retrieve(ctx, snap, req.Query, fetchK)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}
	span.SetAttributes(attribute.Int("query.candidates", len(candidates)))

	if len(candidates) == 0 {
		e.metrics.ObserveQuery(time.Since(start), 0)
		return []Result{}, nil
	}

	if e.reranker != nil {
		// 加权前保留全部余量候选，精排只重排不收窄。
		returnK := topK
		if reweight {
			returnK = fetchK
		}
		reranked, err := e.reranker.Rerank(ctx, snap, req.Query, candidates, returnK)
		if err != nil {
			// 精排失败回退混合分排序，不影响请求。
			e.metrics.RerankFallback()
			e.logger.Warn("精排失败，回退混合分排序", zap.Error(err))
		} else {
			candidates = reranked
		}
	}

	var results []Result
	if reweight {
		tags := make([]string, len(candidates))
		for i, c := range candidates {
			if doc, ok := snap.Document(c.DocID); ok {
				tags[i] = doc.PrimaryTag()
			}
		}
		weighted := e.reweighter.Apply(candidates, tags, req.PreviousTag, topK)
		results = make([]Result, 0, len(weighted))
		for _, w := range weighted {
			results = appendResult(results, snap, w.DocID, w.WeightedScore)
		}
	} else {
		if len(candidates) > topK {
			candidates = candidates[:topK]
		}
		results = make([]Result, 0, len(candidates))
		for _, c := range candidates {
			score := c.CombinedScore
			if e.reranker != nil && c.RerankScore != 0 {
				score = c.RerankScore
			}
			results = appendResult(results, snap, c.DocID, score)
		}
	}

	e.metrics.ObserveQuery(time.Since(start), len(results))
	e.logger.Debug("检索完成",
		zap.String("query", req.Query),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return results, nil
}

// appendResult 把文档整形为响应记录。
func appendResult(results []Result, snap *index.Snapshot, docID int, score float64) []Result {
	doc, ok := snap.Document(docID)
	if !ok {
		return results
	}
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return append(results, Result{
		Question:    doc.Question,
		Answer:      doc.Answer,
		Score:       score,
		Tags:        tags,
		Code:        doc.Code,
		AnswerType:  doc.AnswerType,
		ImageToShow: doc.ImageToShow,
		AudioURL:    doc.AudioURL,
	})
}
