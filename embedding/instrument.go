package embedding

import (
	"context"
	"time"
)

// Recorder 嵌入请求的观测回调，由指标收集器实现。
type Recorder interface {
	RecordEmbeddingRequest(provider, status string, duration time.Duration)
}

// Instrumented 包装 Provider 并记录每次调用的耗时与结果。
type Instrumented struct {
	inner    Provider
	recorder Recorder
}

// NewInstrumented 创建带观测的嵌入提供者。recorder 为 nil 时直接返回原提供者。
func NewInstrumented(inner Provider, recorder Recorder) Provider {
	if recorder == nil {
		return inner
	}
	return &Instrumented{inner: inner, recorder: recorder}
}

// EmbedQuery 嵌入单个查询文本。
func (p *Instrumented) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	start := time.Now()
	vec, err := p.inner.EmbedQuery(ctx, query)
	p.record(start, err)
	return vec, err
}

// EmbedDocuments 批量嵌入文档文本。
func (p *Instrumented) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	start := time.Now()
	vecs, err := p.inner.EmbedDocuments(ctx, documents)
	p.record(start, err)
	return vecs, err
}

// Name 返回底层提供者名称。
func (p *Instrumented) Name() string { return p.inner.Name() }

// Dimensions 返回嵌入维度。
func (p *Instrumented) Dimensions() int { return p.inner.Dimensions() }

// MaxBatchSize 返回单次请求支持的最大批量。
func (p *Instrumented) MaxBatchSize() int { return p.inner.MaxBatchSize() }

func (p *Instrumented) record(start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.recorder.RecordEmbeddingRequest(p.inner.Name(), status, time.Since(start))
}
