package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited 包装一个提供者并限制其请求速率，
// 保护后端嵌入服务在批量构建时不被打垮。
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited 创建限速包装。rps 为每秒请求数，burst 为突发容量。
func NewRateLimited(inner Provider, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) Name() string      { return r.inner.Name() }
func (r *RateLimited) Dimensions() int   { return r.inner.Dimensions() }
func (r *RateLimited) MaxBatchSize() int { return r.inner.MaxBatchSize() }

// EmbedQuery 在限速许可后转发调用。
func (r *RateLimited) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.inner.EmbedQuery(ctx, query)
}

// EmbedDocuments 在限速许可后转发调用。
func (r *RateLimited) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.inner.EmbedDocuments(ctx, documents)
}
