package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestCollector() *Collector {
	return NewCollector("test", prometheus.NewRegistry(), zap.NewNop())
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := newTestCollector()

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.queriesTotal)
	assert.NotNil(t, collector.queryDuration)
	assert.NotNil(t, collector.embeddingRequestsTotal)
	assert.NotNil(t, collector.indexSlots)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := newTestCollector()

	// 记录请求
	collector.RecordHTTPRequest("POST", "/query", 200, 100*time.Millisecond)

	// 验证指标
	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)

	// 再记录一次相同的请求
	collector.RecordHTTPRequest("POST", "/query", 200, 50*time.Millisecond)

	// 验证计数增加
	newCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.GreaterOrEqual(t, newCount, count)
}

func TestCollector_ObserveQuery(t *testing.T) {
	collector := newTestCollector()

	collector.ObserveQuery(50*time.Millisecond, 5)
	collector.ObserveQuery(10*time.Millisecond, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.queriesTotal))
}

func TestCollector_RerankFallback(t *testing.T) {
	collector := newTestCollector()

	collector.RerankFallback()
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.rerankFallbacks))
}

func TestCollector_RecordEmbeddingRequest(t *testing.T) {
	collector := newTestCollector()

	collector.RecordEmbeddingRequest("text2vec", "success", 200*time.Millisecond)
	collector.RecordEmbeddingRequest("text2vec", "error", 30*time.Millisecond)

	count := testutil.CollectAndCount(collector.embeddingRequestsTotal)
	assert.Greater(t, count, 0)
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	collector := newTestCollector()

	// 记录缓存命中
	collector.RecordCacheHit("redis")

	// 记录缓存未命中
	collector.RecordCacheMiss("redis")

	// 验证指标
	hitCount := testutil.CollectAndCount(collector.cacheHits)
	assert.Greater(t, hitCount, 0)

	missCount := testutil.CollectAndCount(collector.cacheMisses)
	assert.Greater(t, missCount, 0)
}

func TestCollector_IndexMetrics(t *testing.T) {
	collector := newTestCollector()

	collector.SetIndexSlots(123)
	collector.RecordIndexRebuild()

	assert.Equal(t, 123.0, testutil.ToFloat64(collector.indexSlots))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.indexRebuilds))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := newTestCollector()

	// 并发记录多个指标
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordHTTPRequest("POST", "/query", 200, 100*time.Millisecond)
			collector.ObserveQuery(20*time.Millisecond, 3)
			collector.RecordCacheHit("redis")
			done <- true
		}()
	}

	// 等待所有 goroutine 完成
	for i := 0; i < 10; i++ {
		<-done
	}

	// 验证指标被正确记录
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.queriesTotal))

	httpCount := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, httpCount, 0)
}
