package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitalsim/dialograg/config"
	"github.com/vitalsim/dialograg/corpus"
	"github.com/vitalsim/dialograg/embedding"
	"github.com/vitalsim/dialograg/index"
	"github.com/vitalsim/dialograg/internal/cache"
	"github.com/vitalsim/dialograg/internal/metrics"
	"github.com/vitalsim/dialograg/retrieval"
	"github.com/vitalsim/dialograg/textnorm"
)

// charBagProvider 确定性假嵌入器：字符词袋向量，字符重叠越多相似度越高。
type charBagProvider struct {
	dim int
}

func (p *charBagProvider) encode(text string) []float64 {
	vec := make([]float64, p.dim)
	for _, r := range text {
		vec[int(r)%p.dim]++
	}
	embedding.Normalize(vec)
	return vec
}

func (p *charBagProvider) EmbedQuery(_ context.Context, query string) ([]float64, error) {
	return p.encode(query), nil
}

func (p *charBagProvider) EmbedDocuments(_ context.Context, documents []string) ([][]float64, error) {
	out := make([][]float64, len(documents))
	for i, d := range documents {
		out[i] = p.encode(d)
	}
	return out, nil
}

func (p *charBagProvider) Name() string      { return "charbag" }
func (p *charBagProvider) Dimensions() int   { return p.dim }
func (p *charBagProvider) MaxBatchSize() int { return 8 }

func serverTestDocs() []corpus.Document {
	return []corpus.Document{
		{
			ID:         0,
			Question:   "小孩發燒怎麼辦",
			Answer:     "先量體溫，超過38.5度再考慮退燒藥。",
			Tags:       []string{"A"},
			Variants:   []string{"孩子發燒了怎麼處理"},
			AnswerType: "dialogue",
		},
		{
			ID:         1,
			Question:   "肚子疼多久了",
			Answer:     "大概從昨天晚上開始的。",
			Tags:       []string{"B"},
			AnswerType: "dialogue",
		},
		{
			ID:         2,
			Question:   "小孩拉肚子怎麼處理",
			Answer:     "注意補水，觀察大便次數。",
			Tags:       []string{"C"},
			AnswerType: "dialogue",
		},
	}
}

// newTestServer 用假嵌入器装配一个可直接调用处理器的服务器。
func newTestServer(t *testing.T, withIndex bool) *Server {
	t.Helper()
	logger := zap.NewNop()
	provider := &charBagProvider{dim: 64}
	segmenter := textnorm.RuneSegmenter{}
	converter := textnorm.NewTableConverter()

	builder := index.NewBuilder(index.DefaultBuildConfig(), provider, logger)
	snapshots := index.NewManager(builder, logger)
	if withIndex {
		require.NoError(t, snapshots.Rebuild(context.Background(), serverTestDocs()))
	}

	lexical := retrieval.NewLexical(retrieval.DefaultLexicalConfig(), segmenter, converter)
	retriever := retrieval.NewRetriever(retrieval.DefaultRetrieverConfig(), provider, lexical, converter, logger)
	reweighter := retrieval.NewReweighter(retrieval.DefaultReweightConfig())
	engine := retrieval.NewEngine(retrieval.DefaultEngineConfig(), snapshots, retriever, nil, reweighter, retrieval.NopMetrics{}, logger)

	registry := prometheus.NewRegistry()
	return &Server{
		config:    config.DefaultConfig(),
		logger:    logger,
		registry:  registry,
		collector: metrics.NewCollector("dialograg", registry, logger),
		comps: &components{
			segmenter: segmenter,
			converter: converter,
			primary:   provider,
			builder:   builder,
			snapshots: snapshots,
			engine:    engine,
		},
	}
}

func postQuery(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(body))
	s.initHandlers().ServeHTTP(w, r)
	return w
}

func TestHandleQuery_ReturnsBestMatch(t *testing.T) {
	s := newTestServer(t, true)

	w := postQuery(t, s, `{"query":"小孩發燒","top_k":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp queryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "小孩發燒怎麼辦", resp.Results[0].Question)
	assert.Equal(t, []string{"A"}, resp.Results[0].Tags)
	assert.False(t, resp.Cached)
}

func TestHandleQuery_SessionStartReweight(t *testing.T) {
	s := newTestServer(t, true)

	// previous_tag 字段存在且为空串 ⇒ 会话开场加权
	w := postQuery(t, s, `{"query":"小孩發燒","top_k":3,"previous_tag":""}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp queryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	// 开场分支 A/B 固定得分 1.0，排在非开场分支之前
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-9)
	assert.InDelta(t, 1.0, resp.Results[1].Score, 1e-9)
	assert.InDelta(t, 0.95, resp.Results[2].Score, 1e-9)
}

func TestHandleQuery_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, true)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/query", nil)
	s.initHandlers().ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleQuery_BadRequest(t *testing.T) {
	s := newTestServer(t, true)

	assert.Equal(t, http.StatusBadRequest, postQuery(t, s, `{not json`).Code)
	assert.Equal(t, http.StatusBadRequest, postQuery(t, s, `{"query":""}`).Code)
}

func TestHandleQuery_NoIndexIs503(t *testing.T) {
	s := newTestServer(t, false)

	w := postQuery(t, s, `{"query":"小孩發燒"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleQuery_CacheRoundTrip(t *testing.T) {
	s := newTestServer(t, true)

	mr := miniredis.RunT(t)
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Addr = mr.Addr()
	cacheCfg.HealthCheckInterval = 0
	qc, err := cache.NewQueryCache(cacheCfg, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { qc.Close() })
	s.cache = qc

	first := postQuery(t, s, `{"query":"小孩發燒","top_k":2}`)
	require.Equal(t, http.StatusOK, first.Code)
	var firstResp queryResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	assert.False(t, firstResp.Cached)

	second := postQuery(t, s, `{"query":"小孩發燒","top_k":2}`)
	require.Equal(t, http.StatusOK, second.Code)
	var secondResp queryResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))
	assert.True(t, secondResp.Cached)
	assert.Equal(t, firstResp.Results, secondResp.Results)
}

func TestHandleReady(t *testing.T) {
	notReady := newTestServer(t, false)
	w := httptest.NewRecorder()
	notReady.initHandlers().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready := newTestServer(t, true)
	w = httptest.NewRecorder()
	ready.initHandlers().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleHealthAndVersion(t *testing.T) {
	s := newTestServer(t, true)

	w := httptest.NewRecorder()
	s.initHandlers().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.initHandlers().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var v map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, Version, v["version"])
}
