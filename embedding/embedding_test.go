package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	vec := []float64{3, 4}
	Normalize(vec)
	assert.InDelta(t, 0.6, vec[0], 1e-9)
	assert.InDelta(t, 0.8, vec[1], 1e-9)

	zero := []float64{0, 0}
	Normalize(zero)
	assert.Equal(t, []float64{0, 0}, zero)
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 0}))
}

func TestHTTPProviderEmbedDocuments(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vecs := make([][]float64, len(req.Texts))
		for i := range req.Texts {
			vecs[i] = []float64{float64(i + 1), 0}
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: vecs})
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, Normalize: true})

	vecs, err := p.EmbedDocuments(context.Background(), []string{"甲", "乙"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	// 归一化后为单位向量。
	assert.InDelta(t, 1.0, math.Hypot(vecs[0][0], vecs[0][1]), 1e-9)
	assert.InDelta(t, 1.0, vecs[1][0], 1e-9)
}

func TestHTTPProviderCountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1}}})
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL})

	_, err := p.EmbedDocuments(context.Background(), []string{"甲", "乙"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch")
}

func TestHTTPProviderServiceError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL})

	_, err := p.EmbedQuery(context.Background(), "查詢")
	require.Error(t, err)
}

func TestWSProviderEmbedDocuments(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		_, data, err := conn.Read(ctx)
		require.NoError(t, err)

		var req embedRequest
		require.NoError(t, json.Unmarshal(data, &req))

		vecs := make([][]float64, len(req.Texts))
		for i := range req.Texts {
			vecs[i] = []float64{1, 0}
		}
		out, _ := json.Marshal(embedResponse{Embeddings: vecs})
		require.NoError(t, conn.Write(ctx, websocket.MessageText, out))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	p := NewWSProvider(WSConfig{URL: url}, zap.NewNop())

	vecs, err := p.EmbedDocuments(context.Background(), []string{"甲", "乙"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float64{1, 0}, vecs[0])
}

func TestRateLimitedPassesThrough(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1, 0}}})
	}))
	defer srv.Close()

	inner := NewHTTPProvider(HTTPConfig{Name: "inner", BaseURL: srv.URL, Dimensions: 2})
	limited := NewRateLimited(inner, 100, 1)

	assert.Equal(t, "inner", limited.Name())
	assert.Equal(t, 2, limited.Dimensions())

	vec, err := limited.EmbedQuery(context.Background(), "查詢")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, vec)
}
