package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPConfig HTTP 嵌入提供者配置。
type HTTPConfig struct {
	Name       string        `yaml:"name" json:"name"`
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	Model      string        `yaml:"model" json:"model"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	MaxBatch   int           `yaml:"max_batch" json:"max_batch"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	// Normalize 客户端侧二次归一化，保证内积 ≈ 余弦相似度。
	Normalize bool `yaml:"normalize" json:"normalize"`
}

// HTTPProvider 通过 HTTP 嵌入服务（POST /embed）生成向量。
type HTTPProvider struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTPProvider 创建 HTTP 嵌入提供者。
func NewHTTPProvider(config HTTPConfig) *HTTPProvider {
	if config.Name == "" {
		config.Name = "http-embedding"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBatch == 0 {
		config.MaxBatch = 32
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &HTTPProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (p *HTTPProvider) Name() string      { return p.config.Name }
func (p *HTTPProvider) Dimensions() int   { return p.config.Dimensions }
func (p *HTTPProvider) MaxBatchSize() int { return p.config.MaxBatch }

type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// EmbedQuery 嵌入单个查询文本。
func (p *HTTPProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	vecs, err := p.EmbedDocuments(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedDocuments 批量嵌入，结果与输入逐位对应。
func (p *HTTPProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if len(documents) == 0 {
		return [][]float64{}, nil
	}

	body, err := json.Marshal(embedRequest{Texts: documents, Model: p.config.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed service returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("embed service error: %s", parsed.Error)
	}
	if len(parsed.Embeddings) != len(documents) {
		return nil, fmt.Errorf("embed count mismatch: sent %d texts, got %d vectors",
			len(documents), len(parsed.Embeddings))
	}

	if p.config.Normalize {
		for _, vec := range parsed.Embeddings {
			Normalize(vec)
		}
	}
	return parsed.Embeddings, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
