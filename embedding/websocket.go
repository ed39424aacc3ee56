package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// WSConfig WebSocket 嵌入提供者配置。
type WSConfig struct {
	Name       string        `yaml:"name" json:"name"`
	URL        string        `yaml:"url" json:"url"`
	Model      string        `yaml:"model" json:"model"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	MaxBatch   int           `yaml:"max_batch" json:"max_batch"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	Normalize  bool          `yaml:"normalize" json:"normalize"`
}

// WSProvider 通过 WebSocket 嵌入服务生成向量。
// 每次调用独立建连、一问一答后关闭，无长连接状态。
type WSProvider struct {
	config WSConfig
	logger *zap.Logger
}

// NewWSProvider 创建 WebSocket 嵌入提供者。
func NewWSProvider(config WSConfig, logger *zap.Logger) *WSProvider {
	if config.Name == "" {
		config.Name = "ws-embedding"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBatch == 0 {
		config.MaxBatch = 32
	}
	return &WSProvider{config: config, logger: logger}
}

func (p *WSProvider) Name() string      { return p.config.Name }
func (p *WSProvider) Dimensions() int   { return p.config.Dimensions }
func (p *WSProvider) MaxBatchSize() int { return p.config.MaxBatch }

// EmbedQuery 嵌入单个查询文本。
func (p *WSProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	vecs, err := p.EmbedDocuments(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedDocuments 批量嵌入，结果与输入逐位对应。
func (p *WSProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if len(documents) == 0 {
		return [][]float64{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, p.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial embed websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	payload, err := json.Marshal(embedRequest{Texts: documents, Model: p.config.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return nil, fmt.Errorf("websocket write: %w", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("websocket read: %w", err)
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
