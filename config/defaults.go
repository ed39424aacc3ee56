// =============================================================================
// 📦 DialogRAG 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Corpus:    DefaultCorpusConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Index:     DefaultIndexConfig(),
		Retrieval: DefaultRetrievalConfig(),
		Variants:  DefaultVariantsConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9090,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimit:       100,
		RateBurst:       200,
	}
}

// DefaultCorpusConfig 返回默认语料配置
func DefaultCorpusConfig() CorpusConfig {
	return CorpusConfig{
		Path:                "corpus.jsonl",
		MinAuthoredVariants: 3,
		WatchEnabled:        false,
		WatchDebounce:       2 * time.Second,
	}
}

// DefaultEmbeddingConfig 返回默认嵌入配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Primary: ProviderConfig{
			Transport:  "http",
			BaseURL:    "http://localhost:8001",
			Model:      "text2vec-base-chinese",
			Dimensions: 768,
			MaxBatch:   32,
			Timeout:    30 * time.Second,
		},
		Rerank: ProviderConfig{
			Transport:  "http",
			BaseURL:    "http://localhost:8002",
			Model:      "multilingual-e5-large",
			Dimensions: 1024,
			MaxBatch:   16,
			Timeout:    30 * time.Second,
		},
		RerankEnabled: false,
	}
}

// DefaultIndexConfig 返回默认索引配置
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		Dir:           "index_data",
		FlatThreshold: 1000,
		NProbe:        0,
		Concurrency:   4,
	}
}

// DefaultRetrievalConfig 返回默认检索配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:          5,
		OverFetch:     5,
		VectorWeight:  0.7,
		LexicalWeight: 0.3,
		JaccardWeight: 0.7,
		EditWeight:    0.3,
		Reweight: ReweightConfig{
			SessionStartOpening: 1.0,
			SessionStartOther:   0.95,
			Decay:               0.8,
			SameBonus:           0.05,
			ForwardBonus:        0.0495,
			BackwardBonus:       0.04,
		},
	}
}

// DefaultVariantsConfig 返回默认变体生成配置
func DefaultVariantsConfig() VariantsConfig {
	return VariantsConfig{
		Seed:         1,
		MaxWordOrder: 3,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  false,
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
		PoolSize: 10,
		TTL:      10 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "dialograg",
		SampleRate:   0.1,
	}
}
