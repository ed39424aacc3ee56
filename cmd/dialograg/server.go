// =============================================================================
// 🌐 DialogRAG 服务器装配
// =============================================================================
// 把配置装配成完整的检索服务：嵌入提供者、索引管理器、检索引擎、
// 查询缓存、语料监听与双端口 HTTP（API + Prometheus 指标）
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vitalsim/dialograg/config"
	"github.com/vitalsim/dialograg/corpus"
	"github.com/vitalsim/dialograg/embedding"
	"github.com/vitalsim/dialograg/index"
	"github.com/vitalsim/dialograg/internal/cache"
	"github.com/vitalsim/dialograg/internal/metrics"
	"github.com/vitalsim/dialograg/internal/server"
	"github.com/vitalsim/dialograg/internal/telemetry"
	"github.com/vitalsim/dialograg/retrieval"
	"github.com/vitalsim/dialograg/textnorm"
	"github.com/vitalsim/dialograg/variants"
)

// =============================================================================
// 🧩 组件装配
// =============================================================================

// components 检索服务的核心部件。serve/build/query 三个子命令共用。
type components struct {
	segmenter textnorm.Segmenter
	converter textnorm.ScriptConverter
	loader    *corpus.Loader
	primary   embedding.Provider
	builder   *index.Builder
	snapshots *index.Manager
	engine    *retrieval.Engine
}

// buildComponents 按配置装配核心部件。collector 可为 nil（离线子命令）。
func buildComponents(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) *components {
	segmenter := buildSegmenter(logger)
	converter := buildConverter(logger)

	var recorder embedding.Recorder
	var engineMetrics retrieval.Metrics = retrieval.NopMetrics{}
	if collector != nil {
		recorder = collector
		engineMetrics = collector
	}

	primary := buildProvider(cfg.Embedding.Primary, recorder, logger)

	gen := variants.NewGenerator(variants.Config{
		Seed:         cfg.Variants.Seed,
		MaxWordOrder: cfg.Variants.MaxWordOrder,
	}, segmenter, converter, logger)

	loader := corpus.NewLoader(corpus.LoaderConfig{
		MinAuthoredVariants: cfg.Corpus.MinAuthoredVariants,
	}, gen, logger)

	builder := index.NewBuilder(index.BuildConfig{
		FlatThreshold: cfg.Index.FlatThreshold,
		NProbe:        cfg.Index.NProbe,
		Concurrency:   cfg.Index.Concurrency,
	}, primary, logger)

	snapshots := index.NewManager(builder, logger)

	lexical := retrieval.NewLexical(retrieval.LexicalConfig{
		JaccardWeight: cfg.Retrieval.JaccardWeight,
		EditWeight:    cfg.Retrieval.EditWeight,
	}, segmenter, converter)

	retrieverCfg := retrieval.DefaultRetrieverConfig()
	retrieverCfg.VectorWeight = cfg.Retrieval.VectorWeight
	retrieverCfg.LexicalWeight = cfg.Retrieval.LexicalWeight
	retriever := retrieval.NewRetriever(retrieverCfg, primary, lexical, converter, logger)

	var reranker *retrieval.Reranker
	if cfg.Embedding.RerankEnabled {
		rerankProvider := buildProvider(cfg.Embedding.Rerank, recorder, logger)
		reranker = retrieval.NewReranker(rerankProvider, logger)
	}

	reweighter := retrieval.NewReweighter(retrieval.ReweightConfig{
		SessionStartOpening: cfg.Retrieval.Reweight.SessionStartOpening,
		SessionStartOther:   cfg.Retrieval.Reweight.SessionStartOther,
		Decay:               cfg.Retrieval.Reweight.Decay,
		SameBonus:           cfg.Retrieval.Reweight.SameBonus,
		ForwardBonus:        cfg.Retrieval.Reweight.ForwardBonus,
		BackwardBonus:       cfg.Retrieval.Reweight.BackwardBonus,
	})

	engine := retrieval.NewEngine(retrieval.EngineConfig{
		TopK:      cfg.Retrieval.TopK,
		OverFetch: cfg.Retrieval.OverFetch,
	}, snapshots, retriever, reranker, reweighter, engineMetrics, logger)

	return &components{
		segmenter: segmenter,
		converter: converter,
		loader:    loader,
		primary:   primary,
		builder:   builder,
		snapshots: snapshots,
		engine:    engine,
	}
}

// buildSegmenter 优先加载 gse 词典分词器，失败时降级为逐字分词。
func buildSegmenter(logger *zap.Logger) textnorm.Segmenter {
	seg, err := textnorm.NewGseSegmenter()
	if err != nil {
		logger.Warn("gse 词典加载失败，降级为逐字分词", zap.Error(err))
		return textnorm.RuneSegmenter{}
	}
	return seg
}

// buildConverter 优先使用 OpenCC 繁简转换，失败时降级为内置字表。
func buildConverter(logger *zap.Logger) textnorm.ScriptConverter {
	conv, err := textnorm.NewOpenCCConverter()
	if err != nil {
		logger.Warn("opencc 初始化失败，降级为内置字表转换", zap.Error(err))
		return textnorm.NewTableConverter()
	}
	return conv
}

// buildProvider 按传输方式创建嵌入提供者，并套上限流与指标包装。
func buildProvider(pc config.ProviderConfig, recorder embedding.Recorder, logger *zap.Logger) embedding.Provider {
	var provider embedding.Provider
	switch pc.Transport {
	case "websocket":
		provider = embedding.NewWSProvider(embedding.WSConfig{
			URL:        pc.BaseURL,
			Model:      pc.Model,
			Dimensions: pc.Dimensions,
			MaxBatch:   pc.MaxBatch,
			Timeout:    pc.Timeout,
			Normalize:  true,
		}, logger)
	default:
		provider = embedding.NewHTTPProvider(embedding.HTTPConfig{
			BaseURL:    pc.BaseURL,
			Model:      pc.Model,
			Dimensions: pc.Dimensions,
			MaxBatch:   pc.MaxBatch,
			Timeout:    pc.Timeout,
			Normalize:  true,
		})
	}

	if pc.RateLimit > 0 {
		burst := int(pc.RateLimit)
		if burst < 1 {
			burst = 1
		}
		provider = embedding.NewRateLimited(provider, pc.RateLimit, burst)
	}

	return embedding.NewInstrumented(provider, recorder)
}

// =============================================================================
// 🖥️ 服务器
// =============================================================================

// Server DialogRAG 主服务器
type Server struct {
	config *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	registry  *prometheus.Registry
	collector *metrics.Collector

	comps   *components
	cache   *cache.QueryCache
	watcher *corpus.Watcher

	httpManager    *server.Manager
	metricsManager *server.Manager

	cancel context.CancelFunc
}

// NewServer 创建服务器并装配全部组件。
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector("dialograg", registry, logger)

	s := &Server{
		config:    cfg,
		logger:    logger,
		otel:      otelProviders,
		registry:  registry,
		collector: collector,
		comps:     buildComponents(cfg, collector, logger),
	}

	if cfg.Redis.Enabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = cfg.Redis.Addr
		cacheCfg.Password = cfg.Redis.Password
		cacheCfg.DB = cfg.Redis.DB
		cacheCfg.PoolSize = cfg.Redis.PoolSize
		cacheCfg.TTL = cfg.Redis.TTL

		qc, err := cache.NewQueryCache(cacheCfg, collector, logger)
		if err != nil {
			// 缓存不可用只降级，不阻止服务启动
			logger.Warn("查询缓存不可用，跳过", zap.Error(err))
		} else {
			s.cache = qc
		}
	}

	// 快照切换后：刷新指标、清空缓存
	s.comps.snapshots.OnSwap(func() {
		snap := s.comps.snapshots.Snapshot()
		if snap != nil {
			collector.SetIndexSlots(len(snap.SlotMap))
		}
		collector.RecordIndexRebuild()
		if s.cache != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.cache.Flush(ctx); err != nil {
				logger.Warn("索引切换后清空查询缓存失败", zap.Error(err))
			}
		}
	})

	return s
}

// Start 启动服务器：确保索引就绪，启动语料监听与 HTTP / 指标端口。
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if err := s.ensureIndex(ctx); err != nil {
		return err
	}

	if s.config.Corpus.WatchEnabled {
		if err := s.startWatcher(ctx); err != nil {
			// 监听失败不致命，索引仍可手动重建
			s.logger.Warn("语料监听启动失败", zap.Error(err))
		}
	}

	handler := Chain(s.initHandlers(),
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		RateLimiter(ctx, s.config.Server.RateLimit, s.config.Server.RateBurst, s.logger),
	)

	httpCfg := server.DefaultConfig()
	httpCfg.Addr = fmt.Sprintf(":%d", s.config.Server.HTTPPort)
	httpCfg.ReadTimeout = s.config.Server.ReadTimeout
	httpCfg.WriteTimeout = s.config.Server.WriteTimeout
	httpCfg.IdleTimeout = 2 * s.config.Server.ReadTimeout
	httpCfg.ShutdownTimeout = s.config.Server.ShutdownTimeout

	s.httpManager = server.NewManager(handler, httpCfg, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	metricsCfg := server.DefaultConfig()
	metricsCfg.Addr = fmt.Sprintf(":%d", s.config.Server.MetricsPort)
	metricsCfg.ShutdownTimeout = s.config.Server.ShutdownTimeout

	s.metricsManager = server.NewManager(metricsMux, metricsCfg, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	return nil
}

// ensureIndex 加载持久化索引；索引损坏直接失败，缺失时从语料重建。
func (s *Server) ensureIndex(ctx context.Context) error {
	err := s.comps.snapshots.LoadDir(s.config.Index.Dir)
	if err == nil {
		snap := s.comps.snapshots.Snapshot()
		s.collector.SetIndexSlots(len(snap.SlotMap))
		s.logger.Info("已加载持久化索引",
			zap.String("dir", s.config.Index.Dir),
			zap.Int("slots", len(snap.SlotMap)),
		)
		return nil
	}
	if errors.Is(err, index.ErrCorruptIndex) {
		return fmt.Errorf("load index from %s: %w (run `dialograg build` to regenerate)", s.config.Index.Dir, err)
	}

	s.logger.Warn("持久化索引不可用，从语料重建",
		zap.String("dir", s.config.Index.Dir),
		zap.Error(err),
	)
	return s.rebuildIndex(ctx, true)
}

// rebuildIndex 重新加载语料、重建索引并持久化。
func (s *Server) rebuildIndex(ctx context.Context, persist bool) error {
	docs, err := s.comps.loader.LoadFile(s.config.Corpus.Path)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	if err := s.comps.snapshots.Rebuild(ctx, docs); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	if persist {
		if err := s.comps.snapshots.SaveDir(s.config.Index.Dir); err != nil {
			return fmt.Errorf("persist index: %w", err)
		}
	}
	return nil
}

// startWatcher 监听语料文件变更，去抖后自动重建并持久化索引。
func (s *Server) startWatcher(ctx context.Context) error {
	w, err := corpus.NewWatcher(s.config.Corpus.Path, s.logger,
		corpus.WithDebounce(s.config.Corpus.WatchDebounce))
	if err != nil {
		return err
	}

	w.OnChange(func() {
		s.logger.Info("语料变更，自动重建索引", zap.String("path", s.config.Corpus.Path))
		if err := s.rebuildIndex(ctx, true); err != nil {
			s.logger.Error("语料变更后重建索引失败", zap.Error(err))
		}
	})

	if err := w.Start(ctx); err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// WaitForShutdown 阻塞等待退出信号并完成优雅关闭。
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
	s.Shutdown()
}

// Shutdown 按序关闭：语料监听 → 后台任务 → 指标端口 → 缓存 → 遥测。
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown failed", zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("close query cache failed", zap.Error(err))
		}
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
}

// =============================================================================
// 🧭 路由与处理器
// =============================================================================

func (s *Server) initHandlers() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

// queryRequest 检索请求体。previous_tag 字段存在即视为连续性加权请求，
// 空串表示会话开场。
type queryRequest struct {
	Query       string  `json:"query"`
	TopK        int     `json:"top_k,omitempty"`
	PreviousTag *string `json:"previous_tag,omitempty"`
}

// queryResponse 检索响应体。
type queryResponse struct {
	Results []retrieval.Result `json:"results"`
	Count   int                `json:"count"`
	Cached  bool               `json:"cached,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req queryRequest
	body := http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	engineReq := retrieval.Request{
		Query:    req.Query,
		TopK:     req.TopK,
		Reweight: req.PreviousTag != nil,
	}
	if req.PreviousTag != nil {
		engineReq.PreviousTag = *req.PreviousTag
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.config.Retrieval.TopK
	}

	// 缓存键区分「无加权」与「会话开场」两种情形
	cacheKey := ""
	if s.cache != nil {
		normalized := textnorm.NormalizeQuery(textnorm.CleanText(req.Query))
		tagKey := "none"
		if req.PreviousTag != nil {
			tagKey = *req.PreviousTag
		}
		cacheKey = cache.Key(normalized, topK, tagKey)

		if results, err := s.cache.Get(r.Context(), cacheKey); err == nil {
			writeJSON(w, http.StatusOK, queryResponse{Results: results, Count: len(results), Cached: true})
			return
		}
	}

	results, err := s.comps.engine.Query(r.Context(), engineReq)
	if err != nil {
		if errors.Is(err, retrieval.ErrNoIndex) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.logger.Error("query failed", zap.Error(err),
			zap.String("request_id", RequestIDFromContext(r.Context())))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	if s.cache != nil {
		s.cache.Put(r.Context(), cacheKey, results)
	}

	writeJSON(w, http.StatusOK, queryResponse{Results: results, Count: len(results)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady 只有当索引快照可用时才就绪。
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.comps.snapshots.Snapshot() == nil {
		writeError(w, http.StatusServiceUnavailable, "index not loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

// =============================================================================
// 🔧 响应辅助
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
