// =============================================================================
// DialogRAG 主入口
// =============================================================================
// 对话模拟器的混合语义检索服务入口，包含 HTTP 服务、索引构建、
// 单次查询、健康检查与 Prometheus 指标
//
// 使用方法:
//
//	dialograg serve                       # 启动检索服务
//	dialograg serve --config config.yaml  # 指定配置文件
//	dialograg build                       # 从语料构建并持久化索引
//	dialograg query --query "小孩發燒"     # 对持久化索引执行单次查询
//	dialograg version                     # 显示版本信息
//	dialograg health                      # 健康检查
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vitalsim/dialograg/config"
	"github.com/vitalsim/dialograg/internal/telemetry"
	"github.com/vitalsim/dialograg/retrieval"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "build":
		runBuild(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// loadConfig 加载并验证配置，失败直接退出进程。
func loadConfig(configPath string) *config.Config {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting DialogRAG",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	server := NewServer(cfg, logger, otelProviders)

	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	server.WaitForShutdown()

	logger.Info("DialogRAG stopped")
}

// =============================================================================
// 🔨 build 命令
// =============================================================================

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	corpusPath := fs.String("corpus", "", "Corpus file (overrides config)")
	outDir := fs.String("out", "", "Index output directory (overrides config)")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *corpusPath != "" {
		cfg.Corpus.Path = *corpusPath
	}
	if *outDir != "" {
		cfg.Index.Dir = *outDir
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	comps := buildComponents(cfg, nil, logger)

	docs, err := comps.loader.LoadFile(cfg.Corpus.Path)
	if err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}
	logger.Info("语料加载完成", zap.Int("documents", len(docs)))

	ctx := context.Background()
	if err := comps.snapshots.Rebuild(ctx, docs); err != nil {
		logger.Fatal("Failed to build index", zap.Error(err))
	}

	if err := comps.snapshots.SaveDir(cfg.Index.Dir); err != nil {
		logger.Fatal("Failed to persist index", zap.Error(err))
	}

	snap := comps.snapshots.Snapshot()
	logger.Info("索引构建完成",
		zap.String("dir", cfg.Index.Dir),
		zap.Int("documents", len(snap.Documents)),
		zap.Int("slots", len(snap.SlotMap)),
	)
}

// =============================================================================
// 🔍 query 命令
// =============================================================================

// runQuery 对持久化索引执行单次查询，结果以 JSON 输出到 stdout。
func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	queryText := fs.String("query", "", "Query text")
	topK := fs.Int("top-k", 0, "Number of results (0 = config default)")
	previousTag := fs.String("previous-tag", "", "Previous dialogue branch tag")
	reweight := fs.Bool("reweight", false, "Apply dialogue continuity reweighting")
	fs.Parse(args)

	if *queryText == "" {
		fmt.Fprintln(os.Stderr, "query: --query is required")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	comps := buildComponents(cfg, nil, logger)

	if err := comps.snapshots.LoadDir(cfg.Index.Dir); err != nil {
		logger.Fatal("Failed to load index", zap.Error(err))
	}

	results, err := comps.engine.Query(context.Background(), retrieval.Request{
		Query:       *queryText,
		TopK:        *topK,
		PreviousTag: *previousTag,
		Reweight:    *reweight || *previousTag != "",
	})
	if err != nil {
		logger.Fatal("Query failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		logger.Fatal("Failed to encode results", zap.Error(err))
	}
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/healthz")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("DialogRAG %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`DialogRAG - Hybrid Semantic Retrieval for Dialogue Simulation

Usage:
  dialograg <command> [options]

Commands:
  serve     Start the DialogRAG retrieval server
  build     Build and persist the vector index from the corpus
  query     Run a one-shot query against the persisted index
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Options for 'build':
  --config <path>   Path to configuration file (YAML)
  --corpus <path>   Corpus file, overrides config
  --out <dir>       Index output directory, overrides config

Options for 'query':
  --config <path>        Path to configuration file (YAML)
  --query <text>         Query text (required)
  --top-k <n>            Number of results
  --previous-tag <tag>   Previous dialogue branch tag
  --reweight             Apply dialogue continuity reweighting

Examples:
  dialograg build --corpus corpus.jsonl --out ./index
  dialograg serve --config /etc/dialograg/config.yaml
  dialograg query --query "小孩發燒怎麼辦" --top-k 3
  dialograg health --addr http://localhost:8080
  dialograg version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	// 构建配置
	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	} else {
		zapConfig.Encoding = "json"
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	// 构建 logger
	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
