// Package cache provides the redis-backed query result cache.
// This package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vitalsim/dialograg/retrieval"
)

// =============================================================================
// 💾 查询缓存
// =============================================================================

// keyPrefix 查询缓存键前缀，Flush 按该前缀批量清除。
const keyPrefix = "dialograg:query:"

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = fmt.Errorf("cache miss")

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return err == ErrCacheMiss
}

// Config 查询缓存配置
type Config struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 缓存条目生存时间
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// 最大重试次数
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 健康检查间隔
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// DefaultConfig 返回默认查询缓存配置
func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		Password:            "",
		DB:                  0,
		TTL:                 10 * time.Minute,
		MaxRetries:          3,
		PoolSize:            10,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Recorder 缓存命中/未命中观测回调
type Recorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// QueryCache 把检索响应按（规范化查询、top_k、上一轮标签）缓存到 Redis。
// 缓存故障只降级为直接检索，从不影响请求结果。
type QueryCache struct {
	redis    *redis.Client
	config   Config
	recorder Recorder
	logger   *zap.Logger
	mu       sync.RWMutex
	closed   bool
}

// NewQueryCache 创建查询缓存并验证 Redis 连接
func NewQueryCache(config Config, recorder Recorder, logger *zap.Logger) (*QueryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       config.Addr,
		Password:   config.Password,
		DB:         config.DB,
		MaxRetries: config.MaxRetries,
		PoolSize:   config.PoolSize,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c := &QueryCache{
		redis:    client,
		config:   config,
		recorder: recorder,
		logger:   logger.With(zap.String("component", "query_cache")),
	}

	// 启动健康检查
	if config.HealthCheckInterval > 0 {
		go c.healthCheckLoop()
	}

	logger.Info("query cache initialized",
		zap.String("addr", config.Addr),
		zap.Duration("ttl", config.TTL),
	)

	return c, nil
}

// Key 派生缓存键。查询应已做规范化，保证同义请求命中同一条目。
func Key(normalizedQuery string, topK int, previousTag string) string {
	return fmt.Sprintf("%s%d:%s:%s", keyPrefix, topK, previousTag, normalizedQuery)
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Get 读取缓存的检索响应。未命中返回 ErrCacheMiss。
func (c *QueryCache) Get(ctx context.Context, key string) ([]retrieval.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("query cache is closed")
	}

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		c.recordMiss()
		return nil, ErrCacheMiss
	}
	if err != nil {
		c.recordMiss()
		c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var results []retrieval.Result
	if err := json.Unmarshal([]byte(val), &results); err != nil {
		c.recordMiss()
		return nil, fmt.Errorf("failed to unmarshal cached results: %w", err)
	}

	c.recordHit()
	return results, nil
}

// Put 写入检索响应。写入失败只记日志，调用方无需处理。
func (c *QueryCache) Put(ctx context.Context, key string, results []retrieval.Result) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return
	}

	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Warn("failed to marshal results for cache", zap.Error(err))
		return
	}

	if err := c.redis.Set(ctx, key, string(data), c.config.TTL).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Flush 清除全部查询缓存条目。索引换入新快照后必须调用，
// 避免继续命中旧索引的结果。
func (c *QueryCache) Flush(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("query cache is closed")
	}

	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan failed: %w", err)
	}

	if len(keys) > 0 {
		if err := c.redis.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("cache flush failed: %w", err)
		}
	}

	c.logger.Info("query cache flushed", zap.Int("keys", len(keys)))
	return nil
}

// Ping 检查 Redis 连接
func (c *QueryCache) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return fmt.Errorf("query cache is closed")
	}

	return c.redis.Ping(ctx).Err()
}

// Close 关闭查询缓存
func (c *QueryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.logger.Info("closing query cache")

	return c.redis.Close()
}

func (c *QueryCache) recordHit() {
	if c.recorder != nil {
		c.recorder.RecordCacheHit("redis")
	}
}

func (c *QueryCache) recordMiss() {
	if c.recorder != nil {
		c.recorder.RecordCacheMiss("redis")
	}
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

// healthCheckLoop 健康检查循环
func (c *QueryCache) healthCheckLoop() {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			return
		}
		c.mu.RUnlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.Ping(ctx); err != nil {
			c.logger.Error("cache health check failed", zap.Error(err))
		} else {
			c.logger.Debug("cache health check passed")
		}
		cancel()
	}
}
