package corpus

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher 轮询语料文件的修改时间，变更去抖后触发回调。
// 典型用法是在服务运行期间监听语料更新并自动重建索引。
type Watcher struct {
	mu sync.Mutex

	path         string
	pollInterval time.Duration
	debounce     time.Duration

	running  bool
	stopChan chan struct{}

	callbacks []func()
	logger    *zap.Logger

	lastModTime time.Time
}

// WatcherOption 配置 Watcher。
type WatcherOption func(*Watcher)

// WithPollInterval 设置轮询间隔。
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithDebounce 设置变更事件去抖间隔，吸收编辑器的连续写入。
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher 创建语料文件监听器。文件暂不存在时等待其创建。
func NewWatcher(path string, logger *zap.Logger, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:         path,
		pollInterval: time.Second,
		debounce:     2 * time.Second,
		stopChan:     make(chan struct{}),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(w)
	}

	if info, err := os.Stat(path); err == nil {
		w.lastModTime = info.ModTime()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat corpus file %s: %w", path, err)
	} else {
		w.logger.Warn("语料文件不存在，等待创建", zap.String("path", path))
	}

	return w, nil
}

// OnChange 注册语料变更回调。回调在去抖窗口结束后串行执行。
func (w *Watcher) OnChange(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start 启动监听。重复启动返回错误。
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("corpus watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	go w.loop(ctx)

	w.logger.Info("语料监听已启动",
		zap.String("path", w.path),
		zap.Duration("poll_interval", w.pollInterval),
		zap.Duration("debounce", w.debounce))
	return nil
}

// Stop 停止监听。幂等。
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.stopChan)
	w.running = false
	w.logger.Info("语料监听已停止")
}

// IsRunning 返回监听器是否在运行。
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			if !w.changed() {
				continue
			}
			// 重置去抖定时器，连续写入只触发一次回调。
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.fire)
		}
	}
}

// changed 检查文件修改时间是否前进。
func (w *Watcher) changed() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if info.ModTime().After(w.lastModTime) {
		w.lastModTime = info.ModTime()
		return true
	}
	return false
}

func (w *Watcher) fire() {
	w.mu.Lock()
	callbacks := make([]func(), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("检测到语料变更", zap.String("path", w.path))
	for _, fn := range callbacks {
		fn()
	}
}
