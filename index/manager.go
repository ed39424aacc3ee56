package index

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vitalsim/dialograg/corpus"
)

// Manager 持有当前活动快照并负责重建后的原子切换。
// 活动快照对并发查询只读，无需加锁；重建在旁路完成后整体替换引用，
// 进行中的查询继续使用旧快照直至自然结束。
type Manager struct {
	active  atomic.Pointer[Snapshot]
	builder *Builder
	logger  *zap.Logger

	mu     sync.Mutex // 串行化重建
	onSwap []func()
}

// NewManager 创建索引管理器。builder 可为 nil（仅支持从磁盘加载）。
func NewManager(builder *Builder, logger *zap.Logger) *Manager {
	return &Manager{builder: builder, logger: logger}
}

// Snapshot 返回当前活动快照；尚未加载时返回 nil。
func (m *Manager) Snapshot() *Snapshot {
	return m.active.Load()
}

// OnSwap 注册快照切换后的回调（如查询缓存失效）。
func (m *Manager) OnSwap(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSwap = append(m.onSwap, fn)
}

// LoadDir 从磁盘加载三件套并切换为活动快照。
func (m *Manager) LoadDir(dir string) error {
	snap, err := Load(dir)
	if err != nil {
		return err
	}
	m.swap(snap)
	m.logger.Info("index loaded from disk",
		zap.String("dir", dir),
		zap.Int("slots", snap.Index.Size()),
		zap.Int("documents", len(snap.Documents)))
	return nil
}

// Rebuild 在旁路构建新快照，构建成功后原子切换。
func (m *Manager) Rebuild(ctx context.Context, docs []corpus.Document) error {
	if m.builder == nil {
		return fmt.Errorf("manager has no builder configured")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.builder.Build(ctx, docs)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	m.active.Store(snap)
	for _, fn := range m.onSwap {
		fn()
	}
	m.logger.Info("active index swapped",
		zap.Int("slots", snap.Index.Size()),
		zap.Int("documents", len(snap.Documents)))
	return nil
}

// SaveDir 把当前活动快照写入磁盘。
func (m *Manager) SaveDir(dir string) error {
	snap := m.active.Load()
	if snap == nil {
		return fmt.Errorf("no active index to save")
	}
	return Save(dir, snap)
}

func (m *Manager) swap(snap *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active.Store(snap)
	for _, fn := range m.onSwap {
		fn()
	}
}
