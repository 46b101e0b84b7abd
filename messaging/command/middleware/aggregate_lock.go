package middleware

import (
	"context"
	"sync"

	"boxoffice/messaging"
	"boxoffice/messaging/command"
)

// AggregateLockMiddleware 聚合级锁中间件
//
// 确保针对同一聚合实例的命令串行执行，即单写者约束：
// 聚合的"读取-决策-追加"在锁内完成，配合事件存储的乐观并发检查，
// 版本冲突在单进程内不会发生。
//
// 注意：
//   - 只在单进程内有效
//   - 分布式环境需要使用分布式锁（Redis、Etcd 等）
type AggregateLockMiddleware struct {
	// locks 聚合键（类型+ID）到锁的映射
	locks map[string]*sync.Mutex
	mutex sync.RWMutex
}

// NewAggregateLockMiddleware 创建聚合锁中间件
func NewAggregateLockMiddleware() *AggregateLockMiddleware {
	return &AggregateLockMiddleware{
		locks: make(map[string]*sync.Mutex),
	}
}

// Handle 实现 messaging.IMiddleware 接口
func (m *AggregateLockMiddleware) Handle(ctx context.Context, message messaging.IMessage, next messaging.HandlerFunc) error {
	// 只处理命令消息
	if message.GetType() != messaging.MessageTypeCommand {
		return next(ctx, message)
	}

	cmd, ok := message.(*command.Command)
	if !ok {
		return next(ctx, message)
	}

	aggregateID := cmd.GetAggregateID()
	if aggregateID == "" {
		// 没有聚合 ID，不需要加锁
		return next(ctx, message)
	}

	lock := m.getOrCreateLock(cmd.GetAggregateType() + ":" + aggregateID)
	lock.Lock()
	defer lock.Unlock()

	return next(ctx, message)
}

// Name 实现 messaging.IMiddleware 接口
func (m *AggregateLockMiddleware) Name() string {
	return "CommandAggregateLock"
}

// GetLockCount 获取当前锁的数量（用于监控）
func (m *AggregateLockMiddleware) GetLockCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.locks)
}

// Clear 清空所有锁映射（用于测试和维护窗口）
//
// 不会检测锁是否正在使用，调用方需确认没有正在执行的命令。
func (m *AggregateLockMiddleware) Clear() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.locks = make(map[string]*sync.Mutex)
}

// getOrCreateLock 获取或创建聚合键对应的锁
func (m *AggregateLockMiddleware) getOrCreateLock(key string) *sync.Mutex {
	// 快速路径：读锁检查
	m.mutex.RLock()
	lock, exists := m.locks[key]
	m.mutex.RUnlock()

	if exists {
		return lock
	}

	// 慢速路径：创建新锁
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// 双重检查
	if lock, exists := m.locks[key]; exists {
		return lock
	}

	lock = &sync.Mutex{}
	m.locks[key] = lock
	return lock
}
