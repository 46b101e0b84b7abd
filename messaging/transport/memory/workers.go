// Package memory 实现 Worker 池与消息分发
package memory

import (
	"context"
	"fmt"

	"boxoffice/logging"
	"boxoffice/messaging"
)

// Start 启动传输层
//
// 启动 Worker 池开始处理消息队列
func (t *MemoryTransport) Start(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.running {
		return fmt.Errorf("memory transport is already running")
	}

	t.running = true

	for i := 0; i < t.workerCount; i++ {
		t.wg.Add(1)
		go t.worker(ctx)
	}

	return nil
}

// Close 关闭传输层
//
// 关闭队列后 Worker 会消费完缓冲中的消息再退出；Close 等待全部退出。
func (t *MemoryTransport) Close() error {
	t.mutex.Lock()
	if !t.running {
		t.mutex.Unlock()
		return fmt.Errorf("memory transport is not running")
	}

	t.running = false
	queue := t.queue
	t.mutex.Unlock()

	close(queue)
	t.wg.Wait()

	return nil
}

// worker 工作协程：从队列中取出消息并分发给订阅的处理器
func (t *MemoryTransport) worker(ctx context.Context) {
	defer t.wg.Done()

	for {
		select {
		case message, ok := <-t.queue:
			if !ok {
				return
			}
			t.dispatch(ctx, message)

		case <-ctx.Done():
			return
		}
	}
}

// dispatch 分发消息到订阅的处理器
//
// 异步分发，handler 错误不会传播给发布者；
// 记录错误后继续调用其余处理器。
func (t *MemoryTransport) dispatch(ctx context.Context, message messaging.IMessage) {
	messageType := message.GetType()

	t.mutex.RLock()
	exact := t.handlers[messageType]
	wildcard := t.handlers["*"]

	// 拷贝到新的切片，避免在读锁释放后被并发修改
	handlers := make([]messaging.IMessageHandler, 0, len(exact)+len(wildcard))
	handlers = append(handlers, exact...)
	handlers = append(handlers, wildcard...)
	t.mutex.RUnlock()

	for _, handler := range handlers {
		if err := handler.Handle(ctx, message); err != nil {
			t.logger.Warn(ctx, "message handler failed",
				logging.String("message_type", messageType),
				logging.String("message_id", message.GetID()),
				logging.String("handler", handler.Type()),
				logging.Error(err))
		}
	}
}
