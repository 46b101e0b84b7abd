package command

import (
	"sync"
	"time"

	"boxoffice/messaging"
)

// Command 命令实现
//
// Command 是 Message 的特化，用于表示对某个聚合的写操作意图。
//
// 设计原则：
//   - 命令是不可变的（result 槽除外）
//   - 命令应该是幂等的（基于 ID）
//   - 命令包含执行所需的所有信息
//   - 命令针对特定聚合根（通过 AggregateID 标识）
type Command struct {
	messaging.Message // 嵌入 Message，继承所有 IMessage 能力

	// AggregateID 目标聚合根 ID
	// 用于命令路由和并发控制
	AggregateID string `json:"aggregate_id"`

	// AggregateType 目标聚合类型
	// 例如："Show", "Wallet"
	AggregateType string `json:"aggregate_type"`

	// result 处理器回传的执行结果。
	// 仅在同步 Transport 上有意义：Dispatch 返回后调用方通过 Result() 读取。
	// 异步 Transport 不会跨进程携带该槽位。
	resultMu sync.Mutex
	result   interface{}
}

// NewCommand 创建命令
//
// 参数：
//   - id: 命令唯一标识（建议使用 UUID；幂等中间件按该 ID 去重）
//   - commandType: 命令类型（例如："ReserveSeat", "ChargeWallet"）
//   - aggregateID: 目标聚合 ID
//   - aggregateType: 目标聚合类型
//   - payload: 命令数据
func NewCommand(id, commandType, aggregateID, aggregateType string, payload interface{}) *Command {
	cmd := &Command{
		Message: messaging.Message{
			ID:        id,
			Type:      messaging.MessageTypeCommand,
			Timestamp: time.Now(),
			Payload:   payload,
			Metadata:  make(map[string]interface{}),
		},
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
	}

	// 将聚合信息存入元数据，便于中间件访问
	cmd.SetMetadata("aggregate_id", aggregateID)
	cmd.SetMetadata("aggregate_type", aggregateType)
	cmd.SetMetadata("command_type", commandType)

	return cmd
}

// GetAggregateID 获取目标聚合 ID
func (c *Command) GetAggregateID() string {
	return c.AggregateID
}

// GetAggregateType 获取目标聚合类型
func (c *Command) GetAggregateType() string {
	return c.AggregateType
}

// GetCommandType 获取命令类型（便利方法）
func (c *Command) GetCommandType() string {
	if cmdType, ok := c.GetMetadata()["command_type"].(string); ok {
		return cmdType
	}
	return c.Type // 回退到消息类型
}

// SetResult 由处理器回传执行结果
func (c *Command) SetResult(result interface{}) {
	c.resultMu.Lock()
	c.result = result
	c.resultMu.Unlock()
}

// Result 读取处理器回传的结果；未设置时返回 nil
func (c *Command) Result() interface{} {
	c.resultMu.Lock()
	defer c.resultMu.Unlock()
	return c.result
}

// WithMetadata 添加元数据（链式调用）
func (c *Command) WithMetadata(key string, value interface{}) *Command {
	c.SetMetadata(key, value)
	return c
}

// WithCorrelationID 设置关联 ID（用于追踪同一业务流程下的命令）
func (c *Command) WithCorrelationID(correlationID string) *Command {
	c.SetMetadata("correlation_id", correlationID)
	return c
}

// WithCausationID 设置因果 ID（触发此命令的事件 ID）
func (c *Command) WithCausationID(causationID string) *Command {
	c.SetMetadata("causation_id", causationID)
	return c
}
