// Package eventing 提供领域事件抽象与事件存储
package eventing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"boxoffice/messaging"
)

// IEvent 基础事件接口（用于事件传输/路由）
// 包含事件分发的最小必要信息
type IEvent interface {
	messaging.IMessage

	// 聚合信息（用于路由和关联）
	GetAggregateID() string
	GetAggregateType() string

	// GetVersion 事件在聚合流中的版本（从 1 开始，连续递增）
	GetVersion() uint64
}

// Event 领域事件实现
//
// Payload 携带类型化的领域事件（领域包中的事件变体），
// Type 与领域事件的类型名一致，用于总线路由。
type Event struct {
	messaging.Message
	AggregateID   string `json:"aggregate_id"`
	AggregateType string `json:"aggregate_type"`
	Version       uint64 `json:"version"`
}

func (e *Event) GetAggregateID() string   { return e.AggregateID }
func (e *Event) GetAggregateType() string { return e.AggregateType }
func (e *Event) GetVersion() uint64       { return e.Version }

// Validate 校验事件的存储前置条件
func (e *Event) Validate() error {
	if e.GetID() == "" {
		return fmt.Errorf("event id cannot be empty")
	}
	if e.AggregateID == "" {
		return fmt.Errorf("aggregate id cannot be empty")
	}
	if e.AggregateType == "" {
		return fmt.Errorf("aggregate type cannot be empty")
	}
	if e.GetType() == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if e.Version == 0 {
		return fmt.Errorf("event version must be greater than 0")
	}
	return nil
}

// NewEvent 创建事件
func NewEvent(aggregateID, aggregateType, eventType string, version uint64, payload interface{}) *Event {
	e := &Event{
		Message: messaging.Message{
			ID:        uuid.NewString(),
			Type:      eventType,
			Timestamp: time.Now(),
			Payload:   payload,
			Metadata:  make(map[string]interface{}),
		},
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       version,
	}

	// 聚合信息同时写入元数据，跨进程传输时据此还原
	e.SetMetadata("aggregate_id", aggregateID)
	e.SetMetadata("aggregate_type", aggregateType)
	e.SetMetadata("version", version)

	return e
}

// AsEvent 将消息还原为事件
//
// 进程内投递时消息本身就是 *Event；经 redis/nats 等传输后只剩
// 基础 Message，此时从元数据还原聚合信息。还原失败返回 false。
func AsEvent(msg messaging.IMessage) (IEvent, bool) {
	if e, ok := msg.(IEvent); ok {
		return e, true
	}

	meta := msg.GetMetadata()
	aggregateID, _ := meta["aggregate_id"].(string)
	if aggregateID == "" {
		return nil, false
	}
	aggregateType, _ := meta["aggregate_type"].(string)

	var version uint64
	switch v := meta["version"].(type) {
	case uint64:
		version = v
	case int64:
		version = uint64(v)
	case int:
		version = uint64(v)
	case float64: // JSON 解码后的数字
		version = uint64(v)
	}

	return &Event{
		Message: messaging.Message{
			ID:        msg.GetID(),
			Type:      msg.GetType(),
			Timestamp: msg.GetTimestamp(),
			Payload:   msg.GetPayload(),
			Metadata:  meta,
		},
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       version,
	}, true
}
