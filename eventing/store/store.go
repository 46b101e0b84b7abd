// Package store 提供事件存储抽象与实现
package store

import (
	"context"

	"boxoffice/eventing"
)

// IEventStore 聚合级事件存储接口
//
// Append 使用乐观并发控制：expectedVersion 必须等于聚合当前版本，
// 否则返回 *eventing.ConcurrencyError。配合聚合锁中间件使用时，
// 单进程内不会触发该冲突。
type IEventStore interface {
	// AppendEvents 追加事件（事件版本必须从 expectedVersion+1 起连续）
	AppendEvents(ctx context.Context, aggregateID string, events []*eventing.Event, expectedVersion uint64) error

	// LoadEvents 按版本顺序读取聚合的全部事件（版本 > afterVersion）
	LoadEvents(ctx context.Context, aggregateID string, afterVersion uint64) ([]*eventing.Event, error)

	// HasAggregate 检查聚合是否存在
	HasAggregate(ctx context.Context, aggregateID string) (bool, error)

	// GetAggregateVersion 返回聚合当前版本（不存在时为 0）
	GetAggregateVersion(ctx context.Context, aggregateID string) (uint64, error)
}
