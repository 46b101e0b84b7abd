package store

import (
	"context"
	"fmt"
	"sync"

	"boxoffice/eventing"
)

// MemoryEventStore 内存事件存储
//
// 按聚合 ID 维护有序事件流，写入时做乐观并发检查与版本连续性检查。
// 适用于单机部署与测试。
type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[string][]*eventing.Event // aggregateID -> ordered events
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		events: make(map[string][]*eventing.Event),
	}
}

func (m *MemoryEventStore) AppendEvents(ctx context.Context, aggregateID string, events []*eventing.Event, expectedVersion uint64) error {
	if len(events) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	currentVersion := m.versionLocked(aggregateID)
	if currentVersion != expectedVersion {
		return eventing.NewConcurrencyError(aggregateID, expectedVersion, currentVersion)
	}

	for i, e := range events {
		if err := e.Validate(); err != nil {
			return &eventing.EventStoreError{Code: "INVALID_EVENT", Message: "invalid event", Cause: err}
		}
		wantVersion := expectedVersion + uint64(i) + 1
		if e.GetVersion() != wantVersion {
			return fmt.Errorf("event version not sequential: expected %d, got %d", wantVersion, e.GetVersion())
		}
	}

	m.events[aggregateID] = append(m.events[aggregateID], events...)
	return nil
}

func (m *MemoryEventStore) LoadEvents(ctx context.Context, aggregateID string, afterVersion uint64) ([]*eventing.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	aggregateEvents := m.events[aggregateID]
	res := make([]*eventing.Event, 0, len(aggregateEvents))
	for _, e := range aggregateEvents {
		if e.GetVersion() > afterVersion {
			res = append(res, e)
		}
	}
	return res, nil
}

func (m *MemoryEventStore) HasAggregate(ctx context.Context, aggregateID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events[aggregateID]) > 0, nil
}

func (m *MemoryEventStore) GetAggregateVersion(ctx context.Context, aggregateID string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versionLocked(aggregateID), nil
}

func (m *MemoryEventStore) versionLocked(aggregateID string) uint64 {
	aggregateEvents := m.events[aggregateID]
	if len(aggregateEvents) == 0 {
		return 0
	}
	return aggregateEvents[len(aggregateEvents)-1].GetVersion()
}

var _ IEventStore = (*MemoryEventStore)(nil)
