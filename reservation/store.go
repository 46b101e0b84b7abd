// Package reservation 维护预订索引：reservationId 到场次/钱包/价格的映射
//
// 钱包事件只携带 expenseId（等于 reservationId），协同反应器靠该
// 索引找回预订归属的场次与钱包。
package reservation

import (
	"context"
	"fmt"
	"sync"
)

// Entry 一条预订的归属信息
type Entry struct {
	ReservationID string `json:"reservation_id"`
	ShowID        string `json:"show_id"`
	WalletID      string `json:"wallet_id"`
	Price         int64  `json:"price"`
}

// NotFoundError 索引中不存在该预订
type NotFoundError struct {
	ReservationID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reservation %s not found in index", e.ReservationID)
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// ErrReservationNotFound 哨兵错误，用于 errors.Is 比较
func ErrReservationNotFound() *NotFoundError { return &NotFoundError{} }

// Store 预订索引存储
type Store interface {
	Put(ctx context.Context, entry Entry) error
	Get(ctx context.Context, reservationID string) (Entry, error)
	Delete(ctx context.Context, reservationID string) error
}

// MemoryStore 进程内索引存储
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Put(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ReservationID] = entry
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, reservationID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[reservationID]
	if !ok {
		return Entry{}, &NotFoundError{ReservationID: reservationID}
	}
	return entry, nil
}

func (s *MemoryStore) Delete(ctx context.Context, reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, reservationID)
	return nil
}

// Len 当前索引条目数
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
