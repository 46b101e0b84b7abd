package workflow

import (
	"context"
	"sync"
	"time"
)

// StateStore 工作流状态存储
type StateStore interface {
	// Create 新建状态；同一 reservationId 已存在时返回 AlreadyStartedError
	Create(ctx context.Context, state *SeatReservation) error

	// Update 覆盖已有状态
	Update(ctx context.Context, state *SeatReservation) error

	// Load 按 reservationId 读取状态；不存在时返回 NotFoundError
	Load(ctx context.Context, reservationID string) (*SeatReservation, error)

	// List 列出全部状态（用于重启后恢复未完结的工作流）
	List(ctx context.Context) ([]*SeatReservation, error)

	// Delete 删除状态
	Delete(ctx context.Context, reservationID string) error
}

// MemoryStateStore 进程内状态存储
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]SeatReservation
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]SeatReservation)}
}

func (s *MemoryStateStore) Create(ctx context.Context, state *SeatReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.states[state.ReservationID]; exists {
		return &AlreadyStartedError{ReservationID: state.ReservationID}
	}
	state.UpdatedAt = time.Now()
	s.states[state.ReservationID] = *state
	return nil
}

func (s *MemoryStateStore) Update(ctx context.Context, state *SeatReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.states[state.ReservationID]; !exists {
		return &NotFoundError{ReservationID: state.ReservationID}
	}
	state.UpdatedAt = time.Now()
	s.states[state.ReservationID] = *state
	return nil
}

func (s *MemoryStateStore) Load(ctx context.Context, reservationID string) (*SeatReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, exists := s.states[reservationID]
	if !exists {
		return nil, &NotFoundError{ReservationID: reservationID}
	}
	copied := state
	return &copied, nil
}

func (s *MemoryStateStore) List(ctx context.Context) ([]*SeatReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*SeatReservation, 0, len(s.states))
	for _, state := range s.states {
		copied := state
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStateStore) Delete(ctx context.Context, reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, reservationID)
	return nil
}
