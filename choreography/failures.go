package choreography

import (
	"context"
	"sync"

	"boxoffice/eventing"
	"boxoffice/eventing/bus"
	"boxoffice/eventing/registry"
	"boxoffice/logging"
)

// EventWalletChargeFailureOccurred 扣款彻底失败后发布的事件类型
const EventWalletChargeFailureOccurred = "WalletChargeFailureOccurred"

// FailureAggregateType 失败记录的聚合类型名（仅用于事件路由）
const FailureAggregateType = "ChargeFailure"

// ChargeFailure 一次无法完成的扣款
type ChargeFailure struct {
	ReservationID string `json:"reservation_id"`
	ShowID        string `json:"show_id"`
	WalletID      string `json:"wallet_id"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
}

// ChargeFailureLog 扣款失败记录
//
// 扣款反应器重试耗尽后把失败登记在这里；登记同时发布
// WalletChargeFailureOccurred，由失败处理反应器接手取消预订。
// 记录本身保留，供人工对账。
type ChargeFailureLog struct {
	events bus.IEventBus
	logger logging.Logger

	mu       sync.RWMutex
	failures []ChargeFailure
}

func NewChargeFailureLog(events bus.IEventBus, logger logging.Logger) *ChargeFailureLog {
	if logger == nil {
		logger = logging.ComponentLogger("choreography.failures")
	}
	return &ChargeFailureLog{events: events, logger: logger}
}

// Register 登记失败并发布失败事件
func (l *ChargeFailureLog) Register(ctx context.Context, failure ChargeFailure) error {
	l.mu.Lock()
	l.failures = append(l.failures, failure)
	seq := uint64(len(l.failures))
	l.mu.Unlock()

	l.logger.Error(ctx, "wallet charge failed permanently",
		logging.String("reservation_id", failure.ReservationID),
		logging.String("wallet_id", failure.WalletID),
		logging.String("reason", failure.Reason))

	event := eventing.NewEvent(failure.ReservationID, FailureAggregateType,
		EventWalletChargeFailureOccurred, seq, failure)
	return l.events.PublishEvent(ctx, event)
}

// Count 已登记的失败数
func (l *ChargeFailureLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.failures)
}

// Failures 返回失败记录的副本
func (l *ChargeFailureLog) Failures() []ChargeFailure {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ChargeFailure, len(l.failures))
	copy(out, l.failures)
	return out
}

// RegisterEventPayloads 注册失败事件载荷的解码函数（跨进程传输用）
func RegisterEventPayloads(r *registry.PayloadRegistry) {
	registry.RegisterType[ChargeFailure](r, EventWalletChargeFailureOccurred)
}
