// Package workflow 以持久化状态机的方式编排座位预订
//
// 与 choreography 包互斥使用：同一套聚合契约，这里由一个集中的
// 工作流顺序驱动预订、扣款、确认/补偿，每一步的结果都落盘，
// 进程重启后可以从落盘状态继续。
package workflow

import "time"

// Status 工作流状态
type Status string

const (
	StatusStarted               Status = "STARTED"
	StatusSeatReserved          Status = "SEAT_RESERVED"
	StatusSeatReservationFailed Status = "SEAT_RESERVATION_FAILED"
	StatusWalletCharged         Status = "WALLET_CHARGED"
	StatusWalletChargeRejected  Status = "WALLET_CHARGE_REJECTED"
	StatusWalletRefunded        Status = "WALLET_REFUNDED"
	StatusCompleted             Status = "COMPLETED"
	StatusFailed                Status = "FAILED"
)

// IsTerminal 工作流是否已结束
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSeatReservationFailed:
		return true
	default:
		return false
	}
}

// SeatReservation 一次预订工作流的持久化状态
type SeatReservation struct {
	ReservationID string    `json:"reservation_id"`
	ShowID        string    `json:"show_id"`
	SeatNumber    int       `json:"seat_number"`
	WalletID      string    `json:"wallet_id"`
	Price         int64     `json:"price"`
	Status        Status    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
}
