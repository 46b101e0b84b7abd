// Package cinema 实现放映场次聚合：座位库存与预订生命周期
package cinema

// SeatStatus 座位状态
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "AVAILABLE"
	SeatStatusReserved  SeatStatus = "RESERVED"
	SeatStatusPaid      SeatStatus = "PAID"
)

// Seat 座位
//
// Price 为最小货币单位（分）的整数金额。
type Seat struct {
	Number int        `json:"number"`
	Status SeatStatus `json:"status"`
	Price  int64      `json:"price"`
}

func (s Seat) IsAvailable() bool { return s.Status == SeatStatusAvailable }

func (s Seat) reserved() Seat  { s.Status = SeatStatusReserved; return s }
func (s Seat) paid() Seat      { s.Status = SeatStatusPaid; return s }
func (s Seat) available() Seat { s.Status = SeatStatusAvailable; return s }

// ReservationStatus 已完结预订的最终状态
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// FinishedReservation 已完结的预订
//
// 预订离开 pending 集合后记录在此，用于识别重复命令与迟到的确认。
type FinishedReservation struct {
	ReservationID string            `json:"reservation_id"`
	SeatNumber    int               `json:"seat_number"`
	Status        ReservationStatus `json:"status"`
}

func (r FinishedReservation) IsConfirmed() bool { return r.Status == ReservationConfirmed }
func (r FinishedReservation) IsCancelled() bool { return r.Status == ReservationCancelled }
