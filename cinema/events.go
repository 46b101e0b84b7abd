package cinema

import "boxoffice/eventing/registry"

// 事件类型常量（事件总线路由键）
const (
	EventShowCreated                   = "ShowCreated"
	EventSeatReserved                  = "SeatReserved"
	EventSeatReservationPaid           = "SeatReservationPaid"
	EventSeatReservationCancelled      = "SeatReservationCancelled"
	EventCancelledReservationConfirmed = "CancelledReservationConfirmed"
)

// ShowEvent 场次事件的封闭变体集
type ShowEvent interface {
	isShowEvent()

	// EventType 返回事件类型名（与总线路由键一致）
	EventType() string
}

// ShowCreated 场次已创建
type ShowCreated struct {
	ShowID string `json:"show_id"`
	Title  string `json:"title"`
	Seats  []Seat `json:"seats"`
}

// SeatReserved 座位已预留
//
// Price 取自座位定义，钱包扣款以此为准。
type SeatReserved struct {
	ShowID        string `json:"show_id"`
	WalletID      string `json:"wallet_id"`
	ReservationID string `json:"reservation_id"`
	SeatNumber    int    `json:"seat_number"`
	Price         int64  `json:"price"`
}

// SeatReservationPaid 预订已支付确认
type SeatReservationPaid struct {
	ShowID        string `json:"show_id"`
	ReservationID string `json:"reservation_id"`
	SeatNumber    int    `json:"seat_number"`
}

// SeatReservationCancelled 预订已取消
type SeatReservationCancelled struct {
	ShowID        string `json:"show_id"`
	ReservationID string `json:"reservation_id"`
	SeatNumber    int    `json:"seat_number"`
}

// CancelledReservationConfirmed 已取消预订收到迟到的支付确认
//
// 座位保持取消后的状态，该事件只用于触发退款对账。
type CancelledReservationConfirmed struct {
	ShowID        string `json:"show_id"`
	ReservationID string `json:"reservation_id"`
	SeatNumber    int    `json:"seat_number"`
}

func (ShowCreated) isShowEvent()                   {}
func (SeatReserved) isShowEvent()                  {}
func (SeatReservationPaid) isShowEvent()           {}
func (SeatReservationCancelled) isShowEvent()      {}
func (CancelledReservationConfirmed) isShowEvent() {}

func (ShowCreated) EventType() string                   { return EventShowCreated }
func (SeatReserved) EventType() string                  { return EventSeatReserved }
func (SeatReservationPaid) EventType() string           { return EventSeatReservationPaid }
func (SeatReservationCancelled) EventType() string      { return EventSeatReservationCancelled }
func (CancelledReservationConfirmed) EventType() string { return EventCancelledReservationConfirmed }

// RegisterEventPayloads 注册场次事件载荷的解码函数（跨进程传输用）
func RegisterEventPayloads(r *registry.PayloadRegistry) {
	registry.RegisterType[ShowCreated](r, EventShowCreated)
	registry.RegisterType[SeatReserved](r, EventSeatReserved)
	registry.RegisterType[SeatReservationPaid](r, EventSeatReservationPaid)
	registry.RegisterType[SeatReservationCancelled](r, EventSeatReservationCancelled)
	registry.RegisterType[CancelledReservationConfirmed](r, EventCancelledReservationConfirmed)
}
