package cinema

import "fmt"

// 命令类型常量（命令总线路由键）
const (
	CommandCreateShow                = "CreateShow"
	CommandReserveSeat               = "ReserveSeat"
	CommandConfirmReservationPayment = "ConfirmReservationPayment"
	CommandCancelSeatReservation     = "CancelSeatReservation"
)

// AggregateType 场次聚合类型名
const AggregateType = "Show"

// ShowCommand 场次命令的封闭变体集
//
// 通过未导出的标记方法封闭，Process 以穷尽的类型开关处理。
type ShowCommand interface {
	isShowCommand()
}

// CreateShow 创建场次
type CreateShow struct {
	Title    string `json:"title"`
	MaxSeats int    `json:"max_seats"`
}

// ReserveSeat 预订座位
//
// ReservationID 同时作为场次侧的去重键与钱包侧的费用单号。
type ReserveSeat struct {
	WalletID      string `json:"wallet_id"`
	ReservationID string `json:"reservation_id"`
	SeatNumber    int    `json:"seat_number"`
}

// ConfirmReservationPayment 确认预订已支付
type ConfirmReservationPayment struct {
	ReservationID string `json:"reservation_id"`
}

// CancelSeatReservation 取消座位预订
type CancelSeatReservation struct {
	ReservationID string `json:"reservation_id"`
}

func (CreateShow) isShowCommand()                {}
func (ReserveSeat) isShowCommand()               {}
func (ConfirmReservationPayment) isShowCommand() {}
func (CancelSeatReservation) isShowCommand()     {}

// Validate 实现验证中间件的 Validatable 接口
func (c CreateShow) Validate() error {
	if c.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if c.MaxSeats <= 0 {
		return fmt.Errorf("max seats must be positive")
	}
	return nil
}

func (c ReserveSeat) Validate() error {
	if c.WalletID == "" {
		return fmt.Errorf("wallet id cannot be empty")
	}
	if c.ReservationID == "" {
		return fmt.Errorf("reservation id cannot be empty")
	}
	if c.SeatNumber < 0 {
		return fmt.Errorf("seat number cannot be negative")
	}
	return nil
}

func (c ConfirmReservationPayment) Validate() error {
	if c.ReservationID == "" {
		return fmt.Errorf("reservation id cannot be empty")
	}
	return nil
}

func (c CancelSeatReservation) Validate() error {
	if c.ReservationID == "" {
		return fmt.Errorf("reservation id cannot be empty")
	}
	return nil
}
