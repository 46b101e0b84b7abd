package wallet

import "boxoffice/eventing/registry"

// 事件类型常量（事件总线路由键）
const (
	EventWalletCreated       = "WalletCreated"
	EventWalletCharged       = "WalletCharged"
	EventWalletChargeRejected = "WalletChargeRejected"
	EventFundsDeposited      = "FundsDeposited"
	EventWalletRefunded      = "WalletRefunded"
)

// WalletEvent 钱包事件的封闭变体集
type WalletEvent interface {
	isWalletEvent()

	// EventType 返回事件类型名（与总线路由键一致）
	EventType() string
}

// WalletCreated 钱包已创建
type WalletCreated struct {
	WalletID       string `json:"wallet_id"`
	InitialBalance int64  `json:"initial_balance"`
}

// WalletCharged 扣款成功
type WalletCharged struct {
	WalletID  string `json:"wallet_id"`
	Amount    int64  `json:"amount"`
	ExpenseID string `json:"expense_id"`
	CommandID string `json:"command_id"`
}

// WalletChargeRejected 余额不足，扣款被拒绝
//
// 拒绝是业务结果而非错误：命令处理成功，产生该事件。
// 事件不记录去重键，被拒绝的扣款允许重试。
type WalletChargeRejected struct {
	WalletID  string `json:"wallet_id"`
	ExpenseID string `json:"expense_id"`
}

// FundsDeposited 充值成功
type FundsDeposited struct {
	WalletID  string `json:"wallet_id"`
	Amount    int64  `json:"amount"`
	CommandID string `json:"command_id"`
}

// WalletRefunded 退款成功
//
// Amount 取自被退费用在决策时的金额。
type WalletRefunded struct {
	WalletID  string `json:"wallet_id"`
	Amount    int64  `json:"amount"`
	ExpenseID string `json:"expense_id"`
	CommandID string `json:"command_id"`
}

func (WalletCreated) isWalletEvent()        {}
func (WalletCharged) isWalletEvent()        {}
func (WalletChargeRejected) isWalletEvent() {}
func (FundsDeposited) isWalletEvent()       {}
func (WalletRefunded) isWalletEvent()       {}

func (WalletCreated) EventType() string        { return EventWalletCreated }
func (WalletCharged) EventType() string        { return EventWalletCharged }
func (WalletChargeRejected) EventType() string { return EventWalletChargeRejected }
func (FundsDeposited) EventType() string       { return EventFundsDeposited }
func (WalletRefunded) EventType() string       { return EventWalletRefunded }

// RegisterEventPayloads 注册钱包事件载荷的解码函数（跨进程传输用）
func RegisterEventPayloads(r *registry.PayloadRegistry) {
	registry.RegisterType[WalletCreated](r, EventWalletCreated)
	registry.RegisterType[WalletCharged](r, EventWalletCharged)
	registry.RegisterType[WalletChargeRejected](r, EventWalletChargeRejected)
	registry.RegisterType[FundsDeposited](r, EventFundsDeposited)
	registry.RegisterType[WalletRefunded](r, EventWalletRefunded)
}
