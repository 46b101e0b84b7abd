// Package wallet 实现钱包聚合：余额、费用与命令去重
package wallet

import "fmt"

// 命令类型常量（命令总线路由键）
const (
	CommandCreateWallet = "CreateWallet"
	CommandChargeWallet = "ChargeWallet"
	CommandDepositFunds = "DepositFunds"
	CommandRefund       = "RefundWallet"
)

// AggregateType 钱包聚合类型名
const AggregateType = "Wallet"

// WalletCommand 钱包命令的封闭变体集
type WalletCommand interface {
	isWalletCommand()
}

// DeduplicatedCommand 携带去重键的命令
//
// 聚合用固定容量的去重环记录已处理的 CommandID，
// 重复到达的命令按幂等成功处理。
type DeduplicatedCommand interface {
	WalletCommand
	DedupID() string
}

// CreateWallet 创建钱包
type CreateWallet struct {
	InitialBalance int64 `json:"initial_balance"`
}

// ChargeWallet 扣款
//
// ExpenseID 标识这笔费用（预订场景下等于 reservationId），
// CommandID 是调用方生成的确定性去重键。
type ChargeWallet struct {
	Amount    int64  `json:"amount"`
	ExpenseID string `json:"expense_id"`
	CommandID string `json:"command_id"`
}

// DepositFunds 充值
type DepositFunds struct {
	Amount    int64  `json:"amount"`
	CommandID string `json:"command_id"`
}

// Refund 按费用单号退款
type Refund struct {
	ExpenseID string `json:"expense_id"`
	CommandID string `json:"command_id"`
}

func (CreateWallet) isWalletCommand() {}
func (ChargeWallet) isWalletCommand() {}
func (DepositFunds) isWalletCommand() {}
func (Refund) isWalletCommand()       {}

func (c ChargeWallet) DedupID() string { return c.CommandID }
func (c DepositFunds) DedupID() string { return c.CommandID }
func (c Refund) DedupID() string       { return c.CommandID }

// Validate 实现验证中间件的 Validatable 接口
func (c CreateWallet) Validate() error {
	if c.InitialBalance < 0 {
		return fmt.Errorf("initial balance cannot be negative")
	}
	return nil
}

func (c ChargeWallet) Validate() error {
	if c.Amount <= 0 {
		return fmt.Errorf("charge amount must be positive")
	}
	if c.ExpenseID == "" {
		return fmt.Errorf("expense id cannot be empty")
	}
	if c.CommandID == "" {
		return fmt.Errorf("command id cannot be empty")
	}
	return nil
}

func (c DepositFunds) Validate() error {
	if c.CommandID == "" {
		return fmt.Errorf("command id cannot be empty")
	}
	return nil
}

func (c Refund) Validate() error {
	if c.ExpenseID == "" {
		return fmt.Errorf("expense id cannot be empty")
	}
	if c.CommandID == "" {
		return fmt.Errorf("command id cannot be empty")
	}
	return nil
}
