package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"boxoffice/messaging/command"
	"boxoffice/wallet"
)

// WalletClient 钱包聚合的命令客户端
//
// 带去重键的命令用 CommandID 充当消息 ID：幂等中间件与聚合去重环
// 看到的是同一个键，短期重试和跨重启重放共用一条防线。
type WalletClient struct {
	bus *command.CommandBus
}

func NewWalletClient(bus *command.CommandBus) *WalletClient {
	return &WalletClient{bus: bus}
}

// CreateWallet 创建钱包
func (c *WalletClient) CreateWallet(ctx context.Context, walletID string, initialBalance int64) (wallet.WalletCreated, error) {
	result, err := c.dispatch(ctx, uuid.NewString(), wallet.CommandCreateWallet, walletID,
		wallet.CreateWallet{InitialBalance: initialBalance})
	if err != nil {
		return wallet.WalletCreated{}, err
	}
	created, ok := result.(wallet.WalletCreated)
	if !ok {
		return wallet.WalletCreated{}, fmt.Errorf("unexpected create wallet result %T", result)
	}
	return created, nil
}

// Charge 扣款
//
// 结果是 WalletCharged 或 WalletChargeRejected；nil 表示重复命令
// 被幂等吸收（这笔扣款此前已经入账）。
func (c *WalletClient) Charge(ctx context.Context, walletID string, amount int64, expenseID, commandID string) (wallet.WalletEvent, error) {
	return c.dispatchEvent(ctx, commandID, wallet.CommandChargeWallet, walletID,
		wallet.ChargeWallet{Amount: amount, ExpenseID: expenseID, CommandID: commandID})
}

// Deposit 充值
func (c *WalletClient) Deposit(ctx context.Context, walletID string, amount int64, commandID string) (wallet.WalletEvent, error) {
	return c.dispatchEvent(ctx, commandID, wallet.CommandDepositFunds, walletID,
		wallet.DepositFunds{Amount: amount, CommandID: commandID})
}

// Refund 按费用单号退款
//
// nil 结果覆盖两种幂等情形：命令重复，或费用已不存在。
func (c *WalletClient) Refund(ctx context.Context, walletID, expenseID, commandID string) (wallet.WalletEvent, error) {
	return c.dispatchEvent(ctx, commandID, wallet.CommandRefund, walletID,
		wallet.Refund{ExpenseID: expenseID, CommandID: commandID})
}

func (c *WalletClient) dispatch(ctx context.Context, messageID, commandType, walletID string, payload wallet.WalletCommand) (interface{}, error) {
	cmd := command.NewCommand(messageID, commandType, walletID, wallet.AggregateType, payload)
	if err := c.bus.Dispatch(ctx, cmd); err != nil {
		return nil, err
	}
	return cmd.Result(), nil
}

func (c *WalletClient) dispatchEvent(ctx context.Context, messageID, commandType, walletID string, payload wallet.WalletCommand) (wallet.WalletEvent, error) {
	result, err := c.dispatch(ctx, messageID, commandType, walletID, payload)
	if err != nil || result == nil {
		return nil, err
	}
	event, ok := result.(wallet.WalletEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected wallet command result %T", result)
	}
	return event, nil
}
