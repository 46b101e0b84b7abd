package wallet

import (
	"context"
	"errors"
	"fmt"

	"boxoffice/eventing"
	"boxoffice/eventing/bus"
	"boxoffice/eventing/store"
	"boxoffice/logging"
	"boxoffice/messaging/command"
)

// WalletService 钱包聚合的应用服务
//
// 与场次服务同构：重放、决策、追加、发布。扣款结果以事件
// 回传，调用方对 WalletCharged / WalletChargeRejected 分支处理。
type WalletService struct {
	store  store.IEventStore
	events bus.IEventBus // 可为 nil（不对外发布）
	logger logging.Logger
}

func NewWalletService(eventStore store.IEventStore, eventBus bus.IEventBus, logger logging.Logger) *WalletService {
	if logger == nil {
		logger = logging.ComponentLogger("wallet.service")
	}
	return &WalletService{store: eventStore, events: eventBus, logger: logger}
}

// RegisterHandlers 在命令总线上注册钱包命令处理器
func (s *WalletService) RegisterHandlers(commandBus *command.CommandBus) error {
	handlers := map[string]command.CommandHandlerFunc{
		CommandCreateWallet: s.handleCreateWallet,
		CommandChargeWallet: s.handleChargeWallet,
		CommandDepositFunds: s.handleDepositFunds,
		CommandRefund:       s.handleRefund,
	}
	for commandType, handler := range handlers {
		if err := commandBus.RegisterHandler(commandType, handler); err != nil {
			return fmt.Errorf("register %s handler: %w", commandType, err)
		}
	}
	return nil
}

func (s *WalletService) handleCreateWallet(ctx context.Context, cmd *command.Command) error {
	payload, ok := cmd.GetPayload().(CreateWallet)
	if !ok {
		return command.NewInvalidCommandError(CommandCreateWallet, fmt.Sprintf("unexpected payload %T", cmd.GetPayload()))
	}
	return s.execute(ctx, cmd, payload)
}

func (s *WalletService) handleChargeWallet(ctx context.Context, cmd *command.Command) error {
	payload, ok := cmd.GetPayload().(ChargeWallet)
	if !ok {
		return command.NewInvalidCommandError(CommandChargeWallet, fmt.Sprintf("unexpected payload %T", cmd.GetPayload()))
	}
	return s.execute(ctx, cmd, payload)
}

func (s *WalletService) handleDepositFunds(ctx context.Context, cmd *command.Command) error {
	payload, ok := cmd.GetPayload().(DepositFunds)
	if !ok {
		return command.NewInvalidCommandError(CommandDepositFunds, fmt.Sprintf("unexpected payload %T", cmd.GetPayload()))
	}
	return s.execute(ctx, cmd, payload)
}

func (s *WalletService) handleRefund(ctx context.Context, cmd *command.Command) error {
	payload, ok := cmd.GetPayload().(Refund)
	if !ok {
		return command.NewInvalidCommandError(CommandRefund, fmt.Sprintf("unexpected payload %T", cmd.GetPayload()))
	}
	return s.execute(ctx, cmd, payload)
}

// execute 加载-决策-追加-发布
//
// 重复命令（DUPLICATED_COMMAND）按幂等成功处理。退款遇到
// EXPENSE_NOT_FOUND 也按幂等成功处理：费用不存在说明退款
// 已经完成或扣款从未发生，两种情况下再退一次都是错的。
func (s *WalletService) execute(ctx context.Context, cmd *command.Command, domainCmd WalletCommand) error {
	walletID := cmd.GetAggregateID()

	stored, err := s.store.LoadEvents(ctx, walletID, 0)
	if err != nil {
		return fmt.Errorf("load wallet %s: %w", walletID, err)
	}

	var event WalletEvent
	if len(stored) == 0 {
		createCmd, isCreate := domainCmd.(CreateWallet)
		if !isCreate {
			return newWalletError(ErrCodeWalletNotFound, "wallet not found", walletID)
		}
		event = NewWalletCreated(walletID, createCmd)
	} else {
		var w *Wallet
		w, err = rehydrateWallet(walletID, stored)
		if err != nil {
			return err
		}
		event, err = w.Process(domainCmd)
	}

	if err != nil {
		if errors.Is(err, ErrDuplicatedCommand()) {
			s.logger.Debug(ctx, "duplicated wallet command ignored",
				logging.String("wallet_id", walletID),
				logging.String("command_type", cmd.GetCommandType()))
			return nil
		}
		if _, isRefund := domainCmd.(Refund); isRefund && errors.Is(err, ErrExpenseNotFound()) {
			s.logger.Debug(ctx, "refund for unknown expense ignored",
				logging.String("wallet_id", walletID),
				logging.String("command_type", cmd.GetCommandType()))
			return nil
		}
		return err
	}

	version := uint64(len(stored))
	envelope := eventing.NewEvent(walletID, AggregateType, event.EventType(), version+1, event)
	if err := s.store.AppendEvents(ctx, walletID, []*eventing.Event{envelope}, version); err != nil {
		return fmt.Errorf("append wallet event: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishEvent(ctx, envelope); err != nil {
			s.logger.Warn(ctx, "publish wallet event failed",
				logging.String("wallet_id", walletID),
				logging.String("event_type", event.EventType()),
				logging.Error(err))
		}
	}

	cmd.SetResult(event)
	return nil
}

// GetWallet 重放事件流，返回钱包当前状态
func (s *WalletService) GetWallet(ctx context.Context, walletID string) (*Wallet, error) {
	stored, err := s.store.LoadEvents(ctx, walletID, 0)
	if err != nil {
		return nil, fmt.Errorf("load wallet %s: %w", walletID, err)
	}
	if len(stored) == 0 {
		return nil, newWalletError(ErrCodeWalletNotFound, "wallet not found", walletID)
	}
	return rehydrateWallet(walletID, stored)
}

// GetBalance 查询余额
func (s *WalletService) GetBalance(ctx context.Context, walletID string) (int64, error) {
	w, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// rehydrateWallet 从事件流重建聚合
func rehydrateWallet(walletID string, stored []*eventing.Event) (*Wallet, error) {
	first, ok := stored[0].GetPayload().(WalletCreated)
	if !ok {
		return nil, newWalletError(ErrCodeCorruptedState,
			fmt.Sprintf("first event is %T, expected WalletCreated", stored[0].GetPayload()), walletID)
	}
	w := NewWallet(first)
	for _, envelope := range stored[1:] {
		event, ok := envelope.GetPayload().(WalletEvent)
		if !ok {
			return nil, newWalletError(ErrCodeCorruptedState,
				fmt.Sprintf("unexpected event payload %T", envelope.GetPayload()), walletID)
		}
		if err := w.Apply(event); err != nil {
			return nil, err
		}
	}
	return w, nil
}
