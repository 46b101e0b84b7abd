package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"boxoffice/cinema"
	"boxoffice/eventing/store"
	"boxoffice/messaging"
	"boxoffice/messaging/command"
	"boxoffice/messaging/transport/sync"
	"boxoffice/wallet"
)

func newTestBus(t *testing.T) *command.CommandBus {
	t.Helper()

	transport := sync.NewSyncTransport()
	require.NoError(t, transport.Start(context.Background()))
	t.Cleanup(func() { _ = transport.Close() })

	commandBus := command.NewCommandBus(messaging.NewMessageBus(transport), nil)

	showService := cinema.NewShowService(store.NewMemoryEventStore(), nil, nil)
	require.NoError(t, showService.RegisterHandlers(commandBus))
	walletService := wallet.NewWalletService(store.NewMemoryEventStore(), nil, nil)
	require.NoError(t, walletService.RegisterHandlers(commandBus))

	return commandBus
}

func TestShowClient_Lifecycle(t *testing.T) {
	bus := newTestBus(t)
	shows := NewShowClient(bus)
	ctx := context.Background()

	created, err := shows.CreateShow(ctx, "show-1", "Matrix", 5)
	require.NoError(t, err)
	require.Len(t, created.Seats, 5)

	reserved, err := shows.ReserveSeat(ctx, "show-1", "wallet-1", "res-1", 2)
	require.NoError(t, err)
	require.NotNil(t, reserved)
	require.Equal(t, cinema.InitialPrice, reserved.Price)

	// 重复预订：nil 结果，无错误
	dup, err := shows.ReserveSeat(ctx, "show-1", "wallet-1", "res-1", 2)
	require.NoError(t, err)
	require.Nil(t, dup)

	event, err := shows.ConfirmReservationPayment(ctx, "show-1", "res-1")
	require.NoError(t, err)
	_, ok := event.(cinema.SeatReservationPaid)
	require.True(t, ok)
}

func TestShowClient_BusinessErrorsPropagate(t *testing.T) {
	bus := newTestBus(t)
	shows := NewShowClient(bus)
	ctx := context.Background()

	_, err := shows.CreateShow(ctx, "show-1", "Matrix", 2)
	require.NoError(t, err)
	_, err = shows.ReserveSeat(ctx, "show-1", "wallet-1", "res-1", 0)
	require.NoError(t, err)

	// 同步传输下业务错误沿调用链返回
	_, err = shows.ReserveSeat(ctx, "show-1", "wallet-2", "res-2", 0)
	require.ErrorIs(t, err, cinema.ErrSeatNotAvailable())
}

func TestWalletClient_ChargeBranches(t *testing.T) {
	bus := newTestBus(t)
	wallets := NewWalletClient(bus)
	ctx := context.Background()

	_, err := wallets.CreateWallet(ctx, "wallet-1", 100)
	require.NoError(t, err)

	event, err := wallets.Charge(ctx, "wallet-1", 80, "res-1", "charge-1")
	require.NoError(t, err)
	_, ok := event.(wallet.WalletCharged)
	require.True(t, ok)

	event, err = wallets.Charge(ctx, "wallet-1", 80, "res-2", "charge-2")
	require.NoError(t, err)
	_, ok = event.(wallet.WalletChargeRejected)
	require.True(t, ok)

	// 重复扣款：nil 结果
	event, err = wallets.Charge(ctx, "wallet-1", 80, "res-1", "charge-1")
	require.NoError(t, err)
	require.Nil(t, event)
}

func TestWalletClient_RefundIdempotent(t *testing.T) {
	bus := newTestBus(t)
	wallets := NewWalletClient(bus)
	ctx := context.Background()

	_, err := wallets.CreateWallet(ctx, "wallet-1", 100)
	require.NoError(t, err)
	_, err = wallets.Charge(ctx, "wallet-1", 80, "res-1", "charge-1")
	require.NoError(t, err)

	event, err := wallets.Refund(ctx, "wallet-1", "res-1", "refund-1")
	require.NoError(t, err)
	refunded, ok := event.(wallet.WalletRefunded)
	require.True(t, ok)
	require.Equal(t, int64(80), refunded.Amount)

	// 费用已退：再次退款被吸收
	event, err = wallets.Refund(ctx, "wallet-1", "res-1", "refund-2")
	require.NoError(t, err)
	require.Nil(t, event)
}
