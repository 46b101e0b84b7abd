package choreography

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boxoffice/cinema"
	"boxoffice/client"
	"boxoffice/eventing"
	"boxoffice/eventing/bus"
	"boxoffice/eventing/store"
	"boxoffice/messaging"
	"boxoffice/messaging/command"
	"boxoffice/messaging/transport/memory"
	synctransport "boxoffice/messaging/transport/sync"
	"boxoffice/reservation"
	"boxoffice/wallet"
)

type fixture struct {
	shows     *client.ShowClient
	wallets   *client.WalletClient
	showSvc   *cinema.ShowService
	walletSvc *wallet.WalletService
	events    bus.IEventBus
	failures  *ChargeFailureLog
}

// newFixture 搭一套完整的协同拓扑：同步命令总线 + 异步事件总线，
// 索引订阅先于扣款反应器注册。
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	cmdTransport := synctransport.NewSyncTransport()
	require.NoError(t, cmdTransport.Start(ctx))
	t.Cleanup(func() { _ = cmdTransport.Close() })
	commandBus := command.NewCommandBus(messaging.NewMessageBus(cmdTransport), nil)

	eventTransport := memory.NewMemoryTransport(256, 4)
	require.NoError(t, eventTransport.Start(ctx))
	t.Cleanup(func() { _ = eventTransport.Close() })
	eventBus := bus.NewEventBus(messaging.NewMessageBus(eventTransport))

	showSvc := cinema.NewShowService(store.NewMemoryEventStore(), eventBus, nil)
	require.NoError(t, showSvc.RegisterHandlers(commandBus))
	walletSvc := wallet.NewWalletService(store.NewMemoryEventStore(), eventBus, nil)
	require.NoError(t, walletSvc.RegisterHandlers(commandBus))

	shows := client.NewShowClient(commandBus)
	wallets := client.NewWalletClient(commandBus)

	index := reservation.NewIndex(reservation.NewMemoryStore(), nil)
	failures := NewChargeFailureLog(eventBus, nil)

	// 索引必须先于扣款反应器看到 SeatReserved
	require.NoError(t, eventBus.SubscribeHandler(ctx, index))
	require.NoError(t, eventBus.SubscribeHandler(ctx, NewChargeForReservation(wallets, failures, nil)))
	require.NoError(t, eventBus.SubscribeHandler(ctx, NewCompleteReservation(shows, index, nil)))
	require.NoError(t, eventBus.SubscribeHandler(ctx, NewHandleWalletFailures(shows, nil)))
	require.NoError(t, eventBus.SubscribeHandler(ctx, NewRefundForReservation(wallets, index, nil)))

	return &fixture{
		shows:     shows,
		wallets:   wallets,
		showSvc:   showSvc,
		walletSvc: walletSvc,
		events:    eventBus,
		failures:  failures,
	}
}

func (f *fixture) seatStatus(t *testing.T, showID string, seat int) cinema.SeatStatus {
	t.Helper()
	status, err := f.showSvc.GetSeatStatus(context.Background(), showID, seat)
	require.NoError(t, err)
	return status
}

func (f *fixture) balance(t *testing.T, walletID string) int64 {
	t.Helper()
	balance, err := f.walletSvc.GetBalance(context.Background(), walletID)
	require.NoError(t, err)
	return balance
}

func TestChoreography_SuccessfulReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wallets.CreateWallet(ctx, "wallet-1", 200)
	require.NoError(t, err)
	_, err = f.shows.CreateShow(ctx, "show-1", "Matrix", 5)
	require.NoError(t, err)

	reserved, err := f.shows.ReserveSeat(ctx, "show-1", "wallet-1", "res-1", 2)
	require.NoError(t, err)
	require.NotNil(t, reserved)

	require.Eventually(t, func() bool {
		return f.seatStatus(t, "show-1", 2) == cinema.SeatStatusPaid
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, int64(100), f.balance(t, "wallet-1"))
	require.Zero(t, f.failures.Count())
}

func TestChoreography_RejectedChargeCancelsReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wallets.CreateWallet(ctx, "wallet-1", 50)
	require.NoError(t, err)
	_, err = f.shows.CreateShow(ctx, "show-1", "Matrix", 5)
	require.NoError(t, err)

	_, err = f.shows.ReserveSeat(ctx, "show-1", "wallet-1", "res-1", 2)
	require.NoError(t, err)

	// 余额不足：扣款被拒，座位释放，余额不变
	require.Eventually(t, func() bool {
		show, err := f.showSvc.GetShow(ctx, "show-1")
		require.NoError(t, err)
		return show.Finished["res-1"].IsCancelled()
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, cinema.SeatStatusAvailable, f.seatStatus(t, "show-1", 2))
	require.Equal(t, int64(50), f.balance(t, "wallet-1"))
}

func TestChoreography_MissingWalletGoesThroughFailureLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.shows.CreateShow(ctx, "show-1", "Matrix", 5)
	require.NoError(t, err)

	// 钱包不存在：确定性业务错误，不重试，登记失败后取消预订
	_, err = f.shows.ReserveSeat(ctx, "show-1", "missing-wallet", "res-1", 2)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.seatStatus(t, "show-1", 2) == cinema.SeatStatusAvailable && f.failures.Count() == 1
	}, 3*time.Second, 10*time.Millisecond)

	failure := f.failures.Failures()[0]
	require.Equal(t, "res-1", failure.ReservationID)
	require.Equal(t, "missing-wallet", failure.WalletID)
}

func TestChoreography_RedeliveredSeatReservedChargesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wallets.CreateWallet(ctx, "wallet-1", 500)
	require.NoError(t, err)
	_, err = f.shows.CreateShow(ctx, "show-1", "Matrix", 5)
	require.NoError(t, err)
	reserved, err := f.shows.ReserveSeat(ctx, "show-1", "wallet-1", "res-1", 2)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.seatStatus(t, "show-1", 2) == cinema.SeatStatusPaid
	}, 3*time.Second, 10*time.Millisecond)

	// 模拟至少一次投递：同一 SeatReserved 再投一次，扣款键相同，
	// 钱包去重环保证不重复入账
	// SeatReserved 是流里的第 2 个事件（第 1 个是 ShowCreated）
	redelivered := eventing.NewEvent("show-1", cinema.AggregateType, cinema.EventSeatReserved, 2, *reserved)
	require.NoError(t, f.events.PublishEvent(ctx, redelivered))

	time.Sleep(200 * time.Millisecond)
	require.Equal(t, int64(400), f.balance(t, "wallet-1"))
}

// TestChoreography_LateChargeGetsRefunded 扣款结果比取消来得晚：
// 确认命令落在已取消的预订上，产生对账事件，退款反应器把钱退回。
func TestChoreography_LateChargeGetsRefunded(t *testing.T) {
	ctx := context.Background()

	cmdTransport := synctransport.NewSyncTransport()
	require.NoError(t, cmdTransport.Start(ctx))
	t.Cleanup(func() { _ = cmdTransport.Close() })
	commandBus := command.NewCommandBus(messaging.NewMessageBus(cmdTransport), nil)

	eventTransport := memory.NewMemoryTransport(256, 4)
	require.NoError(t, eventTransport.Start(ctx))
	t.Cleanup(func() { _ = eventTransport.Close() })
	eventBus := bus.NewEventBus(messaging.NewMessageBus(eventTransport))

	showSvc := cinema.NewShowService(store.NewMemoryEventStore(), eventBus, nil)
	require.NoError(t, showSvc.RegisterHandlers(commandBus))
	walletSvc := wallet.NewWalletService(store.NewMemoryEventStore(), eventBus, nil)
	require.NoError(t, walletSvc.RegisterHandlers(commandBus))

	shows := client.NewShowClient(commandBus)
	wallets := client.NewWalletClient(commandBus)
	index := reservation.NewIndex(reservation.NewMemoryStore(), nil)

	// 只接入索引和退款反应器：扣款与完结由测试手工驱动，
	// 以便让取消先于确认发生
	require.NoError(t, eventBus.SubscribeHandler(ctx, index))
	require.NoError(t, eventBus.SubscribeHandler(ctx, NewRefundForReservation(wallets, index, nil)))

	_, err := wallets.CreateWallet(ctx, "wallet-1", 200)
	require.NoError(t, err)
	_, err = shows.CreateShow(ctx, "show-1", "Matrix", 5)
	require.NoError(t, err)
	reserved, err := shows.ReserveSeat(ctx, "show-1", "wallet-1", "res-42", 1)
	require.NoError(t, err)
	require.NotNil(t, reserved)

	// 扣款已落账，但确认迟迟未到，预订被取消
	charged, err := wallets.Charge(ctx, "wallet-1", reserved.Price, "res-42", "late-charge")
	require.NoError(t, err)
	_, ok := charged.(wallet.WalletCharged)
	require.True(t, ok)
	_, err = shows.CancelSeatReservation(ctx, "show-1", "res-42")
	require.NoError(t, err)

	// 迟到的确认：座位保持可用，触发退款
	event, err := shows.ConfirmReservationPayment(ctx, "show-1", "res-42")
	require.NoError(t, err)
	_, ok = event.(cinema.CancelledReservationConfirmed)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		balance, err := walletSvc.GetBalance(ctx, "wallet-1")
		require.NoError(t, err)
		return balance == 200
	}, 3*time.Second, 10*time.Millisecond)

	status, err := showSvc.GetSeatStatus(ctx, "show-1", 1)
	require.NoError(t, err)
	require.Equal(t, cinema.SeatStatusAvailable, status)
}
