package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boxoffice/cinema"
	"boxoffice/client"
	"boxoffice/eventing/store"
	"boxoffice/messaging"
	"boxoffice/messaging/command"
	"boxoffice/messaging/transport/sync"
	"boxoffice/wallet"
)

type fixture struct {
	workflow  *Workflow
	states    StateStore
	shows     *client.ShowClient
	wallets   *client.WalletClient
	showSvc   *cinema.ShowService
	walletSvc *wallet.WalletService
}

// flakyWallets 在真实扣款之后报告传输错误，模拟"已生效但结果丢失"
type flakyWallets struct {
	WalletOps
	chargeFailures int
}

func (f *flakyWallets) Charge(ctx context.Context, walletID string, amount int64, expenseID, commandID string) (wallet.WalletEvent, error) {
	event, err := f.WalletOps.Charge(ctx, walletID, amount, expenseID, commandID)
	if err != nil {
		return nil, err
	}
	if f.chargeFailures > 0 {
		f.chargeFailures--
		return nil, errors.New("charge response lost")
	}
	return event, nil
}

func newFixture(t *testing.T, decorate func(ShowOps, WalletOps) (ShowOps, WalletOps)) *fixture {
	t.Helper()
	ctx := context.Background()

	transport := sync.NewSyncTransport()
	require.NoError(t, transport.Start(ctx))
	t.Cleanup(func() { _ = transport.Close() })
	commandBus := command.NewCommandBus(messaging.NewMessageBus(transport), nil)

	showSvc := cinema.NewShowService(store.NewMemoryEventStore(), nil, nil)
	require.NoError(t, showSvc.RegisterHandlers(commandBus))
	walletSvc := wallet.NewWalletService(store.NewMemoryEventStore(), nil, nil)
	require.NoError(t, walletSvc.RegisterHandlers(commandBus))

	shows := client.NewShowClient(commandBus)
	wallets := client.NewWalletClient(commandBus)

	var showOps ShowOps = shows
	var walletOps WalletOps = wallets
	if decorate != nil {
		showOps, walletOps = decorate(showOps, walletOps)
	}

	states := NewMemoryStateStore()
	cfg := Config{StepTimeout: 500 * time.Millisecond, MaxAttempts: 3, InitialDelay: 5 * time.Millisecond}

	return &fixture{
		workflow:  New(showOps, walletOps, states, cfg, nil),
		states:    states,
		shows:     shows,
		wallets:   wallets,
		showSvc:   showSvc,
		walletSvc: walletSvc,
	}
}

func (f *fixture) seed(t *testing.T, balance int64) {
	t.Helper()
	ctx := context.Background()
	_, err := f.wallets.CreateWallet(ctx, "wallet-1", balance)
	require.NoError(t, err)
	_, err = f.shows.CreateShow(ctx, "show-1", "Matrix", 5)
	require.NoError(t, err)
}

func (f *fixture) awaitStatus(t *testing.T, reservationID string, want Status) *SeatReservation {
	t.Helper()
	var state *SeatReservation
	require.Eventually(t, func() bool {
		var err error
		state, err = f.workflow.GetState(context.Background(), reservationID)
		require.NoError(t, err)
		return state.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return state
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	balance, err := f.walletSvc.GetBalance(context.Background(), "wallet-1")
	require.NoError(t, err)
	return balance
}

func (f *fixture) seatStatus(t *testing.T, seat int) cinema.SeatStatus {
	t.Helper()
	status, err := f.showSvc.GetSeatStatus(context.Background(), "show-1", seat)
	require.NoError(t, err)
	return status
}

func startRequest(reservationID string, seat int) StartRequest {
	return StartRequest{ReservationID: reservationID, ShowID: "show-1", SeatNumber: seat, WalletID: "wallet-1"}
}

func TestWorkflow_CompletesWhenBalanceSuffices(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, 200)

	require.NoError(t, f.workflow.Start(context.Background(), startRequest("res-1", 2)))

	state := f.awaitStatus(t, "res-1", StatusCompleted)
	require.Equal(t, cinema.InitialPrice, state.Price)
	require.Equal(t, cinema.SeatStatusPaid, f.seatStatus(t, 2))
	require.Equal(t, int64(100), f.balance(t))
}

func TestWorkflow_FailsWhenChargeRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, 50)

	require.NoError(t, f.workflow.Start(context.Background(), startRequest("res-1", 2)))

	// 余额不足：座位释放，余额不变
	f.awaitStatus(t, "res-1", StatusFailed)
	require.Equal(t, cinema.SeatStatusAvailable, f.seatStatus(t, 2))
	require.Equal(t, int64(50), f.balance(t))
}

func TestWorkflow_SeatUnavailableIsTerminal(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, 200)
	_, err := f.shows.ReserveSeat(context.Background(), "show-1", "wallet-1", "other", 2)
	require.NoError(t, err)

	require.NoError(t, f.workflow.Start(context.Background(), startRequest("res-1", 2)))

	// 座位被占是确定性拒绝，不补偿、不扣款
	f.awaitStatus(t, "res-1", StatusSeatReservationFailed)
	require.Equal(t, int64(200), f.balance(t))
}

func TestWorkflow_UnknownChargeOutcomeRefundsThenCancels(t *testing.T) {
	f := newFixture(t, func(shows ShowOps, wallets WalletOps) (ShowOps, WalletOps) {
		// 三次尝试的应答全部丢失：第一次扣款实际已入账，
		// 后两次被钱包去重环吸收
		return shows, &flakyWallets{WalletOps: wallets, chargeFailures: 3}
	})
	f.seed(t, 200)

	require.NoError(t, f.workflow.Start(context.Background(), startRequest("res-42", 1)))

	// 结果未知：先退款再取消，钱一分不少，座位释放
	f.awaitStatus(t, "res-42", StatusFailed)
	require.Equal(t, int64(200), f.balance(t))
	require.Equal(t, cinema.SeatStatusAvailable, f.seatStatus(t, 1))
}

func TestWorkflow_DuplicateStartRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, 200)

	require.NoError(t, f.workflow.Start(context.Background(), startRequest("res-1", 2)))
	err := f.workflow.Start(context.Background(), startRequest("res-1", 3))
	require.ErrorIs(t, err, ErrAlreadyStarted())

	// 原工作流不受影响
	f.awaitStatus(t, "res-1", StatusCompleted)
}

func TestWorkflow_ResumeContinuesFromPersistedState(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, 200)
	ctx := context.Background()

	// 模拟重启：座位已保留、状态已落盘，但流程没有继续
	reserved, err := f.shows.ReserveSeat(ctx, "show-1", "wallet-1", "res-1", 2)
	require.NoError(t, err)
	require.NoError(t, f.states.Create(ctx, &SeatReservation{
		ReservationID: "res-1",
		ShowID:        "show-1",
		SeatNumber:    2,
		WalletID:      "wallet-1",
		Price:         reserved.Price,
		Status:        StatusSeatReserved,
	}))

	require.NoError(t, f.workflow.Resume(ctx, "res-1"))

	state, err := f.workflow.GetState(ctx, "res-1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, state.Status)
	require.Equal(t, int64(100), f.balance(t))
	require.Equal(t, cinema.SeatStatusPaid, f.seatStatus(t, 2))
}

func TestWorkflow_ResumeUnknownReservation(t *testing.T) {
	f := newFixture(t, nil)
	err := f.workflow.Resume(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound())
}
