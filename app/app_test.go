package app

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"boxoffice/cinema"
	"boxoffice/workflow"
)

func newApp(t *testing.T, mutate func(*Config)) *Application {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workflow = workflow.Config{StepTimeout: 500 * time.Millisecond, MaxAttempts: 3, InitialDelay: 5 * time.Millisecond}
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func seed(t *testing.T, a *Application, balance int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.CreateShow(ctx, "show-1", "Matrix", 10))
	require.NoError(t, a.CreateWallet(ctx, "wallet-1", balance))
}

func request(reservationID string, seat int) workflow.StartRequest {
	return workflow.StartRequest{ReservationID: reservationID, ShowID: "show-1", SeatNumber: seat, WalletID: "wallet-1"}
}

func awaitSeat(t *testing.T, a *Application, seat int, want cinema.SeatStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		status, err := a.GetSeatStatus(context.Background(), "show-1", seat)
		require.NoError(t, err)
		return status == want
	}, 5*time.Second, 10*time.Millisecond)
}

func TestApplication_OrchestrationHappyPath(t *testing.T) {
	a := newApp(t, nil)
	seed(t, a, 200)
	ctx := context.Background()

	require.NoError(t, a.StartReservation(ctx, request("res-1", 2)))

	require.Eventually(t, func() bool {
		state, err := a.GetReservationState(ctx, "res-1")
		require.NoError(t, err)
		return state.Status == workflow.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	balance, err := a.GetWalletBalance(ctx, "wallet-1")
	require.NoError(t, err)
	require.Equal(t, int64(100), balance)
	awaitSeat(t, a, 2, cinema.SeatStatusPaid)

	// 重复发起不会再跑一遍流程
	require.ErrorIs(t, a.StartReservation(ctx, request("res-1", 2)), workflow.ErrAlreadyStarted())
}

func TestApplication_OrchestrationInsufficientFunds(t *testing.T) {
	a := newApp(t, nil)
	seed(t, a, 50)
	ctx := context.Background()

	require.NoError(t, a.StartReservation(ctx, request("res-1", 2)))

	require.Eventually(t, func() bool {
		state, err := a.GetReservationState(ctx, "res-1")
		require.NoError(t, err)
		return state.Status == workflow.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	balance, err := a.GetWalletBalance(ctx, "wallet-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)
	awaitSeat(t, a, 2, cinema.SeatStatusAvailable)
}

func TestApplication_OrchestrationWithSQLiteState(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	a := newApp(t, func(cfg *Config) { cfg.WorkflowDB = db })
	seed(t, a, 200)
	ctx := context.Background()

	require.NoError(t, a.StartReservation(ctx, request("res-1", 3)))
	require.Eventually(t, func() bool {
		state, err := a.GetReservationState(ctx, "res-1")
		require.NoError(t, err)
		return state.Status == workflow.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	// 状态在 SQLite 里：新的存储实例也能读到
	states := workflow.NewSQLStateStore(db, "")
	state, err := states.Load(ctx, "res-1")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCompleted, state.Status)
}

func TestApplication_ChoreographyHappyPath(t *testing.T) {
	a := newApp(t, func(cfg *Config) { cfg.Mode = ModeChoreography })
	seed(t, a, 200)
	ctx := context.Background()

	require.NoError(t, a.StartReservation(ctx, request("res-1", 2)))

	awaitSeat(t, a, 2, cinema.SeatStatusPaid)
	require.Eventually(t, func() bool {
		balance, err := a.GetWalletBalance(ctx, "wallet-1")
		require.NoError(t, err)
		return balance == 100
	}, 5*time.Second, 10*time.Millisecond)

	// 反应器模式没有工作流实例
	_, err := a.GetReservationState(ctx, "res-1")
	require.ErrorIs(t, err, workflow.ErrNotFound())
}

func TestApplication_ChoreographyInsufficientFunds(t *testing.T) {
	a := newApp(t, func(cfg *Config) { cfg.Mode = ModeChoreography })
	seed(t, a, 50)
	ctx := context.Background()

	require.NoError(t, a.StartReservation(ctx, request("res-1", 2)))

	// 扣款被拒：座位回到可用，余额不变
	awaitSeat(t, a, 2, cinema.SeatStatusAvailable)
	balance, err := a.GetWalletBalance(ctx, "wallet-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)
}

func TestApplication_ConcurrentReservationsSingleWinner(t *testing.T) {
	a := newApp(t, nil)
	seed(t, a, 1000)
	ctx := context.Background()

	// 同一座位十个并发预订，只有一个成交
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		_ = a.StartReservation(ctx, workflow.StartRequest{
			ReservationID: "res-" + id, ShowID: "show-1", SeatNumber: 5, WalletID: "wallet-1",
		})
	}

	awaitSeat(t, a, 5, cinema.SeatStatusPaid)
	require.Eventually(t, func() bool {
		balance, err := a.GetWalletBalance(ctx, "wallet-1")
		require.NoError(t, err)
		return balance == 900
	}, 5*time.Second, 10*time.Millisecond)
}

func TestApplication_DepositEnablesRetry(t *testing.T) {
	a := newApp(t, nil)
	seed(t, a, 50)
	ctx := context.Background()

	require.NoError(t, a.StartReservation(ctx, request("res-1", 2)))
	require.Eventually(t, func() bool {
		state, err := a.GetReservationState(ctx, "res-1")
		require.NoError(t, err)
		return state.Status == workflow.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	// 充值后用新的 reservationId 重试成功
	require.NoError(t, a.DepositFunds(ctx, "wallet-1", 100))
	require.NoError(t, a.StartReservation(ctx, request("res-2", 2)))
	require.Eventually(t, func() bool {
		state, err := a.GetReservationState(ctx, "res-2")
		require.NoError(t, err)
		return state.Status == workflow.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	balance, err := a.GetWalletBalance(ctx, "wallet-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)
}

func TestApplication_DuplicateStartReturnsAlreadyStarted(t *testing.T) {
	modes := map[string]Mode{
		"orchestration": ModeOrchestration,
		"choreography":  ModeChoreography,
	}
	for name, mode := range modes {
		t.Run(name, func(t *testing.T) {
			a := newApp(t, func(cfg *Config) { cfg.Mode = mode })
			seed(t, a, 200)
			ctx := context.Background()

			require.NoError(t, a.StartReservation(ctx, request("res-1", 2)))
			awaitSeat(t, a, 2, cinema.SeatStatusPaid)

			// 同一 reservationId 再次发起必须可区分，且不产生第二笔扣款
			err := a.StartReservation(ctx, request("res-1", 2))
			require.ErrorIs(t, err, workflow.ErrAlreadyStarted())

			require.Eventually(t, func() bool {
				balance, balanceErr := a.GetWalletBalance(ctx, "wallet-1")
				require.NoError(t, balanceErr)
				return balance == 100
			}, 5*time.Second, 10*time.Millisecond)
		})
	}
}

func TestApplication_RejectsUnknownMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "broadcast"
	_, err := New(cfg)
	require.Error(t, err)
}
