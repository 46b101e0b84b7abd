package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"boxoffice/app"
	"boxoffice/cinema"
	"boxoffice/workflow"
)

func main() {
	log.SetPrefix("[boxoffice] ")
	mode := flag.String("mode", string(app.ModeOrchestration), "coordination mode: orchestration | choreography")
	flag.Parse()

	cfg := app.DefaultConfig()
	cfg.Mode = app.Mode(*mode)

	a, err := app.New(cfg)
	must(err)
	ctx := context.Background()
	must(a.Start(ctx))
	defer a.Close()

	must(a.CreateShow(ctx, "matrix-night", "The Matrix", 10))
	must(a.CreateWallet(ctx, "alice", 150))

	// 情景一：余额充足，预订成交
	must(a.StartReservation(ctx, workflow.StartRequest{
		ReservationID: "res-1", ShowID: "matrix-night", SeatNumber: 3, WalletID: "alice",
	}))
	report(ctx, a, "res-1", 3)

	// 情景二：余额不足，座位释放
	must(a.StartReservation(ctx, workflow.StartRequest{
		ReservationID: "res-2", ShowID: "matrix-night", SeatNumber: 4, WalletID: "alice",
	}))
	report(ctx, a, "res-2", 4)
}

// report 等流程落定后打印座位与余额
func report(ctx context.Context, a *app.Application, reservationID string, seat int) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if settled(ctx, a, reservationID, seat) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	status, err := a.GetSeatStatus(ctx, "matrix-night", seat)
	must(err)
	balance, err := a.GetWalletBalance(ctx, "alice")
	must(err)
	fmt.Printf("%s -> seat %d: %-9s balance: %d\n", reservationID, seat, status, balance)
}

// settled 预订是否已经完结
//
// 编排模式看工作流终态；反应器模式没有集中状态，以座位离开
// Reserved 状态为准。
func settled(ctx context.Context, a *app.Application, reservationID string, seat int) bool {
	state, err := a.GetReservationState(ctx, reservationID)
	if err == nil {
		return state.Status.IsTerminal()
	}

	status, err := a.GetSeatStatus(ctx, "matrix-night", seat)
	if err != nil {
		return false
	}
	return status != cinema.SeatStatusReserved
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
