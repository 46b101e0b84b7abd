package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"boxoffice/cinema"
	"boxoffice/logging"
	"boxoffice/patterns/retry"
	"boxoffice/wallet"
)

// ShowOps 工作流需要的场次操作
//
// 由 client.ShowClient 实现；测试中可用装饰器注入故障。
type ShowOps interface {
	ReserveSeat(ctx context.Context, showID, walletID, reservationID string, seatNumber int) (*cinema.SeatReserved, error)
	ConfirmReservationPayment(ctx context.Context, showID, reservationID string) (cinema.ShowEvent, error)
	CancelSeatReservation(ctx context.Context, showID, reservationID string) (cinema.ShowEvent, error)
}

// WalletOps 工作流需要的钱包操作
type WalletOps interface {
	Charge(ctx context.Context, walletID string, amount int64, expenseID, commandID string) (wallet.WalletEvent, error)
	Refund(ctx context.Context, walletID, expenseID, commandID string) (wallet.WalletEvent, error)
}

// Config 工作流配置
type Config struct {
	// StepTimeout 单次聚合调用的超时
	StepTimeout time.Duration

	// MaxAttempts 每个步骤的最大尝试次数（包括首次）
	MaxAttempts int

	// InitialDelay 重试退避的初始延迟
	InitialDelay time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		StepTimeout:  3 * time.Second,
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
	}
}

// StartRequest 发起一次预订
type StartRequest struct {
	ReservationID string
	ShowID        string
	SeatNumber    int
	WalletID      string
}

// Workflow 座位预订工作流
//
// 每个预订一条持久化状态记录，步骤顺序推进：预订座位、扣款、
// 确认；任何一步的确定性失败走补偿分支，结果未知时按"可能已
// 生效"处理（先退款再取消）。所有对聚合的调用都携带确定性
// 去重键，重复执行不会产生第二次扣款或退款。
type Workflow struct {
	shows   ShowOps
	wallets WalletOps
	states  StateStore
	cfg     Config
	logger  logging.Logger
}

func New(shows ShowOps, wallets WalletOps, states StateStore, cfg Config, logger logging.Logger) *Workflow {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultConfig().StepTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig().InitialDelay
	}
	if logger == nil {
		logger = logging.ComponentLogger("workflow.reservation")
	}
	return &Workflow{shows: shows, wallets: wallets, states: states, cfg: cfg, logger: logger}
}

// Start 发起预订工作流
//
// 状态记录创建成功后流程在后台推进，调用方通过 GetState 观察进度。
// 同一 reservationId 重复发起返回 AlreadyStartedError。
func (w *Workflow) Start(ctx context.Context, req StartRequest) error {
	state := &SeatReservation{
		ReservationID: req.ReservationID,
		ShowID:        req.ShowID,
		SeatNumber:    req.SeatNumber,
		WalletID:      req.WalletID,
		Status:        StatusStarted,
	}
	if err := w.states.Create(ctx, state); err != nil {
		return err
	}

	go w.run(context.WithoutCancel(ctx), state)
	return nil
}

// Resume 从落盘状态继续推进一个未完结的工作流
//
// 进程重启后对 List 出来的非终态记录逐个调用。步骤的去重键与
// 首次执行一致，已经生效的操作会被聚合幂等吸收。
func (w *Workflow) Resume(ctx context.Context, reservationID string) error {
	state, err := w.states.Load(ctx, reservationID)
	if err != nil {
		return err
	}
	if state.Status.IsTerminal() {
		return nil
	}
	w.run(ctx, state)
	return nil
}

// GetState 查询工作流状态
func (w *Workflow) GetState(ctx context.Context, reservationID string) (*SeatReservation, error) {
	return w.states.Load(ctx, reservationID)
}

// run 状态机主循环，每轮推进一个步骤
//
// 步骤无法推进（重试耗尽且无法判定结果）时退出循环，状态停在
// 非终态，等待 Resume 再次驱动。
func (w *Workflow) run(ctx context.Context, state *SeatReservation) {
	for !state.Status.IsTerminal() {
		var advanced bool
		switch state.Status {
		case StatusStarted:
			advanced = w.stepReserve(ctx, state)
		case StatusSeatReserved:
			advanced = w.stepCharge(ctx, state)
		case StatusWalletCharged:
			advanced = w.stepConfirm(ctx, state)
		case StatusWalletChargeRejected, StatusWalletRefunded:
			advanced = w.stepCancel(ctx, state)
		default:
			w.logger.Error(ctx, "reservation workflow in unknown status",
				logging.String("reservation_id", state.ReservationID),
				logging.String("status", string(state.Status)))
			return
		}
		if !advanced {
			w.logger.Warn(ctx, "reservation workflow stalled, awaiting resume",
				logging.String("reservation_id", state.ReservationID),
				logging.String("status", string(state.Status)))
			return
		}
	}

	w.logger.Info(ctx, "reservation workflow finished",
		logging.String("reservation_id", state.ReservationID),
		logging.String("status", string(state.Status)))
}

func (w *Workflow) stepReserve(ctx context.Context, state *SeatReservation) bool {
	var reserved *cinema.SeatReserved
	outcome, err := retry.DoOutcome(ctx, func(ctx context.Context) error {
		var opErr error
		reserved, opErr = w.shows.ReserveSeat(ctx, state.ShowID, state.WalletID, state.ReservationID, state.SeatNumber)
		return opErr
	}, w.showRetryConfig())

	switch outcome {
	case retry.OutcomeSuccess:
		if reserved != nil {
			state.Price = reserved.Price
		}
		if state.Price == 0 {
			// 重复命令被吸收但本地没有价格：前一次执行在落盘前中断。
			// 无法扣款，放弃座位
			return w.compensateCancel(ctx, state)
		}
		return w.setStatus(ctx, state, StatusSeatReserved)
	case retry.OutcomeFailed:
		w.logger.Info(ctx, "seat reservation rejected",
			logging.String("reservation_id", state.ReservationID),
			logging.Error(err))
		return w.setStatus(ctx, state, StatusSeatReservationFailed)
	default:
		// 结果未知：座位可能已保留，取消以释放
		return w.compensateCancel(ctx, state)
	}
}

func (w *Workflow) stepCharge(ctx context.Context, state *SeatReservation) bool {
	// 去重键取 reservationId 本身：重试和重启后的重放都指向同一笔扣款
	var result wallet.WalletEvent
	outcome, err := retry.DoOutcome(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = w.wallets.Charge(ctx, state.WalletID, state.Price, state.ReservationID, state.ReservationID)
		return opErr
	}, w.walletRetryConfig())

	switch outcome {
	case retry.OutcomeSuccess:
		switch result.(type) {
		case wallet.WalletChargeRejected:
			return w.setStatus(ctx, state, StatusWalletChargeRejected)
		default:
			// WalletCharged，或重复命令被吸收（扣款早已入账）
			return w.setStatus(ctx, state, StatusWalletCharged)
		}
	case retry.OutcomeFailed:
		// 确定性业务失败（如钱包不存在）：无需退款，直接放弃座位
		w.logger.Error(ctx, "wallet charge failed",
			logging.String("reservation_id", state.ReservationID),
			logging.Error(err))
		return w.compensateCancel(ctx, state)
	default:
		// 结果未知：扣款可能已入账。先退款（费用不存在会被幂等
		// 吸收），再取消座位
		return w.compensateRefund(ctx, state)
	}
}

func (w *Workflow) stepConfirm(ctx context.Context, state *SeatReservation) bool {
	var result cinema.ShowEvent
	outcome, err := retry.DoOutcome(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = w.shows.ConfirmReservationPayment(ctx, state.ShowID, state.ReservationID)
		return opErr
	}, w.showRetryConfig())

	if outcome != retry.OutcomeSuccess {
		w.logger.Error(ctx, "confirm reservation payment did not complete",
			logging.String("reservation_id", state.ReservationID),
			logging.String("outcome", outcome.String()),
			logging.Error(err))
		return false
	}

	if _, lateConfirm := result.(cinema.CancelledReservationConfirmed); lateConfirm {
		// 预订在确认前被取消：钱已收、座位已失，退款后走失败分支
		return w.compensateRefund(ctx, state)
	}
	return w.setStatus(ctx, state, StatusCompleted)
}

func (w *Workflow) stepCancel(ctx context.Context, state *SeatReservation) bool {
	if !w.cancelSeat(ctx, state) {
		return false
	}
	return w.setStatus(ctx, state, StatusFailed)
}

// compensateRefund 退款补偿
//
// 退款去重键由 reservationId 派生，重复补偿只会退一次。
func (w *Workflow) compensateRefund(ctx context.Context, state *SeatReservation) bool {
	commandID := uuid.NewMD5(uuid.NameSpaceOID, []byte(state.ReservationID)).String()
	outcome, err := retry.DoOutcome(ctx, func(ctx context.Context) error {
		_, opErr := w.wallets.Refund(ctx, state.WalletID, state.ReservationID, commandID)
		return opErr
	}, w.walletRetryConfig())

	if outcome != retry.OutcomeSuccess {
		w.logger.Error(ctx, "refund compensation did not complete",
			logging.String("reservation_id", state.ReservationID),
			logging.String("outcome", outcome.String()),
			logging.Error(err))
		return false
	}
	return w.setStatus(ctx, state, StatusWalletRefunded)
}

// compensateCancel 取消座位并把工作流置为 Failed
func (w *Workflow) compensateCancel(ctx context.Context, state *SeatReservation) bool {
	if !w.cancelSeat(ctx, state) {
		return false
	}
	return w.setStatus(ctx, state, StatusFailed)
}

func (w *Workflow) cancelSeat(ctx context.Context, state *SeatReservation) bool {
	outcome, err := retry.DoOutcome(ctx, func(ctx context.Context) error {
		_, opErr := w.shows.CancelSeatReservation(ctx, state.ShowID, state.ReservationID)
		return opErr
	}, w.showRetryConfig())

	if outcome == retry.OutcomeSuccess {
		return true
	}
	if outcome == retry.OutcomeFailed && errors.Is(err, cinema.ErrReservationNotFound()) {
		// 座位从未保留成功，无需释放
		return true
	}

	w.logger.Error(ctx, "cancel seat reservation did not complete",
		logging.String("reservation_id", state.ReservationID),
		logging.String("outcome", outcome.String()),
		logging.Error(err))
	return false
}

func (w *Workflow) setStatus(ctx context.Context, state *SeatReservation, status Status) bool {
	state.Status = status
	if err := w.states.Update(ctx, state); err != nil {
		w.logger.Error(ctx, "persist workflow state failed",
			logging.String("reservation_id", state.ReservationID),
			logging.String("status", string(status)),
			logging.Error(err))
		return false
	}
	return true
}

func (w *Workflow) showRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:    w.cfg.MaxAttempts,
		InitialDelay:   w.cfg.InitialDelay,
		BackoffFactor:  2.0,
		MaxDelay:       time.Second,
		AttemptTimeout: w.cfg.StepTimeout,
		RetryIf: func(err error) bool {
			var showErr *cinema.ShowError
			return !errors.As(err, &showErr)
		},
	}
}

func (w *Workflow) walletRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:    w.cfg.MaxAttempts,
		InitialDelay:   w.cfg.InitialDelay,
		BackoffFactor:  2.0,
		MaxDelay:       time.Second,
		AttemptTimeout: w.cfg.StepTimeout,
		RetryIf: func(err error) bool {
			var walletErr *wallet.WalletError
			return !errors.As(err, &walletErr)
		},
	}
}
