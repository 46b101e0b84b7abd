// Package app 装配完整的售票应用
//
// 同步命令总线承载写路径（幂等、聚合锁、验证三层中间件），
// 协调方式二选一：编排工作流或事件反应器。事件总线仅在反应器
// 模式下装配，传输层可选内存、Redis Streams 或 NATS JetStream。
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"boxoffice/choreography"
	"boxoffice/cinema"
	"boxoffice/client"
	"boxoffice/eventing/bus"
	"boxoffice/eventing/registry"
	"boxoffice/eventing/store"
	"boxoffice/logging"
	"boxoffice/messaging"
	"boxoffice/messaging/command"
	"boxoffice/messaging/command/middleware"
	"boxoffice/messaging/transport/memory"
	"boxoffice/messaging/transport/natsjetstream"
	"boxoffice/messaging/transport/redisstreams"
	synctransport "boxoffice/messaging/transport/sync"
	"boxoffice/reservation"
	"boxoffice/wallet"
	"boxoffice/workflow"
)

// Application 售票应用
type Application struct {
	cfg    Config
	logger logging.Logger

	cmdTransport   *synctransport.SyncTransport
	eventTransport messaging.Transport
	commandBus     *command.CommandBus
	eventBus       bus.IEventBus
	idempotency    *middleware.IdempotencyMiddleware

	shows     *client.ShowClient
	wallets   *client.WalletClient
	showSvc   *cinema.ShowService
	walletSvc *wallet.WalletService

	// 编排模式
	states workflow.StateStore
	flow   *workflow.Workflow

	// 反应器模式
	index    *reservation.Index
	failures *choreography.ChargeFailureLog
}

// New 按配置装配应用
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	defaults := DefaultConfig()
	if cfg.EventTransport == "" {
		cfg.EventTransport = defaults.EventTransport
	}
	if cfg.EventQueueSize <= 0 {
		cfg.EventQueueSize = defaults.EventQueueSize
	}
	if cfg.EventWorkers <= 0 {
		cfg.EventWorkers = defaults.EventWorkers
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaults.IdempotencyTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.ComponentLogger("app")
	}

	a := &Application{cfg: cfg, logger: logger}

	// 写路径：同步传输 + 幂等/聚合锁/验证中间件
	a.cmdTransport = synctransport.NewSyncTransport()
	commandMessageBus := messaging.NewMessageBus(a.cmdTransport)
	a.idempotency = middleware.NewIdempotencyMiddleware(&middleware.IdempotencyConfig{TTL: cfg.IdempotencyTTL})
	commandMessageBus.Use(a.idempotency)
	commandMessageBus.Use(middleware.NewAggregateLockMiddleware())
	commandMessageBus.Use(middleware.NewValidationMiddleware())
	a.commandBus = command.NewCommandBus(commandMessageBus, logger)

	// 事件路径仅反应器模式需要
	if cfg.Mode == ModeChoreography {
		eventTransport, err := newEventTransport(cfg)
		if err != nil {
			return nil, err
		}
		a.eventTransport = eventTransport
		a.eventBus = bus.NewEventBus(messaging.NewMessageBus(eventTransport))
	}

	a.showSvc = cinema.NewShowService(store.NewMemoryEventStore(), a.eventBus, nil)
	if err := a.showSvc.RegisterHandlers(a.commandBus); err != nil {
		return nil, err
	}
	a.walletSvc = wallet.NewWalletService(store.NewMemoryEventStore(), a.eventBus, nil)
	if err := a.walletSvc.RegisterHandlers(a.commandBus); err != nil {
		return nil, err
	}

	a.shows = client.NewShowClient(a.commandBus)
	a.wallets = client.NewWalletClient(a.commandBus)

	switch cfg.Mode {
	case ModeOrchestration:
		if cfg.WorkflowDB != nil {
			sqlStates := workflow.NewSQLStateStore(cfg.WorkflowDB, "")
			if err := sqlStates.EnsureTable(context.Background()); err != nil {
				return nil, fmt.Errorf("prepare workflow state table: %w", err)
			}
			a.states = sqlStates
		} else {
			a.states = workflow.NewMemoryStateStore()
		}
		a.flow = workflow.New(a.shows, a.wallets, a.states, cfg.Workflow, nil)

	case ModeChoreography:
		a.index = reservation.NewIndex(reservation.NewMemoryStore(), nil)
		a.failures = choreography.NewChargeFailureLog(a.eventBus, nil)

		ctx := context.Background()
		// 索引必须先于扣款反应器消费 SeatReserved
		subscriptions := []bus.IEventHandler{
			a.index,
			choreography.NewChargeForReservation(a.wallets, a.failures, nil),
			choreography.NewCompleteReservation(a.shows, a.index, nil),
			choreography.NewHandleWalletFailures(a.shows, nil),
			choreography.NewRefundForReservation(a.wallets, a.index, nil),
		}
		for _, handler := range subscriptions {
			if err := a.eventBus.SubscribeHandler(ctx, handler); err != nil {
				return nil, fmt.Errorf("subscribe %s: %w", handler.GetHandlerName(), err)
			}
		}
	}

	return a, nil
}

// newEventTransport 按配置构建事件传输层
func newEventTransport(cfg Config) (messaging.Transport, error) {
	reg := registry.NewPayloadRegistry()
	cinema.RegisterEventPayloads(reg)
	wallet.RegisterEventPayloads(reg)
	choreography.RegisterEventPayloads(reg)

	switch cfg.EventTransport {
	case EventTransportRedis:
		redisCfg := cfg.Redis
		redisCfg.DecodePayload = reg.Decode
		return redisstreams.NewTransport(redisCfg)
	case EventTransportNATS:
		natsCfg := cfg.NATS
		natsCfg.DecodePayload = reg.Decode
		return natsjetstream.NewTransport(natsCfg), nil
	default:
		return memory.NewMemoryTransport(cfg.EventQueueSize, cfg.EventWorkers), nil
	}
}

// Start 启动传输层；编排模式下恢复未完结的工作流
func (a *Application) Start(ctx context.Context) error {
	if err := a.cmdTransport.Start(ctx); err != nil {
		return fmt.Errorf("start command transport: %w", err)
	}
	if a.eventTransport != nil {
		if err := a.eventTransport.Start(ctx); err != nil {
			return fmt.Errorf("start event transport: %w", err)
		}
	}

	if a.flow != nil {
		states, err := a.states.List(ctx)
		if err != nil {
			return fmt.Errorf("list workflow states: %w", err)
		}
		for _, state := range states {
			if state.Status.IsTerminal() {
				continue
			}
			reservationID := state.ReservationID
			a.logger.Info(ctx, "resuming reservation workflow",
				logging.String("reservation_id", reservationID),
				logging.String("status", string(state.Status)))
			go func() {
				if err := a.flow.Resume(context.WithoutCancel(ctx), reservationID); err != nil {
					a.logger.Error(ctx, "resume reservation workflow failed",
						logging.String("reservation_id", reservationID),
						logging.Error(err))
				}
			}()
		}
	}

	return nil
}

// Close 释放资源
func (a *Application) Close() error {
	a.idempotency.Stop()

	var errs []error
	if a.eventTransport != nil {
		if err := a.eventTransport.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.cmdTransport.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CreateShow 创建场次
func (a *Application) CreateShow(ctx context.Context, showID, title string, maxSeats int) error {
	_, err := a.shows.CreateShow(ctx, showID, title, maxSeats)
	return err
}

// CreateWallet 创建钱包
func (a *Application) CreateWallet(ctx context.Context, walletID string, initialBalance int64) error {
	_, err := a.wallets.CreateWallet(ctx, walletID, initialBalance)
	return err
}

// DepositFunds 充值
func (a *Application) DepositFunds(ctx context.Context, walletID string, amount int64) error {
	_, err := a.wallets.Deposit(ctx, walletID, amount, uuid.NewString())
	return err
}

// GetSeatStatus 查询座位状态
func (a *Application) GetSeatStatus(ctx context.Context, showID string, seatNumber int) (cinema.SeatStatus, error) {
	return a.showSvc.GetSeatStatus(ctx, showID, seatNumber)
}

// GetWalletBalance 查询余额
func (a *Application) GetWalletBalance(ctx context.Context, walletID string) (int64, error) {
	return a.walletSvc.GetBalance(ctx, walletID)
}

// StartReservation 发起一次预订
//
// 编排模式下创建工作流；反应器模式下发出 ReserveSeat，后续由
// 事件链推进。两种模式下同一 reservationId 重复发起都不会产生
// 第二次预订，并返回 AlreadyStartedError 供调用方区分。
func (a *Application) StartReservation(ctx context.Context, req workflow.StartRequest) error {
	if a.flow != nil {
		return a.flow.Start(ctx, req)
	}

	reserved, err := a.shows.ReserveSeat(ctx, req.ShowID, req.WalletID, req.ReservationID, req.SeatNumber)
	if err != nil {
		return err
	}
	if reserved == nil {
		// 重复的 reservationId 被聚合幂等吸收
		return &workflow.AlreadyStartedError{ReservationID: req.ReservationID}
	}
	return nil
}

// GetReservationState 查询预订工作流状态
//
// 仅编排模式有工作流实例；反应器模式没有集中状态，一律 NotFound。
func (a *Application) GetReservationState(ctx context.Context, reservationID string) (*workflow.SeatReservation, error) {
	if a.flow == nil {
		return nil, &workflow.NotFoundError{ReservationID: reservationID}
	}
	return a.flow.GetState(ctx, reservationID)
}

// ChargeFailures 反应器模式下已登记的扣款失败数
func (a *Application) ChargeFailures() int {
	if a.failures == nil {
		return 0
	}
	return a.failures.Count()
}
