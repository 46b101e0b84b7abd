package cinema

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

// ShowService 场次聚合的应用服务
//
// 按事件溯源方式工作：从事件存储重放聚合，Process 决策，
// Append 持久化，随后对外发布事件。写路径依赖聚合锁中间件
// 保证单写者，乐观并发检查作为最后防线。
type ShowService struct {
	store  store.IEventStore
	events bus.IEventBus // 可为 nil（不对外发布）
	logger logging.Logger
}

func NewShowService(eventStore store.IEventStore, eventBus bus.IEventBus, logger logging.Logger) *ShowService {
	if logger == nil {
		logger = logging.ComponentLogger("cinema.service")
	}
	return &ShowService{store: eventStore, events: eventBus, logger: logger}
}

// RegisterHandlers 在命令总线上注册场次命令处理器
func (s *ShowService) RegisterHandlers(commandBus *command.CommandBus) error {
	handlers := map[string]command.CommandHandlerFunc{
		CommandCreateShow:                s.handleCreateShow,
		CommandReserveSeat:               s.handleReserveSeat,
		CommandConfirmReservationPayment: s.handleConfirmPayment,
		CommandCancelSeatReservation:     s.handleCancelReservation,
	}
	for commandType, handler := range handlers {
		if err := commandBus.RegisterHandler(commandType, handler); err != nil {
			return fmt.Errorf("register %s handler: %w", commandType, err)
		}
	}
	return nil
}

func (s *ShowService) handleCreateShow(ctx context.Context, cmd *command.Command) error {
	payload, ok := cmd.GetPayload().(CreateShow)
	if !ok {
		return command.NewInvalidCommandError(CommandCreateShow, fmt.Sprintf("unexpected payload %T", cmd.GetPayload()))
	}
	return s.execute(ctx, cmd, payload)
}

func (s *ShowService) handleReserveSeat(ctx context.Context, cmd *command.Command) error {
	payload, ok := cmd.GetPayload().(ReserveSeat)
	if !ok {
		return command.NewInvalidCommandError(CommandReserveSeat, fmt.Sprintf("unexpected payload %T", cmd.GetPayload()))
	}
	return s.execute(ctx, cmd, payload)
}

func (s *ShowService) handleConfirmPayment(ctx context.Context, cmd *command.Command) error {
	payload, ok := cmd.GetPayload().(ConfirmReservationPayment)
	if !ok {
		return command.NewInvalidCommandError(CommandConfirmReservationPayment, fmt.Sprintf("unexpected payload %T", cmd.GetPayload()))
	}
	return s.execute(ctx, cmd, payload)
}

func (s *ShowService) handleCancelReservation(ctx context.Context, cmd *command.Command) error {
	payload, ok := cmd.GetPayload().(CancelSeatReservation)
	if !ok {
		return command.NewInvalidCommandError(CommandCancelSeatReservation, fmt.Sprintf("unexpected payload %T", cmd.GetPayload()))
	}
	return s.execute(ctx, cmd, payload)
}

// execute 加载-决策-追加-发布
//
// 重复命令（DUPLICATED_COMMAND）按幂等成功处理：不追加、不发布、
// 不回传结果。
func (s *ShowService) execute(ctx context.Context, cmd *command.Command, domainCmd ShowCommand) error {
	showID := cmd.GetAggregateID()

	stored, err := s.store.LoadEvents(ctx, showID, 0)
	if err != nil {
		return fmt.Errorf("load show %s: %w", showID, err)
	}

	var event ShowEvent
	if len(stored) == 0 {
		createCmd, isCreate := domainCmd.(CreateShow)
		if !isCreate {
			return newShowError(ErrCodeShowNotFound, "show not found", showID)
		}
		event, err = NewShowCreated(showID, createCmd)
	} else {
		var show *Show
		show, err = rehydrateShow(showID, stored)
		if err != nil {
			return err
		}
		event, err = show.Process(domainCmd)
	}

	if err != nil {
		if errors.Is(err, ErrDuplicatedCommand()) {
			s.logger.Debug(ctx, "duplicated show command ignored",
				logging.String("show_id", showID),
				logging.String("command_type", cmd.GetCommandType()))
			return nil
		}
		return err
	}

	version := uint64(len(stored))
	envelope := eventing.NewEvent(showID, AggregateType, event.EventType(), version+1, event)
	if err := s.store.AppendEvents(ctx, showID, []*eventing.Event{envelope}, version); err != nil {
		return fmt.Errorf("append show event: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishEvent(ctx, envelope); err != nil {
			// 事件已持久化，发布失败只记录；下游依赖至少一次投递时
			// 应使用带重放能力的传输
			s.logger.Warn(ctx, "publish show event failed",
				logging.String("show_id", showID),
				logging.String("event_type", event.EventType()),
				logging.Error(err))
		}
	}

	cmd.SetResult(event)
	return nil
}

// GetShow 重放事件流，返回场次当前状态
func (s *ShowService) GetShow(ctx context.Context, showID string) (*Show, error) {
	stored, err := s.store.LoadEvents(ctx, showID, 0)
	if err != nil {
		return nil, fmt.Errorf("load show %s: %w", showID, err)
	}
	if len(stored) == 0 {
		return nil, newShowError(ErrCodeShowNotFound, "show not found", showID)
	}
	return rehydrateShow(showID, stored)
}

// GetSeatStatus 查询座位状态
func (s *ShowService) GetSeatStatus(ctx context.Context, showID string, seatNumber int) (SeatStatus, error) {
	show, err := s.GetShow(ctx, showID)
	if err != nil {
		return "", err
	}
	seat, ok := show.GetSeat(seatNumber)
	if !ok {
		return "", newShowError(ErrCodeSeatNotExists, fmt.Sprintf("seat %d does not exist", seatNumber), showID)
	}
	return seat.Status, nil
}

// rehydrateShow 从事件流重建聚合
func rehydrateShow(showID string, stored []*eventing.Event) (*Show, error) {
	first, ok := stored[0].GetPayload().(ShowCreated)
	if !ok {
		return nil, newShowError(ErrCodeCorruptedState,
			fmt.Sprintf("first event is %T, expected ShowCreated", stored[0].GetPayload()), showID)
	}
	show := NewShow(first)
	for _, envelope := range stored[1:] {
		event, ok := envelope.GetPayload().(ShowEvent)
		if !ok {
			return nil, newShowError(ErrCodeCorruptedState,
				fmt.Sprintf("unexpected event payload %T", envelope.GetPayload()), showID)
		}
		if err := show.Apply(event); err != nil {
			return nil, err
		}
	}
	return show, nil
}
