// Package client 提供面向命令总线的类型化客户端
//
// 客户端负责把类型化的领域命令包装成总线消息并读回结果事件。
// 结果为 nil 表示命令被幂等吸收（重复命令或等价的无操作）。
package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"boxoffice/cinema"
	"boxoffice/messaging/command"
)

// ShowClient 场次聚合的命令客户端
type ShowClient struct {
	bus *command.CommandBus
}

func NewShowClient(bus *command.CommandBus) *ShowClient {
	return &ShowClient{bus: bus}
}

// CreateShow 创建场次
func (c *ShowClient) CreateShow(ctx context.Context, showID, title string, maxSeats int) (cinema.ShowCreated, error) {
	result, err := c.dispatch(ctx, uuid.NewString(), cinema.CommandCreateShow, showID,
		cinema.CreateShow{Title: title, MaxSeats: maxSeats})
	if err != nil {
		return cinema.ShowCreated{}, err
	}
	created, ok := result.(cinema.ShowCreated)
	if !ok {
		return cinema.ShowCreated{}, fmt.Errorf("unexpected create show result %T", result)
	}
	return created, nil
}

// ReserveSeat 预订座位
func (c *ShowClient) ReserveSeat(ctx context.Context, showID, walletID, reservationID string, seatNumber int) (*cinema.SeatReserved, error) {
	result, err := c.dispatch(ctx, uuid.NewString(), cinema.CommandReserveSeat, showID,
		cinema.ReserveSeat{WalletID: walletID, ReservationID: reservationID, SeatNumber: seatNumber})
	if err != nil {
		return nil, err
	}
	if result == nil {
		// 重复的 reservationId，命令被幂等吸收
		return nil, nil
	}
	reserved, ok := result.(cinema.SeatReserved)
	if !ok {
		return nil, fmt.Errorf("unexpected reserve seat result %T", result)
	}
	return &reserved, nil
}

// ConfirmReservationPayment 确认预订已支付
//
// 结果可能是 SeatReservationPaid，也可能是迟到确认产生的
// CancelledReservationConfirmed。
func (c *ShowClient) ConfirmReservationPayment(ctx context.Context, showID, reservationID string) (cinema.ShowEvent, error) {
	return c.dispatchEvent(ctx, cinema.CommandConfirmReservationPayment, showID,
		cinema.ConfirmReservationPayment{ReservationID: reservationID})
}

// CancelSeatReservation 取消预订，释放座位
func (c *ShowClient) CancelSeatReservation(ctx context.Context, showID, reservationID string) (cinema.ShowEvent, error) {
	return c.dispatchEvent(ctx, cinema.CommandCancelSeatReservation, showID,
		cinema.CancelSeatReservation{ReservationID: reservationID})
}

func (c *ShowClient) dispatch(ctx context.Context, messageID, commandType, showID string, payload cinema.ShowCommand) (interface{}, error) {
	cmd := command.NewCommand(messageID, commandType, showID, cinema.AggregateType, payload)
	if err := c.bus.Dispatch(ctx, cmd); err != nil {
		return nil, err
	}
	return cmd.Result(), nil
}

func (c *ShowClient) dispatchEvent(ctx context.Context, commandType, showID string, payload cinema.ShowCommand) (cinema.ShowEvent, error) {
	result, err := c.dispatch(ctx, uuid.NewString(), commandType, showID, payload)
	if err != nil || result == nil {
		return nil, err
	}
	event, ok := result.(cinema.ShowEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected show command result %T", result)
	}
	return event, nil
}
