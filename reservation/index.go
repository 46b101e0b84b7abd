package reservation

import (
	"context"
	"fmt"

	"boxoffice/cinema"
	"boxoffice/eventing"
	"boxoffice/logging"
	"boxoffice/messaging"
)

// Index 订阅场次事件并维护预订索引
//
// SeatReserved 写入条目，SeatReservationPaid 清理条目。取消不清理：
// 退款反应器在 CancelledReservationConfirmed 之后仍要查到钱包归属。
// 写入必须先于扣款反应器看到事件，订阅顺序由装配层保证。
type Index struct {
	store  Store
	logger logging.Logger
}

func NewIndex(store Store, logger logging.Logger) *Index {
	if logger == nil {
		logger = logging.ComponentLogger("reservation.index")
	}
	return &Index{store: store, logger: logger}
}

// Get 查询预订归属
func (i *Index) Get(ctx context.Context, reservationID string) (Entry, error) {
	return i.store.Get(ctx, reservationID)
}

func (i *Index) GetEventTypes() []string {
	return []string{cinema.EventSeatReserved, cinema.EventSeatReservationPaid}
}

func (i *Index) GetHandlerName() string { return "reservation-index" }

func (i *Index) Type() string { return i.GetHandlerName() }

func (i *Index) Handle(ctx context.Context, message messaging.IMessage) error {
	event, ok := eventing.AsEvent(message)
	if !ok {
		return fmt.Errorf("message is not an event: %T", message)
	}
	return i.HandleEvent(ctx, event)
}

func (i *Index) HandleEvent(ctx context.Context, event eventing.IEvent) error {
	switch payload := event.GetPayload().(type) {
	case cinema.SeatReserved:
		entry := Entry{
			ReservationID: payload.ReservationID,
			ShowID:        payload.ShowID,
			WalletID:      payload.WalletID,
			Price:         payload.Price,
		}
		if err := i.store.Put(ctx, entry); err != nil {
			return fmt.Errorf("index reservation %s: %w", payload.ReservationID, err)
		}
		i.logger.Debug(ctx, "reservation indexed",
			logging.String("reservation_id", payload.ReservationID),
			logging.String("show_id", payload.ShowID))
		return nil
	case cinema.SeatReservationPaid:
		if err := i.store.Delete(ctx, payload.ReservationID); err != nil {
			return fmt.Errorf("remove reservation %s from index: %w", payload.ReservationID, err)
		}
		return nil
	default:
		// 不属于本索引的事件类型，忽略
		return nil
	}
}
