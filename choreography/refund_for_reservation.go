package choreography

import (
	"context"
	"fmt"

	"boxoffice/cinema"
	"boxoffice/client"
	"boxoffice/eventing"
	"boxoffice/logging"
	"boxoffice/messaging"
	"boxoffice/reservation"
)

// RefundForReservation 迟到确认对账事件触发退款
//
// CancelledReservationConfirmed 意味着扣款在预订取消之后才落账，
// 这笔钱必须退回。退款去重键由 reservationId 派生，事件重复投递
// 不会退两次。
type RefundForReservation struct {
	wallets *client.WalletClient
	index   *reservation.Index
	logger  logging.Logger
}

func NewRefundForReservation(wallets *client.WalletClient, index *reservation.Index, logger logging.Logger) *RefundForReservation {
	if logger == nil {
		logger = logging.ComponentLogger("choreography.refund")
	}
	return &RefundForReservation{wallets: wallets, index: index, logger: logger}
}

func (r *RefundForReservation) GetEventTypes() []string {
	return []string{cinema.EventCancelledReservationConfirmed}
}
func (r *RefundForReservation) GetHandlerName() string { return "refund-for-reservation" }
func (r *RefundForReservation) Type() string           { return r.GetHandlerName() }

func (r *RefundForReservation) Handle(ctx context.Context, message messaging.IMessage) error {
	event, ok := eventing.AsEvent(message)
	if !ok {
		return fmt.Errorf("message is not an event: %T", message)
	}
	return r.HandleEvent(ctx, event)
}

func (r *RefundForReservation) HandleEvent(ctx context.Context, event eventing.IEvent) error {
	confirmed, ok := event.GetPayload().(cinema.CancelledReservationConfirmed)
	if !ok {
		return nil
	}

	entry, err := r.index.Get(ctx, confirmed.ReservationID)
	if err != nil {
		return fmt.Errorf("resolve reservation %s for refund: %w", confirmed.ReservationID, err)
	}

	r.logger.Info(ctx, "refunding late confirmed reservation",
		logging.String("reservation_id", confirmed.ReservationID),
		logging.String("wallet_id", entry.WalletID))

	_, err = r.wallets.Refund(ctx, entry.WalletID, confirmed.ReservationID, refundCommandID(confirmed.ReservationID))
	return err
}
