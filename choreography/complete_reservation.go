package choreography

import (
	"context"
	"fmt"
	"time"

	"boxoffice/client"
	"boxoffice/eventing"
	"boxoffice/logging"
	"boxoffice/messaging"
	"boxoffice/patterns/retry"
	"boxoffice/reservation"
	"boxoffice/wallet"
)

// CompleteReservation 按扣款结果完结预订
//
// WalletCharged 确认预订，WalletChargeRejected 取消预订。钱包事件
// 只携带 expenseId（等于 reservationId），场次归属从预订索引找回；
// 索引由另一订阅维护，这里带小步重试吸收订阅间的时序抖动。
type CompleteReservation struct {
	shows    *client.ShowClient
	index    *reservation.Index
	indexCfg retry.Config
	logger   logging.Logger
}

func NewCompleteReservation(shows *client.ShowClient, index *reservation.Index, logger logging.Logger) *CompleteReservation {
	if logger == nil {
		logger = logging.ComponentLogger("choreography.complete")
	}
	return &CompleteReservation{
		shows: shows,
		index: index,
		indexCfg: retry.Config{
			MaxAttempts:   5,
			InitialDelay:  20 * time.Millisecond,
			BackoffFactor: 2.0,
			MaxDelay:      500 * time.Millisecond,
		},
		logger: logger,
	}
}

func (r *CompleteReservation) GetEventTypes() []string {
	return []string{wallet.EventWalletCharged, wallet.EventWalletChargeRejected}
}
func (r *CompleteReservation) GetHandlerName() string { return "complete-reservation" }
func (r *CompleteReservation) Type() string           { return r.GetHandlerName() }

func (r *CompleteReservation) Handle(ctx context.Context, message messaging.IMessage) error {
	event, ok := eventing.AsEvent(message)
	if !ok {
		return fmt.Errorf("message is not an event: %T", message)
	}
	return r.HandleEvent(ctx, event)
}

func (r *CompleteReservation) HandleEvent(ctx context.Context, event eventing.IEvent) error {
	switch payload := event.GetPayload().(type) {
	case wallet.WalletCharged:
		entry, err := r.lookup(ctx, payload.ExpenseID)
		if err != nil {
			return err
		}
		_, err = r.shows.ConfirmReservationPayment(ctx, entry.ShowID, entry.ReservationID)
		return err
	case wallet.WalletChargeRejected:
		entry, err := r.lookup(ctx, payload.ExpenseID)
		if err != nil {
			return err
		}
		_, err = r.shows.CancelSeatReservation(ctx, entry.ShowID, entry.ReservationID)
		return err
	default:
		return nil
	}
}

func (r *CompleteReservation) lookup(ctx context.Context, reservationID string) (reservation.Entry, error) {
	var entry reservation.Entry
	err := retry.Do(ctx, func(ctx context.Context) error {
		var lookupErr error
		entry, lookupErr = r.index.Get(ctx, reservationID)
		return lookupErr
	}, r.indexCfg)
	if err != nil {
		return reservation.Entry{}, fmt.Errorf("resolve reservation %s: %w", reservationID, err)
	}
	return entry, nil
}
