package choreography

import (
	"context"
	"fmt"

	"boxoffice/client"
	"boxoffice/eventing"
	"boxoffice/logging"
	"boxoffice/messaging"
)

// HandleWalletFailures 扣款彻底失败后取消预订
type HandleWalletFailures struct {
	shows  *client.ShowClient
	logger logging.Logger
}

func NewHandleWalletFailures(shows *client.ShowClient, logger logging.Logger) *HandleWalletFailures {
	if logger == nil {
		logger = logging.ComponentLogger("choreography.failures-handler")
	}
	return &HandleWalletFailures{shows: shows, logger: logger}
}

func (r *HandleWalletFailures) GetEventTypes() []string {
	return []string{EventWalletChargeFailureOccurred}
}
func (r *HandleWalletFailures) GetHandlerName() string { return "handle-wallet-failures" }
func (r *HandleWalletFailures) Type() string           { return r.GetHandlerName() }

func (r *HandleWalletFailures) Handle(ctx context.Context, message messaging.IMessage) error {
	event, ok := eventing.AsEvent(message)
	if !ok {
		return fmt.Errorf("message is not an event: %T", message)
	}
	return r.HandleEvent(ctx, event)
}

func (r *HandleWalletFailures) HandleEvent(ctx context.Context, event eventing.IEvent) error {
	failure, ok := event.GetPayload().(ChargeFailure)
	if !ok {
		return nil
	}

	r.logger.Info(ctx, "cancelling reservation after charge failure",
		logging.String("reservation_id", failure.ReservationID),
		logging.String("show_id", failure.ShowID))

	_, err := r.shows.CancelSeatReservation(ctx, failure.ShowID, failure.ReservationID)
	return err
}
