package choreography

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/cinema"
	"boxoffice/client"
	"boxoffice/eventing"
	"boxoffice/logging"
	"boxoffice/messaging"
	"boxoffice/patterns/retry"
	"boxoffice/wallet"
)

// ChargeForReservation 座位保留后发起扣款
//
// 扣款去重键由事件流位置派生，事件被重复投递时钱包只会入账一次。
// 钱包的业务错误不重试；传输类错误重试耗尽后登记到失败记录，
// 由失败处理反应器取消预订。
type ChargeForReservation struct {
	wallets  *client.WalletClient
	failures *ChargeFailureLog
	retryCfg retry.Config
	logger   logging.Logger
}

func NewChargeForReservation(wallets *client.WalletClient, failures *ChargeFailureLog, logger logging.Logger) *ChargeForReservation {
	if logger == nil {
		logger = logging.ComponentLogger("choreography.charge")
	}
	return &ChargeForReservation{
		wallets:  wallets,
		failures: failures,
		retryCfg: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  1 * time.Second,
			BackoffFactor: 1.0,
			RetryIf: func(err error) bool {
				var walletErr *wallet.WalletError
				return !errors.As(err, &walletErr)
			},
		},
		logger: logger,
	}
}

func (r *ChargeForReservation) GetEventTypes() []string { return []string{cinema.EventSeatReserved} }
func (r *ChargeForReservation) GetHandlerName() string  { return "charge-for-reservation" }
func (r *ChargeForReservation) Type() string            { return r.GetHandlerName() }

func (r *ChargeForReservation) Handle(ctx context.Context, message messaging.IMessage) error {
	event, ok := eventing.AsEvent(message)
	if !ok {
		return fmt.Errorf("message is not an event: %T", message)
	}
	return r.HandleEvent(ctx, event)
}

func (r *ChargeForReservation) HandleEvent(ctx context.Context, event eventing.IEvent) error {
	reserved, ok := event.GetPayload().(cinema.SeatReserved)
	if !ok {
		return nil
	}

	commandID := chargeCommandID(event.GetAggregateID(), event.GetVersion())

	outcome, err := retry.DoOutcome(ctx, func(ctx context.Context) error {
		_, chargeErr := r.wallets.Charge(ctx, reserved.WalletID, reserved.Price, reserved.ReservationID, commandID)
		return chargeErr
	}, r.retryCfg)

	if outcome == retry.OutcomeSuccess {
		return nil
	}

	// 确定性拒绝和重试耗尽走同一条路：登记失败，预订由下游取消
	return r.failures.Register(ctx, ChargeFailure{
		ReservationID: reserved.ReservationID,
		ShowID:        reserved.ShowID,
		WalletID:      reserved.WalletID,
		Amount:        reserved.Price,
		Reason:        err.Error(),
	})
}
