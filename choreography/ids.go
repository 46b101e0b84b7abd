// Package choreography 以事件反应器的方式协调座位预订
//
// 四个反应器各自订阅一类事件并对聚合发出命令，彼此不知晓对方的
// 存在，流程完全由事件链驱动：
//
//	SeatReserved -> ChargeWallet
//	WalletCharged / WalletChargeRejected -> Confirm / Cancel
//	WalletChargeFailureOccurred -> Cancel
//	CancelledReservationConfirmed -> Refund
package choreography

import (
	"fmt"

	"github.com/google/uuid"
)

// chargeCommandID 从事件流位置派生扣款去重键
//
// 同一事件被重复投递时派生出同一个键，钱包去重环保证只入账一次。
func chargeCommandID(aggregateID string, version uint64) string {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", aggregateID, version))).String()
}

// refundCommandID 从 reservationId 派生退款去重键
func refundCommandID(reservationID string) string {
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(reservationID)).String()
}
