package cinema

import "fmt"

// ErrorCode 场次命令错误码
type ErrorCode string

const (
	ErrCodeShowAlreadyExists              ErrorCode = "SHOW_ALREADY_EXISTS"
	ErrCodeShowNotFound                   ErrorCode = "SHOW_NOT_FOUND"
	ErrCodeTooManySeats                   ErrorCode = "TOO_MANY_SEATS"
	ErrCodeSeatNotExists                  ErrorCode = "SEAT_NOT_EXISTS"
	ErrCodeSeatNotAvailable               ErrorCode = "SEAT_NOT_AVAILABLE"
	ErrCodeReservationNotFound            ErrorCode = "RESERVATION_NOT_FOUND"
	ErrCodeCancellingConfirmedReservation ErrorCode = "CANCELLING_CONFIRMED_RESERVATION"
	ErrCodeDuplicatedCommand              ErrorCode = "DUPLICATED_COMMAND"
	ErrCodeCorruptedState                 ErrorCode = "CORRUPTED_STATE"
)

// ShowError 场次命令错误
//
// 命令被业务规则确定性拒绝时返回；与超时/传输类错误区分，
// 调用方不应对该类错误重试。
type ShowError struct {
	Code          ErrorCode
	Message       string
	ShowID        string
	ReservationID string
}

func (e *ShowError) Error() string {
	if e.ShowID != "" {
		return fmt.Sprintf("%s: %s (show %s)", e.Code, e.Message, e.ShowID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is 实现 errors.Is 接口，基于错误码匹配
func (e *ShowError) Is(target error) bool {
	t, ok := target.(*ShowError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 哨兵错误（仅用于 errors.Is 比较，不应直接返回）
var (
	errShowAlreadyExists              = &ShowError{Code: ErrCodeShowAlreadyExists}
	errShowNotFound                   = &ShowError{Code: ErrCodeShowNotFound}
	errTooManySeats                   = &ShowError{Code: ErrCodeTooManySeats}
	errSeatNotExists                  = &ShowError{Code: ErrCodeSeatNotExists}
	errSeatNotAvailable               = &ShowError{Code: ErrCodeSeatNotAvailable}
	errReservationNotFound            = &ShowError{Code: ErrCodeReservationNotFound}
	errCancellingConfirmedReservation = &ShowError{Code: ErrCodeCancellingConfirmedReservation}
	errDuplicatedCommand              = &ShowError{Code: ErrCodeDuplicatedCommand}
	errCorruptedState                 = &ShowError{Code: ErrCodeCorruptedState}
)

func ErrShowAlreadyExists() *ShowError { return errShowAlreadyExists }
func ErrShowNotFound() *ShowError      { return errShowNotFound }
func ErrTooManySeats() *ShowError      { return errTooManySeats }
func ErrSeatNotExists() *ShowError     { return errSeatNotExists }
func ErrSeatNotAvailable() *ShowError  { return errSeatNotAvailable }
func ErrReservationNotFound() *ShowError {
	return errReservationNotFound
}
func ErrCancellingConfirmedReservation() *ShowError {
	return errCancellingConfirmedReservation
}
func ErrDuplicatedCommand() *ShowError { return errDuplicatedCommand }
func ErrCorruptedState() *ShowError    { return errCorruptedState }

func newShowError(code ErrorCode, message, showID string) *ShowError {
	return &ShowError{Code: code, Message: message, ShowID: showID}
}
