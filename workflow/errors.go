package workflow

import "fmt"

// AlreadyStartedError 同一 reservationId 的工作流已存在
//
// Start 是预订的唯一入口，重复的 Start 必须被拒绝而不是
// 再跑一遍流程。
type AlreadyStartedError struct {
	ReservationID string
}

func (e *AlreadyStartedError) Error() string {
	return fmt.Sprintf("reservation workflow %s already started", e.ReservationID)
}

func (e *AlreadyStartedError) Is(target error) bool {
	_, ok := target.(*AlreadyStartedError)
	return ok
}

// ErrAlreadyStarted 哨兵错误，用于 errors.Is 比较
func ErrAlreadyStarted() *AlreadyStartedError { return &AlreadyStartedError{} }

// NotFoundError 不存在该 reservationId 的工作流
type NotFoundError struct {
	ReservationID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reservation workflow %s not found", e.ReservationID)
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// ErrNotFound 哨兵错误，用于 errors.Is 比较
func ErrNotFound() *NotFoundError { return &NotFoundError{} }
