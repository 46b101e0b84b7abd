package eventing

import "fmt"

// EventStoreError 事件存储错误基类
type EventStoreError struct {
	Code    string
	Message string
	Cause   error
}

func (e *EventStoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EventStoreError) Unwrap() error { return e.Cause }

// Is 实现 errors.Is 接口，基于错误码匹配
func (e *EventStoreError) Is(target error) bool {
	t, ok := target.(*EventStoreError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrAggregateNotFound = &EventStoreError{Code: "AGGREGATE_NOT_FOUND", Message: "aggregate not found"}
	ErrInvalidEvent      = &EventStoreError{Code: "INVALID_EVENT", Message: "invalid event"}
	ErrStoreFailed       = &EventStoreError{Code: "STORE_FAILED", Message: "event store operation failed"}
)

// ConcurrencyError 并发冲突错误
//
// ConcurrencyError 本身就是业务错误的最终形态，不包裹下层错误；
// 调用方通过 errors.As 识别并发冲突。
type ConcurrencyError struct {
	AggregateID     string
	ExpectedVersion uint64
	ActualVersion   uint64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict: aggregate %s expected version %d, actual version %d",
		e.AggregateID, e.ExpectedVersion, e.ActualVersion)
}

func NewConcurrencyError(aggregateID string, expected, actual uint64) *ConcurrencyError {
	return &ConcurrencyError{AggregateID: aggregateID, ExpectedVersion: expected, ActualVersion: actual}
}
