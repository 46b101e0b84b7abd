package wallet

import "fmt"

// ErrorCode 钱包命令错误码
type ErrorCode string

const (
	ErrCodeWalletAlreadyExists    ErrorCode = "WALLET_ALREADY_EXISTS"
	ErrCodeWalletNotFound         ErrorCode = "WALLET_NOT_FOUND"
	ErrCodeDepositMustBePositive  ErrorCode = "DEPOSIT_LE_ZERO"
	ErrCodeExpenseNotFound        ErrorCode = "EXPENSE_NOT_FOUND"
	ErrCodeDuplicatedCommand      ErrorCode = "DUPLICATED_COMMAND"
	ErrCodeCorruptedState         ErrorCode = "CORRUPTED_STATE"
)

// WalletError 钱包命令错误
//
// 注意余额不足不在此列：扣款被拒绝是业务结果，
// 以 WalletChargeRejected 事件表达。
type WalletError struct {
	Code     ErrorCode
	Message  string
	WalletID string
}

func (e *WalletError) Error() string {
	if e.WalletID != "" {
		return fmt.Sprintf("%s: %s (wallet %s)", e.Code, e.Message, e.WalletID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is 实现 errors.Is 接口，基于错误码匹配
func (e *WalletError) Is(target error) bool {
	t, ok := target.(*WalletError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 哨兵错误（仅用于 errors.Is 比较，不应直接返回）
var (
	errWalletAlreadyExists   = &WalletError{Code: ErrCodeWalletAlreadyExists}
	errWalletNotFound        = &WalletError{Code: ErrCodeWalletNotFound}
	errDepositMustBePositive = &WalletError{Code: ErrCodeDepositMustBePositive}
	errExpenseNotFound       = &WalletError{Code: ErrCodeExpenseNotFound}
	errDuplicatedCommand     = &WalletError{Code: ErrCodeDuplicatedCommand}
	errCorruptedState        = &WalletError{Code: ErrCodeCorruptedState}
)

func ErrWalletAlreadyExists() *WalletError   { return errWalletAlreadyExists }
func ErrWalletNotFound() *WalletError        { return errWalletNotFound }
func ErrDepositMustBePositive() *WalletError { return errDepositMustBePositive }
func ErrExpenseNotFound() *WalletError       { return errExpenseNotFound }
func ErrDuplicatedCommand() *WalletError     { return errDuplicatedCommand }
func ErrCorruptedState() *WalletError        { return errCorruptedState }

func newWalletError(code ErrorCode, message, walletID string) *WalletError {
	return &WalletError{Code: code, Message: message, WalletID: walletID}
}
