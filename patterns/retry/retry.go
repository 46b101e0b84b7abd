// Package retry 提供带退避的重试组合子
package retry

import (
	"context"
	"time"
)

// Operation 可重试的操作函数类型
type Operation func(ctx context.Context) error

// OperationWithInfo 携带当前尝试序号（从 1 开始）的操作函数类型
type OperationWithInfo func(ctx context.Context, attempt int) error

// Config 重试配置
type Config struct {
	MaxAttempts    int           // 最大尝试次数（包括首次）
	InitialDelay   time.Duration // 初始退避延迟
	BackoffFactor  float64       // 退避倍数（指数退避）
	MaxDelay       time.Duration // 最大延迟
	AttemptTimeout time.Duration // 单次尝试的超时（0 表示不限制）

	// RetryIf 判定错误是否可重试；nil 表示所有错误都重试。
	// 返回 false 的错误视为确定性失败，立即终止重试。
	RetryIf func(error) bool
}

// DefaultConfig 返回默认配置
//
// 默认值：
//   - MaxAttempts: 2（1次初始 + 1次重试）
//   - InitialDelay: 2ms
//   - BackoffFactor: 2.0（指数退避）
//   - MaxDelay: 1s
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   2,
		InitialDelay:  2 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      1 * time.Second,
	}
}

// Outcome 重试结束后的结果分类
type Outcome int

const (
	// OutcomeSuccess 某次尝试成功
	OutcomeSuccess Outcome = iota

	// OutcomeFailed 确定性失败（RetryIf 判定不可重试），操作未产生影响
	OutcomeFailed

	// OutcomeUnknown 尝试次数耗尽，最后一次错误是超时/传输类错误，
	// 无法判断操作是否已经生效
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Do 执行带重试的操作
//
// 返回最后一次执行的错误（所有尝试都失败时）；任意一次成功返回 nil。
// RetryIf 判定不可重试的错误会立即返回。
func Do(ctx context.Context, op Operation, cfg Config) error {
	_, err := DoOutcome(ctx, op, cfg)
	return err
}

// DoWithInfo 执行带重试的操作，向操作传入当前尝试序号
func DoWithInfo(ctx context.Context, op OperationWithInfo, cfg Config) error {
	attempt := 0
	return Do(ctx, func(ctx context.Context) error {
		attempt++
		return op(ctx, attempt)
	}, cfg)
}

// DoOutcome 执行带重试的操作，并区分三种结束状态
//
// 调用方据此路由补偿逻辑：
//   - OutcomeSuccess: 继续正常流程
//   - OutcomeFailed: 操作被确定性拒绝，可直接走失败分支
//   - OutcomeUnknown: 结果未知，需要按"可能已生效"处理（先补偿再回滚）
func DoOutcome(ctx context.Context, op Operation, cfg Config) (Outcome, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return OutcomeUnknown, ctx.Err()
		default:
		}

		err := runAttempt(ctx, op, cfg.AttemptTimeout)
		if err == nil {
			return OutcomeSuccess, nil
		}

		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return OutcomeFailed, err
		}

		// 最后一次尝试不需要等待
		if attempt < cfg.MaxAttempts {
			delay := backoffDelay(cfg, attempt)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return OutcomeUnknown, ctx.Err()
			}
		}
	}

	return OutcomeUnknown, lastErr
}

// runAttempt 执行单次尝试，可选单次超时
func runAttempt(ctx context.Context, op Operation, timeout time.Duration) error {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

// backoffDelay 计算第 attempt 次失败后的退避延迟（指数退避，封顶 MaxDelay）
func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.InitialDelay) *
		pow(cfg.BackoffFactor, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

// pow 简单的幂运算实现（避免引入 math 包）
func pow(base, exp float64) float64 {
	if exp == 0 {
		return 1
	}
	result := base
	for i := 1; i < int(exp); i++ {
		result *= base
	}
	return result
}
