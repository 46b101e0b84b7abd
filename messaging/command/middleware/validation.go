package middleware

import (
	"context"
	"fmt"

	"boxoffice/messaging"
	"boxoffice/messaging/command"
)

// Validatable 可自校验的命令载荷
//
// 命令载荷实现该接口后，验证中间件会在处理器执行前调用 Validate，
// 拦截形状非法的命令（空 ID、非正数额等）。
type Validatable interface {
	Validate() error
}

// ValidationMiddleware 命令验证中间件
//
// 在命令执行前验证 Payload 的有效性。
// 只对命令类型的消息执行验证，其他消息类型直接透传。
type ValidationMiddleware struct{}

// NewValidationMiddleware 创建验证中间件
func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{}
}

// Handle 实现 messaging.IMiddleware 接口
func (m *ValidationMiddleware) Handle(ctx context.Context, message messaging.IMessage, next messaging.HandlerFunc) error {
	// 只处理命令消息
	if message.GetType() != messaging.MessageTypeCommand {
		return next(ctx, message)
	}

	cmd, ok := message.(*command.Command)
	if !ok {
		return next(ctx, message)
	}

	payload := cmd.GetPayload()
	if payload == nil {
		return next(ctx, message)
	}

	if v, ok := payload.(Validatable); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("command validation failed for %s: %w", cmd.GetCommandType(), err)
		}
	}

	return next(ctx, message)
}

// Name 实现 messaging.IMiddleware 接口
func (m *ValidationMiddleware) Name() string {
	return "CommandValidation"
}
