package command

import (
	"context"
	"fmt"

	"boxoffice/messaging"
)

// CommandHandlerFunc 命令处理函数类型
//
// 这是一个便利类型，允许使用函数作为命令处理器
type CommandHandlerFunc func(ctx context.Context, cmd *Command) error

// AsMessageHandler 转换为 IMessageHandler
//
// 将命令处理函数适配为消息处理器，以便在 MessageBus 中使用
func (f CommandHandlerFunc) AsMessageHandler(name string) messaging.IMessageHandler {
	return &commandHandlerAdapter{
		handleFunc: f,
		name:       name,
	}
}

// commandHandlerAdapter 将 CommandHandlerFunc 适配为 IMessageHandler 接口
type commandHandlerAdapter struct {
	handleFunc CommandHandlerFunc
	name       string
}

// Handle 实现 IMessageHandler 接口
func (h *commandHandlerAdapter) Handle(ctx context.Context, message messaging.IMessage) error {
	cmd, ok := message.(*Command)
	if !ok {
		return fmt.Errorf("expected *Command, got %T", message)
	}

	return h.handleFunc(ctx, cmd)
}

// Type 实现 IMessageHandler 接口
func (h *commandHandlerAdapter) Type() string {
	return h.name
}
