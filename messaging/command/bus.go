package command

import (
	"context"
	"fmt"
	"sync"

	"boxoffice/logging"
	"boxoffice/messaging"
)

// CommandBus 命令总线
//
// CommandBus 是对 MessageBus 的包装，提供命令特定的语义和便利方法。
// 它复用 MessageBus 的所有能力（中间件、传输层等），只添加命令路由。
//
// 错误语义取决于底层 Transport：同步 Transport（transport/sync）下
// Dispatch 的返回值反映处理器的业务结果；异步 Transport 下仅保证投递。
type CommandBus struct {
	messageBus messaging.IMessageBus

	// handlers 命令处理器注册表
	// key: commandType, value: handler
	handlers map[string]messaging.IMessageHandler
	mutex    sync.RWMutex

	logger logging.Logger
}

// commandRoutingHandler 根据命令类型进行路由的适配器
//
// 它订阅在统一的消息类型（messaging.MessageTypeCommand）上，
// 根据 Command.Metadata["command_type"] 与 commandType 的匹配结果决定是否处理。
type commandRoutingHandler struct {
	commandType string
	inner       messaging.IMessageHandler
}

func (h *commandRoutingHandler) Handle(ctx context.Context, message messaging.IMessage) error {
	cmd, ok := message.(*Command)
	if !ok {
		// 非 Command，忽略
		return nil
	}
	if cmd.GetCommandType() != h.commandType {
		// 其他命令类型，忽略
		return nil
	}
	return h.inner.Handle(ctx, message)
}

func (h *commandRoutingHandler) Type() string {
	return h.inner.Type()
}

// NewCommandBus 创建命令总线
func NewCommandBus(messageBus messaging.IMessageBus, logger logging.Logger) *CommandBus {
	if logger == nil {
		logger = logging.ComponentLogger("messaging.command.bus")
	}
	return &CommandBus{
		messageBus: messageBus,
		handlers:   make(map[string]messaging.IMessageHandler),
		logger:     logger,
	}
}

// RegisterHandler 注册命令处理器
//
// 同类型的处理器重复注册时替换旧处理器，避免重复消费。
func (bus *CommandBus) RegisterHandler(commandType string, handler CommandHandlerFunc) error {
	return bus.RegisterHandlerWithContext(context.Background(), commandType, handler)
}

// RegisterHandlerWithContext 注册命令处理器（支持上下文透传）
func (bus *CommandBus) RegisterHandlerWithContext(ctx context.Context, commandType string, handler CommandHandlerFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if commandType == "" {
		return NewInvalidCommandError(commandType, "command type cannot be empty")
	}

	if handler == nil {
		return NewInvalidCommandError(commandType, "handler cannot be nil")
	}

	baseHandler := handler.AsMessageHandler(commandType)

	// 路由包装器：只处理指定 commandType 的命令，
	// 订阅在统一的命令消息类型上（messaging.MessageTypeCommand）
	routingHandler := &commandRoutingHandler{
		commandType: commandType,
		inner:       baseHandler,
	}

	// 若已存在同类型处理器，先移除旧订阅
	bus.mutex.RLock()
	existing := bus.handlers[commandType]
	bus.mutex.RUnlock()
	if existing != nil {
		if err := bus.messageBus.Unsubscribe(ctx, messaging.MessageTypeCommand, existing); err != nil {
			return fmt.Errorf("failed to replace existing handler for %s: %w", commandType, err)
		}
	}

	if err := bus.messageBus.Subscribe(ctx, messaging.MessageTypeCommand, routingHandler); err != nil {
		return fmt.Errorf("failed to subscribe command handler: %w", err)
	}

	bus.mutex.Lock()
	bus.handlers[commandType] = routingHandler
	bus.mutex.Unlock()

	return nil
}

// Dispatch 分发命令
//
// 委托给 MessageBus.Publish（自动执行中间件链），由 Transport 决定
// 同步/异步语义。同步 Transport 下处理器可通过 cmd.SetResult 回传结果。
func (bus *CommandBus) Dispatch(ctx context.Context, cmd *Command) error {
	if cmd == nil {
		return ErrInvalidCommand()
	}

	return bus.messageBus.Publish(ctx, cmd)
}

// Use 注册中间件
//
// 委托给底层 MessageBus，复用中间件机制
func (bus *CommandBus) Use(middleware messaging.IMiddleware) {
	bus.messageBus.Use(middleware)
}

// HasHandler 检查是否已注册处理器
func (bus *CommandBus) HasHandler(commandType string) bool {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()

	_, exists := bus.handlers[commandType]
	return exists
}
