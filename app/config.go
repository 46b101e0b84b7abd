package app

import (
	"database/sql"
	"fmt"
	"time"

	"boxoffice/logging"
	"boxoffice/messaging/transport/natsjetstream"
	"boxoffice/messaging/transport/redisstreams"
	"boxoffice/workflow"
)

// Mode 协调方式
type Mode string

const (
	// ModeOrchestration 集中式工作流驱动
	ModeOrchestration Mode = "orchestration"

	// ModeChoreography 事件反应器驱动
	ModeChoreography Mode = "choreography"
)

// EventTransport 事件总线使用的传输层
type EventTransport string

const (
	EventTransportMemory EventTransport = "memory"
	EventTransportRedis  EventTransport = "redis"
	EventTransportNATS   EventTransport = "nats"
)

// Config 应用装配配置
type Config struct {
	// Mode 协调方式，二选一
	Mode Mode

	// EventTransport 事件总线传输层（默认 memory）
	EventTransport EventTransport

	// Redis EventTransport 为 redis 时的连接配置
	Redis redisstreams.Config

	// NATS EventTransport 为 nats 时的连接配置
	NATS natsjetstream.Config

	// EventQueueSize / EventWorkers 内存事件传输的队列与并发
	EventQueueSize int
	EventWorkers   int

	// IdempotencyTTL 命令幂等窗口
	IdempotencyTTL time.Duration

	// Workflow 编排模式的步骤配置
	Workflow workflow.Config

	// WorkflowDB 编排状态的 SQLite 连接；nil 时用内存状态存储
	WorkflowDB *sql.DB

	Logger logging.Logger
}

// DefaultConfig 返回默认配置（编排模式，内存传输）
func DefaultConfig() Config {
	return Config{
		Mode:           ModeOrchestration,
		EventTransport: EventTransportMemory,
		EventQueueSize: 1024,
		EventWorkers:   4,
		IdempotencyTTL: time.Hour,
		Workflow:       workflow.DefaultConfig(),
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	switch c.Mode {
	case ModeOrchestration, ModeChoreography:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	switch c.EventTransport {
	case "", EventTransportMemory, EventTransportRedis, EventTransportNATS:
	default:
		return fmt.Errorf("unknown event transport %q", c.EventTransport)
	}
	return nil
}
