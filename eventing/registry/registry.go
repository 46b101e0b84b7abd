// Package registry 提供事件载荷的类型注册表
//
// 进程内投递时事件载荷保持类型化；经 redis/nats 等传输后载荷退化为
// JSON。注册表按事件类型记录解码函数，消费侧据此还原类型化载荷。
package registry

import (
	"encoding/json"
	"sync"
)

// PayloadDecoder 事件载荷解码函数
type PayloadDecoder func(data []byte) (interface{}, error)

// PayloadRegistry 事件类型到载荷解码函数的注册表
type PayloadRegistry struct {
	mu       sync.RWMutex
	decoders map[string]PayloadDecoder
}

func NewPayloadRegistry() *PayloadRegistry {
	return &PayloadRegistry{
		decoders: make(map[string]PayloadDecoder),
	}
}

// Register 注册事件类型的解码函数（重复注册时覆盖）
func (r *PayloadRegistry) Register(eventType string, decoder PayloadDecoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[eventType] = decoder
}

// Decode 按事件类型解码载荷；未注册的类型返回 ok=false
func (r *PayloadRegistry) Decode(eventType string, data []byte) (interface{}, bool, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[eventType]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	payload, err := decoder(data)
	if err != nil {
		return nil, true, err
	}
	return payload, true, nil
}

// RegisterType 以具体类型注册解码函数（JSON 反序列化为 T）
func RegisterType[T any](r *PayloadRegistry, eventType string) {
	r.Register(eventType, func(data []byte) (interface{}, error) {
		var payload T
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
}
