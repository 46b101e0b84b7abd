package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"boxoffice/eventing"
	"boxoffice/messaging"
	"boxoffice/messaging/transport/sync"
)

func newTestBus(t *testing.T) *EventBus {
	t.Helper()
	transport := sync.NewSyncTransport()
	require.NoError(t, transport.Start(context.Background()))
	t.Cleanup(func() { _ = transport.Close() })
	return NewEventBus(messaging.NewMessageBus(transport))
}

func TestEventBus_PublishToFuncHandler(t *testing.T) {
	eventBus := newTestBus(t)
	ctx := context.Background()

	var seen []eventing.IEvent
	handler := EventHandlerFunc(func(ctx context.Context, evt eventing.IEvent) error {
		seen = append(seen, evt)
		return nil
	})
	require.NoError(t, eventBus.SubscribeEvent(ctx, "TicketSold", handler))

	event := eventing.NewEvent("agg-1", "Agg", "TicketSold", 1, map[string]string{"seat": "3"})
	require.NoError(t, eventBus.PublishEvent(ctx, event))

	require.Len(t, seen, 1)
	require.Equal(t, "agg-1", seen[0].GetAggregateID())
	require.Equal(t, uint64(1), seen[0].GetVersion())
}

type recordingHandler struct {
	types []string
	seen  []eventing.IEvent
}

func (h *recordingHandler) GetEventTypes() []string { return h.types }
func (h *recordingHandler) GetHandlerName() string  { return "recording" }
func (h *recordingHandler) Type() string            { return "recording" }

func (h *recordingHandler) Handle(ctx context.Context, message messaging.IMessage) error {
	evt, ok := eventing.AsEvent(message)
	if !ok {
		return nil
	}
	return h.HandleEvent(ctx, evt)
}

func (h *recordingHandler) HandleEvent(ctx context.Context, evt eventing.IEvent) error {
	h.seen = append(h.seen, evt)
	return nil
}

func TestEventBus_SubscribeHandlerCoversDeclaredTypes(t *testing.T) {
	eventBus := newTestBus(t)
	ctx := context.Background()

	handler := &recordingHandler{types: []string{"TypeA", "TypeB"}}
	require.NoError(t, eventBus.SubscribeHandler(ctx, handler))

	require.NoError(t, eventBus.PublishEvent(ctx, eventing.NewEvent("agg-1", "Agg", "TypeA", 1, nil)))
	require.NoError(t, eventBus.PublishEvent(ctx, eventing.NewEvent("agg-1", "Agg", "TypeB", 2, nil)))
	require.NoError(t, eventBus.PublishEvent(ctx, eventing.NewEvent("agg-1", "Agg", "TypeC", 3, nil)))
	require.Len(t, handler.seen, 2)

	require.NoError(t, eventBus.UnsubscribeHandler(ctx, handler))
	require.NoError(t, eventBus.PublishEvent(ctx, eventing.NewEvent("agg-1", "Agg", "TypeA", 4, nil)))
	require.Len(t, handler.seen, 2)
}

func TestAsEvent_RebuildsFromMetadata(t *testing.T) {
	// 跨进程传输后事件退化为基础消息，只剩元数据
	msg := &messaging.Message{
		ID:      "m1",
		Type:    "TicketSold",
		Payload: map[string]string{"seat": "3"},
		Metadata: map[string]interface{}{
			"aggregate_id":   "agg-1",
			"aggregate_type": "Agg",
			"version":        float64(7), // JSON 解码后的数字
		},
	}

	evt, ok := eventing.AsEvent(msg)
	require.True(t, ok)
	require.Equal(t, "agg-1", evt.GetAggregateID())
	require.Equal(t, "Agg", evt.GetAggregateType())
	require.Equal(t, uint64(7), evt.GetVersion())

	// 缺少聚合信息的消息无法还原
	_, ok = eventing.AsEvent(&messaging.Message{ID: "m2", Type: "TicketSold"})
	require.False(t, ok)
}
