package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boxoffice/messaging"
)

type collectingHandler struct {
	mu   sync.Mutex
	seen []string
}

func (h *collectingHandler) Handle(ctx context.Context, msg messaging.IMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.GetID())
	return nil
}

func (h *collectingHandler) Type() string { return "collecting" }

func (h *collectingHandler) ids() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func TestMemoryTransport_AsyncDelivery(t *testing.T) {
	transport := NewMemoryTransport(16, 2)
	handler := &collectingHandler{}
	require.NoError(t, transport.Subscribe("TicketSold", handler))
	require.NoError(t, transport.Start(context.Background()))
	t.Cleanup(func() { _ = transport.Close() })

	for i := 0; i < 5; i++ {
		msg := &messaging.Message{ID: string(rune('a' + i)), Type: "TicketSold"}
		require.NoError(t, transport.Publish(context.Background(), msg))
	}

	require.Eventually(t, func() bool {
		return len(handler.ids()) == 5
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryTransport_WildcardSubscription(t *testing.T) {
	transport := NewMemoryTransport(16, 1)
	handler := &collectingHandler{}
	require.NoError(t, transport.Subscribe("*", handler))
	require.NoError(t, transport.Start(context.Background()))
	t.Cleanup(func() { _ = transport.Close() })

	require.NoError(t, transport.Publish(context.Background(), &messaging.Message{ID: "m1", Type: "TypeA"}))
	require.NoError(t, transport.Publish(context.Background(), &messaging.Message{ID: "m2", Type: "TypeB"}))

	require.Eventually(t, func() bool {
		return len(handler.ids()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryTransport_CloseDrainsQueue(t *testing.T) {
	transport := NewMemoryTransport(64, 2)
	handler := &collectingHandler{}
	require.NoError(t, transport.Subscribe("TicketSold", handler))
	require.NoError(t, transport.Start(context.Background()))

	for i := 0; i < 20; i++ {
		require.NoError(t, transport.Publish(context.Background(), &messaging.Message{ID: "m", Type: "TicketSold"}))
	}

	// Close 会等 Worker 把缓冲中的消息处理完
	require.NoError(t, transport.Close())
	require.Len(t, handler.ids(), 20)
}

func TestMemoryTransport_PublishRequiresRunning(t *testing.T) {
	transport := NewMemoryTransport(4, 1)
	err := transport.Publish(context.Background(), &messaging.Message{ID: "m1", Type: "X"})
	require.Error(t, err)
}

func TestMemoryTransport_Stats(t *testing.T) {
	transport := NewMemoryTransport(8, 3)
	require.NoError(t, transport.Subscribe("A", &collectingHandler{}))
	require.NoError(t, transport.Subscribe("A", &collectingHandler{}))
	require.NoError(t, transport.Subscribe("B", &collectingHandler{}))

	stats := transport.Stats()
	require.False(t, stats.Running)
	require.Equal(t, 3, stats.HandlerCount)
	require.Equal(t, 8, stats.QueueSize)
	require.Equal(t, 3, stats.WorkerCount)
	require.ElementsMatch(t, []string{"A", "B"}, stats.MessageTypes)
}
