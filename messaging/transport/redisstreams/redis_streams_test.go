package redisstreams

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"boxoffice/messaging"
)

type seatPayload struct {
	Seat  int   `json:"seat"`
	Price int64 `json:"price"`
}

func TestCodec_RoundTripWithTypedDecoder(t *testing.T) {
	original := &messaging.Message{
		ID:        "m1",
		Type:      "SeatReserved",
		Timestamp: time.Unix(0, 1700000000000000000),
		Payload:   seatPayload{Seat: 3, Price: 100},
		Metadata: map[string]interface{}{
			"aggregate_id": "show-1",
		},
	}

	values, err := encodeMessage(original)
	require.NoError(t, err)

	decode := func(messageType string, data []byte) (interface{}, bool, error) {
		if messageType != "SeatReserved" {
			return nil, false, nil
		}
		var p seatPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, true, err
		}
		return &p, true, nil
	}

	decoded, err := decodeMessage(redis.XMessage{ID: "1-0", Values: values}, decode)
	require.NoError(t, err)
	require.Equal(t, "m1", decoded.GetID())
	require.Equal(t, "SeatReserved", decoded.GetType())
	require.Equal(t, original.Timestamp.UnixNano(), decoded.GetTimestamp().UnixNano())
	require.Equal(t, &seatPayload{Seat: 3, Price: 100}, decoded.GetPayload())
	require.Equal(t, "show-1", decoded.GetMetadata()["aggregate_id"])
}

func TestCodec_UnknownTypeFallsBackToGenericJSON(t *testing.T) {
	original := &messaging.Message{
		ID:      "m2",
		Type:    "SomethingElse",
		Payload: seatPayload{Seat: 7, Price: 200},
	}
	values, err := encodeMessage(original)
	require.NoError(t, err)

	decoded, err := decodeMessage(redis.XMessage{ID: "1-1", Values: values}, nil)
	require.NoError(t, err)

	generic, ok := decoded.GetPayload().(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, float64(7), generic["seat"])
}

func TestCodec_RedisStringValues(t *testing.T) {
	// XReadGroup 返回的字段值一律是字符串
	entry := redis.XMessage{
		ID: "2-0",
		Values: map[string]interface{}{
			"id":        "m3",
			"type":      "SeatReserved",
			"timestamp": "1700000000000000000",
			"payload":   `{"seat":1,"price":50}`,
			"metadata":  `{"version":2}`,
		},
	}

	decoded, err := decodeMessage(entry, nil)
	require.NoError(t, err)
	require.Equal(t, "m3", decoded.GetID())
	require.Equal(t, int64(1700000000000000000), decoded.GetTimestamp().UnixNano())
	require.Equal(t, float64(2), decoded.GetMetadata()["version"])
}

func TestCodec_MissingIDFallsBackToEntryID(t *testing.T) {
	entry := redis.XMessage{
		ID:     "3-0",
		Values: map[string]interface{}{"type": "SeatReserved"},
	}
	decoded, err := decodeMessage(entry, nil)
	require.NoError(t, err)
	require.Equal(t, "3-0", decoded.GetID())
}

type capturingHandler struct {
	mu   sync.Mutex
	seen []messaging.IMessage
}

func (h *capturingHandler) Handle(ctx context.Context, msg messaging.IMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg)
	return nil
}

func (h *capturingHandler) Type() string { return "capturing" }

func (h *capturingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

// 需要真实 Redis；设置 REDIS_ADDR 后运行
func TestTransport_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	transport, err := NewTransport(Config{
		Addr:         addr,
		StreamPrefix: "boxoffice-test-" + uuid.NewString()[:8] + ":",
		BlockTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close() })

	handler := &capturingHandler{}
	require.NoError(t, transport.Subscribe("SeatReserved", handler))
	require.NoError(t, transport.Start(context.Background()))

	require.NoError(t, transport.Publish(context.Background(), &messaging.Message{
		ID:      "m1",
		Type:    "SeatReserved",
		Payload: seatPayload{Seat: 3, Price: 100},
	}))

	require.Eventually(t, func() bool { return handler.count() == 1 }, 5*time.Second, 50*time.Millisecond)
}

func TestNewTransport_Defaults(t *testing.T) {
	transport, err := NewTransport(Config{Addr: "localhost:6379"})
	require.NoError(t, err)
	require.Equal(t, "boxoffice:", transport.cfg.StreamPrefix)
	require.Equal(t, "boxoffice", transport.cfg.GroupName)
	require.NotEmpty(t, transport.cfg.ConsumerName)
	require.Equal(t, "boxoffice:SeatReserved", transport.streamName("SeatReserved"))
	require.NoError(t, transport.Close())
}
