package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boxoffice/messaging"
	"boxoffice/messaging/command"
)

type countingNext struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (n *countingNext) fn(ctx context.Context, message messaging.IMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return n.err
}

func (n *countingNext) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type validatedPayload struct {
	Amount int64
}

func (p validatedPayload) Validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

func newCmd(id string, payload interface{}) *command.Command {
	return command.NewCommand(id, "DoSomething", "agg-1", "Agg", payload)
}

func TestIdempotency_DuplicateCommandAbsorbed(t *testing.T) {
	m := NewIdempotencyMiddleware(nil)
	t.Cleanup(m.Stop)
	next := &countingNext{}
	ctx := context.Background()

	cmd := newCmd("cmd-1", nil)
	require.NoError(t, m.Handle(ctx, cmd, next.fn))
	require.NoError(t, m.Handle(ctx, cmd, next.fn))
	require.Equal(t, 1, next.count())
}

func TestIdempotency_FailedCommandCanRetry(t *testing.T) {
	m := NewIdempotencyMiddleware(nil)
	t.Cleanup(m.Stop)
	next := &countingNext{err: errors.New("boom")}
	ctx := context.Background()

	cmd := newCmd("cmd-1", nil)
	require.Error(t, m.Handle(ctx, cmd, next.fn))

	// 失败不记录，重试会再次执行
	next.err = nil
	require.NoError(t, m.Handle(ctx, cmd, next.fn))
	require.Equal(t, 2, next.count())
}

func TestIdempotency_ConcurrentSameIDExecutesOnce(t *testing.T) {
	m := NewIdempotencyMiddleware(nil)
	t.Cleanup(m.Stop)
	next := &countingNext{}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Handle(ctx, newCmd("cmd-1", nil), next.fn)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, next.count())
}

func TestIdempotency_ExpiredRecordAllowsReexecution(t *testing.T) {
	m := NewIdempotencyMiddleware(&IdempotencyConfig{TTL: 10 * time.Millisecond, CleanupInterval: time.Hour})
	t.Cleanup(m.Stop)
	next := &countingNext{}
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, newCmd("cmd-1", nil), next.fn))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, m.Handle(ctx, newCmd("cmd-1", nil), next.fn))
	require.Equal(t, 2, next.count())
}

func TestIdempotency_IgnoresNonCommandMessages(t *testing.T) {
	m := NewIdempotencyMiddleware(nil)
	t.Cleanup(m.Stop)
	next := &countingNext{}
	ctx := context.Background()

	msg := &messaging.Message{ID: "m-1", Type: "event"}
	require.NoError(t, m.Handle(ctx, msg, next.fn))
	require.NoError(t, m.Handle(ctx, msg, next.fn))
	require.Equal(t, 2, next.count())
}

func TestAggregateLock_SerializesSameAggregate(t *testing.T) {
	m := NewAggregateLockMiddleware()
	ctx := context.Background()

	var mu sync.Mutex
	var active, maxActive int
	slowNext := func(ctx context.Context, message messaging.IMessage) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Handle(ctx, newCmd(fmt.Sprintf("cmd-%d", i), nil), slowNext)
		}(i)
	}
	wg.Wait()

	// 同一聚合的命令串行执行
	require.Equal(t, 1, maxActive)
}

func TestAggregateLock_SkipsCommandsWithoutAggregate(t *testing.T) {
	m := NewAggregateLockMiddleware()
	next := &countingNext{}

	cmd := command.NewCommand("cmd-1", "DoSomething", "", "", nil)
	require.NoError(t, m.Handle(context.Background(), cmd, next.fn))
	require.Equal(t, 1, next.count())
	require.Zero(t, m.GetLockCount())
}

func TestValidation_RejectsInvalidPayload(t *testing.T) {
	m := NewValidationMiddleware()
	next := &countingNext{}
	ctx := context.Background()

	err := m.Handle(ctx, newCmd("cmd-1", validatedPayload{Amount: -1}), next.fn)
	require.Error(t, err)
	require.Zero(t, next.count())

	require.NoError(t, m.Handle(ctx, newCmd("cmd-2", validatedPayload{Amount: 10}), next.fn))
	require.Equal(t, 1, next.count())
}

func TestValidation_PassesNonValidatablePayload(t *testing.T) {
	m := NewValidationMiddleware()
	next := &countingNext{}

	require.NoError(t, m.Handle(context.Background(), newCmd("cmd-1", struct{ X int }{1}), next.fn))
	require.Equal(t, 1, next.count())
}
