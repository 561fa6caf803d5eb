package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/events"
	"github.com/balu-property/damage-service/internal/service"
)

type flakyConsumer struct {
	calls atomic.Int32
}

func (f *flakyConsumer) Run(ctx context.Context) error {
	if f.calls.Add(1) < 3 {
		return errors.New("connection refused")
	}
	<-ctx.Done()
	return nil
}

type captureNotifier struct {
	mu    sync.Mutex
	notes []service.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n service.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
	return nil
}

func TestWorkerRetriesConsumerUntilCancelled(t *testing.T) {
	consumer := &flakyConsumer{}
	w := NewNotificationWorker(nil, consumer, zap.NewNop())
	w.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := w.Start(ctx)

	require.Eventually(t, func() bool { return consumer.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.EqualValues(t, 3, consumer.calls.Load())
}

func TestWorkerRegistersHandlers(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	notifier := &captureNotifier{}
	w := NewNotificationWorker(service.NewNotificationService(dispatcher, notifier, zap.NewNop()), nil, zap.NewNop())

	done := w.Start(context.Background())
	<-done

	ev := events.New(events.EventDamageStatusChanged, "ticket-1", domain.Actor{ID: "owner-1", Role: domain.RoleObjectOwner}, nil)
	ev.Recipients = []events.Recipient{{ActorID: "tenant-1", Role: domain.RoleTenant}}
	require.NoError(t, dispatcher.Publish(context.Background(), ev))

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, "DamageStatusChanged", notifier.notes[0].Subject)
	assert.Equal(t, "tenant-1", notifier.notes[0].Recipient.ActorID)
}
