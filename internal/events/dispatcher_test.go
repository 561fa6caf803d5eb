package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/balu-property/damage-service/internal/domain"
)

func TestInMemoryDispatcherRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventDamageCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("smtp down")
	})
	d.Subscribe(EventDamageCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventOfferCreated, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), New(EventDamageCreated, "t1", domain.Actor{ID: "u1", Role: domain.RoleTenant}, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestRedisDispatcherDeliver(t *testing.T) {
	d := NewRedisDispatcher(nil, "damage-events", zap.NewNop())
	var got Event
	d.Subscribe(EventDamageStatusChanged, func(_ context.Context, e Event) error {
		got = e
		return nil
	})

	sent := New(EventDamageStatusChanged, "t1", domain.Actor{ID: "o1", Role: domain.RoleObjectOwner}, map[string]any{
		"from": "TENANT_CREATE_DAMAGE",
		"to":   "OWNER_REJECT_DAMAGE",
	})
	sent.Recipients = []Recipient{{ActorID: "tenant-1", Role: domain.RoleTenant}}
	raw, err := json.Marshal(sent)
	require.NoError(t, err)

	d.Deliver(context.Background(), "{not json")
	assert.Empty(t, got.ID)

	d.Deliver(context.Background(), string(raw))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, "OWNER_REJECT_DAMAGE", got.Payload["to"])
	assert.Equal(t, sent.Recipients, got.Recipients)
}
