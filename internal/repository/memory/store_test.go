package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/repository"
)

func TestRunInTxRollsBackOnError(t *testing.T) {
	store := NewStore()
	repos := store.Repositories()
	ctx := context.Background()

	ticket := &domain.Ticket{ID: "t1", Status: domain.StatusTenantCreateDamage}
	require.NoError(t, repos.Tickets.Create(ctx, ticket))

	boom := errors.New("boom")
	err := repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		ok, err := repos.Tickets.UpdateStatus(ctx, "t1", domain.StatusTenantCreateDamage, domain.StatusOwnerRejectDamage)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, repos.Audit.Append(ctx, &domain.AuditEntry{TicketID: "t1", EventType: domain.AuditStatusChanged}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := repos.Tickets.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTenantCreateDamage, stored.Status)

	entries, err := repos.Audit.ListByTicket(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNestedTxJoinsOuter(t *testing.T) {
	store := NewStore()
	repos := store.Repositories()

	err := repos.Tx.RunInTx(context.Background(), func(ctx context.Context) error {
		return repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
			return repos.Audit.Append(ctx, &domain.AuditEntry{TicketID: "t1"})
		})
	})
	require.NoError(t, err)

	entries, err := repos.Audit.ListByTicket(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUpdateStatusIsCompareAndSet(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()
	require.NoError(t, repos.Tickets.Create(ctx, &domain.Ticket{ID: "t1", Status: domain.StatusTenantCreateDamage}))

	ok, err := repos.Tickets.UpdateStatus(ctx, "t1", domain.StatusObjectOwnerCreateDamage, domain.StatusOwnerCloseTheDamage)
	require.NoError(t, err)
	assert.False(t, ok)

	// Update never touches status
	require.NoError(t, repos.Tickets.Update(ctx, &domain.Ticket{ID: "t1", Status: domain.StatusOwnerCloseTheDamage, Title: "x"}))
	stored, err := repos.Tickets.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTenantCreateDamage, stored.Status)
	assert.Equal(t, "x", stored.Title)
}

func TestActiveUniqueness(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()

	require.NoError(t, repos.Offers.Create(ctx, &domain.DamageOffer{ID: "o1", TicketID: "t1", CompanyID: "c1", State: domain.OfferStateOpen}))
	err := repos.Offers.Create(ctx, &domain.DamageOffer{ID: "o2", TicketID: "t1", CompanyID: "c1", State: domain.OfferStateOpen})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	require.NoError(t, repos.Offers.Create(ctx, &domain.DamageOffer{ID: "o3", TicketID: "t1", CompanyID: "c1", State: domain.OfferStateRejected}))

	require.NoError(t, repos.Requests.Create(ctx, &domain.DamageRequest{ID: "r1", TicketID: "t1", Email: "A@Example.com", State: domain.RequestStateActive}))
	err = repos.Requests.Create(ctx, &domain.DamageRequest{ID: "r2", TicketID: "t1", Email: "a@example.com ", State: domain.RequestStateActive})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	placeholders, err := repos.Requests.ListPlaceholdersByEmail(ctx, "t1", "a@EXAMPLE.com")
	require.NoError(t, err)
	assert.Len(t, placeholders, 1)
}

func TestDefectNumbering(t *testing.T) {
	repos := NewStore().Repositories()
	ctx := context.Background()

	first := &domain.Defect{ID: "d1", TicketID: "t1"}
	second := &domain.Defect{ID: "d2", TicketID: "t1"}
	other := &domain.Defect{ID: "d3", TicketID: "t2"}
	require.NoError(t, repos.Defects.Create(ctx, first))
	require.NoError(t, repos.Defects.Create(ctx, second))
	require.NoError(t, repos.Defects.Create(ctx, other))

	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, 1, other.Number)
}
