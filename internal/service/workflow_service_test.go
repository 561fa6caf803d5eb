package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/workflow"
	apperrors "github.com/balu-property/damage-service/pkg/util/errorutil"
)

func TestPairsOutsideTableAreIllegal(t *testing.T) {
	f := newFixture(t)
	for _, from := range domain.AllStatuses() {
		ticket := f.seed(t, from, domain.PartyOwner)
		for _, to := range domain.AllStatuses() {
			if _, ok := workflow.Lookup(from, to); ok {
				continue
			}
			for _, role := range domain.AllRoles() {
				_, err := f.move(ticket.ID, domain.Actor{ID: owner.ID, Role: role}, from, to, workflow.Payload{})
				requireCode(t, err, apperrors.CodeIllegalTransition)
			}
		}
	}
}

func TestRolesOutsideRuleAreDenied(t *testing.T) {
	f := newFixture(t)
	for _, rule := range workflow.Rules() {
		party := rule.PartyGuard
		if party == "" {
			party = domain.PartyOwner
		}
		ticket := f.seed(t, rule.From, party)
		for _, role := range domain.AllRoles() {
			if rule.Permits(role) {
				continue
			}
			_, err := f.move(ticket.ID, domain.Actor{ID: "someone", Role: role}, rule.From, rule.To, workflow.Payload{})
			requireCode(t, err, apperrors.CodePermissionDenied)
		}
	}
}

func TestResubmissionIsStale(t *testing.T) {
	f := newFixture(t)
	ticket := f.report(t, tenant)
	send := workflow.Payload{CompanyIDs: []string{companyX.ID}}

	f.mustMove(t, ticket.ID, owner, domain.StatusTenantCreateDamage, domain.StatusOwnerSendToCompanyWithOffer, send)
	_, err := f.move(ticket.ID, owner, domain.StatusTenantCreateDamage, domain.StatusOwnerSendToCompanyWithOffer, send)
	requireCode(t, err, apperrors.CodeStaleState)
	assert.Len(t, f.activeRequests(t, ticket.ID), 1)
}

func TestEndToEndOfferFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.report(t, tenant)
	assert.Equal(t, domain.StatusTenantCreateDamage, ticket.Status)
	assert.Equal(t, domain.PartyTenant, ticket.Party)

	f.mustMove(t, ticket.ID, owner, domain.StatusTenantCreateDamage, domain.StatusOwnerSendToCompanyWithOffer,
		workflow.Payload{CompanyIDs: []string{companyX.ID, companyY.ID}})

	offerX, err := f.offers.CreateOffer(ctx, companyX, ticket.ID, domain.StatusOwnerSendToCompanyWithOffer, OfferInput{
		Amount:      300,
		Description: "Dichtung ersetzen",
		PriceSplit:  domain.PriceSplit{Personal: 200, Material: 100},
	})
	require.NoError(t, err)
	assert.False(t, offerX.Accepted)
	assert.Equal(t, domain.OfferStateOpen, offerX.State)

	stored, err := f.repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompanyGiveOfferToOwner, stored.Status)

	offerY, err := f.offers.CreateOffer(ctx, companyY, ticket.ID, domain.StatusCompanyGiveOfferToOwner, OfferInput{Amount: 280})
	require.NoError(t, err)
	_, err = f.offers.CreateOffer(ctx, companyX, ticket.ID, domain.StatusCompanyGiveOfferToOwner, OfferInput{Amount: 250})
	requireCode(t, err, apperrors.CodeDuplicateOffer)

	res, err := f.offers.AcceptOffer(ctx, owner, offerX.ID, domain.StatusCompanyGiveOfferToOwner)
	require.NoError(t, err)
	assert.True(t, res.Offer.Accepted)
	require.NotNil(t, res.Ticket.AssignedCompanyID)
	assert.Equal(t, companyX.ID, *res.Ticket.AssignedCompanyID)

	offers, err := f.repos.Offers.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	accepted := 0
	for _, o := range offers {
		if o.Accepted {
			accepted++
			assert.Equal(t, offerX.ID, o.ID)
		}
		if o.ID == offerY.ID {
			assert.Equal(t, domain.OfferStateSuperseded, o.State)
		}
	}
	assert.Equal(t, 1, accepted)

	_, err = f.move(ticket.ID, companyY, domain.StatusOwnerAcceptsTheOffer, domain.StatusCompanyScheduleDate,
		workflow.Payload{Date: "2024-01-10", Time: "09:30"})
	requireCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.move(ticket.ID, companyX, domain.StatusOwnerAcceptsTheOffer, domain.StatusCompanyScheduleDate,
		workflow.Payload{Date: "10.01.2024", Time: "09:30"})
	requireCode(t, err, apperrors.CodeValidation)

	res = f.mustMove(t, ticket.ID, companyX, domain.StatusOwnerAcceptsTheOffer, domain.StatusCompanyScheduleDate,
		workflow.Payload{Date: "2024-01-10", Time: "09:30"})
	require.NotNil(t, res.Ticket.ScheduledAt)
	assert.Equal(t, time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC), *res.Ticket.ScheduledAt)

	f.mustMove(t, ticket.ID, owner, domain.StatusCompanyScheduleDate, domain.StatusOwnerAcceptsDate, workflow.Payload{})

	_, err = f.move(ticket.ID, companyX, domain.StatusOwnerAcceptsDate, domain.StatusRepairConfirmed, workflow.Payload{})
	requireCode(t, err, apperrors.CodeMissingField)

	res = f.mustMove(t, ticket.ID, companyX, domain.StatusOwnerAcceptsDate, domain.StatusRepairConfirmed,
		workflow.Payload{Signature: "data:image/png;base64,iVBORw0KGgo="})
	assert.Equal(t, domain.StatusRepairConfirmed, res.Ticket.Status)
	assert.NotNil(t, res.Ticket.RepairConfirmedAt)

	log, err := f.tickets.History(ctx, owner, ticket.ID)
	require.NoError(t, err)
	changes := 0
	for i, entry := range log {
		if i > 0 {
			assert.Greater(t, entry.Seq, log[i-1].Seq)
		}
		if entry.EventType == domain.AuditStatusChanged {
			changes++
		}
	}
	assert.Equal(t, 6, changes)
	assert.Equal(t, domain.AuditDamageCreated, log[0].EventType)

	snap := f.metrics.Snapshot()
	assert.EqualValues(t, 1, snap.Transitions["OWNER_ACCEPTS_DATE->REPAIR_CONFIRMED"])
	assert.EqualValues(t, 1, snap.TransitionFails[apperrors.CodeMissingField])
}

func TestAuditEntryPerTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.report(t, owner)

	before, err := f.repos.Audit.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)

	res := f.mustMove(t, ticket.ID, owner, domain.StatusObjectOwnerCreateDamage, domain.StatusOwnerSendToCompanyWithoutOffer,
		workflow.Payload{CompanyIDs: []string{companyX.ID}, Comment: "bitte rasch"})

	after, err := f.repos.Audit.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before)+1)
	last := after[len(after)-1]
	assert.Equal(t, res.Audit.Seq, last.Seq)
	assert.Equal(t, domain.StatusObjectOwnerCreateDamage, *last.FromStatus)
	assert.Equal(t, domain.StatusOwnerSendToCompanyWithoutOffer, *last.ToStatus)
	assert.Equal(t, "bitte rasch", last.Payload["comment"])
	assert.Equal(t, owner.ID, last.ActorID)
}

func TestRejectedThenResent(t *testing.T) {
	f := newFixture(t)
	ticket := f.report(t, owner)

	f.mustMove(t, ticket.ID, owner, domain.StatusObjectOwnerCreateDamage, domain.StatusOwnerSendToCompanyWithOffer,
		workflow.Payload{CompanyIDs: []string{companyX.ID}})

	_, err := f.move(ticket.ID, companyX, domain.StatusOwnerSendToCompanyWithOffer, domain.StatusCompanyRejectTheDamage, workflow.Payload{})
	requireCode(t, err, apperrors.CodeMissingField)
	f.mustMove(t, ticket.ID, companyX, domain.StatusOwnerSendToCompanyWithOffer, domain.StatusCompanyRejectTheDamage,
		workflow.Payload{Comment: "keine Kapazität"})
	assert.Empty(t, f.activeRequests(t, ticket.ID))

	_, err = f.move(ticket.ID, owner, domain.StatusCompanyRejectTheDamage, domain.StatusRepairConfirmed,
		workflow.Payload{Signature: "x"})
	requireCode(t, err, apperrors.CodeIllegalTransition)

	f.mustMove(t, ticket.ID, owner, domain.StatusCompanyRejectTheDamage, domain.StatusOwnerSendToCompanyWithOffer,
		workflow.Payload{CompanyIDs: []string{companyY.ID}})
	active := f.activeRequests(t, ticket.ID)
	require.Len(t, active, 1)
	assert.True(t, active[0].IsFor(companyY.ID))
}

func TestDuplicateRequestsAreMerged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.report(t, owner)

	f.mustMove(t, ticket.ID, owner, domain.StatusObjectOwnerCreateDamage, domain.StatusOwnerSendToCompanyWithOffer,
		workflow.Payload{CompanyIDs: []string{companyX.ID}, CompanyEmails: []string{"INFO@meier.ch"}})
	require.Len(t, f.activeRequests(t, ticket.ID), 1)

	first := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	reqs, err := f.offers.RequestOffer(ctx, owner, ticket.ID, RequestTargets{CompanyIDs: []string{companyX.ID}}, &first)
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	second := first.AddDate(0, 0, 7)
	_, err = f.offers.RequestOffer(ctx, owner, ticket.ID, RequestTargets{CompanyEmails: []string{"info@meier.ch"}}, &second)
	require.NoError(t, err)

	active := f.activeRequests(t, ticket.ID)
	require.Len(t, active, 1)
	assert.Equal(t, first, *active[0].RequestedDate)
	require.NotNil(t, active[0].NewRequestedDate)
	assert.Equal(t, second, *active[0].NewRequestedDate)

	_, err = f.offers.RequestOffer(ctx, tenant, ticket.ID, RequestTargets{CompanyIDs: []string{companyY.ID}}, nil)
	requireCode(t, err, apperrors.CodePermissionDenied)
}

func TestFailedAuditRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	repos := store.Repositories()
	repos.Audit = failingAudit{repos.Audit}
	f := buildFixture(store, repos)
	ticket := f.seed(t, domain.StatusObjectOwnerCreateDamage, domain.PartyOwner)

	_, err := f.move(ticket.ID, owner, domain.StatusObjectOwnerCreateDamage, domain.StatusOwnerSendToCompanyWithOffer,
		workflow.Payload{CompanyIDs: []string{companyX.ID}})
	requireCode(t, err, apperrors.CodeTransitionFailed)
	assert.NotContains(t, apperrors.ToDomainError(err).Message, "disk full")

	stored, err := repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusObjectOwnerCreateDamage, stored.Status)
	assert.Empty(t, f.activeRequests(t, ticket.ID))
	assert.EqualValues(t, 1, f.metrics.Snapshot().TransitionFails[apperrors.CodeTransitionFailed])
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	repos := store.Repositories()
	repos.Tickets = uuidTickets{repos.Tickets}
	repos.Offers = uuidOffers{repos.Offers}
	f := buildFixture(store, repos)

	ticket := f.report(t, owner)
	f.mustMove(t, ticket.ID, owner, domain.StatusObjectOwnerCreateDamage, domain.StatusOwnerSendToCompanyWithOffer,
		workflow.Payload{CompanyIDs: []string{companyX.ID}, CompanyEmails: []string{"new@firm.ch"}})
	_, err := f.offers.CreateOffer(ctx, companyX, ticket.ID, domain.StatusOwnerSendToCompanyWithOffer, OfferInput{Amount: 120})
	require.NoError(t, err)

	_, err = f.move("abc", owner, domain.StatusObjectOwnerCreateDamage, domain.StatusOwnerCloseTheDamage, workflow.Payload{})
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = f.move(ticket.ID, owner, domain.StatusCompanyGiveOfferToOwner, domain.StatusOwnerAcceptsTheOffer,
		workflow.Payload{OfferID: "abc"})
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = f.tickets.Get(ctx, owner, "abc", domain.LocaleDE)
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = f.tickets.History(ctx, owner, "abc")
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = f.offers.AcceptOffer(ctx, owner, "abc", domain.StatusCompanyGiveOfferToOwner)
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = f.offers.List(ctx, owner, "abc")
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = f.offers.VerifyGuest(ctx, guest, "abc", "new@firm.ch", "123456", companyX.ID)
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = f.offers.RegisterDamageRequestIfNotExists(ctx, "abc", companyX.ID, "")
	requireCode(t, err, apperrors.CodeNotFound)

	assert.Empty(t, f.metrics.Snapshot().TransitionFails[apperrors.CodeTransitionFailed])
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.report(t, owner)
	before, err := f.repos.Audit.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		errs      = make(chan error, workers)
		start     = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.move(ticket.ID, owner, domain.StatusObjectOwnerCreateDamage, domain.StatusOwnerSendToCompanyWithOffer,
				workflow.Payload{CompanyIDs: []string{companyX.ID}})
			if err != nil {
				errs <- err
				return
			}
			successes.Add(1)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	assert.EqualValues(t, 1, successes.Load())
	for err := range errs {
		requireCode(t, err, apperrors.CodeStaleState)
	}
	assert.Len(t, f.activeRequests(t, ticket.ID), 1)

	after, err := f.repos.Audit.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)
}

func TestNotificationFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	ticket := f.report(t, owner)
	f.notifier.err = errors.New("smtp down")

	res, err := f.move(ticket.ID, owner, domain.StatusObjectOwnerCreateDamage, domain.StatusOwnerCloseTheDamage, workflow.Payload{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOwnerCloseTheDamage, res.Ticket.Status)
	assert.Positive(t, f.metrics.Snapshot().PublishFailures)
}

func TestCancelledContextFailsTransition(t *testing.T) {
	f := newFixture(t)
	ticket := f.report(t, owner)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.ApplyTransition(ctx, TransitionCommand{
		TicketID:      ticket.ID,
		Actor:         owner,
		To:            domain.StatusOwnerCloseTheDamage,
		CurrentStatus: domain.StatusObjectOwnerCreateDamage,
	})
	requireCode(t, err, apperrors.CodeTransitionFailed)
}

func TestScopeAndPartyGuards(t *testing.T) {
	f := newFixture(t)
	ticket := f.report(t, tenant)

	_, err := f.move(ticket.ID, outsider, domain.StatusTenantCreateDamage, domain.StatusOwnerCloseTheDamage, workflow.Payload{})
	requireCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.move(ticket.ID, janitor, domain.StatusTenantCreateDamage, domain.StatusOwnerCloseTheDamage, workflow.Payload{})
	requireCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.move(ticket.ID, owner, domain.StatusTenantCreateDamage, domain.StatusOwnerSendToCompanyWithOffer, workflow.Payload{})
	requireCode(t, err, apperrors.CodeMissingField)
	assert.Equal(t, []string{"company_ids"}, apperrors.ToDomainError(err).Details["fields"])

	f.mustMove(t, ticket.ID, owner, domain.StatusTenantCreateDamage, domain.StatusOwnerSendToCompanyWithOffer,
		workflow.Payload{CompanyIDs: []string{companyX.ID}})

	_, err = f.move(ticket.ID, companyY, domain.StatusOwnerSendToCompanyWithOffer, domain.StatusCompanyAcceptsDamageWithOffer, workflow.Payload{})
	requireCode(t, err, apperrors.CodePermissionDenied)

	_, err = f.move(ticket.ID, companyX, domain.StatusOwnerSendToCompanyWithOffer, domain.StatusCompanyGiveOfferToTenant,
		workflow.Payload{Amount: floatPtr(120)})
	requireCode(t, err, apperrors.CodeIllegalTransition)

	_, err = f.move(ticket.ID, tenant, domain.StatusOwnerSendToCompanyWithOffer, domain.StatusTenantCloseTheDamage, workflow.Payload{})
	requireCode(t, err, apperrors.CodeIllegalTransition)

	_, err = f.move(ticket.ID, companyX, domain.StatusOwnerSendToCompanyWithOffer, domain.StatusCompanyGiveOfferToOwner,
		workflow.Payload{Amount: floatPtr(0)})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestAcceptingDecidedOfferIsStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.report(t, owner)
	f.mustMove(t, ticket.ID, owner, domain.StatusObjectOwnerCreateDamage, domain.StatusOwnerSendToCompanyWithOffer,
		workflow.Payload{CompanyIDs: []string{companyX.ID}})
	offer, err := f.offers.CreateOffer(ctx, companyX, ticket.ID, domain.StatusOwnerSendToCompanyWithOffer, OfferInput{Amount: 90})
	require.NoError(t, err)

	_, err = f.offers.RejectOffer(ctx, owner, offer.ID, "", domain.StatusCompanyGiveOfferToOwner)
	requireCode(t, err, apperrors.CodeMissingField)
	res, err := f.offers.RejectOffer(ctx, owner, offer.ID, "zu teuer", domain.StatusCompanyGiveOfferToOwner)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStateRejected, res.Offer.State)
	assert.Equal(t, "zu teuer", res.Offer.RejectReason)

	_, err = f.offers.AcceptOffer(ctx, owner, offer.ID, domain.StatusOwnerRejectsTheOffer)
	requireCode(t, err, apperrors.CodeStaleState)

	_, err = f.offers.AcceptOffer(ctx, owner, "missing", domain.StatusOwnerRejectsTheOffer)
	requireCode(t, err, apperrors.CodeNotFound)

	revised, err := f.offers.CreateOffer(ctx, companyX, ticket.ID, domain.StatusOwnerRejectsTheOffer, OfferInput{Amount: 75})
	require.NoError(t, err)
	res, err = f.offers.AcceptOffer(ctx, admin, revised.ID, domain.StatusCompanyGiveOfferToOwner)
	require.NoError(t, err)
	assert.Equal(t, companyX.ID, *res.Ticket.AssignedCompanyID)
	assert.Equal(t, admin.ID, *res.Ticket.CompanyAssignedBy)
}

func TestDefectReopensRepair(t *testing.T) {
	f := newFixture(t)
	ticket := f.report(t, owner)
	f.mustMove(t, ticket.ID, owner, domain.StatusObjectOwnerCreateDamage, domain.StatusOwnerSendToCompanyWithoutOffer,
		workflow.Payload{CompanyIDs: []string{companyX.ID}})
	res := f.mustMove(t, ticket.ID, companyX, domain.StatusOwnerSendToCompanyWithoutOffer, domain.StatusCompanyAcceptsDamageWithout, workflow.Payload{})
	assert.Equal(t, companyX.ID, *res.Ticket.AssignedCompanyID)
	assert.Equal(t, owner.ID, *res.Ticket.CompanyAssignedBy)

	f.mustMove(t, ticket.ID, companyX, domain.StatusCompanyAcceptsDamageWithout, domain.StatusCompanyScheduleDate,
		workflow.Payload{Date: "2024-03-01", Time: "08:00"})
	f.mustMove(t, ticket.ID, owner, domain.StatusCompanyScheduleDate, domain.StatusOwnerAcceptsDate, workflow.Payload{})
	f.mustMove(t, ticket.ID, companyX, domain.StatusOwnerAcceptsDate, domain.StatusRepairConfirmed, workflow.Payload{Signature: "sig"})

	_, err := f.move(ticket.ID, owner, domain.StatusRepairConfirmed, domain.StatusDefectRaised, workflow.Payload{})
	requireCode(t, err, apperrors.CodeMissingField)
	res = f.mustMove(t, ticket.ID, owner, domain.StatusRepairConfirmed, domain.StatusDefectRaised,
		workflow.Payload{DefectTitle: "tropft wieder", AttachmentRefs: []string{"https://cdn.example.com/d/1.jpg"}})
	require.NotNil(t, res.Defect)
	assert.Equal(t, 1, res.Defect.Number)
	require.Len(t, res.Defect.Attachments, 1)

	f.mustMove(t, ticket.ID, companyX, domain.StatusDefectRaised, domain.StatusRepairConfirmed, workflow.Payload{Signature: "sig-2"})
	res = f.mustMove(t, ticket.ID, owner, domain.StatusRepairConfirmed, domain.StatusDefectRaised, workflow.Payload{DefectTitle: "Fuge"})
	assert.Equal(t, 2, res.Defect.Number)
}
