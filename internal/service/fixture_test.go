package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/balu-property/damage-service/internal/auth"
	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/events"
	"github.com/balu-property/damage-service/internal/observability"
	"github.com/balu-property/damage-service/internal/repository"
	"github.com/balu-property/damage-service/internal/repository/memory"
	"github.com/balu-property/damage-service/internal/workflow"
	apperrors "github.com/balu-property/damage-service/pkg/util/errorutil"
)

var (
	tenant   = domain.Actor{ID: "tenant-1", Role: domain.RoleTenant}
	owner    = domain.Actor{ID: "owner-1", Role: domain.RoleObjectOwner}
	admin    = domain.Actor{ID: "admin-1", Role: domain.RolePropertyAdmin}
	janitor  = domain.Actor{ID: "janitor-1", Role: domain.RoleJanitor}
	companyX = domain.Actor{ID: "company-x", Role: domain.RoleCompany}
	companyY = domain.Actor{ID: "company-y", Role: domain.RoleCompany}
	outsider = domain.Actor{ID: "owner-2", Role: domain.RoleObjectOwner}
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return r.err
}

func (r *recordingNotifier) codeFor(email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notes {
		if n.Recipient.Email == email {
			if code, ok := n.Data["verification_code"].(string); ok {
				return code
			}
		}
	}
	return ""
}

type failingAudit struct {
	repository.AuditLogRepository
}

func (failingAudit) Append(context.Context, *domain.AuditEntry) error {
	return errors.New("disk full")
}

// uuidTickets and uuidOffers reject malformed ids the way Postgres UUID columns do.
type uuidTickets struct {
	repository.TicketRepository
}

func (r uuidTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalidUUID(id)
	}
	return r.TicketRepository.GetByID(ctx, id)
}

func (r uuidTickets) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalidUUID(id)
	}
	return r.TicketRepository.GetByIDForUpdate(ctx, id)
}

type uuidOffers struct {
	repository.OfferRepository
}

func (r uuidOffers) GetByID(ctx context.Context, id string) (*domain.DamageOffer, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalidUUID(id)
	}
	return r.OfferRepository.GetByID(ctx, id)
}

func invalidUUID(id string) error {
	return &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "` + id + `"`}
}

type fixture struct {
	store    *memory.Store
	repos    repository.Repositories
	metrics  *observability.Metrics
	notifier *recordingNotifier
	tokens   *auth.TokenManager
	engine   *WorkflowService
	tickets  *TicketService
	offers   *OfferService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newStore()
	return buildFixture(store, store.Repositories())
}

func newStore() *memory.Store {
	store := memory.NewStore()
	store.PutApartment(domain.Apartment{
		ID:         "apt-1",
		Name:       "Seestrasse 4, 2. OG",
		Active:     true,
		OwnerID:    owner.ID,
		AdminIDs:   []string{admin.ID},
		JanitorIDs: []string{janitor.ID},
		TenantIDs:  []string{tenant.ID},
	})
	store.PutApartment(domain.Apartment{ID: "apt-closed", OwnerID: owner.ID, TenantIDs: []string{tenant.ID}})
	store.PutCompany(domain.Company{ID: companyX.ID, Name: "Sanitär Meier", Email: "info@meier.ch", Active: true})
	store.PutCompany(domain.Company{ID: companyY.ID, Name: "Maler Rossi", Email: "office@rossi.ch", Active: true})
	store.PutCategory(domain.Category{ID: "cat-water", Names: map[domain.Locale]string{
		domain.LocaleDE: "Wasserschaden",
		domain.LocaleEN: "Water damage",
	}})
	return store
}

func buildFixture(store *memory.Store, repos repository.Repositories) *fixture {
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	notifier := &recordingNotifier{}
	NewNotificationService(dispatcher, notifier, zap.NewNop()).RegisterHandlers()
	tokens := auth.NewTokenManager("test-secret", 5)

	engine := NewWorkflowService(WorkflowDependencies{
		Repos:      repos,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     zap.NewNop(),
		BcryptCost: bcrypt.MinCost,
	})
	return &fixture{
		store:    store,
		repos:    repos,
		metrics:  metrics,
		notifier: notifier,
		tokens:   tokens,
		engine:   engine,
		tickets: NewTicketService(TicketDependencies{
			Repos:      repos,
			Tokens:     tokens,
			Dispatcher: dispatcher,
			Metrics:    metrics,
			Logger:     zap.NewNop(),
		}),
		offers: NewOfferService(OfferDependencies{
			Repos:      repos,
			Engine:     engine,
			Dispatcher: dispatcher,
			Metrics:    metrics,
			Logger:     zap.NewNop(),
			BcryptCost: bcrypt.MinCost,
		}),
	}
}

func (f *fixture) report(t *testing.T, actor domain.Actor) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Create(context.Background(), actor, TicketCreateInput{
		ApartmentID: "apt-1",
		Title:       "Wasserhahn tropft",
		Description: "Küche, seit gestern",
		CategoryID:  strPtr("cat-water"),
	})
	require.NoError(t, err)
	return ticket
}

// seed stores a damage directly in the given status, bypassing the workflow.
func (f *fixture) seed(t *testing.T, status domain.Status, party domain.Party) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		ID:           uuid.NewString(),
		Title:        "seeded",
		ReporterID:   tenant.ID,
		ReporterRole: domain.RoleTenant,
		ApartmentID:  "apt-1",
		Status:       status,
		Party:        party,
	}
	require.NoError(t, f.repos.Tickets.Create(context.Background(), ticket))
	return ticket
}

func (f *fixture) move(ticketID string, actor domain.Actor, from, to domain.Status, p workflow.Payload) (*TransitionResult, error) {
	return f.engine.ApplyTransition(context.Background(), TransitionCommand{
		TicketID:      ticketID,
		Actor:         actor,
		To:            to,
		CurrentStatus: from,
		Payload:       p,
	})
}

func (f *fixture) mustMove(t *testing.T, ticketID string, actor domain.Actor, from, to domain.Status, p workflow.Payload) *TransitionResult {
	t.Helper()
	res, err := f.move(ticketID, actor, from, to, p)
	require.NoError(t, err, "%s -> %s", from, to)
	return res
}

func (f *fixture) activeRequests(t *testing.T, ticketID string) []domain.DamageRequest {
	t.Helper()
	all, err := f.repos.Requests.ListByTicket(context.Background(), ticketID)
	require.NoError(t, err)
	var active []domain.DamageRequest
	for _, r := range all {
		if r.State == domain.RequestStateActive {
			active = append(active, r)
		}
	}
	return active
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperrors.HasCode(err, code), "want %s, got %v", code, err)
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
