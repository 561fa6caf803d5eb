package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/balu-property/damage-service/internal/auth"
	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/events"
	"github.com/balu-property/damage-service/internal/observability"
	"github.com/balu-property/damage-service/internal/repository"
	"github.com/balu-property/damage-service/internal/storage"
	"github.com/balu-property/damage-service/internal/workflow"
	apperrors "github.com/balu-property/damage-service/pkg/util/errorutil"
)

// OfferService is the public entry to offers and company requests.
type OfferService struct {
	repos     repository.Repositories
	engine    *WorkflowService
	ledger    *offerLedger
	access    *access
	audit     *AuditRecorder
	publisher *eventPublisher
	logger    *zap.Logger
}

// OfferDependencies bundles collaborators for the offer service.
type OfferDependencies struct {
	Repos      repository.Repositories
	Engine     *WorkflowService
	Documents  storage.DocumentStore
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	BcryptCost int
}

// NewOfferService creates the service.
func NewOfferService(deps OfferDependencies) *OfferService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	documents := deps.Documents
	if documents == nil {
		documents = storage.NewURLStore()
	}
	return &OfferService{
		repos:     deps.Repos,
		engine:    deps.Engine,
		ledger:    newOfferLedger(deps.Repos, documents, deps.BcryptCost),
		access:    newAccess(deps.Repos),
		audit:     NewAuditRecorder(deps.Repos.Audit),
		publisher: newEventPublisher(deps.Dispatcher, deps.Metrics, logger),
		logger:    logger,
	}
}

// CreateOffer submits a company's offer. The first offer moves the damage to
// COMPANY_GIVE_OFFER_TO_{party}; later bidders are recorded without a status change.
func (s *OfferService) CreateOffer(ctx context.Context, actor domain.Actor, ticketID string, claim domain.Status, input OfferInput) (*domain.DamageOffer, error) {
	if actor.Role != domain.RoleCompany {
		return nil, apperrors.NewPermissionDenied("only companies submit offers")
	}
	ticket, err := loadTicket(ctx, s.repos.Tickets, ticketID, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	target := domain.GiveOfferStatus(ticket.Party)

	if ticket.Status != target {
		amount := input.Amount
		result, err := s.engine.ApplyTransition(ctx, TransitionCommand{
			TicketID:      ticketID,
			Actor:         actor,
			To:            target,
			CurrentStatus: claim,
			Payload: workflow.Payload{
				Amount:         &amount,
				Description:    input.Description,
				CustomFields:   input.CustomFields,
				PriceSplit:     input.PriceSplit,
				AttachmentRefs: input.AttachmentRefs,
			},
		})
		if err != nil {
			return nil, err
		}
		return result.Offer, nil
	}

	if claim != ticket.Status {
		return nil, apperrors.NewStaleState(string(claim), string(ticket.Status))
	}

	var offer *domain.DamageOffer
	err = s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		locked, err := loadTicket(ctx, s.repos.Tickets, ticketID, true)
		if err != nil {
			return err
		}
		if locked.Status != target {
			return apperrors.NewStaleState(string(target), string(locked.Status))
		}
		ok, err := s.access.requested(ctx, locked, actor.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NewPermissionDenied("company was not asked for an offer")
		}
		if offer, err = s.ledger.createOffer(ctx, locked, actor.ID, input); err != nil {
			return err
		}
		_, err = s.audit.Append(ctx, locked.ID, actor, domain.AuditOfferCreated, nil, nil, map[string]any{
			"offer_id": offer.ID,
			"amount":   offer.Amount,
		})
		ticket = locked
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishOfferEvent(ctx, events.EventOfferCreated, ticket, actor, map[string]any{
		"offer_id": offer.ID,
		"amount":   offer.Amount,
	})
	return offer, nil
}

// AcceptOffer runs the role-appropriate ACCEPTS transition for the offer.
func (s *OfferService) AcceptOffer(ctx context.Context, actor domain.Actor, offerID string, claim domain.Status) (*TransitionResult, error) {
	offer, err := s.openOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	to, ok := decisionStatus(actor.Role, true)
	if !ok {
		return nil, apperrors.NewPermissionDenied("role " + string(actor.Role) + " cannot decide offers")
	}
	return s.engine.ApplyTransition(ctx, TransitionCommand{
		TicketID:      offer.TicketID,
		Actor:         actor,
		To:            to,
		CurrentStatus: claim,
		Payload:       workflow.Payload{OfferID: offer.ID},
	})
}

// RejectOffer runs the role-appropriate REJECTS transition; the offer keeps the reason.
func (s *OfferService) RejectOffer(ctx context.Context, actor domain.Actor, offerID, reason string, claim domain.Status) (*TransitionResult, error) {
	offer, err := s.openOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	to, ok := decisionStatus(actor.Role, false)
	if !ok {
		return nil, apperrors.NewPermissionDenied("role " + string(actor.Role) + " cannot decide offers")
	}
	return s.engine.ApplyTransition(ctx, TransitionCommand{
		TicketID:      offer.TicketID,
		Actor:         actor,
		To:            to,
		CurrentStatus: claim,
		Payload:       workflow.Payload{OfferID: offer.ID, Comment: reason},
	})
}

func (s *OfferService) openOffer(ctx context.Context, offerID string) (*domain.DamageOffer, error) {
	if !validID(offerID) {
		return nil, apperrors.NewNotFound("offer", map[string]any{"offer_id": offerID})
	}
	offer, err := s.repos.Offers.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("offer", map[string]any{"offer_id": offerID})
		}
		return nil, apperrors.MapError(err)
	}
	return offer, nil
}

func decisionStatus(role domain.Role, accept bool) (domain.Status, bool) {
	switch {
	case role == domain.RoleTenant && accept:
		return domain.StatusTenantAcceptsTheOffer, true
	case role == domain.RoleTenant:
		return domain.StatusTenantRejectsTheOffer, true
	case role.IsOwnerSide() && accept:
		return domain.StatusOwnerAcceptsTheOffer, true
	case role.IsOwnerSide():
		return domain.StatusOwnerRejectsTheOffer, true
	}
	return "", false
}

// requestableStatuses are the statuses in which more companies may be invited directly.
var requestableStatuses = map[domain.Status]bool{
	domain.StatusOwnerSendToCompanyWithOffer:     true,
	domain.StatusOwnerSendToCompanyWithoutOffer:  true,
	domain.StatusTenantSendToCompanyWithOffer:    true,
	domain.StatusTenantSendToCompanyWithoutOffer: true,
	domain.StatusCompanyAcceptsDamageWithOffer:   true,
	domain.StatusCompanyGiveOfferToOwner:         true,
	domain.StatusCompanyGiveOfferToTenant:        true,
}

// RequestOffer invites further companies while the damage is out for offers.
// Existing active requests are merged, never duplicated.
func (s *OfferService) RequestOffer(ctx context.Context, actor domain.Actor, ticketID string, targets RequestTargets, requestedDate *time.Time) ([]domain.DamageRequest, error) {
	if targets.empty() {
		return nil, apperrors.NewMissingField("company_ids")
	}

	var (
		ticket   *domain.Ticket
		outcomes []requestOutcome
	)
	err := s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = loadTicket(ctx, s.repos.Tickets, ticketID, true)
		if err != nil {
			return err
		}
		if !requestableStatuses[ticket.Status] {
			return apperrors.NewValidationError("companies cannot be invited in the current status", map[string]any{"status": string(ticket.Status)})
		}
		if err := s.checkDrivesParty(ctx, ticket, actor); err != nil {
			return err
		}
		withOffer := ticket.Status != domain.StatusOwnerSendToCompanyWithoutOffer &&
			ticket.Status != domain.StatusTenantSendToCompanyWithoutOffer
		outcomes, err = s.ledger.requestCompanies(ctx, ticket, actor, targets, withOffer, requestedDate)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(outcomes))
		merged := 0
		for _, out := range outcomes {
			ids = append(ids, out.Request.ID)
			if out.Merged {
				merged++
			}
		}
		_, err = s.audit.Append(ctx, ticket.ID, actor, domain.AuditOfferRequested, nil, nil, map[string]any{
			"request_ids": ids,
			"merged":      merged,
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	requests := make([]domain.DamageRequest, 0, len(outcomes))
	for _, out := range outcomes {
		requests = append(requests, *out.Request)
		if out.Code != "" {
			s.publisher.publish(ctx, placeholderInvite(ticket, actor, out))
			continue
		}
		if out.Merged || out.Request.CompanyID == nil {
			continue
		}
		ev := events.New(events.EventOfferRequested, ticket.ID, actor, map[string]any{
			"request_id": out.Request.ID,
			"with_offer": out.Request.WithOffer,
		})
		ev.Recipients = []events.Recipient{{ActorID: *out.Request.CompanyID, Role: domain.RoleCompany, Email: out.Request.Email}}
		s.publisher.publish(ctx, ev)
	}
	return requests, nil
}

// checkDrivesParty admits the side currently driving the damage.
func (s *OfferService) checkDrivesParty(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) error {
	var (
		ok  bool
		err error
	)
	switch ticket.Party {
	case domain.PartyTenant:
		ok, err = s.access.tenant(ctx, ticket, actor)
	default:
		ok, err = s.access.ownerSide(ctx, ticket, actor)
	}
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewPermissionDenied("actor does not drive this damage")
	}
	return nil
}

// RegisterDamageRequestIfNotExists binds the pending e-mail invitations addressed to the
// company's registered e-mail. It never invites a company on its own: a company with
// neither a placeholder nor an active request is denied. Repeated calls change nothing.
func (s *OfferService) RegisterDamageRequestIfNotExists(ctx context.Context, ticketID, companyID, email string) ([]domain.DamageRequest, error) {
	company, err := s.company(ctx, companyID)
	if err != nil {
		return nil, err
	}
	registered := domain.NormalizeEmail(company.Email)
	if email = domain.NormalizeEmail(email); email != "" && email != registered {
		return nil, apperrors.NewPermissionDenied("e-mail does not belong to the company")
	}
	return s.reconcile(ctx, ticketID, company, registered)
}

// VerifyGuest checks the code sent to an invited e-mail and binds the invitation. A company
// caller binds to itself; a guest may only name a company registered under the verified e-mail.
func (s *OfferService) VerifyGuest(ctx context.Context, actor domain.Actor, ticketID, email, code, companyID string) ([]domain.DamageRequest, error) {
	switch actor.Role {
	case domain.RoleCompany:
		companyID = actor.ID
	case domain.RoleGuest:
	default:
		return nil, apperrors.NewPermissionDenied("only guests and companies verify invitations")
	}
	if strings.TrimSpace(companyID) == "" {
		return nil, apperrors.NewMissingField("company_id")
	}

	ticket, err := loadTicket(ctx, s.repos.Tickets, ticketID, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	email = domain.NormalizeEmail(email)
	placeholders, err := s.repos.Requests.ListPlaceholdersByEmail(ctx, ticket.ID, email)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	verified := false
	for _, req := range placeholders {
		if req.VerificationHash != "" && auth.CompareCode(req.VerificationHash, strings.TrimSpace(code)) == nil {
			verified = true
			break
		}
	}
	if !verified {
		return nil, apperrors.NewPermissionDenied("verification failed")
	}

	company, err := s.company(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleGuest && domain.NormalizeEmail(company.Email) != email {
		return nil, apperrors.NewPermissionDenied("company is not registered under the verified e-mail")
	}
	return s.reconcile(ctx, ticket.ID, company, email)
}

func (s *OfferService) company(ctx context.Context, companyID string) (*domain.Company, error) {
	company, err := s.repos.Companies.GetByID(ctx, strings.TrimSpace(companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("company", map[string]any{"company_id": companyID})
		}
		return nil, apperrors.MapError(err)
	}
	return company, nil
}

// reconcile moves the placeholders of email over to company inside one transaction.
func (s *OfferService) reconcile(ctx context.Context, ticketID string, company *domain.Company, email string) ([]domain.DamageRequest, error) {
	var (
		ticket  *domain.Ticket
		changed []domain.DamageRequest
	)
	by := domain.Actor{ID: company.ID, Role: domain.RoleCompany}
	err := s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = loadTicket(ctx, s.repos.Tickets, ticketID, true)
		if err != nil {
			return err
		}
		if ticket.Status.IsTerminal() {
			return apperrors.NewValidationError("damage is closed", map[string]any{"status": ticket.Status})
		}

		if email != "" {
			changed, err = s.ledger.bindPlaceholders(ctx, ticket.ID, company, email)
			if err != nil {
				return err
			}
		}
		if len(changed) == 0 {
			existing, err := s.ledger.checkRequestAlreadyInitiated(ctx, ticket.ID, &company.ID, "")
			if err != nil {
				return err
			}
			if existing == nil {
				return apperrors.NewPermissionDenied("company was not invited to this damage")
			}
			return nil
		}

		ids := make([]string, 0, len(changed))
		for _, req := range changed {
			ids = append(ids, req.ID)
		}
		_, err = s.audit.Append(ctx, ticket.ID, by, domain.AuditRequestReconciled, nil, nil, map[string]any{
			"company_id":  company.ID,
			"email":       email,
			"request_ids": ids,
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if len(changed) > 0 {
		s.publishOfferEvent(ctx, events.EventRequestReconciled, ticket, by, map[string]any{
			"company_id": company.ID,
		})
	}
	return changed, nil
}

// List returns the offers the actor may see; companies only see their own.
func (s *OfferService) List(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.DamageOffer, error) {
	ticket, err := loadTicket(ctx, s.repos.Tickets, ticketID, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ok, err := s.access.canView(ctx, ticket, actor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !ok {
		return nil, apperrors.NewPermissionDenied("damage not visible to actor")
	}

	offers, err := s.repos.Offers.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := make([]domain.DamageOffer, 0, len(offers))
	for _, offer := range offers {
		if actor.Role == domain.RoleCompany && offer.CompanyID != actor.ID {
			continue
		}
		files, err := s.repos.Attachments.ListByOwner(ctx, offer.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		offer.Attachments = files
		out = append(out, offer)
	}
	return out, nil
}

func (s *OfferService) publishOfferEvent(ctx context.Context, eventType events.EventType, ticket *domain.Ticket, actor domain.Actor, payload map[string]any) {
	recipients, err := s.access.recipients(ctx, ticket, actor)
	if err != nil {
		s.logger.Warn("resolve recipients failed", zap.String("damage_id", ticket.ID), zap.Error(err))
	}
	ev := events.New(eventType, ticket.ID, actor, payload)
	ev.Recipients = recipients
	s.publisher.publish(ctx, ev)
}
