package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/events"
	"github.com/balu-property/damage-service/internal/observability"
	"github.com/balu-property/damage-service/internal/repository"
	"github.com/balu-property/damage-service/internal/storage"
	"github.com/balu-property/damage-service/internal/workflow"
	apperrors "github.com/balu-property/damage-service/pkg/util/errorutil"
)

// WorkflowService is the only writer of a damage's status.
type WorkflowService struct {
	tx        repository.TxManager
	tickets   repository.TicketRepository
	defects   repository.DefectRepository
	ledger    *offerLedger
	access    *access
	audit     *AuditRecorder
	publisher *eventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// WorkflowDependencies bundles collaborators for the engine.
type WorkflowDependencies struct {
	Repos      repository.Repositories
	Documents  storage.DocumentStore
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// Location is the zone schedule dates are entered in.
	Location   *time.Location
	BcryptCost int
}

// NewWorkflowService creates the engine.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	documents := deps.Documents
	if documents == nil {
		documents = storage.NewURLStore()
	}
	return &WorkflowService{
		tx:        deps.Repos.Tx,
		tickets:   deps.Repos.Tickets,
		defects:   deps.Repos.Defects,
		ledger:    newOfferLedger(deps.Repos, documents, deps.BcryptCost),
		access:    newAccess(deps.Repos),
		audit:     NewAuditRecorder(deps.Repos.Audit),
		publisher: newEventPublisher(deps.Dispatcher, deps.Metrics, logger),
		metrics:   deps.Metrics,
		logger:    logger,
		location:  loc,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// TransitionCommand asks to move a damage from CurrentStatus to To.
type TransitionCommand struct {
	TicketID      string
	Actor         domain.Actor
	To            domain.Status
	CurrentStatus domain.Status
	Payload       workflow.Payload
}

// TransitionResult describes an applied transition.
type TransitionResult struct {
	Ticket   *domain.Ticket
	From     domain.Status
	To       domain.Status
	Offer    *domain.DamageOffer
	Requests []domain.DamageRequest
	Defect   *domain.Defect
	Audit    *domain.AuditEntry

	pending []events.Event
}

// ApplyTransition validates and applies one status change in a single transaction.
// Taxonomy errors are returned as they are; anything else becomes TransitionFailed.
func (s *WorkflowService) ApplyTransition(ctx context.Context, cmd TransitionCommand) (*TransitionResult, error) {
	var result *TransitionResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.applyInTx(ctx, cmd)
		return err
	})
	if err != nil {
		err = s.fail(cmd, err)
		return nil, err
	}

	s.metrics.RecordTransition(string(result.From), string(result.To))
	s.logger.Info("damage status changed",
		zap.String("damage_id", result.Ticket.ID),
		zap.String("actor_id", cmd.Actor.ID),
		zap.String("from", string(result.From)),
		zap.String("to", string(result.To)))
	s.publisher.publishAll(ctx, result.pending)
	return result, nil
}

func (s *WorkflowService) fail(cmd TransitionCommand, err error) error {
	if !apperrors.IsDomainError(err) {
		s.logger.Error("transition failed",
			zap.String("damage_id", cmd.TicketID),
			zap.String("to", string(cmd.To)),
			zap.Error(err))
		err = apperrors.NewTransitionFailed(err)
	}
	s.metrics.RecordTransitionFailure(apperrors.ToDomainError(err).Code)
	return err
}

func (s *WorkflowService) applyInTx(ctx context.Context, cmd TransitionCommand) (*TransitionResult, error) {
	ticket, err := loadTicket(ctx, s.tickets, cmd.TicketID, true)
	if err != nil {
		return nil, err
	}
	if ticket.Status != cmd.CurrentStatus {
		return nil, apperrors.NewStaleState(string(cmd.CurrentStatus), string(ticket.Status))
	}
	rule, ok := workflow.Lookup(ticket.Status, cmd.To)
	if !ok {
		return nil, apperrors.NewIllegalTransition(string(ticket.Status), string(cmd.To))
	}
	if !rule.Permits(cmd.Actor.Role) {
		return nil, apperrors.NewPermissionDenied("role " + string(cmd.Actor.Role) + " may not move the damage to " + string(cmd.To))
	}
	if err := s.access.checkRule(ctx, ticket, rule, cmd.Actor); err != nil {
		return nil, err
	}
	if rule.PartyGuard != "" && ticket.Party != rule.PartyGuard {
		return nil, apperrors.NewIllegalTransition(string(ticket.Status), string(cmd.To))
	}
	if missing := workflow.MissingFields(rule, cmd.Payload); len(missing) > 0 {
		return nil, apperrors.NewMissingField(missing...)
	}
	parsed, err := s.parsePayload(rule, cmd.Payload)
	if err != nil {
		return nil, err
	}

	result := &TransitionResult{Ticket: ticket, From: ticket.Status, To: rule.To}
	if err := s.applyEffects(ctx, rule, cmd, parsed, result); err != nil {
		return nil, err
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	moved, err := s.tickets.UpdateStatus(ctx, ticket.ID, rule.From, rule.To)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, apperrors.NewStaleState(string(rule.From), "changed concurrently")
	}
	ticket.Status = rule.To

	entry, err := s.audit.Append(ctx, ticket.ID, cmd.Actor, domain.AuditStatusChanged,
		statusPtr(result.From), statusPtr(result.To), s.auditPayload(cmd.Payload, result))
	if err != nil {
		return nil, err
	}
	result.Audit = entry

	if err := s.collectEvents(ctx, cmd, result); err != nil {
		return nil, err
	}
	return result, nil
}

type parsedPayload struct {
	scheduledAt   time.Time
	requestedDate *time.Time
}

func (s *WorkflowService) parsePayload(rule workflow.Rule, p workflow.Payload) (parsedPayload, error) {
	var out parsedPayload
	if rule.Has(workflow.EffectSchedule) {
		at, err := p.ScheduledAt(s.location)
		if err != nil {
			return out, apperrors.NewValidationError(err.Error(), map[string]any{"date": p.Date, "time": p.Time})
		}
		out.scheduledAt = at.UTC()
	}
	if rule.Has(workflow.EffectRequestOffers) || rule.Has(workflow.EffectRequestWork) {
		d, err := p.RequestedAt()
		if err != nil {
			return out, apperrors.NewValidationError(err.Error(), map[string]any{"requested_date": p.RequestedDate})
		}
		out.requestedDate = d
	}
	if rule.Has(workflow.EffectCreateOffer) && p.Amount != nil {
		if err := validateOffer(offerInputFrom(p)); err != nil {
			return out, err
		}
	}
	return out, nil
}

func offerInputFrom(p workflow.Payload) OfferInput {
	in := OfferInput{
		Description:    p.Description,
		CustomFields:   p.CustomFields,
		PriceSplit:     p.PriceSplit,
		AttachmentRefs: p.AttachmentRefs,
	}
	if p.Amount != nil {
		in.Amount = *p.Amount
	}
	return in
}

func (s *WorkflowService) applyEffects(ctx context.Context, rule workflow.Rule, cmd TransitionCommand, parsed parsedPayload, result *TransitionResult) error {
	ticket := result.Ticket
	actor := cmd.Actor
	p := cmd.Payload

	if rule.Has(workflow.EffectSetParty) {
		ticket.Party = rule.SetsParty
	}

	if rule.Has(workflow.EffectRequestOffers) || rule.Has(workflow.EffectRequestWork) {
		targets := RequestTargets{CompanyIDs: p.CompanyIDs, CompanyEmails: p.CompanyEmails}
		outcomes, err := s.ledger.requestCompanies(ctx, ticket, actor, targets, rule.Has(workflow.EffectRequestOffers), parsed.requestedDate)
		if err != nil {
			return err
		}
		for _, out := range outcomes {
			result.Requests = append(result.Requests, *out.Request)
			if out.Code != "" {
				result.pending = append(result.pending, placeholderInvite(ticket, actor, out))
			}
		}
	}

	if rule.Has(workflow.EffectWithdrawRequest) {
		req, err := s.ledger.withdrawRequest(ctx, ticket, actor.ID)
		if err != nil {
			return err
		}
		if req != nil {
			result.Requests = append(result.Requests, *req)
		}
	}

	if rule.Has(workflow.EffectAssignCompany) {
		assignedBy := actor.ID
		if req, err := s.ledger.checkRequestAlreadyInitiated(ctx, ticket.ID, &actor.ID, ""); err != nil {
			return err
		} else if req != nil {
			assignedBy = req.RequestedBy
		}
		companyID := actor.ID
		ticket.AssignedCompanyID = &companyID
		ticket.CompanyAssignedBy = &assignedBy
	}

	if rule.Has(workflow.EffectCreateOffer) {
		offer, err := s.ledger.createOffer(ctx, ticket, actor.ID, offerInputFrom(p))
		if err != nil {
			return err
		}
		result.Offer = offer
	}

	if rule.Has(workflow.EffectAcceptOffer) {
		offer, err := s.ledger.acceptOffer(ctx, ticket, p.OfferID)
		if err != nil {
			return err
		}
		companyID, assignedBy := offer.CompanyID, actor.ID
		ticket.AssignedCompanyID = &companyID
		ticket.CompanyAssignedBy = &assignedBy
		result.Offer = offer
	}

	if rule.Has(workflow.EffectRejectOffer) {
		offer, err := s.ledger.rejectOffer(ctx, ticket, p.OfferID, p.Comment)
		if err != nil {
			return err
		}
		result.Offer = offer
	}

	if rule.Has(workflow.EffectSchedule) {
		at := parsed.scheduledAt
		ticket.ScheduledAt = &at
	}

	if rule.Has(workflow.EffectConfirmRepair) {
		now := s.now()
		ticket.RepairSignature = strings.TrimSpace(p.Signature)
		ticket.RepairConfirmedAt = &now
	}

	if rule.Has(workflow.EffectCreateDefect) {
		defect := &domain.Defect{
			ID:          uuid.NewString(),
			TicketID:    ticket.ID,
			Title:       strings.TrimSpace(p.DefectTitle),
			Description: strings.TrimSpace(p.DefectDescription),
			RaisedBy:    actor.ID,
		}
		if err := s.defects.Create(ctx, defect); err != nil {
			return err
		}
		files, err := s.ledger.storeAttachments(ctx, defect.ID, p.AttachmentRefs)
		if err != nil {
			return err
		}
		defect.Attachments = files
		result.Defect = defect
	}
	return nil
}

func (s *WorkflowService) auditPayload(p workflow.Payload, result *TransitionResult) map[string]any {
	payload := p.Summary()
	if result.Offer != nil {
		payload["offer_id"] = result.Offer.ID
		payload["offer_state"] = string(result.Offer.State)
		payload["company_id"] = result.Offer.CompanyID
	}
	if result.Defect != nil {
		payload["defect_id"] = result.Defect.ID
		payload["defect_number"] = result.Defect.Number
	}
	if len(result.Requests) > 0 {
		ids := make([]string, 0, len(result.Requests))
		for _, req := range result.Requests {
			ids = append(ids, req.ID)
		}
		payload["request_ids"] = ids
	}
	if result.Ticket.AssignedCompanyID != nil {
		payload["assigned_company_id"] = *result.Ticket.AssignedCompanyID
	}
	return payload
}

func (s *WorkflowService) collectEvents(ctx context.Context, cmd TransitionCommand, result *TransitionResult) error {
	recipients, err := s.access.recipients(ctx, result.Ticket, cmd.Actor)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"from":    string(result.From),
		"to":      string(result.To),
		"number":  result.Ticket.Number,
		"comment": strings.TrimSpace(cmd.Payload.Comment),
	}
	if result.Offer != nil {
		payload["offer_id"] = result.Offer.ID
	}
	if result.Ticket.ScheduledAt != nil && result.To == domain.StatusCompanyScheduleDate {
		payload["scheduled_at"] = result.Ticket.ScheduledAt.Format(time.RFC3339)
	}
	ev := events.New(events.EventDamageStatusChanged, result.Ticket.ID, cmd.Actor, payload)
	ev.Recipients = recipients
	result.pending = append([]events.Event{ev}, result.pending...)

	if result.Defect != nil {
		defectEv := events.New(events.EventDefectRaised, result.Ticket.ID, cmd.Actor, map[string]any{
			"defect_id": result.Defect.ID,
			"number":    result.Defect.Number,
			"title":     result.Defect.Title,
		})
		defectEv.Recipients = recipients
		result.pending = append(result.pending, defectEv)
	}
	return nil
}

func placeholderInvite(ticket *domain.Ticket, actor domain.Actor, out requestOutcome) events.Event {
	ev := events.New(events.EventOfferRequested, ticket.ID, actor, map[string]any{
		"request_id":        out.Request.ID,
		"with_offer":        out.Request.WithOffer,
		"verification_code": out.Code,
	})
	ev.Recipients = []events.Recipient{{Role: domain.RoleCompany, Email: out.Request.Email}}
	return ev
}

// eventPublisher hands events to the dispatcher after commit. Failures are logged and
// counted, never returned.
type eventPublisher struct {
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

func newEventPublisher(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *eventPublisher {
	return &eventPublisher{dispatcher: dispatcher, metrics: metrics, logger: logger}
}

func (p *eventPublisher) publishAll(ctx context.Context, evs []events.Event) {
	for _, ev := range evs {
		p.publish(ctx, ev)
	}
}

func (p *eventPublisher) publish(ctx context.Context, ev events.Event) {
	if p == nil || p.dispatcher == nil {
		return
	}
	if err := p.dispatcher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		p.metrics.RecordPublishFailure()
		p.logger.Warn("event publish failed",
			zap.String("event_type", string(ev.Type)),
			zap.String("damage_id", ev.TicketID),
			zap.Error(err))
	}
}
