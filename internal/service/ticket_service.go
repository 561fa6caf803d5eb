package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
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

// TicketService coordinates damage creation, reads and the non-status mutations.
type TicketService struct {
	repos     repository.Repositories
	ledger    *offerLedger
	access    *access
	audit     *AuditRecorder
	tokens    *auth.TokenManager
	shareTTL  time.Duration
	publisher *eventPublisher
	logger    *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Repos      repository.Repositories
	Documents  storage.DocumentStore
	Tokens     *auth.TokenManager
	ShareTTL   time.Duration
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewTicketService creates the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	documents := deps.Documents
	if documents == nil {
		documents = storage.NewURLStore()
	}
	ttl := deps.ShareTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &TicketService{
		repos:     deps.Repos,
		ledger:    newOfferLedger(deps.Repos, documents, 0),
		access:    newAccess(deps.Repos),
		audit:     NewAuditRecorder(deps.Repos.Audit),
		tokens:    deps.Tokens,
		shareTTL:  ttl,
		publisher: newEventPublisher(deps.Dispatcher, deps.Metrics, logger),
		logger:    logger,
	}
}

// TicketCreateInput describes damage creation payload.
type TicketCreateInput struct {
	ApartmentID        string
	Title              string
	Description        string
	DeviceAffected     bool
	BarCode            string
	CategoryID         *string
	PreferredCompanyID *string
	FloorPlanImage     string
	LocationImage      string
	LoopInJanitor      bool
	ImageRefs          []string
}

// TicketListFilter narrows a scoped listing.
type TicketListFilter struct {
	Statuses    []domain.Status
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketInfo is the detail projection of a damage for one viewer.
type TicketInfo struct {
	Ticket       *domain.Ticket
	CategoryName string
	Offers       []domain.DamageOffer
	Requests     []domain.DamageRequest
	Defects      []domain.Defect
	Rating       *domain.Rating
	Log          []domain.AuditEntry
	NextStatuses []domain.Status
	ReadOnly     bool
}

// ShareLink is a signed read-only link token.
type ShareLink struct {
	Token     string
	ExpiresAt time.Time
}

// Create registers a new damage in the reporter's initial status.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	status, party, ok := domain.InitialStatusFor(actor.Role)
	if !ok {
		return nil, apperrors.NewPermissionDenied("role " + string(actor.Role) + " cannot report damages")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}

	var ticket *domain.Ticket
	err := s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		apt, err := s.repos.Apartments.GetByID(ctx, input.ApartmentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("apartment", map[string]any{"apartment_id": input.ApartmentID})
			}
			return err
		}
		if !apt.Active {
			return apperrors.NewValidationError("apartment is not active", map[string]any{"apartment_id": apt.ID})
		}
		if !apt.HasMember(actor) {
			return apperrors.NewValidationError("reporter does not belong to the apartment", map[string]any{"apartment_id": apt.ID})
		}
		if input.PreferredCompanyID != nil {
			if _, err := s.repos.Companies.GetByID(ctx, *input.PreferredCompanyID); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NewNotFound("company", map[string]any{"company_id": *input.PreferredCompanyID})
				}
				return err
			}
		}
		if input.CategoryID != nil {
			if _, err := s.repos.Categories.GetByID(ctx, *input.CategoryID); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperrors.NewNotFound("category", map[string]any{"category_id": *input.CategoryID})
				}
				return err
			}
		}

		ticket = &domain.Ticket{
			ID:                 uuid.NewString(),
			Title:              title,
			Description:        strings.TrimSpace(input.Description),
			DeviceAffected:     input.DeviceAffected,
			BarCode:            strings.TrimSpace(input.BarCode),
			CategoryID:         input.CategoryID,
			FloorPlanImage:     input.FloorPlanImage,
			LocationImage:      input.LocationImage,
			JanitorLoopedIn:    input.LoopInJanitor || actor.Role == domain.RoleJanitor,
			ReporterID:         actor.ID,
			ReporterRole:       actor.Role,
			ApartmentID:        apt.ID,
			PreferredCompanyID: input.PreferredCompanyID,
			Status:             status,
			Party:              party,
		}
		if err := s.repos.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		images, err := s.ledger.storeAttachments(ctx, ticket.ID, input.ImageRefs)
		if err != nil {
			return err
		}
		ticket.Images = images

		_, err = s.audit.Append(ctx, ticket.ID, actor, domain.AuditDamageCreated, nil, statusPtr(status), map[string]any{
			"title":        ticket.Title,
			"apartment_id": ticket.ApartmentID,
			"images":       len(images),
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("damage created",
		zap.String("damage_id", ticket.ID),
		zap.Int64("number", ticket.Number),
		zap.String("reporter_id", actor.ID),
		zap.String("status", string(ticket.Status)))
	s.publishTicketEvent(ctx, events.EventDamageCreated, ticket, actor, map[string]any{
		"number": ticket.Number,
		"title":  ticket.Title,
		"status": string(ticket.Status),
	})
	return ticket, nil
}

// SetInternalReferenceNumber stores the owner's or company's own reference.
func (s *TicketService) SetInternalReferenceNumber(ctx context.Context, actor domain.Actor, ticketID, value string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = loadTicket(ctx, s.repos.Tickets, ticketID, true)
		if err != nil {
			return err
		}
		if err := s.validatePermission(ctx, ticket, actor); err != nil {
			return err
		}
		previous := ticket.InternalReference
		ticket.InternalReference = strings.TrimSpace(value)
		if err := s.repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		_, err = s.audit.Append(ctx, ticket.ID, actor, domain.AuditInternalRefUpdated, nil, nil, map[string]any{
			"previous": previous,
			"value":    ticket.InternalReference,
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// validatePermission admits the apartment's owner or admin and the assigned company.
func (s *TicketService) validatePermission(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) error {
	if actor.Role == domain.RoleCompany && ticket.IsAssignedTo(actor.ID) {
		return nil
	}
	ok, err := s.access.ownerOrAdmin(ctx, ticket, actor)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewPermissionDenied("only the owner, the property admin or the assigned company may change the reference")
	}
	return nil
}

// SoftDelete hides a damage. The status is left untouched.
func (s *TicketService) SoftDelete(ctx context.Context, actor domain.Actor, ticketID string) error {
	err := s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		ticket, err := loadTicket(ctx, s.repos.Tickets, ticketID, true)
		if err != nil {
			return err
		}
		allowed := ticket.ReporterID == actor.ID
		if !allowed {
			if allowed, err = s.access.ownerOrAdmin(ctx, ticket, actor); err != nil {
				return err
			}
		}
		if !allowed {
			return apperrors.NewPermissionDenied("only the reporter, the owner or the property admin may delete a damage")
		}
		ticket.Deleted = true
		if err := s.repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		_, err = s.audit.Append(ctx, ticket.ID, actor, domain.AuditDamageDeleted, nil, nil, map[string]any{
			"status": string(ticket.Status),
		})
		return err
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("damage deleted", zap.String("damage_id", ticketID), zap.String("actor_id", actor.ID))
	return nil
}

// Get returns the detail projection for an authenticated viewer.
func (s *TicketService) Get(ctx context.Context, actor domain.Actor, ticketID string, locale domain.Locale) (*TicketInfo, error) {
	ticket, err := s.viewable(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	info, err := s.project(ctx, ticket, actor, locale)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return info, nil
}

// PublicInfo returns the read-only projection behind a share link, seen as the actor
// the link was issued for.
func (s *TicketService) PublicInfo(ctx context.Context, ticketID, shareToken string, locale domain.Locale) (*TicketInfo, error) {
	if strings.TrimSpace(shareToken) == "" {
		return nil, apperrors.NewUnauthorized("share token required")
	}
	actor, err := s.tokens.ParseShareToken(shareToken, ticketID)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid share token")
	}
	ticket, err := loadTicket(ctx, s.repos.Tickets, ticketID, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	info, err := s.project(ctx, ticket, actor, locale)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	info.ReadOnly = true
	info.NextStatuses = nil
	return info, nil
}

// IssueShareToken signs a public link for a damage the actor can see.
func (s *TicketService) IssueShareToken(ctx context.Context, actor domain.Actor, ticketID string) (*ShareLink, error) {
	if _, err := s.viewable(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	token, expires, err := s.tokens.IssueShareToken(ticketID, actor, s.shareTTL)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &ShareLink{Token: token, ExpiresAt: expires}, nil
}

// List returns the damages visible to the actor.
func (s *TicketService) List(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:    filter.Statuses,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	switch {
	case actor.Role == domain.RoleTenant:
		repoFilter.ReporterID = &actor.ID
	case actor.Role.IsOwnerSide():
		ids, err := s.repos.Apartments.ListIDsForMember(ctx, actor)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if len(ids) == 0 {
			return []domain.Ticket{}, nil
		}
		repoFilter.ApartmentIDs = ids
	case actor.Role == domain.RoleCompany:
		repoFilter.CompanyID = &actor.ID
	default:
		return nil, apperrors.NewPermissionDenied("role " + string(actor.Role) + " cannot list damages")
	}

	tickets, err := s.repos.Tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if actor.Role != domain.RoleJanitor {
		return tickets, nil
	}
	visible := tickets[:0]
	for _, t := range tickets {
		if t.JanitorLoopedIn || t.ReporterID == actor.ID {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

// Rate records the owner's one-time rating of a finished repair.
func (s *TicketService) Rate(ctx context.Context, actor domain.Actor, ticketID string, score int, comment string) (*domain.Rating, error) {
	if score < domain.MinRatingScore || score > domain.MaxRatingScore {
		return nil, apperrors.NewValidationError("score must be between 1 and 5", map[string]any{"score": score})
	}

	var (
		rating *domain.Rating
		ticket *domain.Ticket
	)
	err := s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		ticket, err = loadTicket(ctx, s.repos.Tickets, ticketID, true)
		if err != nil {
			return err
		}
		ok, err := s.access.ownerOrAdmin(ctx, ticket, actor)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NewPermissionDenied("only the owner or the property admin may rate a repair")
		}
		if !ratable(ticket) {
			return apperrors.NewValidationError("the repair has not been confirmed", map[string]any{"status": string(ticket.Status)})
		}
		if _, err := s.repos.Ratings.GetByTicket(ctx, ticket.ID); err == nil {
			return apperrors.NewValidationError("damage already rated", map[string]any{"damage_id": ticket.ID})
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		rating = &domain.Rating{
			ID:       uuid.NewString(),
			TicketID: ticket.ID,
			Score:    score,
			Comment:  strings.TrimSpace(comment),
			RatedBy:  actor.ID,
		}
		if err := s.repos.Ratings.Create(ctx, rating); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewValidationError("damage already rated", map[string]any{"damage_id": ticket.ID})
			}
			return err
		}
		_, err = s.audit.Append(ctx, ticket.ID, actor, domain.AuditRatingCreated, nil, nil, map[string]any{
			"rating_id": rating.ID,
			"score":     score,
		})
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishTicketEvent(ctx, events.EventRatingCreated, ticket, actor, map[string]any{
		"rating_id": rating.ID,
		"score":     rating.Score,
	})
	return rating, nil
}

func ratable(t *domain.Ticket) bool {
	switch t.Status {
	case domain.StatusRepairConfirmed:
		return true
	case domain.StatusOwnerCloseTheDamage, domain.StatusTenantCloseTheDamage:
		return t.AssignedCompanyID != nil && t.RepairConfirmedAt != nil
	}
	return false
}

// History returns the audit log ordered by Seq.
func (s *TicketService) History(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.AuditEntry, error) {
	if _, err := s.viewable(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) viewable(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
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
	return ticket, nil
}

func (s *TicketService) project(ctx context.Context, ticket *domain.Ticket, viewer domain.Actor, locale domain.Locale) (*TicketInfo, error) {
	images, err := s.repos.Attachments.ListByOwner(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.Images = images

	info := &TicketInfo{Ticket: ticket}
	if ticket.CategoryID != nil {
		category, err := s.repos.Categories.GetByID(ctx, *ticket.CategoryID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if category != nil {
			info.CategoryName = category.Name(locale)
		}
	}

	offers, err := s.repos.Offers.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	for _, offer := range offers {
		if viewer.Role == domain.RoleCompany && offer.CompanyID != viewer.ID {
			continue
		}
		files, err := s.repos.Attachments.ListByOwner(ctx, offer.ID)
		if err != nil {
			return nil, err
		}
		offer.Attachments = files
		info.Offers = append(info.Offers, offer)
	}

	requests, err := s.repos.Requests.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	for _, req := range requests {
		if viewer.Role == domain.RoleCompany && !req.IsFor(viewer.ID) {
			continue
		}
		req.VerificationHash = ""
		info.Requests = append(info.Requests, req)
	}

	defects, err := s.repos.Defects.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	for _, defect := range defects {
		files, err := s.repos.Attachments.ListByOwner(ctx, defect.ID)
		if err != nil {
			return nil, err
		}
		defect.Attachments = files
		info.Defects = append(info.Defects, defect)
	}

	rating, err := s.repos.Ratings.GetByTicket(ctx, ticket.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	info.Rating = rating

	if info.Log, err = s.audit.ListByTicket(ctx, ticket.ID); err != nil {
		return nil, err
	}
	info.NextStatuses = s.nextStatuses(ctx, ticket, viewer)
	return info, nil
}

// nextStatuses lists the transitions the viewer could fire now, ignoring payload needs.
func (s *TicketService) nextStatuses(ctx context.Context, ticket *domain.Ticket, viewer domain.Actor) []domain.Status {
	var out []domain.Status
	for _, to := range workflow.NextFor(ticket.Status, viewer.Role) {
		rule, _ := workflow.Lookup(ticket.Status, to)
		if rule.PartyGuard != "" && rule.PartyGuard != ticket.Party {
			continue
		}
		if err := s.access.checkRule(ctx, ticket, rule, viewer); err != nil {
			continue
		}
		out = append(out, to)
	}
	return out
}

func (s *TicketService) publishTicketEvent(ctx context.Context, eventType events.EventType, ticket *domain.Ticket, actor domain.Actor, payload map[string]any) {
	recipients, err := s.access.recipients(ctx, ticket, actor)
	if err != nil {
		s.logger.Warn("resolve recipients failed", zap.String("damage_id", ticket.ID), zap.Error(err))
	}
	ev := events.New(eventType, ticket.ID, actor, payload)
	ev.Recipients = recipients
	s.publisher.publish(ctx, ev)
}
