package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/events"
	"github.com/balu-property/damage-service/internal/repository"
	"github.com/balu-property/damage-service/internal/workflow"
	apperrors "github.com/balu-property/damage-service/pkg/util/errorutil"
)

// access answers who may see or drive a ticket.
type access struct {
	apartments repository.ApartmentRepository
	requests   repository.DamageRequestRepository
	offers     repository.OfferRepository
}

func newAccess(repos repository.Repositories) *access {
	return &access{apartments: repos.Apartments, requests: repos.Requests, offers: repos.Offers}
}

// validID reports whether id can name a damage, offer or request row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func loadTicket(ctx context.Context, tickets repository.TicketRepository, id string, forUpdate bool) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, apperrors.NewNotFound("damage", map[string]any{"damage_id": id})
	}
	var (
		ticket *domain.Ticket
		err    error
	)
	if forUpdate {
		ticket, err = tickets.GetByIDForUpdate(ctx, id)
	} else {
		ticket, err = tickets.GetByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("damage", map[string]any{"damage_id": id})
		}
		return nil, err
	}
	if ticket.Deleted {
		return nil, apperrors.NewNotFound("damage", map[string]any{"damage_id": id})
	}
	return ticket, nil
}

func (a *access) apartment(ctx context.Context, ticket *domain.Ticket) (*domain.Apartment, error) {
	apt, err := a.apartments.GetByID(ctx, ticket.ApartmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return apt, err
}

// ownerSide reports whether the actor acts for the property owner of this ticket.
// Janitors only count once they are looped in.
func (a *access) ownerSide(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) (bool, error) {
	if !actor.Role.IsOwnerSide() {
		return false, nil
	}
	if actor.Role == domain.RoleJanitor && !ticket.JanitorLoopedIn && ticket.ReporterID != actor.ID {
		return false, nil
	}
	apt, err := a.apartment(ctx, ticket)
	if err != nil || apt == nil {
		return false, err
	}
	return apt.HasMember(actor), nil
}

// ownerOrAdmin is ownerSide without janitors.
func (a *access) ownerOrAdmin(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) (bool, error) {
	if actor.Role != domain.RoleObjectOwner && actor.Role != domain.RolePropertyAdmin {
		return false, nil
	}
	return a.ownerSide(ctx, ticket, actor)
}

func (a *access) tenant(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) (bool, error) {
	if actor.Role != domain.RoleTenant {
		return false, nil
	}
	if ticket.ReporterID == actor.ID {
		return true, nil
	}
	apt, err := a.apartment(ctx, ticket)
	if err != nil || apt == nil {
		return false, err
	}
	return apt.HasMember(actor), nil
}

func (a *access) requested(ctx context.Context, ticket *domain.Ticket, companyID string) (bool, error) {
	_, err := a.requests.FindActiveByCompany(ctx, ticket.ID, companyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// checkRule enforces the actor scope a rule implies.
func (a *access) checkRule(ctx context.Context, ticket *domain.Ticket, rule workflow.Rule, actor domain.Actor) error {
	var (
		ok  bool
		err error
	)
	switch {
	case actor.Role == domain.RoleCompany:
		switch rule.Scope {
		case workflow.ScopeAssigned:
			ok = ticket.IsAssignedTo(actor.ID)
		case workflow.ScopeRequested:
			ok, err = a.requested(ctx, ticket, actor.ID)
		default:
			ok = ticket.IsAssignedTo(actor.ID)
		}
	case actor.Role == domain.RoleTenant:
		ok, err = a.tenant(ctx, ticket, actor)
	case actor.Role.IsOwnerSide():
		ok, err = a.ownerSide(ctx, ticket, actor)
	}
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewPermissionDenied("actor is not a participant of this damage")
	}
	return nil
}

// canView decides read access for the detail projection.
func (a *access) canView(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) (bool, error) {
	switch {
	case actor.Role == domain.RoleTenant:
		return a.tenant(ctx, ticket, actor)
	case actor.Role.IsOwnerSide():
		return a.ownerSide(ctx, ticket, actor)
	case actor.Role == domain.RoleCompany:
		if ticket.IsAssignedTo(actor.ID) {
			return true, nil
		}
		if ok, err := a.requested(ctx, ticket, actor.ID); ok || err != nil {
			return ok, err
		}
		_, err := a.offers.FindActive(ctx, ticket.ID, actor.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	}
	return false, nil
}

// recipients lists everyone involved in the ticket except the acting user.
func (a *access) recipients(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) ([]events.Recipient, error) {
	seen := map[string]struct{}{actor.ID: {}}
	var out []events.Recipient
	add := func(id string, role domain.Role, email string) {
		key := id
		if key == "" {
			key = email
		}
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, events.Recipient{ActorID: id, Role: role, Email: email})
	}

	add(ticket.ReporterID, ticket.ReporterRole, "")
	apt, err := a.apartment(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if apt != nil {
		add(apt.OwnerID, domain.RoleObjectOwner, "")
		for _, id := range apt.AdminIDs {
			add(id, domain.RolePropertyAdmin, "")
		}
		if ticket.JanitorLoopedIn {
			for _, id := range apt.JanitorIDs {
				add(id, domain.RoleJanitor, "")
			}
		}
	}
	if ticket.AssignedCompanyID != nil {
		add(*ticket.AssignedCompanyID, domain.RoleCompany, "")
	}
	requests, err := a.requests.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	for _, req := range requests {
		if req.State != domain.RequestStateActive {
			continue
		}
		if req.CompanyID != nil {
			add(*req.CompanyID, domain.RoleCompany, req.Email)
		} else {
			add("", domain.RoleCompany, req.Email)
		}
	}
	return out, nil
}
