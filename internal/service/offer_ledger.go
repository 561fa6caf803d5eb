package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/balu-property/damage-service/internal/auth"
	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/repository"
	"github.com/balu-property/damage-service/internal/storage"
	apperrors "github.com/balu-property/damage-service/pkg/util/errorutil"
)

// OfferInput describes a company's priced proposal.
type OfferInput struct {
	Amount         float64
	Description    string
	CustomFields   []domain.CustomField
	PriceSplit     domain.PriceSplit
	AttachmentRefs []string
}

// RequestTargets names the companies to invite, by id or by e-mail.
type RequestTargets struct {
	CompanyIDs    []string
	CompanyEmails []string
}

func (t RequestTargets) empty() bool {
	for _, v := range append(append([]string{}, t.CompanyIDs...), t.CompanyEmails...) {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// requestOutcome reports what happened to one invitation. Code is the plain
// verification code of a new placeholder and only travels in the notification.
type requestOutcome struct {
	Request *domain.DamageRequest
	Merged  bool
	Code    string
}

// offerLedger applies offer and request side effects. Every method expects to run
// inside the caller's transaction.
type offerLedger struct {
	offers      repository.OfferRepository
	requests    repository.DamageRequestRepository
	companies   repository.CompanyRepository
	attachments repository.AttachmentRepository
	documents   storage.DocumentStore
	bcryptCost  int
}

func newOfferLedger(repos repository.Repositories, documents storage.DocumentStore, bcryptCost int) *offerLedger {
	return &offerLedger{
		offers:      repos.Offers,
		requests:    repos.Requests,
		companies:   repos.Companies,
		attachments: repos.Attachments,
		documents:   documents,
		bcryptCost:  bcryptCost,
	}
}

func validateOffer(in OfferInput) error {
	if in.Amount <= 0 {
		return apperrors.NewValidationError("amount must be greater than zero", map[string]any{"amount": in.Amount})
	}
	if in.PriceSplit.Personal < 0 || in.PriceSplit.Material < 0 {
		return apperrors.NewValidationError("price split must not be negative", nil)
	}
	for i, f := range in.CustomFields {
		if strings.TrimSpace(f.Label) == "" {
			return apperrors.NewValidationError("custom field label is required", map[string]any{"index": i})
		}
		if f.Amount < 0 {
			return apperrors.NewValidationError("custom field amount must not be negative", map[string]any{"index": i})
		}
	}
	return nil
}

func (l *offerLedger) createOffer(ctx context.Context, ticket *domain.Ticket, companyID string, in OfferInput) (*domain.DamageOffer, error) {
	if err := validateOffer(in); err != nil {
		return nil, err
	}
	if _, err := l.offers.FindActive(ctx, ticket.ID, companyID); err == nil {
		return nil, apperrors.NewDuplicateOffer(ticket.ID, companyID)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	offer := &domain.DamageOffer{
		ID:           uuid.NewString(),
		TicketID:     ticket.ID,
		CompanyID:    companyID,
		Amount:       in.Amount,
		Description:  strings.TrimSpace(in.Description),
		CustomFields: in.CustomFields,
		PriceSplit:   in.PriceSplit,
		State:        domain.OfferStateOpen,
	}
	if err := l.offers.Create(ctx, offer); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewDuplicateOffer(ticket.ID, companyID)
		}
		return nil, err
	}

	files, err := l.storeAttachments(ctx, offer.ID, in.AttachmentRefs)
	if err != nil {
		return nil, err
	}
	offer.Attachments = files
	return offer, nil
}

func (l *offerLedger) loadOpenOffer(ctx context.Context, ticket *domain.Ticket, offerID string) (*domain.DamageOffer, error) {
	offerID = strings.TrimSpace(offerID)
	if !validID(offerID) {
		return nil, apperrors.NewNotFound("offer", map[string]any{"offer_id": offerID})
	}
	offer, err := l.offers.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("offer", map[string]any{"offer_id": offerID})
		}
		return nil, err
	}
	if offer.TicketID != ticket.ID {
		return nil, apperrors.NewNotFound("offer", map[string]any{"offer_id": offerID})
	}
	if offer.State != domain.OfferStateOpen {
		return nil, apperrors.NewStaleState(string(domain.OfferStateOpen), string(offer.State))
	}
	return offer, nil
}

// acceptOffer marks the offer accepted and supersedes every other open offer on the ticket.
// The caller assigns the ticket to the offer's company.
func (l *offerLedger) acceptOffer(ctx context.Context, ticket *domain.Ticket, offerID string) (*domain.DamageOffer, error) {
	offer, err := l.loadOpenOffer(ctx, ticket, offerID)
	if err != nil {
		return nil, err
	}

	siblings, err := l.offers.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	for i := range siblings {
		sibling := &siblings[i]
		if sibling.ID == offer.ID {
			continue
		}
		if sibling.Accepted {
			return nil, apperrors.NewStaleState("no accepted offer", sibling.ID)
		}
		if sibling.State != domain.OfferStateOpen {
			continue
		}
		sibling.State = domain.OfferStateSuperseded
		if err := l.offers.Update(ctx, sibling); err != nil {
			return nil, err
		}
	}

	offer.Accepted = true
	offer.State = domain.OfferStateAccepted
	if err := l.offers.Update(ctx, offer); err != nil {
		return nil, err
	}
	return offer, nil
}

func (l *offerLedger) rejectOffer(ctx context.Context, ticket *domain.Ticket, offerID, reason string) (*domain.DamageOffer, error) {
	offer, err := l.loadOpenOffer(ctx, ticket, offerID)
	if err != nil {
		return nil, err
	}
	offer.State = domain.OfferStateRejected
	offer.RejectReason = strings.TrimSpace(reason)
	if err := l.offers.Update(ctx, offer); err != nil {
		return nil, err
	}
	return offer, nil
}

// requestCompanies invites every target. An active request for the same company or
// e-mail is merged instead of duplicated.
func (l *offerLedger) requestCompanies(ctx context.Context, ticket *domain.Ticket, actor domain.Actor, targets RequestTargets, withOffer bool, requestedDate *time.Time) ([]requestOutcome, error) {
	var outcomes []requestOutcome
	seen := map[string]struct{}{}

	for _, id := range targets.CompanyIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		company, err := l.companies.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("company", map[string]any{"company_id": id})
			}
			return nil, err
		}
		if _, dup := seen[company.ID]; dup {
			continue
		}
		seen[company.ID] = struct{}{}
		out, err := l.requestCompany(ctx, ticket, actor, company, withOffer, requestedDate)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, out)
	}

	for _, raw := range targets.CompanyEmails {
		email := domain.NormalizeEmail(raw)
		if email == "" {
			continue
		}
		company, err := l.companies.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if _, dup := seen[company.ID]; dup {
				continue
			}
			seen[company.ID] = struct{}{}
			out, err := l.requestCompany(ctx, ticket, actor, company, withOffer, requestedDate)
			if err != nil {
				return nil, err
			}
			outcomes = append(outcomes, out)
		case errors.Is(err, pgx.ErrNoRows):
			if _, dup := seen[email]; dup {
				continue
			}
			seen[email] = struct{}{}
			out, err := l.requestPlaceholder(ctx, ticket, actor, email, withOffer, requestedDate)
			if err != nil {
				return nil, err
			}
			outcomes = append(outcomes, out)
		default:
			return nil, err
		}
	}
	return outcomes, nil
}

func (l *offerLedger) requestCompany(ctx context.Context, ticket *domain.Ticket, actor domain.Actor, company *domain.Company, withOffer bool, requestedDate *time.Time) (requestOutcome, error) {
	if !company.Active {
		return requestOutcome{}, apperrors.NewValidationError("company is not active", map[string]any{"company_id": company.ID})
	}
	existing, err := l.checkRequestAlreadyInitiated(ctx, ticket.ID, &company.ID, "")
	if err != nil {
		return requestOutcome{}, err
	}
	if existing != nil {
		return l.mergeRequest(ctx, existing, withOffer, requestedDate)
	}

	companyID := company.ID
	req := &domain.DamageRequest{
		ID:            uuid.NewString(),
		TicketID:      ticket.ID,
		CompanyID:     &companyID,
		Email:         domain.NormalizeEmail(company.Email),
		WithOffer:     withOffer,
		RequestedBy:   actor.ID,
		RequestedDate: requestedDate,
		State:         domain.RequestStateActive,
	}
	if err := l.requests.Create(ctx, req); err != nil {
		return requestOutcome{}, err
	}
	return requestOutcome{Request: req}, nil
}

func (l *offerLedger) requestPlaceholder(ctx context.Context, ticket *domain.Ticket, actor domain.Actor, email string, withOffer bool, requestedDate *time.Time) (requestOutcome, error) {
	existing, err := l.checkRequestAlreadyInitiated(ctx, ticket.ID, nil, email)
	if err != nil {
		return requestOutcome{}, err
	}
	if existing != nil {
		return l.mergeRequest(ctx, existing, withOffer, requestedDate)
	}

	code, err := auth.GenerateVerificationCode()
	if err != nil {
		return requestOutcome{}, err
	}
	hash, err := auth.HashCode(code, l.bcryptCost)
	if err != nil {
		return requestOutcome{}, err
	}
	req := &domain.DamageRequest{
		ID:               uuid.NewString(),
		TicketID:         ticket.ID,
		Email:            email,
		WithOffer:        withOffer,
		RequestedBy:      actor.ID,
		RequestedDate:    requestedDate,
		State:            domain.RequestStateActive,
		VerificationHash: hash,
	}
	if err := l.requests.Create(ctx, req); err != nil {
		return requestOutcome{}, err
	}
	return requestOutcome{Request: req, Code: code}, nil
}

// checkRequestAlreadyInitiated returns the active request for the company, or for the
// e-mail when companyID is nil, and nil when there is none.
func (l *offerLedger) checkRequestAlreadyInitiated(ctx context.Context, ticketID string, companyID *string, email string) (*domain.DamageRequest, error) {
	var (
		req *domain.DamageRequest
		err error
	)
	if companyID != nil {
		req, err = l.requests.FindActiveByCompany(ctx, ticketID, *companyID)
	} else {
		req, err = l.requests.FindActiveByEmail(ctx, ticketID, email)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

func (l *offerLedger) mergeRequest(ctx context.Context, req *domain.DamageRequest, withOffer bool, requestedDate *time.Time) (requestOutcome, error) {
	req.WithOffer = withOffer
	if requestedDate != nil {
		if req.RequestedDate == nil {
			req.RequestedDate = requestedDate
		} else if !req.RequestedDate.Equal(*requestedDate) {
			req.NewRequestedDate = requestedDate
		}
	}
	if err := l.requests.Update(ctx, req); err != nil {
		return requestOutcome{}, err
	}
	return requestOutcome{Request: req, Merged: true}, nil
}

// withdrawRequest declines the company's own active request.
func (l *offerLedger) withdrawRequest(ctx context.Context, ticket *domain.Ticket, companyID string) (*domain.DamageRequest, error) {
	req, err := l.checkRequestAlreadyInitiated(ctx, ticket.ID, &companyID, "")
	if err != nil || req == nil {
		return nil, err
	}
	req.State = domain.RequestStateDeclined
	if err := l.requests.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// bindPlaceholders moves the e-mail's pending requests over to the company. When the
// company already holds an active request the placeholder is withdrawn instead.
func (l *offerLedger) bindPlaceholders(ctx context.Context, ticketID string, company *domain.Company, email string) ([]domain.DamageRequest, error) {
	placeholders, err := l.requests.ListPlaceholdersByEmail(ctx, ticketID, email)
	if err != nil {
		return nil, err
	}
	existing, err := l.checkRequestAlreadyInitiated(ctx, ticketID, &company.ID, "")
	if err != nil {
		return nil, err
	}

	var bound []domain.DamageRequest
	for i := range placeholders {
		req := &placeholders[i]
		if existing != nil {
			req.State = domain.RequestStateWithdrawn
		} else {
			companyID := company.ID
			req.CompanyID = &companyID
			req.VerificationHash = ""
			existing = req
		}
		if err := l.requests.Update(ctx, req); err != nil {
			return nil, err
		}
		bound = append(bound, *req)
	}
	return bound, nil
}

func (l *offerLedger) storeAttachments(ctx context.Context, ownerID string, refs []string) ([]domain.Attachment, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	files, err := l.documents.Store(ctx, ownerID, refs)
	if err != nil {
		return nil, err
	}
	for i := range files {
		if err := l.attachments.Create(ctx, &files[i]); err != nil {
			return nil, err
		}
	}
	return files, nil
}
