package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	r.s.data.ticketSeq++
	ticket.Number = r.s.data.ticketSeq
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	r.s.data.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	cp := ticket.Clone()
	cp.Status = stored.Status
	cp.Number = stored.Number
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	ticket.UpdatedAt = cp.UpdatedAt
	r.s.data.tickets[ticket.ID] = cp
	return nil
}

func (r *ticketRepo) UpdateStatus(_ context.Context, id string, expected, next domain.Status) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.tickets[id]
	if !ok || stored.Status != expected {
		return false, nil
	}
	stored.Status = next
	stored.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	stored, ok := r.s.data.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return stored.Clone(), nil
}

// GetByIDForUpdate relies on RunInTx serializing writers.
func (r *ticketRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Ticket
	for _, t := range r.s.data.tickets {
		if t.Deleted || !r.inScope(t, filter) || !matchesFilter(t, filter) {
			continue
		}
		out = append(out, *t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].Number > out[j].Number
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *ticketRepo) inScope(t *domain.Ticket, f repository.TicketFilter) bool {
	if f.ReporterID == nil && len(f.ApartmentIDs) == 0 && f.CompanyID == nil {
		return true
	}
	if f.ReporterID != nil && t.ReporterID == *f.ReporterID {
		return true
	}
	for _, id := range f.ApartmentIDs {
		if t.ApartmentID == id {
			return true
		}
	}
	if f.CompanyID != nil {
		if t.IsAssignedTo(*f.CompanyID) {
			return true
		}
		for _, req := range r.s.data.requests {
			if req.TicketID == t.ID && req.IsFor(*f.CompanyID) && req.State == domain.RequestStateActive {
				return true
			}
		}
	}
	return false
}

func matchesFilter(t *domain.Ticket, f repository.TicketFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" && !strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	return true
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type offerRepo struct{ s *Store }

func (r *offerRepo) Create(_ context.Context, offer *domain.DamageOffer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if offer.State.IsActive() && r.activeExists(offer.TicketID, offer.CompanyID, offer.ID) {
		return repository.ErrDuplicate
	}
	now := time.Now().UTC()
	offer.CreatedAt, offer.UpdatedAt = now, now
	r.s.data.offers[offer.ID] = offer.Clone()
	return nil
}

func (r *offerRepo) Update(_ context.Context, offer *domain.DamageOffer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.offers[offer.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if offer.State.IsActive() && r.activeExists(offer.TicketID, offer.CompanyID, offer.ID) {
		return repository.ErrDuplicate
	}
	stored.Accepted = offer.Accepted
	stored.State = offer.State
	stored.RejectReason = offer.RejectReason
	stored.UpdatedAt = time.Now().UTC()
	offer.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *offerRepo) activeExists(ticketID, companyID, exceptID string) bool {
	for _, o := range r.s.data.offers {
		if o.ID != exceptID && o.TicketID == ticketID && o.CompanyID == companyID && o.State.IsActive() {
			return true
		}
	}
	return false
}

func (r *offerRepo) GetByID(_ context.Context, id string) (*domain.DamageOffer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.data.offers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return o.Clone(), nil
}

func (r *offerRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.DamageOffer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.DamageOffer
	for _, o := range r.s.data.offers {
		if o.TicketID == ticketID {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *offerRepo) FindActive(_ context.Context, ticketID, companyID string) (*domain.DamageOffer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, o := range r.s.data.offers {
		if o.TicketID == ticketID && o.CompanyID == companyID && o.State.IsActive() {
			return o.Clone(), nil
		}
	}
	return nil, pgx.ErrNoRows
}

type requestRepo struct{ s *Store }

func (r *requestRepo) Create(_ context.Context, req *domain.DamageRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req.Email = domain.NormalizeEmail(req.Email)
	if req.State == domain.RequestStateActive && r.conflicts(req) {
		return repository.ErrDuplicate
	}
	now := time.Now().UTC()
	req.CreatedAt, req.UpdatedAt = now, now
	r.s.data.requests[req.ID] = req.Clone()
	return nil
}

func (r *requestRepo) Update(_ context.Context, req *domain.DamageRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.requests[req.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	req.Email = domain.NormalizeEmail(req.Email)
	if req.State == domain.RequestStateActive && r.conflicts(req) {
		return repository.ErrDuplicate
	}
	cp := req.Clone()
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	req.UpdatedAt = cp.UpdatedAt
	r.s.data.requests[req.ID] = cp
	return nil
}

// conflicts mirrors the partial unique indexes on damage_requests.
func (r *requestRepo) conflicts(req *domain.DamageRequest) bool {
	for _, other := range r.s.data.requests {
		if other.ID == req.ID || other.TicketID != req.TicketID || other.State != domain.RequestStateActive {
			continue
		}
		if req.CompanyID != nil && other.IsFor(*req.CompanyID) {
			return true
		}
		if req.CompanyID == nil && other.CompanyID == nil && req.Email != "" && other.Email == req.Email {
			return true
		}
	}
	return false
}

func (r *requestRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.DamageRequest, error) {
	return r.filter(func(req *domain.DamageRequest) bool { return req.TicketID == ticketID }), nil
}

func (r *requestRepo) FindActiveByCompany(_ context.Context, ticketID, companyID string) (*domain.DamageRequest, error) {
	found := r.filter(func(req *domain.DamageRequest) bool {
		return req.TicketID == ticketID && req.IsFor(companyID) && req.State == domain.RequestStateActive
	})
	if len(found) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &found[0], nil
}

func (r *requestRepo) FindActiveByEmail(_ context.Context, ticketID, email string) (*domain.DamageRequest, error) {
	email = domain.NormalizeEmail(email)
	found := r.filter(func(req *domain.DamageRequest) bool {
		return req.TicketID == ticketID && req.Email == email && req.State == domain.RequestStateActive
	})
	if len(found) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &found[0], nil
}

func (r *requestRepo) ListPlaceholdersByEmail(_ context.Context, ticketID, email string) ([]domain.DamageRequest, error) {
	email = domain.NormalizeEmail(email)
	return r.filter(func(req *domain.DamageRequest) bool {
		return req.TicketID == ticketID && req.Email == email && req.IsPlaceholder() && req.State == domain.RequestStateActive
	}), nil
}

func (r *requestRepo) filter(keep func(*domain.DamageRequest) bool) []domain.DamageRequest {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.DamageRequest
	for _, req := range r.s.data.requests {
		if keep(req) {
			out = append(out, *req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type defectRepo struct{ s *Store }

func (r *defectRepo) Create(_ context.Context, defect *domain.Defect) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	number := 0
	for _, d := range r.s.data.defects {
		if d.TicketID == defect.TicketID && d.Number > number {
			number = d.Number
		}
	}
	defect.Number = number + 1
	defect.CreatedAt = time.Now().UTC()
	cp := *defect
	cp.Attachments = nil
	r.s.data.defects[defect.ID] = &cp
	return nil
}

func (r *defectRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Defect, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Defect
	for _, d := range r.s.data.defects {
		if d.TicketID == ticketID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

type ratingRepo struct{ s *Store }

func (r *ratingRepo) Create(_ context.Context, rating *domain.Rating) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.data.ratings[rating.TicketID]; exists {
		return repository.ErrDuplicate
	}
	rating.CreatedAt = time.Now().UTC()
	cp := *rating
	r.s.data.ratings[rating.TicketID] = &cp
	return nil
}

func (r *ratingRepo) GetByTicket(_ context.Context, ticketID string) (*domain.Rating, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rating, ok := r.s.data.ratings[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *rating
	return &cp, nil
}

type auditRepo struct{ s *Store }

func (r *auditRepo) Append(_ context.Context, entry *domain.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.auditSeq++
	entry.Seq = r.s.data.auditSeq
	entry.CreatedAt = time.Now().UTC()
	r.s.data.audit = append(r.s.data.audit, *entry)
	return nil
}

func (r *auditRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.AuditEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.AuditEntry
	for _, e := range r.s.data.audit {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

type attachmentRepo struct{ s *Store }

func (r *attachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	attachment.CreatedAt = time.Now().UTC()
	cp := *attachment
	r.s.data.attachments[attachment.ID] = &cp
	return nil
}

func (r *attachmentRepo) ListByOwner(_ context.Context, ownerID string) ([]domain.Attachment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Attachment
	for _, a := range r.s.data.attachments {
		if a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type apartmentRepo struct{ s *Store }

func (r *apartmentRepo) GetByID(_ context.Context, id string) (*domain.Apartment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	apt, ok := r.s.data.apartments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *apt
	return &cp, nil
}

func (r *apartmentRepo) ListIDsForMember(_ context.Context, actor domain.Actor) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var ids []string
	for id, apt := range r.s.data.apartments {
		if apt.HasMember(actor) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type companyRepo struct{ s *Store }

func (r *companyRepo) GetByID(_ context.Context, id string) (*domain.Company, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.data.companies[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (r *companyRepo) GetByEmail(_ context.Context, email string) (*domain.Company, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = domain.NormalizeEmail(email)
	for _, c := range r.s.data.companies {
		if domain.NormalizeEmail(c.Email) == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type categoryRepo struct{ s *Store }

func (r *categoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.data.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}
