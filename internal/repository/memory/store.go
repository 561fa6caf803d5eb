// Package memory implements the repositories in process memory. It backs tests
// and local runs without POSTGRES_DSN.
package memory

import (
	"context"
	"sync"

	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/repository"
)

type txKey struct{}

type state struct {
	tickets     map[string]*domain.Ticket
	ticketSeq   int64
	offers      map[string]*domain.DamageOffer
	requests    map[string]*domain.DamageRequest
	defects     map[string]*domain.Defect
	ratings     map[string]*domain.Rating
	audit       []domain.AuditEntry
	auditSeq    int64
	attachments map[string]*domain.Attachment
	apartments  map[string]*domain.Apartment
	companies   map[string]*domain.Company
	categories  map[string]*domain.Category
}

func newState() *state {
	return &state{
		tickets:     map[string]*domain.Ticket{},
		offers:      map[string]*domain.DamageOffer{},
		requests:    map[string]*domain.DamageRequest{},
		defects:     map[string]*domain.Defect{},
		ratings:     map[string]*domain.Rating{},
		attachments: map[string]*domain.Attachment{},
		apartments:  map[string]*domain.Apartment{},
		companies:   map[string]*domain.Company{},
		categories:  map[string]*domain.Category{},
	}
}

func (s *state) clone() *state {
	cp := newState()
	cp.ticketSeq = s.ticketSeq
	cp.auditSeq = s.auditSeq
	for k, v := range s.tickets {
		cp.tickets[k] = v.Clone()
	}
	for k, v := range s.offers {
		cp.offers[k] = v.Clone()
	}
	for k, v := range s.requests {
		cp.requests[k] = v.Clone()
	}
	for k, v := range s.defects {
		d := *v
		cp.defects[k] = &d
	}
	for k, v := range s.ratings {
		r := *v
		cp.ratings[k] = &r
	}
	cp.audit = append([]domain.AuditEntry(nil), s.audit...)
	for k, v := range s.attachments {
		a := *v
		cp.attachments[k] = &a
	}
	// reference data is never written inside a transaction
	cp.apartments = s.apartments
	cp.companies = s.companies
	cp.categories = s.categories
	return cp
}

// Store holds all records. Transactions are serialized and restored from a
// snapshot when the function fails.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newState()}
}

// RunInTx implements repository.TxManager.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *Store) restore(snapshot *state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = snapshot
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Tx:          s,
		Tickets:     &ticketRepo{s: s},
		Offers:      &offerRepo{s: s},
		Requests:    &requestRepo{s: s},
		Defects:     &defectRepo{s: s},
		Ratings:     &ratingRepo{s: s},
		Audit:       &auditRepo{s: s},
		Attachments: &attachmentRepo{s: s},
		Apartments:  &apartmentRepo{s: s},
		Companies:   &companyRepo{s: s},
		Categories:  &categoryRepo{s: s},
	}
}

// PutApartment seeds or replaces an apartment.
func (s *Store) PutApartment(apt domain.Apartment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.apartments[apt.ID] = &apt
}

// PutCompany seeds or replaces a company.
func (s *Store) PutCompany(c domain.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.companies[c.ID] = &c
}

// PutCategory seeds or replaces a category.
func (s *Store) PutCategory(c domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.categories[c.ID] = &c
}
