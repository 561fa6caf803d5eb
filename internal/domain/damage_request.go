package domain

import (
	"strings"
	"time"
)

// RequestState tracks whether an invitation is still open.
type RequestState string

const (
	RequestStateActive    RequestState = "active"
	RequestStateDeclined  RequestState = "declined"
	RequestStateWithdrawn RequestState = "withdrawn"
)

// DamageRequest invites a company, registered or by e-mail only, to bid or work on a damage.
type DamageRequest struct {
	ID               string
	TicketID         string
	CompanyID        *string
	Email            string
	WithOffer        bool
	RequestedBy      string
	RequestedDate    *time.Time
	NewRequestedDate *time.Time
	State            RequestState
	VerificationHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsPlaceholder reports a request addressed to an e-mail without a registered company.
func (r *DamageRequest) IsPlaceholder() bool {
	return r.CompanyID == nil
}

// IsFor reports whether the request targets the given company.
func (r *DamageRequest) IsFor(companyID string) bool {
	return r.CompanyID != nil && *r.CompanyID == companyID
}

// NormalizeEmail lowercases and trims addresses before comparison or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Clone returns a deep copy.
func (r *DamageRequest) Clone() *DamageRequest {
	if r == nil {
		return nil
	}
	cp := *r
	cp.CompanyID = cloneString(r.CompanyID)
	cp.RequestedDate = cloneTime(r.RequestedDate)
	cp.NewRequestedDate = cloneTime(r.NewRequestedDate)
	return &cp
}
