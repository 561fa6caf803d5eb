package dto

import (
	"time"

	"github.com/balu-property/damage-service/internal/domain"
)

// CreateOfferRequest payload.
type CreateOfferRequest struct {
	CurrentStatus domain.Status        `json:"current_status" validate:"required"`
	Amount        float64              `json:"amount" validate:"gt=0"`
	Description   string               `json:"description" validate:"max=5000"`
	CustomFields  []domain.CustomField `json:"custom_fields" validate:"dive"`
	PriceSplit    domain.PriceSplit    `json:"price_split"`
	Attachments   []string             `json:"attachments" validate:"max=20,dive,required"`
}

// DecideOfferRequest accepts or rejects an offer.
type DecideOfferRequest struct {
	CurrentStatus domain.Status `json:"current_status" validate:"required"`
	Reason        string        `json:"reason" validate:"max=2000"`
}

// RequestOfferRequest invites further companies.
type RequestOfferRequest struct {
	CompanyIDs    []string `json:"company_ids"`
	CompanyEmails []string `json:"company_emails" validate:"dive,email"`
	RequestedDate string   `json:"requested_date" validate:"omitempty,datetime=2006-01-02"`
}

// RegisterDamageRequest is sent by a company after signing up from an e-mail invitation.
// The company's registered e-mail selects the invitations.
type RegisterDamageRequest struct {
	DamageID string `json:"damage_id" validate:"required"`
}

// VerifyGuestRequest proves ownership of an invited e-mail address. CompanyID is only
// read for guests; companies always bind to themselves.
type VerifyGuestRequest struct {
	DamageID  string `json:"damage_id" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Code      string `json:"code" validate:"required,len=6,numeric"`
	CompanyID string `json:"company_id"`
}

// OfferResponse describes a company offer.
type OfferResponse struct {
	ID           string               `json:"id"`
	DamageID     string               `json:"damage_id"`
	CompanyID    string               `json:"company_id"`
	Amount       float64              `json:"amount"`
	Description  string               `json:"description"`
	CustomFields []domain.CustomField `json:"custom_fields"`
	PriceSplit   domain.PriceSplit    `json:"price_split"`
	Accepted     bool                 `json:"accepted"`
	State        domain.OfferState    `json:"state"`
	RejectReason string               `json:"reject_reason,omitempty"`
	Attachments  []domain.Attachment  `json:"attachments"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// DamageRequestResponse describes an invitation to a company. Verification hashes never leave the service.
type DamageRequestResponse struct {
	ID               string              `json:"id"`
	DamageID         string              `json:"damage_id"`
	CompanyID        *string             `json:"company_id"`
	Email            string              `json:"email,omitempty"`
	WithOffer        bool                `json:"with_offer"`
	RequestedBy      string              `json:"requested_by"`
	RequestedDate    *time.Time          `json:"requested_date"`
	NewRequestedDate *time.Time          `json:"new_requested_date"`
	State            domain.RequestState `json:"state"`
	CreatedAt        time.Time           `json:"created_at"`
}
