package domain

import "time"

// OfferState tracks an offer through negotiation.
type OfferState string

const (
	OfferStateOpen       OfferState = "open"
	OfferStateAccepted   OfferState = "accepted"
	OfferStateRejected   OfferState = "rejected"
	OfferStateSuperseded OfferState = "superseded"
	OfferStateWithdrawn  OfferState = "withdrawn"
)

// IsActive reports states that block a second offer from the same company.
func (s OfferState) IsActive() bool {
	return s == OfferStateOpen || s == OfferStateAccepted
}

// CustomField is an extra priced line on an offer.
type CustomField struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// PriceSplit breaks the offer amount into labour and material.
type PriceSplit struct {
	Personal float64 `json:"personal"`
	Material float64 `json:"material"`
}

// DamageOffer is a company's priced proposal for a damage.
type DamageOffer struct {
	ID           string
	TicketID     string
	CompanyID    string
	Amount       float64
	Description  string
	CustomFields []CustomField
	PriceSplit   PriceSplit
	Accepted     bool
	State        OfferState
	RejectReason string
	Attachments  []Attachment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a deep copy.
func (o *DamageOffer) Clone() *DamageOffer {
	if o == nil {
		return nil
	}
	cp := *o
	cp.CustomFields = append([]CustomField(nil), o.CustomFields...)
	cp.Attachments = append([]Attachment(nil), o.Attachments...)
	return &cp
}
