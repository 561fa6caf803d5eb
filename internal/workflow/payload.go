package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/balu-property/damage-service/internal/domain"
)

// Layouts accepted for schedule and requested dates.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Payload carries the optional inputs of a transition.
type Payload struct {
	Comment       string
	Date          string
	Time          string
	OfferID       string
	CompanyIDs    []string
	CompanyEmails []string
	RequestedDate string

	Amount       *float64
	Description  string
	CustomFields []domain.CustomField
	PriceSplit   domain.PriceSplit

	AttachmentRefs    []string
	DefectTitle       string
	DefectDescription string
	Signature         string
}

// MissingFields names the fields rule needs that p lacks.
func MissingFields(rule Rule, p Payload) []string {
	var missing []string
	if rule.Needs(RequireCompany) && len(nonBlank(p.CompanyIDs))+len(nonBlank(p.CompanyEmails)) == 0 {
		missing = append(missing, "company_ids")
	}
	if rule.Needs(RequireComment) && blank(p.Comment) {
		missing = append(missing, "comment")
	}
	if rule.Needs(RequireSchedule) {
		if blank(p.Date) {
			missing = append(missing, "date")
		}
		if blank(p.Time) {
			missing = append(missing, "time")
		}
	}
	if rule.Needs(RequireOffer) && blank(p.OfferID) {
		missing = append(missing, "offer_id")
	}
	if rule.Needs(RequireOfferDetails) && p.Amount == nil {
		missing = append(missing, "amount")
	}
	if rule.Needs(RequireDefect) && blank(p.DefectTitle) {
		missing = append(missing, "defect_title")
	}
	if rule.Needs(RequireSignature) && blank(p.Signature) {
		missing = append(missing, "signature")
	}
	return missing
}

// ScheduledAt combines Date and Time in loc.
func (p Payload) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout+" "+TimeLayout, strings.TrimSpace(p.Date)+" "+strings.TrimSpace(p.Time), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD and time HH:MM: %w", err)
	}
	return d, nil
}

// RequestedAt parses RequestedDate; an empty value yields nil.
func (p Payload) RequestedAt() (*time.Time, error) {
	if blank(p.RequestedDate) {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, strings.TrimSpace(p.RequestedDate))
	if err != nil {
		return nil, fmt.Errorf("requested_date must be YYYY-MM-DD: %w", err)
	}
	return &d, nil
}

// Summary is the audit representation of the payload; empty values are omitted.
func (p Payload) Summary() map[string]any {
	out := map[string]any{}
	put := func(k, v string) {
		if !blank(v) {
			out[k] = strings.TrimSpace(v)
		}
	}
	put("comment", p.Comment)
	put("date", p.Date)
	put("time", p.Time)
	put("offer_id", p.OfferID)
	put("requested_date", p.RequestedDate)
	put("defect_title", p.DefectTitle)
	if len(p.CompanyIDs) > 0 {
		out["company_ids"] = nonBlank(p.CompanyIDs)
	}
	if len(p.CompanyEmails) > 0 {
		out["company_emails"] = nonBlank(p.CompanyEmails)
	}
	if p.Amount != nil {
		out["amount"] = *p.Amount
	}
	if !blank(p.Signature) {
		out["signed"] = true
	}
	return out
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !blank(v) {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}
