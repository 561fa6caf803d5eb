package dto

import (
	"time"

	"github.com/balu-property/damage-service/internal/domain"
)

// CreateDamageRequest payload.
type CreateDamageRequest struct {
	ApartmentID        string   `json:"apartment_id" validate:"required"`
	Title              string   `json:"title" validate:"required,max=255"`
	Description        string   `json:"description" validate:"max=5000"`
	DeviceAffected     bool     `json:"device_affected"`
	BarCode            string   `json:"bar_code" validate:"max=128"`
	CategoryID         *string  `json:"category_id"`
	PreferredCompanyID *string  `json:"preferred_company_id"`
	FloorPlanImage     string   `json:"floor_plan_image"`
	LocationImage      string   `json:"location_image"`
	LoopInJanitor      bool     `json:"loop_in_janitor"`
	Images             []string `json:"images" validate:"max=20,dive,required"`
}

// TransitionRequest asks for a status change. CurrentStatus is the status the client last saw.
type TransitionRequest struct {
	Status        domain.Status `json:"status" validate:"required"`
	CurrentStatus domain.Status `json:"current_status" validate:"required"`

	Comment       string   `json:"comment" validate:"max=2000"`
	Date          string   `json:"date"`
	Time          string   `json:"time"`
	OfferID       string   `json:"offer_id"`
	CompanyIDs    []string `json:"company_ids"`
	CompanyEmails []string `json:"company_emails" validate:"dive,email"`
	RequestedDate string   `json:"requested_date"`

	Amount       *float64             `json:"amount"`
	Description  string               `json:"description"`
	CustomFields []domain.CustomField `json:"custom_fields"`
	PriceSplit   domain.PriceSplit    `json:"price_split"`

	Attachments       []string `json:"attachments"`
	DefectTitle       string   `json:"defect_title"`
	DefectDescription string   `json:"defect_description"`
	Signature         string   `json:"signature"`
}

// InternalReferenceRequest payload.
type InternalReferenceRequest struct {
	Value string `json:"internal_reference_number" validate:"max=128"`
}

// RatingRequest payload.
type RatingRequest struct {
	Score   int    `json:"score" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// DamageSummary is the list item.
type DamageSummary struct {
	ID                string        `json:"id"`
	Number            int64         `json:"number"`
	Title             string        `json:"title"`
	Status            domain.Status `json:"status"`
	Party             domain.Party  `json:"party"`
	ApartmentID       string        `json:"apartment_id"`
	ReporterID        string        `json:"reporter_id"`
	ReporterRole      domain.Role   `json:"reporter_role"`
	AssignedCompanyID *string       `json:"assigned_company_id"`
	InternalReference string        `json:"internal_reference_number,omitempty"`
	ScheduledAt       *time.Time    `json:"scheduled_at"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// DamageDetail provides the full damage projection.
type DamageDetail struct {
	DamageSummary
	Description        string                  `json:"description"`
	DeviceAffected     bool                    `json:"device_affected"`
	BarCode            string                  `json:"bar_code,omitempty"`
	CategoryID         *string                 `json:"category_id"`
	CategoryName       string                  `json:"category_name,omitempty"`
	FloorPlanImage     string                  `json:"floor_plan_image,omitempty"`
	LocationImage      string                  `json:"location_image,omitempty"`
	JanitorLoopedIn    bool                    `json:"janitor_looped_in"`
	PreferredCompanyID *string                 `json:"preferred_company_id"`
	CompanyAssignedBy  *string                 `json:"company_assigned_by"`
	RepairConfirmedAt  *time.Time              `json:"repair_confirmed_at"`
	Images             []domain.Attachment     `json:"images"`
	Offers             []OfferResponse         `json:"offers"`
	Requests           []DamageRequestResponse `json:"requests"`
	Defects            []DefectResponse        `json:"defects"`
	Rating             *RatingResponse         `json:"rating"`
	Log                []AuditEntryResponse    `json:"log"`
	NextStatuses       []domain.Status         `json:"next_statuses"`
	ReadOnly           bool                    `json:"read_only"`
}

// TransitionResponse reports an applied status change.
type TransitionResponse struct {
	From     domain.Status           `json:"from"`
	To       domain.Status           `json:"to"`
	Damage   DamageSummary           `json:"damage"`
	Offer    *OfferResponse          `json:"offer,omitempty"`
	Requests []DamageRequestResponse `json:"requests,omitempty"`
	Defect   *DefectResponse         `json:"defect,omitempty"`
	LogSeq   int64                   `json:"log_seq"`
}

// DefectResponse describes a raised defect.
type DefectResponse struct {
	ID          string              `json:"id"`
	Number      int                 `json:"number"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	RaisedBy    string              `json:"raised_by"`
	Attachments []domain.Attachment `json:"attachments"`
	CreatedAt   time.Time           `json:"created_at"`
}

// RatingResponse describes the owner's rating.
type RatingResponse struct {
	ID        string    `json:"id"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment"`
	RatedBy   string    `json:"rated_by"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditEntryResponse is one line of the damage log.
type AuditEntryResponse struct {
	Seq        int64                 `json:"seq"`
	ActorID    string                `json:"actor_id"`
	ActorRole  domain.Role           `json:"actor_role"`
	EventType  domain.AuditEventType `json:"event_type"`
	FromStatus *domain.Status        `json:"from_status"`
	ToStatus   *domain.Status        `json:"to_status"`
	Payload    map[string]any        `json:"payload"`
	CreatedAt  time.Time             `json:"created_at"`
}

// ShareLinkResponse carries a public read-only link token.
type ShareLinkResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
