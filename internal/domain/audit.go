package domain

import "time"

// AuditEventType names what an audit entry records.
type AuditEventType string

const (
	AuditDamageCreated      AuditEventType = "damage_created"
	AuditStatusChanged      AuditEventType = "status_changed"
	AuditOfferCreated       AuditEventType = "offer_created"
	AuditOfferRequested     AuditEventType = "offer_requested"
	AuditDefectRaised       AuditEventType = "defect_raised"
	AuditRatingCreated      AuditEventType = "rating_created"
	AuditInternalRefUpdated AuditEventType = "internal_reference_updated"
	AuditDamageDeleted      AuditEventType = "damage_deleted"
	AuditRequestReconciled  AuditEventType = "request_reconciled"
)

// AuditEntry is an immutable log line. Seq orders entries of one ticket.
type AuditEntry struct {
	Seq        int64
	TicketID   string
	ActorID    string
	ActorRole  Role
	EventType  AuditEventType
	FromStatus *Status
	ToStatus   *Status
	Payload    map[string]any
	CreatedAt  time.Time
}
