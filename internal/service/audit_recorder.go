package service

import (
	"context"

	"github.com/balu-property/damage-service/internal/domain"
	"github.com/balu-property/damage-service/internal/repository"
)

// AuditRecorder appends immutable log entries. It has no update or delete path.
type AuditRecorder struct {
	entries repository.AuditLogRepository
}

// NewAuditRecorder creates the recorder.
func NewAuditRecorder(entries repository.AuditLogRepository) *AuditRecorder {
	return &AuditRecorder{entries: entries}
}

// Append records one event. from and to are nil for events without a status change.
func (r *AuditRecorder) Append(ctx context.Context, ticketID string, actor domain.Actor, eventType domain.AuditEventType, from, to *domain.Status, payload map[string]any) (*domain.AuditEntry, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	entry := &domain.AuditEntry{
		TicketID:   ticketID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		EventType:  eventType,
		FromStatus: from,
		ToStatus:   to,
		Payload:    payload,
	}
	if err := r.entries.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListByTicket returns the ticket's entries ordered by Seq.
func (r *AuditRecorder) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEntry, error) {
	return r.entries.ListByTicket(ctx, ticketID)
}

func statusPtr(s domain.Status) *domain.Status {
	return &s
}
