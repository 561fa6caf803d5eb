package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balu-property/damage-service/internal/domain"
)

// AuditLogRepository stores append-only audit entries.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	// ListByTicket returns entries ordered by Seq.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEntry, error)
}

type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository builds repository.
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogRepository {
	return &auditLogRepository{pool: pool}
}

func (r *auditLogRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO damage_logs (damage_id, actor_id, actor_role, event_type, from_status, to_status, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING seq, created_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		entry.TicketID,
		entry.ActorID,
		entry.ActorRole,
		entry.EventType,
		entry.FromStatus,
		entry.ToStatus,
		payload,
	).Scan(&entry.Seq, &entry.CreatedAt)
}

func (r *auditLogRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEntry, error) {
	const query = `
        SELECT seq, damage_id, actor_id, actor_role, event_type, from_status, to_status, payload, created_at
        FROM damage_logs WHERE damage_id=$1 ORDER BY seq ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var (
			entry   domain.AuditEntry
			payload []byte
		)
		if err := rows.Scan(
			&entry.Seq,
			&entry.TicketID,
			&entry.ActorID,
			&entry.ActorRole,
			&entry.EventType,
			&entry.FromStatus,
			&entry.ToStatus,
			&payload,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Payload); err != nil {
				return nil, err
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
