package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balu-property/damage-service/internal/domain"
)

// DefectRepository stores defects raised after a confirmed repair.
type DefectRepository interface {
	// Create assigns the next per-damage number.
	Create(ctx context.Context, defect *domain.Defect) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Defect, error)
}

type defectRepository struct {
	pool *pgxpool.Pool
}

// NewDefectRepository constructs repository.
func NewDefectRepository(pool *pgxpool.Pool) DefectRepository {
	return &defectRepository{pool: pool}
}

func (r *defectRepository) Create(ctx context.Context, defect *domain.Defect) error {
	const query = `
        INSERT INTO damage_defects (id, damage_id, number, title, description, raised_by)
        VALUES ($1, $2, (SELECT COALESCE(MAX(number), 0) + 1 FROM damage_defects WHERE damage_id=$2), $3, $4, $5)
        RETURNING number, created_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		defect.ID,
		defect.TicketID,
		defect.Title,
		defect.Description,
		defect.RaisedBy,
	).Scan(&defect.Number, &defect.CreatedAt)
}

func (r *defectRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Defect, error) {
	const query = `
        SELECT id, damage_id, number, title, description, raised_by, created_at
        FROM damage_defects WHERE damage_id=$1 ORDER BY number ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Defect
	for rows.Next() {
		var defect domain.Defect
		if err := rows.Scan(
			&defect.ID,
			&defect.TicketID,
			&defect.Number,
			&defect.Title,
			&defect.Description,
			&defect.RaisedBy,
			&defect.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, defect)
	}
	return result, rows.Err()
}
