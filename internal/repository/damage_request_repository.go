package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balu-property/damage-service/internal/domain"
)

// DamageRequestRepository stores company invitations.
type DamageRequestRepository interface {
	// Create returns ErrDuplicate when an active request for the same company or e-mail exists.
	Create(ctx context.Context, req *domain.DamageRequest) error
	Update(ctx context.Context, req *domain.DamageRequest) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.DamageRequest, error)
	FindActiveByCompany(ctx context.Context, ticketID, companyID string) (*domain.DamageRequest, error)
	FindActiveByEmail(ctx context.Context, ticketID, email string) (*domain.DamageRequest, error)
	// ListPlaceholdersByEmail returns active requests addressed to an unregistered e-mail.
	ListPlaceholdersByEmail(ctx context.Context, ticketID, email string) ([]domain.DamageRequest, error)
}

type damageRequestRepository struct {
	pool *pgxpool.Pool
}

// NewDamageRequestRepository constructs repository.
func NewDamageRequestRepository(pool *pgxpool.Pool) DamageRequestRepository {
	return &damageRequestRepository{pool: pool}
}

const requestColumns = `id, damage_id, company_id, email, with_offer, requested_by, requested_date,
        new_requested_date, state, verification_hash, created_at, updated_at`

func (r *damageRequestRepository) Create(ctx context.Context, req *domain.DamageRequest) error {
	const query = `
        INSERT INTO damage_requests (id, damage_id, company_id, email, with_offer, requested_by,
            requested_date, new_requested_date, state, verification_hash)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at, updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		req.ID,
		req.TicketID,
		req.CompanyID,
		domain.NormalizeEmail(req.Email),
		req.WithOffer,
		req.RequestedBy,
		req.RequestedDate,
		req.NewRequestedDate,
		req.State,
		req.VerificationHash,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *damageRequestRepository) Update(ctx context.Context, req *domain.DamageRequest) error {
	const query = `
        UPDATE damage_requests SET company_id=$1, email=$2, with_offer=$3, requested_date=$4,
            new_requested_date=$5, state=$6, verification_hash=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		req.CompanyID,
		domain.NormalizeEmail(req.Email),
		req.WithOffer,
		req.RequestedDate,
		req.NewRequestedDate,
		req.State,
		req.VerificationHash,
		req.ID,
	).Scan(&req.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *damageRequestRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.DamageRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM damage_requests WHERE damage_id=$1 ORDER BY created_at ASC`
	return r.list(ctx, query, ticketID)
}

func (r *damageRequestRepository) FindActiveByCompany(ctx context.Context, ticketID, companyID string) (*domain.DamageRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM damage_requests
        WHERE damage_id=$1 AND company_id=$2 AND state='active'`
	return scanRequest(conn(ctx, r.pool).QueryRow(ctx, query, ticketID, companyID))
}

func (r *damageRequestRepository) FindActiveByEmail(ctx context.Context, ticketID, email string) (*domain.DamageRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM damage_requests
        WHERE damage_id=$1 AND email=$2 AND state='active'
        ORDER BY created_at ASC LIMIT 1`
	return scanRequest(conn(ctx, r.pool).QueryRow(ctx, query, ticketID, domain.NormalizeEmail(email)))
}

func (r *damageRequestRepository) ListPlaceholdersByEmail(ctx context.Context, ticketID, email string) ([]domain.DamageRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM damage_requests
        WHERE damage_id=$1 AND email=$2 AND company_id IS NULL AND state='active'
        ORDER BY created_at ASC`
	return r.list(ctx, query, ticketID, domain.NormalizeEmail(email))
}

func (r *damageRequestRepository) list(ctx context.Context, query string, args ...any) ([]domain.DamageRequest, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DamageRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func scanRequest(row pgx.Row) (*domain.DamageRequest, error) {
	var req domain.DamageRequest
	if err := row.Scan(
		&req.ID,
		&req.TicketID,
		&req.CompanyID,
		&req.Email,
		&req.WithOffer,
		&req.RequestedBy,
		&req.RequestedDate,
		&req.NewRequestedDate,
		&req.State,
		&req.VerificationHash,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
