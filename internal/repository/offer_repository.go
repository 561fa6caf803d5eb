package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balu-property/damage-service/internal/domain"
)

// OfferRepository persists company offers.
type OfferRepository interface {
	// Create returns ErrDuplicate when the company already has an open or accepted offer.
	Create(ctx context.Context, offer *domain.DamageOffer) error
	Update(ctx context.Context, offer *domain.DamageOffer) error
	GetByID(ctx context.Context, id string) (*domain.DamageOffer, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.DamageOffer, error)
	// FindActive returns the open or accepted offer of a company, or pgx.ErrNoRows.
	FindActive(ctx context.Context, ticketID, companyID string) (*domain.DamageOffer, error)
}

type offerRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository constructs repository.
func NewOfferRepository(pool *pgxpool.Pool) OfferRepository {
	return &offerRepository{pool: pool}
}

const offerColumns = `id, damage_id, company_id, amount, description, custom_fields, personal_price,
        material_price, accepted, state, reject_reason, created_at, updated_at`

func (r *offerRepository) Create(ctx context.Context, offer *domain.DamageOffer) error {
	fields, err := json.Marshal(offer.CustomFields)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO damage_offers (id, damage_id, company_id, amount, description, custom_fields,
            personal_price, material_price, accepted, state, reject_reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING created_at, updated_at`
	err = conn(ctx, r.pool).QueryRow(ctx, query,
		offer.ID,
		offer.TicketID,
		offer.CompanyID,
		offer.Amount,
		offer.Description,
		fields,
		offer.PriceSplit.Personal,
		offer.PriceSplit.Material,
		offer.Accepted,
		offer.State,
		offer.RejectReason,
	).Scan(&offer.CreatedAt, &offer.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *offerRepository) Update(ctx context.Context, offer *domain.DamageOffer) error {
	const query = `
        UPDATE damage_offers SET accepted=$1, state=$2, reject_reason=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		offer.Accepted,
		offer.State,
		offer.RejectReason,
		offer.ID,
	).Scan(&offer.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *offerRepository) GetByID(ctx context.Context, id string) (*domain.DamageOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM damage_offers WHERE id=$1`
	return scanOffer(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *offerRepository) FindActive(ctx context.Context, ticketID, companyID string) (*domain.DamageOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM damage_offers
        WHERE damage_id=$1 AND company_id=$2 AND state IN ('open','accepted')`
	return scanOffer(conn(ctx, r.pool).QueryRow(ctx, query, ticketID, companyID))
}

func (r *offerRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.DamageOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM damage_offers WHERE damage_id=$1 ORDER BY created_at ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DamageOffer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *offer)
	}
	return result, rows.Err()
}

func scanOffer(row pgx.Row) (*domain.DamageOffer, error) {
	var (
		offer  domain.DamageOffer
		fields []byte
	)
	if err := row.Scan(
		&offer.ID,
		&offer.TicketID,
		&offer.CompanyID,
		&offer.Amount,
		&offer.Description,
		&fields,
		&offer.PriceSplit.Personal,
		&offer.PriceSplit.Material,
		&offer.Accepted,
		&offer.State,
		&offer.RejectReason,
		&offer.CreatedAt,
		&offer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &offer.CustomFields); err != nil {
			return nil, err
		}
	}
	return &offer, nil
}
