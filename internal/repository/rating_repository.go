package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balu-property/damage-service/internal/domain"
)

// RatingRepository stores the single rating of a damage.
type RatingRepository interface {
	// Create returns ErrDuplicate when the damage is already rated.
	Create(ctx context.Context, rating *domain.Rating) error
	GetByTicket(ctx context.Context, ticketID string) (*domain.Rating, error)
}

type ratingRepository struct {
	pool *pgxpool.Pool
}

// NewRatingRepository constructs repository.
func NewRatingRepository(pool *pgxpool.Pool) RatingRepository {
	return &ratingRepository{pool: pool}
}

func (r *ratingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	const query = `
        INSERT INTO damage_ratings (id, damage_id, score, comment, rated_by)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		rating.ID,
		rating.TicketID,
		rating.Score,
		rating.Comment,
		rating.RatedBy,
	).Scan(&rating.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *ratingRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.Rating, error) {
	const query = `
        SELECT id, damage_id, score, comment, rated_by, created_at
        FROM damage_ratings WHERE damage_id=$1`
	var rating domain.Rating
	if err := conn(ctx, r.pool).QueryRow(ctx, query, ticketID).Scan(
		&rating.ID,
		&rating.TicketID,
		&rating.Score,
		&rating.Comment,
		&rating.RatedBy,
		&rating.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rating, nil
}
