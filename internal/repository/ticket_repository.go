package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balu-property/damage-service/internal/domain"
)

// TicketFilter narrows damage listings. Scope fields are combined with OR.
type TicketFilter struct {
	ReporterID   *string
	ApartmentIDs []string
	CompanyID    *string
	Statuses     []domain.Status
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// TicketRepository encapsulates damage persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes every mutable column except status.
	Update(ctx context.Context, ticket *domain.Ticket) error
	// UpdateStatus moves the damage to next only if it is still in expected.
	UpdateStatus(ctx context.Context, id string, expected, next domain.Status) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetByIDForUpdate locks the row for the surrounding transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, number, title, description, device_affected, bar_code, category_id,
        floor_plan_image, location_image, internal_reference, janitor_looped_in, deleted,
        reporter_id, reporter_role, apartment_id, preferred_company_id, assigned_company_id,
        company_assigned_by, status, party, scheduled_at, repair_signature, repair_confirmed_at,
        created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO damages (id, title, description, device_affected, bar_code, category_id,
            floor_plan_image, location_image, internal_reference, janitor_looped_in,
            reporter_id, reporter_role, apartment_id, preferred_company_id, status, party)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING number, created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.DeviceAffected,
		ticket.BarCode,
		ticket.CategoryID,
		ticket.FloorPlanImage,
		ticket.LocationImage,
		ticket.InternalReference,
		ticket.JanitorLoopedIn,
		ticket.ReporterID,
		ticket.ReporterRole,
		ticket.ApartmentID,
		ticket.PreferredCompanyID,
		ticket.Status,
		ticket.Party,
	).Scan(&ticket.Number, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE damages SET title=$1, description=$2, device_affected=$3, bar_code=$4, category_id=$5,
            floor_plan_image=$6, location_image=$7, internal_reference=$8, janitor_looped_in=$9,
            deleted=$10, preferred_company_id=$11, assigned_company_id=$12, company_assigned_by=$13,
            party=$14, scheduled_at=$15, repair_signature=$16, repair_confirmed_at=$17, updated_at=NOW()
        WHERE id=$18
        RETURNING updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.DeviceAffected,
		ticket.BarCode,
		ticket.CategoryID,
		ticket.FloorPlanImage,
		ticket.LocationImage,
		ticket.InternalReference,
		ticket.JanitorLoopedIn,
		ticket.Deleted,
		ticket.PreferredCompanyID,
		ticket.AssignedCompanyID,
		ticket.CompanyAssignedBy,
		ticket.Party,
		ticket.ScheduledAt,
		ticket.RepairSignature,
		ticket.RepairConfirmedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return err
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, expected, next domain.Status) (bool, error) {
	const query = `UPDATE damages SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query, next, id, expected)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM damages WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM damages WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"deleted=FALSE"}
	args := []any{}

	var scope []string
	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		scope = append(scope, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if len(filter.ApartmentIDs) > 0 {
		args = append(args, filter.ApartmentIDs)
		scope = append(scope, fmt.Sprintf("apartment_id = ANY($%d)", len(args)))
	}
	if filter.CompanyID != nil {
		args = append(args, *filter.CompanyID)
		n := len(args)
		scope = append(scope, fmt.Sprintf(`(assigned_company_id=$%d OR EXISTS (
            SELECT 1 FROM damage_requests dr WHERE dr.damage_id=damages.id AND dr.company_id=$%d AND dr.state='active'))`, n, n))
	}
	if len(scope) > 0 {
		clauses = append(clauses, "("+strings.Join(scope, " OR ")+")")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM damages WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.Title,
		&ticket.Description,
		&ticket.DeviceAffected,
		&ticket.BarCode,
		&ticket.CategoryID,
		&ticket.FloorPlanImage,
		&ticket.LocationImage,
		&ticket.InternalReference,
		&ticket.JanitorLoopedIn,
		&ticket.Deleted,
		&ticket.ReporterID,
		&ticket.ReporterRole,
		&ticket.ApartmentID,
		&ticket.PreferredCompanyID,
		&ticket.AssignedCompanyID,
		&ticket.CompanyAssignedBy,
		&ticket.Status,
		&ticket.Party,
		&ticket.ScheduledAt,
		&ticket.RepairSignature,
		&ticket.RepairConfirmedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// pageBounds applies the default page size of 20 and clamps negatives.
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
