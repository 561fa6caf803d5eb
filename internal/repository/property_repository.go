package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balu-property/damage-service/internal/domain"
)

// ApartmentRepository reads apartments and their members.
type ApartmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Apartment, error)
	// ListIDsForMember returns the apartments the actor belongs to in its role.
	ListIDsForMember(ctx context.Context, actor domain.Actor) ([]string, error)
}

// CompanyRepository reads repair companies.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Company, error)
	GetByEmail(ctx context.Context, email string) (*domain.Company, error)
}

// CategoryRepository reads damage categories with their translations.
type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
}

type apartmentRepository struct {
	pool *pgxpool.Pool
}

// NewApartmentRepository constructs repository.
func NewApartmentRepository(pool *pgxpool.Pool) ApartmentRepository {
	return &apartmentRepository{pool: pool}
}

func (r *apartmentRepository) GetByID(ctx context.Context, id string) (*domain.Apartment, error) {
	db := conn(ctx, r.pool)
	var apt domain.Apartment
	if err := db.QueryRow(ctx,
		`SELECT id, name, active, owner_id FROM apartments WHERE id=$1`, id,
	).Scan(&apt.ID, &apt.Name, &apt.Active, &apt.OwnerID); err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, `SELECT actor_id, role FROM apartment_members WHERE apartment_id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			actorID string
			role    domain.Role
		)
		if err := rows.Scan(&actorID, &role); err != nil {
			return nil, err
		}
		switch role {
		case domain.RolePropertyAdmin:
			apt.AdminIDs = append(apt.AdminIDs, actorID)
		case domain.RoleJanitor:
			apt.JanitorIDs = append(apt.JanitorIDs, actorID)
		case domain.RoleTenant:
			apt.TenantIDs = append(apt.TenantIDs, actorID)
		}
	}
	return &apt, rows.Err()
}

func (r *apartmentRepository) ListIDsForMember(ctx context.Context, actor domain.Actor) ([]string, error) {
	query := `SELECT apartment_id FROM apartment_members WHERE actor_id=$1 AND role=$2`
	args := []any{actor.ID, actor.Role}
	if actor.Role == domain.RoleObjectOwner {
		query = `SELECT id FROM apartments WHERE owner_id=$1`
		args = args[:1]
	}
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type companyRepository struct {
	pool *pgxpool.Pool
}

// NewCompanyRepository constructs repository.
func NewCompanyRepository(pool *pgxpool.Pool) CompanyRepository {
	return &companyRepository{pool: pool}
}

func (r *companyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	return r.fetch(ctx, `SELECT id, name, email, active FROM companies WHERE id=$1`, id)
}

func (r *companyRepository) GetByEmail(ctx context.Context, email string) (*domain.Company, error) {
	return r.fetch(ctx, `SELECT id, name, email, active FROM companies WHERE LOWER(email)=$1`, domain.NormalizeEmail(email))
}

func (r *companyRepository) fetch(ctx context.Context, query string, arg any) (*domain.Company, error) {
	var c domain.Company
	if err := conn(ctx, r.pool).QueryRow(ctx, query, arg).Scan(&c.ID, &c.Name, &c.Email, &c.Active); err != nil {
		return nil, err
	}
	return &c, nil
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository constructs repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	db := conn(ctx, r.pool)
	cat := domain.Category{Names: map[domain.Locale]string{}}
	if err := db.QueryRow(ctx, `SELECT id FROM damage_categories WHERE id=$1`, id).Scan(&cat.ID); err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, `SELECT locale, name FROM damage_category_names WHERE category_id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			locale domain.Locale
			name   string
		)
		if err := rows.Scan(&locale, &name); err != nil {
			return nil, err
		}
		cat.Names[locale] = name
	}
	return &cat, rows.Err()
}
