package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles every store the services depend on.
type Repositories struct {
	Tx          TxManager
	Tickets     TicketRepository
	Offers      OfferRepository
	Requests    DamageRequestRepository
	Defects     DefectRepository
	Ratings     RatingRepository
	Audit       AuditLogRepository
	Attachments AttachmentRepository
	Apartments  ApartmentRepository
	Companies   CompanyRepository
	Categories  CategoryRepository
}

// NewPostgresRepositories wires the pgx implementations over one pool.
func NewPostgresRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Tx:          NewTxManager(pool),
		Tickets:     NewTicketRepository(pool),
		Offers:      NewOfferRepository(pool),
		Requests:    NewDamageRequestRepository(pool),
		Defects:     NewDefectRepository(pool),
		Ratings:     NewRatingRepository(pool),
		Audit:       NewAuditLogRepository(pool),
		Attachments: NewAttachmentRepository(pool),
		Apartments:  NewApartmentRepository(pool),
		Companies:   NewCompanyRepository(pool),
		Categories:  NewCategoryRepository(pool),
	}
}
