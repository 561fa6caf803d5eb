package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balu-property/damage-service/internal/domain"
)

// AttachmentRepository persists attachment metadata. The owner is a damage, offer or defect id.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (id, owner_id, storage_key, url, file_name, mime_type, size_bytes)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		attachment.ID,
		attachment.OwnerID,
		attachment.StorageKey,
		attachment.URL,
		attachment.FileName,
		attachment.MimeType,
		attachment.SizeBytes,
	).Scan(&attachment.CreatedAt)
}

func (r *attachmentRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, owner_id, storage_key, url, file_name, mime_type, size_bytes, created_at
        FROM attachments WHERE owner_id=$1 ORDER BY created_at ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var attachment domain.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.OwnerID,
			&attachment.StorageKey,
			&attachment.URL,
			&attachment.FileName,
			&attachment.MimeType,
			&attachment.SizeBytes,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}
