// Package storage resolves uploaded document references into attachments.
package storage

import (
	"context"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/balu-property/damage-service/internal/domain"
	apperrors "github.com/balu-property/damage-service/pkg/util/errorutil"
)

// DocumentStore turns client supplied references into attachment records owned by ownerID.
// Implementations verify that each reference points at an existing document.
type DocumentStore interface {
	Store(ctx context.Context, ownerID string, refs []string) ([]domain.Attachment, error)
}

// URLStore accepts absolute http(s) URLs as they are. It is used when no bucket is configured.
type URLStore struct{}

// NewURLStore creates a passthrough store.
func NewURLStore() *URLStore {
	return &URLStore{}
}

// Store validates the URLs and derives file name and mime type from the path.
func (s *URLStore) Store(_ context.Context, ownerID string, refs []string) ([]domain.Attachment, error) {
	now := time.Now().UTC()
	out := make([]domain.Attachment, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		u, err := url.Parse(ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, apperrors.NewValidationError("attachment must be an http(s) url", map[string]any{"ref": ref})
		}
		name := path.Base(u.Path)
		if name == "/" || name == "." {
			name = u.Host
		}
		out = append(out, domain.Attachment{
			ID:         uuid.NewString(),
			OwnerID:    ownerID,
			StorageKey: ref,
			URL:        ref,
			FileName:   name,
			MimeType:   mimeFor(name, ""),
			CreatedAt:  now,
		})
	}
	return out, nil
}

func mimeFor(name, reported string) string {
	if reported != "" {
		return reported
	}
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}
