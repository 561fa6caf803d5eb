package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/balu-property/damage-service/internal/config"
	"github.com/balu-property/damage-service/internal/domain"
	apperrors "github.com/balu-property/damage-service/pkg/util/errorutil"
)

// ObjectHeader is the part of the S3 client the store needs.
type ObjectHeader interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store treats references as object keys in a single bucket.
type S3Store struct {
	client  ObjectHeader
	bucket  string
	baseURL string
}

// NewS3Store loads AWS configuration and builds an S3 backed store.
func NewS3Store(ctx context.Context, cfg config.DocumentsConfig) (*S3Store, error) {
	awsConf, endpoint, err := loadAWSConfig(ctx, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsConf, func(o *s3.Options) {
		o.UsePathStyle = endpoint != ""
	})

	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		if endpoint != "" {
			base = strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return NewS3StoreWithClient(client, cfg.Bucket, base), nil
}

// NewS3StoreWithClient wires an existing client.
func NewS3StoreWithClient(client ObjectHeader, bucket, baseURL string) *S3Store {
	return &S3Store{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

// Store checks every key with HeadObject and returns attachments with stable object URLs.
func (s *S3Store) Store(ctx context.Context, ownerID string, refs []string) ([]domain.Attachment, error) {
	now := time.Now().UTC()
	out := make([]domain.Attachment, 0, len(refs))
	for _, ref := range refs {
		key := strings.TrimPrefix(strings.TrimSpace(ref), "/")
		if key == "" || strings.Contains(key, "..") {
			return nil, apperrors.NewValidationError("invalid document key", map[string]any{"ref": ref})
		}

		head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var nf *types.NotFound
			if errors.As(err, &nf) {
				return nil, apperrors.NewValidationError("document does not exist", map[string]any{"ref": ref})
			}
			return nil, fmt.Errorf("head object %s: %w", key, err)
		}

		name := path.Base(key)
		out = append(out, domain.Attachment{
			ID:         uuid.NewString(),
			OwnerID:    ownerID,
			StorageKey: key,
			URL:        s.baseURL + "/" + key,
			FileName:   name,
			MimeType:   mimeFor(name, aws.ToString(head.ContentType)),
			SizeBytes:  aws.ToInt64(head.ContentLength),
			CreatedAt:  now,
		})
	}
	return out, nil
}

// loadAWSConfig honours AWS_ENDPOINT_URL so the store can point at localstack or minio.
func loadAWSConfig(ctx context.Context, region string) (aws.Config, string, error) {
	endpoint := os.Getenv("AWS_ENDPOINT_URL")
	if endpoint == "" {
		cfg, err := awsCfg.LoadDefaultConfig(ctx, awsCfg.WithRegion(region))
		return cfg, "", err
	}
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, r string, _ ...any) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               endpoint,
			HostnameImmutable: true,
			PartitionID:       "aws",
		}, nil
	})
	cfg, err := awsCfg.LoadDefaultConfig(ctx, awsCfg.WithRegion(region), awsCfg.WithEndpointResolverWithOptions(resolver))
	return cfg, endpoint, err
}
