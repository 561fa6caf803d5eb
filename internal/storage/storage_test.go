package storage

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/balu-property/damage-service/pkg/util/errorutil"
)

func TestURLStore(t *testing.T) {
	store := NewURLStore()

	got, err := store.Store(context.Background(), "tenant-1", []string{"https://cdn.example.com/damages/leak.jpg"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tenant-1", got[0].OwnerID)
	assert.Equal(t, "leak.jpg", got[0].FileName)
	assert.Equal(t, "image/jpeg", got[0].MimeType)
	assert.NotEmpty(t, got[0].ID)

	for _, bad := range []string{"ftp://x/y.pdf", "not a url", "/relative/path.png"} {
		_, err := store.Store(context.Background(), "tenant-1", []string{bad})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), bad)
	}
}

type fakeHeader struct {
	objects map[string]*s3.HeadObjectOutput
}

func (f *fakeHeader) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	out, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return out, nil
}

func TestS3Store(t *testing.T) {
	client := &fakeHeader{objects: map[string]*s3.HeadObjectOutput{
		"damages/t1/offer.pdf": {ContentType: aws.String("application/pdf"), ContentLength: aws.Int64(2048)},
	}}
	store := NewS3StoreWithClient(client, "docs", "https://docs.example.com/")

	got, err := store.Store(context.Background(), "company-1", []string{"/damages/t1/offer.pdf"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "damages/t1/offer.pdf", got[0].StorageKey)
	assert.Equal(t, "https://docs.example.com/damages/t1/offer.pdf", got[0].URL)
	assert.Equal(t, "application/pdf", got[0].MimeType)
	assert.EqualValues(t, 2048, got[0].SizeBytes)

	_, err = store.Store(context.Background(), "company-1", []string{"damages/t1/missing.pdf"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = store.Store(context.Background(), "company-1", []string{"../secrets"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
