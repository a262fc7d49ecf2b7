package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/safar/electronics-store/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticLinker(t *testing.T) {
	l := NewStaticLinker("https://shop.example.com/")

	u, err := l.DownloadURL(context.Background(), "/media/receipts/40.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/media/receipts/40.pdf", u)

	_, err = l.DownloadURL(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestNew_WithoutBucketIsStatic(t *testing.T) {
	l, err := New(config.StorageConfig{})
	require.NoError(t, err)

	u, err := l.DownloadURL(context.Background(), "/media/invoices/3.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/media/invoices/3.pdf", u)
}

func TestNewS3Linker_Validation(t *testing.T) {
	_, err := NewS3Linker(config.StorageConfig{AccessKey: "k", SecretKey: "s"})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewS3Linker(config.StorageConfig{Bucket: "documents"})
	assert.ErrorContains(t, err, "secret key are required")
}

func TestS3Linker_Presigns(t *testing.T) {
	l, err := NewS3Linker(config.StorageConfig{
		Bucket:            "documents",
		Endpoint:          "http://localhost:9000",
		AccessKey:         "test-key",
		SecretKey:         "test-secret",
		UsePathStyle:      true,
		PresignExpiration: 10 * time.Minute,
	})
	require.NoError(t, err)

	raw, err := l.DownloadURL(context.Background(), "/media/receipts/40.pdf")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/documents/receipts/40.pdf", u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "receipts/1.pdf", objectKey("/media/receipts/1.pdf"))
	assert.Equal(t, "invoices/1.pdf", objectKey("/invoices/1.pdf"))
}
