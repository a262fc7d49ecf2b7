package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/safar/electronics-store/internal/config"
)

// mediaPrefix is stripped from stored document paths to get the object key.
const mediaPrefix = "/media/"

var ErrNoDocument = errors.New("document not available for download")

// Linker turns the path stored on a receipt or invoice into a URL a client
// can fetch.
type Linker interface {
	DownloadURL(ctx context.Context, storedPath string) (string, error)
}

func New(cfg config.StorageConfig) (Linker, error) {
	if cfg.Bucket == "" {
		return NewStaticLinker(cfg.PublicBaseURL), nil
	}
	return NewS3Linker(cfg)
}

type StaticLinker struct {
	baseURL string
}

func NewStaticLinker(baseURL string) *StaticLinker {
	return &StaticLinker{baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (l *StaticLinker) DownloadURL(_ context.Context, storedPath string) (string, error) {
	if storedPath == "" {
		return "", ErrNoDocument
	}
	return l.baseURL + storedPath, nil
}

// S3Linker hands out presigned GET URLs for documents kept in an
// S3-compatible bucket under receipts/ and invoices/.
type S3Linker struct {
	presignClient *s3.PresignClient
	bucket        string
	expiration    time.Duration
}

func NewS3Linker(cfg config.StorageConfig) (*S3Linker, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	expiration := cfg.PresignExpiration
	if expiration == 0 {
		expiration = 15 * time.Minute
	}

	return &S3Linker{
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		expiration:    expiration,
	}, nil
}

func objectKey(storedPath string) string {
	return strings.TrimPrefix(strings.TrimPrefix(storedPath, mediaPrefix), "/")
}

func (l *S3Linker) DownloadURL(ctx context.Context, storedPath string) (string, error) {
	if storedPath == "" {
		return "", ErrNoDocument
	}

	req, err := l.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(objectKey(storedPath)),
	}, s3.WithPresignExpires(l.expiration))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", storedPath, err)
	}

	return req.URL, nil
}
