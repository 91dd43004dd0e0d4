package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archiver stores a rendered export and returns a link to download it.
type Archiver interface {
	Put(ctx context.Context, key string, result *Result) (string, error)
}

// S3Archive uploads exports to an S3-compatible bucket and hands back
// presigned GET links.
type S3Archive struct {
	client  *minio.Client
	bucket  string
	linkTTL time.Duration
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewS3Archive(cfg S3Config) (*S3Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Archive{client: client, bucket: cfg.Bucket, linkTTL: 24 * time.Hour}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (a *S3Archive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	return nil
}

func (a *S3Archive) Put(ctx context.Context, key string, result *Result) (string, error) {
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(result.Data), int64(len(result.Data)), minio.PutObjectOptions{
		ContentType:        result.MimeType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", result.Filename),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	link, err := a.client.PresignedGetObject(ctx, a.bucket, key, a.linkTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return link.String(), nil
}

// archiveKey files exports by generation date: reports/2026/03/12/<name>.
func archiveKey(generatedAt time.Time, filename string) string {
	return path.Join("reports", generatedAt.UTC().Format("2006/01/02"), filename)
}
