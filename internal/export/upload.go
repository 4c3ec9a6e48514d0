package export

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pders01/trace/internal/config"
)

const defaultRegion = "us-east-1"

// S3Uploader puts saved artifacts into a bucket, creating it on first use
type S3Uploader struct {
	client *minio.Client
	bucket string
	prefix string

	initOnce sync.Once
	initErr  error
}

// NewS3Uploader connects to the endpoint in cfg. Credentials fall back to the
// standard AWS environment variables when not configured.
func NewS3Uploader(cfg config.PublishConfig) (*S3Uploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("publish endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("publish bucket is required")
	}

	creds := credentials.NewEnvAWS()
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.Secure,
		Region: defaultRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Uploader{client: client, bucket: bucket, prefix: "test-cases"}, nil
}

func (u *S3Uploader) ensureBucket(ctx context.Context) error {
	u.initOnce.Do(func() {
		exists, err := u.client.BucketExists(ctx, u.bucket)
		if err != nil {
			u.initErr = err
			return
		}
		if exists {
			return
		}
		u.initErr = u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: defaultRegion})
	})
	return u.initErr
}

// Upload stores the file under test-cases/<name> and returns its s3:// URI
func (u *S3Uploader) Upload(ctx context.Context, path string) (string, error) {
	if err := u.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	key := objectKey(u.prefix, path)
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := u.client.FPutObject(ctx, u.bucket, key, path, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", info.Bucket, info.Key), nil
}

func objectKey(prefix, path string) string {
	return strings.Trim(prefix, "/") + "/" + filepath.Base(path)
}
