// Package archive keeps a copy of every uploaded source file in an
// S3-compatible bucket, keyed by upload id.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config selects the bucket. An empty Endpoint disables archiving.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Archiver stores raw uploads.
type Archiver interface {
	Put(ctx context.Context, uploadID, filename string, data []byte) (key string, err error)
}

type objectPutter interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Bucket archives into a MinIO/S3 bucket.
type Bucket struct {
	client objectPutter
	bucket string
	now    func() time.Time
}

// New connects to the bucket and creates it when missing.
func New(ctx context.Context, cfg Config) (*Bucket, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("archive client: %w", err)
	}
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("archive bucket check: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("archive make bucket: %w", err)
		}
	}
	return &Bucket{client: cli, bucket: cfg.Bucket, now: time.Now}, nil
}

// Key builds the object name: uploads/YYYY/MM/DD/<upload id>/<file name>.
func Key(at time.Time, uploadID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload.bin"
	}
	return path.Join("uploads", at.UTC().Format("2006/01/02"), uploadID, name)
}

func (b *Bucket) Put(ctx context.Context, uploadID, filename string, data []byte) (string, error) {
	key := Key(b.now(), uploadID, filename)
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType(filename),
		UserMetadata: map[string]string{"upload-id": uploadID},
	})
	if err != nil {
		return "", fmt.Errorf("archive put %s: %w", key, err)
	}
	return key, nil
}

func contentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".csv":
		return "text/csv"
	case ".html", ".htm":
		return "text/html"
	}
	return "application/octet-stream"
}
