package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds the connection settings for an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string // "minio:9000" or "https://minio:9000"
	AccessKey string
	SecretKey string
	Bucket    string
}

// Enabled reports whether any S3 setting was supplied.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" || c.AccessKey != "" || c.SecretKey != "" || c.Bucket != ""
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	return raw, false, nil
}

// NewMinioClient connects to the endpoint and checks that the bucket exists.
func NewMinioClient(ctx context.Context, cfg S3Config) (*minio.Client, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("bucket does not exist: %s", cfg.Bucket)
	}
	return client, nil
}

// MinioStore keeps objects in a bucket under a key prefix. Names are
// cleaned with CleanPath before being appended to the prefix, so a key can
// never leave the prefix.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore returns a store rooted at prefix inside bucket.
func NewMinioStore(client *minio.Client, bucket, prefix string) *MinioStore {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &MinioStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *MinioStore) key(name string) (string, error) {
	rel, err := CleanPath(name)
	if err != nil {
		return "", err
	}
	return s.prefix + rel, nil
}

func (s *MinioStore) Open(ctx context.Context, name string) (Object, Info, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, Info{}, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, Info{}, mapMinioError(err)
	}
	// Stat forces the request so a missing key surfaces here.
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, Info{}, mapMinioError(err)
	}
	return obj, Info{Name: strings.TrimPrefix(key, s.prefix), Size: st.Size, ModTime: st.LastModified}, nil
}

func (s *MinioStore) Put(ctx context.Context, name string, r io.Reader, size int64) (int64, error) {
	key, err := s.key(name)
	if err != nil {
		return 0, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		PartSize:    5 << 20,
	})
	if err != nil {
		return info.Size, fmt.Errorf("put %s: %w", key, err)
	}
	return info.Size, nil
}

func mapMinioError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
