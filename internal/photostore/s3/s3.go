// Package s3 stores photos in an S3-compatible bucket (MinIO, AWS S3 or
// Supabase Storage's S3 endpoint).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/catchsmart/catchsmart/internal/photostore"
)

const cacheControl = "max-age=3600"

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	// PublicURL is the base under which objects are publicly readable, e.g.
	// https://<project>.supabase.co/storage/v1/object/public. When empty the
	// endpoint itself is used.
	PublicURL string
}

type S3PhotoStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewS3PhotoStore(cfg Config) (*S3PhotoStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid s3 endpoint: %w", err)
	}
	host := u.Host
	if host == "" {
		host = cfg.Endpoint
	}
	secure := u.Scheme == "https"

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		publicURL = scheme + "://" + host
	}

	return &S3PhotoStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

func (s *S3PhotoStore) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	// Refuse to overwrite an existing object.
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return "", fmt.Errorf("%w: %s", photostore.ErrExists, key)
	}
	if cerr := classify(err); !errors.Is(cerr, photostore.ErrNotFound) {
		return "", cerr
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	})
	if err != nil {
		return "", classify(err)
	}
	return key, nil
}

func (s *S3PhotoStore) PublicURL(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicURL + "/" + s.bucket + "/" + strings.Join(segments, "/")
}

func (s *S3PhotoStore) Get(ctx context.Context, path string) (io.ReadCloser, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", classify(err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, "", classify(err)
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return obj, contentType, nil
}

// classify maps minio error responses onto photostore sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchBucket":
		return fmt.Errorf("%w: %v", photostore.ErrBucketNotFound, err)
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %v", photostore.ErrNotFound, err)
	}
	return fmt.Errorf("s3 request failed: %w", err)
}
