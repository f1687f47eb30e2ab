// Package minio stores binary assets in an S3-compatible bucket and maps
// object keys to public URLs and back.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Internal adapter interface to enable mocking without a real MinIO server.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Config holds the connection parameters for the asset bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL is the origin clients fetch assets from, e.g. a CDN in
	// front of the bucket. Object URLs are PublicBaseURL/<bucket>/<key>.
	PublicBaseURL string
}

// Client is a thin bucket-scoped wrapper around the MinIO SDK.
type Client struct {
	api     minioAPI
	bucket  string
	baseURL *url.URL
}

// NewClient connects to the configured endpoint and ensures the bucket exists.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage/minio: creating client: %w", err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}

	return NewClientWithAPI(ctx, mc, cfg.Bucket, base)
}

// NewClientWithAPI allows injecting a mockable API (used in tests).
func NewClientWithAPI(ctx context.Context, api minioAPI, bucket, publicBaseURL string) (*Client, error) {
	if bucket == "" {
		return nil, errors.New("storage/minio: bucket name must not be empty")
	}

	base, err := url.Parse(strings.TrimRight(publicBaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("storage/minio: invalid public base URL %q", publicBaseURL)
	}

	c := &Client{
		api:     api,
		bucket:  bucket,
		baseURL: base,
	}

	if err := c.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("storage/minio: failed to ensure bucket exists: %w", err)
	}

	return c, nil
}

// ensureBucketExists creates the bucket if it doesn't exist
func (c *Client) ensureBucketExists(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Put uploads an object and returns its public URL.
//
// Keys are never reused (they embed a timestamp), so objects are served
// with a long immutable cache lifetime.
func (c *Client) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	info, err := c.api.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("storage/minio: failed to upload object: %w", err)
	}
	if info.Key == "" {
		return "", fmt.Errorf("storage/minio: upload of %q returned no object key", key)
	}
	return c.URL(info.Key), nil
}

// Remove deletes an object. Removing a missing key is not an error in S3.
func (c *Client) Remove(ctx context.Context, key string) error {
	if err := c.api.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage/minio: failed to delete object: %w", err)
	}
	return nil
}

// URL returns the public URL for key.
func (c *Client) URL(key string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + c.bucket + "/" + strings.TrimLeft(key, "/")
	return u.String()
}

// KeyFromURL is the inverse of URL. It reports false for any URL that is
// not served from this client's base URL and bucket.
func (c *Client) KeyFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Host, c.baseURL.Host) {
		return "", false
	}

	prefix := strings.TrimRight(c.baseURL.Path, "/") + "/" + c.bucket + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}

	key := strings.TrimPrefix(u.Path, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
