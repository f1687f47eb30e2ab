package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMinio implements minioAPI for testing without network.
type fakeMinio struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	madeBucket      bool

	putErr         error
	putEmptyKey    bool
	putKey         string
	putBody        []byte
	putContentType string

	removeErr error
	removed   []string
}

func (f *fakeMinio) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}

func (f *fakeMinio) MakeBucket(_ context.Context, _ string, _ minioLib.MakeBucketOptions) error {
	f.madeBucket = true
	return f.makeBucketErr
}

func (f *fakeMinio) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	if f.putErr != nil {
		return minioLib.UploadInfo{}, f.putErr
	}
	body, _ := io.ReadAll(r)
	f.putKey, f.putBody, f.putContentType = key, body, opts.ContentType
	if f.putEmptyKey {
		return minioLib.UploadInfo{Bucket: bucket}, nil
	}
	return minioLib.UploadInfo{Bucket: bucket, Key: key, Size: int64(len(body))}, nil
}

func (f *fakeMinio) RemoveObject(_ context.Context, _ string, key string, _ minioLib.RemoveObjectOptions) error {
	f.removed = append(f.removed, key)
	return f.removeErr
}

func newTestClient(t *testing.T, api *fakeMinio) *Client {
	t.Helper()
	api.bucketExists = true
	c, err := NewClientWithAPI(context.Background(), api, "dealer-assets", "https://cdn.example.com")
	require.NoError(t, err)
	return c
}

func TestNewClientWithAPI_BucketExists(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	c, err := NewClientWithAPI(context.Background(), api, "b", "https://cdn.example.com")
	require.NoError(t, err)
	assert.Equal(t, "b", c.bucket)
	assert.False(t, api.madeBucket)
}

func TestNewClientWithAPI_CreateBucket(t *testing.T) {
	api := &fakeMinio{bucketExists: false}
	_, err := NewClientWithAPI(context.Background(), api, "bucket", "https://cdn.example.com")
	require.NoError(t, err)
	assert.True(t, api.madeBucket)
}

func TestNewClientWithAPI_BucketExistsError(t *testing.T) {
	api := &fakeMinio{bucketExistsErr: errors.New("boom")}
	c, err := NewClientWithAPI(context.Background(), api, "bucket", "https://cdn.example.com")
	assert.Nil(t, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ensure bucket exists")
}

func TestNewClientWithAPI_MakeBucketError(t *testing.T) {
	api := &fakeMinio{makeBucketErr: errors.New("fail")}
	_, err := NewClientWithAPI(context.Background(), api, "bucket", "https://cdn.example.com")
	assert.Error(t, err)
}

func TestNewClientWithAPI_InvalidInput(t *testing.T) {
	_, err := NewClientWithAPI(context.Background(), &fakeMinio{bucketExists: true}, "", "https://cdn.example.com")
	assert.Error(t, err, "empty bucket")

	_, err = NewClientWithAPI(context.Background(), &fakeMinio{bucketExists: true}, "b", "not a url")
	assert.Error(t, err, "base URL without scheme/host")
}

func TestPut_ReturnsPublicURL(t *testing.T) {
	api := &fakeMinio{}
	c := newTestClient(t, api)

	url, err := c.Put(context.Background(), "autodealer/avatars/budi-1.jpg",
		bytes.NewReader([]byte("jpeg-bytes")), 10, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/dealer-assets/autodealer/avatars/budi-1.jpg", url)
	assert.Equal(t, "autodealer/avatars/budi-1.jpg", api.putKey)
	assert.Equal(t, []byte("jpeg-bytes"), api.putBody)
	assert.Equal(t, "image/jpeg", api.putContentType)
}

func TestPut_Error(t *testing.T) {
	api := &fakeMinio{putErr: errors.New("AccessDenied")}
	c := newTestClient(t, api)

	_, err := c.Put(context.Background(), "k", bytes.NewReader(nil), 0, "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload object")
}

func TestPut_NoKeyReturned(t *testing.T) {
	api := &fakeMinio{putEmptyKey: true}
	c := newTestClient(t, api)

	_, err := c.Put(context.Background(), "k", bytes.NewReader([]byte("x")), 1, "image/png")
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	api := &fakeMinio{}
	c := newTestClient(t, api)

	require.NoError(t, c.Remove(context.Background(), "autodealer/avatars/x.jpg"))
	assert.Equal(t, []string{"autodealer/avatars/x.jpg"}, api.removed)

	api.removeErr = errors.New("nope")
	assert.Error(t, c.Remove(context.Background(), "y"))
}

func TestURLAndKeyFromURL_RoundTrip(t *testing.T) {
	c := newTestClient(t, &fakeMinio{})

	key := "autodealer/avatars/siti-1700000000000000000.png"
	got, ok := c.KeyFromURL(c.URL(key))
	require.True(t, ok)
	assert.Equal(t, key, got)
}

func TestKeyFromURL_Rejects(t *testing.T) {
	c := newTestClient(t, &fakeMinio{})

	tests := []struct {
		name string
		url  string
	}{
		{"other host", "https://lh3.googleusercontent.com/dealer-assets/autodealer/avatars/a.jpg"},
		{"other bucket", "https://cdn.example.com/other-bucket/autodealer/avatars/a.jpg"},
		{"bucket root", "https://cdn.example.com/dealer-assets/"},
		{"path traversal", "https://cdn.example.com/dealer-assets/../secrets/a.jpg"},
		{"garbage", "::not a url::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := c.KeyFromURL(tt.url)
			assert.False(t, ok)
		})
	}
}

func TestURL_WithBasePath(t *testing.T) {
	c, err := NewClientWithAPI(context.Background(), &fakeMinio{bucketExists: true}, "b", "https://cdn.example.com/static/")
	require.NoError(t, err)

	u := c.URL("k/1.jpg")
	assert.Equal(t, "https://cdn.example.com/static/b/k/1.jpg", u)

	key, ok := c.KeyFromURL(u)
	require.True(t, ok)
	assert.Equal(t, "k/1.jpg", key)
}
