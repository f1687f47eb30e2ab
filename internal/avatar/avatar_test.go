package avatar

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/autodealer/internal/apperror"
)

const testBase = "https://cdn.example.com/assets/"

// fakeStore records calls and maps keys to URLs under testBase.
type fakeStore struct {
	putErr      error
	emptyURL    bool
	removeErr   error
	putKey      string
	putType     string
	putBody     []byte
	removedKeys []string
}

func (f *fakeStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.putKey, f.putType = key, contentType
	f.putBody, _ = io.ReadAll(r)
	if f.emptyURL {
		return "", nil
	}
	return testBase + key, nil
}

func (f *fakeStore) Remove(_ context.Context, key string) error {
	f.removedKeys = append(f.removedKeys, key)
	return f.removeErr
}

func (f *fakeStore) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, testBase) {
		return "", false
	}
	return strings.TrimPrefix(url, testBase), true
}

func newTestManager(store *fakeStore) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(store, logger)
	m.now = func() time.Time { return time.Unix(1700000000, 123) }
	return m
}

// encodePNG renders a w×h image; opaque controls the alpha channel.
func encodePNG(t *testing.T, w, h int, opaque bool) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	alpha := uint8(255)
	if !opaque {
		alpha = 128
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: alpha})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// =========================================================================
// UPLOAD TESTS
// =========================================================================

func TestUpload_OpaqueImageBecomes200JPEG(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(store)

	url, err := m.Upload(context.Background(), encodePNG(t, 640, 480, true), "Foto Profil.PNG")
	require.NoError(t, err)

	assert.Equal(t, testBase+"autodealer/avatars/foto-profil-1700000000000000123.jpg", url)
	assert.Equal(t, "image/jpeg", store.putType)

	out, err := jpeg.Decode(bytes.NewReader(store.putBody))
	require.NoError(t, err)
	assert.Equal(t, 200, out.Bounds().Dx())
	assert.Equal(t, 200, out.Bounds().Dy())
}

func TestUpload_TransparentImageStaysPNG(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(store)

	_, err := m.Upload(context.Background(), encodePNG(t, 300, 900, false), "logo.png")
	require.NoError(t, err)

	assert.Equal(t, "image/png", store.putType)
	assert.True(t, strings.HasSuffix(store.putKey, ".png"))

	out, err := png.Decode(bytes.NewReader(store.putBody))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 200), out.Bounds())
}

func TestUpload_RejectsNonImage(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(store)

	_, err := m.Upload(context.Background(), []byte("%PDF-1.7 not an image"), "cv.pdf")

	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
	assert.Empty(t, store.putKey, "nothing should be uploaded")
}

func TestUpload_RejectsEmptyAndOversized(t *testing.T) {
	m := newTestManager(&fakeStore{})

	_, err := m.Upload(context.Background(), nil, "a.png")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = m.Upload(context.Background(), make([]byte, MaxUploadBytes+1), "a.png")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

// A mostly-zero PNG compresses to almost nothing whatever its canvas size.
func TestUpload_RejectsTallZeroFilledPNG(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(store)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	require.NoError(t, enc.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, MaxEdge+1))))
	require.Less(t, buf.Len(), MaxUploadBytes)

	_, err := m.Upload(context.Background(), buf.Bytes(), "tall.png")

	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
	assert.Empty(t, store.putKey, "nothing should be uploaded")
}

// pngHeader returns a PNG with only a signature and an IHDR chunk. The
// header alone declares the canvas; there is no pixel data to decode.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth; color type 0 (gray), no interlace

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestUpload_RejectsOversizedCanvasBeforeDecoding(t *testing.T) {
	tests := []struct {
		name string
		w, h uint32
	}{
		{"huge square", 40000, 40000},
		{"wide", MaxEdge + 1, 10},
		{"area over budget", 5001, 5001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			m := newTestManager(store)

			_, err := m.Upload(context.Background(), pngHeader(tt.w, tt.h), "bomb.png")

			assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
			assert.Empty(t, store.putKey)
		})
	}
}

func TestCheckDimensions_AcceptsCanvasAtLimit(t *testing.T) {
	assert.NoError(t, checkDimensions(pngHeader(5000, 5000)))
	assert.NoError(t, checkDimensions(pngHeader(MaxEdge, 100)))
}

func TestUpload_StoreRejectionIsUploadError(t *testing.T) {
	m := newTestManager(&fakeStore{putErr: errors.New("503 SlowDown")})

	_, err := m.Upload(context.Background(), encodePNG(t, 10, 10, true), "a.png")

	assert.True(t, errors.Is(err, apperror.ErrUpload), "got %v", err)
}

func TestUpload_EmptyURLIsUploadError(t *testing.T) {
	m := newTestManager(&fakeStore{emptyURL: true})

	_, err := m.Upload(context.Background(), encodePNG(t, 10, 10, true), "a.png")

	assert.True(t, errors.Is(err, apperror.ErrUpload), "got %v", err)
}

func TestUpload_UnavailableStore(t *testing.T) {
	m := NewManager(UnavailableStore{Err: errors.New("dial tcp: connection refused")},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := m.Upload(context.Background(), encodePNG(t, 10, 10, true), "a.png")
	assert.True(t, errors.Is(err, apperror.ErrUpload), "got %v", err)

	assert.NotPanics(t, func() { m.Delete(context.Background(), testBase+"autodealer/avatars/a.jpg") })
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDelete_ManagedAsset(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(store)

	m.Delete(context.Background(), testBase+"autodealer/avatars/old-1.jpg")

	assert.Equal(t, []string{"autodealer/avatars/old-1.jpg"}, store.removedKeys)
}

func TestDelete_IgnoresEmptyAndForeignURLs(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(store)

	m.Delete(context.Background(), "")
	m.Delete(context.Background(), "https://lh3.googleusercontent.com/a/photo.jpg")
	m.Delete(context.Background(), testBase+"listings/car-1.jpg")

	assert.Empty(t, store.removedKeys)
}

// A failing remote delete is logged, never returned or panicked.
func TestDelete_FailureIsSwallowed(t *testing.T) {
	store := &fakeStore{removeErr: errors.New("connection reset")}
	m := newTestManager(store)

	assert.NotPanics(t, func() {
		m.Delete(context.Background(), testBase+"autodealer/avatars/old-1.jpg")
	})
	assert.Len(t, store.removedKeys, 1)
}

// =========================================================================
// NAMING TESTS
// =========================================================================

func TestAssetID(t *testing.T) {
	at := time.Unix(0, 42)

	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo-42"},
		{"My Photo (1).JPG", "my-photo-1-42"},
		{`C:\Users\budi\Desktop\selfie.png`, "selfie-42"},
		{"../../etc/passwd", "passwd-42"},
		{"Fóto Añdré.jpeg", "foto-andre-42"},
		{"", "avatar-42"},
		{"???.png", "avatar-42"},
		{strings.Repeat("a", 100) + ".png", strings.Repeat("a", 40) + "-42"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, AssetID(tt.in, at))
		})
	}
}

func TestAssetID_DistinctAcrossTime(t *testing.T) {
	t0 := time.Now()
	assert.NotEqual(t, AssetID("a.png", t0), AssetID("a.png", t0.Add(time.Nanosecond)))
}
