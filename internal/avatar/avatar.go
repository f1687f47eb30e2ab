// Package avatar owns the lifecycle of a user's profile picture in the
// remote asset store.
//
// UPLOAD PIPELINE:
//  1. Read the header and reject canvases over MaxEdge or MaxPixels
//  2. Decode the upload (JPEG, PNG, GIF or WebP)
//  3. Crop the largest centered square
//  4. Scale it to 200×200 with Catmull-Rom resampling
//  5. Re-encode: PNG if the result has transparency, JPEG (q82) otherwise
//  6. Store it under Folder with a collision-resistant name
//
// REPLACE PROTOCOL:
// Callers upload the new asset first, persist the new URL, and only then
// call Delete on the old one. If the upload fails the user's record is never
// touched. Delete is best-effort and never fails the caller; an orphaned
// asset is cheaper than a blocked profile update.
package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	// Decoders registered with image.Decode.
	_ "image/gif"

	"github.com/gosimple/slug"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/sakif/autodealer/internal/apperror"
)

const (
	// Folder is the logical namespace every avatar lives under. Delete
	// refuses to touch anything outside it.
	Folder = "autodealer/avatars"

	// Size is the edge length of the stored square image, in pixels.
	Size = 200

	// MaxUploadBytes bounds the accepted upload.
	MaxUploadBytes = 5 << 20

	// MaxEdge and MaxPixels bound the decoded canvas. Compressed size says
	// nothing about it: a few hundred KB of PNG can declare gigabytes of pixels.
	MaxEdge   = 8000
	MaxPixels = 25_000_000

	jpegQuality = 82
	maxNameLen  = 40
)

// Store is the remote asset store as the avatar manager sees it.
// *minio.Client satisfies it.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
	KeyFromURL(url string) (string, bool)
}

// UnavailableStore stands in for an asset store that could not be reached
// at startup. Uploads fail with Err; nothing is ever recognised as a
// managed asset, so deletes are skipped.
type UnavailableStore struct {
	Err error
}

func (u UnavailableStore) Put(context.Context, string, io.Reader, int64, string) (string, error) {
	return "", u.Err
}

func (u UnavailableStore) Remove(context.Context, string) error { return u.Err }

func (u UnavailableStore) KeyFromURL(string) (string, bool) { return "", false }

// Manager uploads and deletes avatar assets.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a Manager on top of store.
func NewManager(store Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Upload transforms data and stores it, returning the asset's URL.
//
// Malformed input (empty, too large, not an image) is an
// apperror.ErrValidation. A rejection by the remote store, or a store that
// returns no URL, is an apperror.ErrUpload.
func (m *Manager) Upload(ctx context.Context, data []byte, originalFilename string) (string, error) {
	if len(data) == 0 {
		return "", apperror.ValidationFailed("avatar", "File foto profil kosong")
	}
	if len(data) > MaxUploadBytes {
		return "", apperror.ValidationFailed("avatar", "Ukuran foto profil maksimal 5 MB")
	}

	if err := checkDimensions(data); err != nil {
		return "", err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", apperror.ValidationFailed("avatar", "Format foto profil tidak didukung")
	}

	thumb := squareThumbnail(src, Size)

	var buf bytes.Buffer
	contentType, ext := "image/jpeg", ".jpg"
	if thumb.Opaque() {
		err = jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality})
	} else {
		contentType, ext = "image/png", ".png"
		err = (&png.Encoder{CompressionLevel: png.BestCompression}).Encode(&buf, thumb)
	}
	if err != nil {
		return "", fmt.Errorf("avatar: encoding thumbnail: %w", err)
	}

	key := Folder + "/" + AssetID(originalFilename, m.now()) + ext

	url, err := m.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), contentType)
	if err != nil {
		return "", apperror.UploadFailed(err)
	}
	if url == "" {
		return "", apperror.UploadFailed(errors.New("asset store returned an empty URL"))
	}

	m.logger.Debug("avatar uploaded",
		slog.String("key", key),
		slog.Int("bytes", buf.Len()),
	)

	return url, nil
}

// Delete removes the asset behind url, best-effort.
//
// Empty URLs and URLs outside the store's avatar folder (for example a
// Google profile picture) are ignored. Store failures are logged at Warn and
// swallowed.
func (m *Manager) Delete(ctx context.Context, url string) {
	if url == "" {
		return
	}

	key, ok := m.store.KeyFromURL(url)
	if !ok || !strings.HasPrefix(key, Folder+"/") {
		m.logger.Debug("avatar delete skipped: not a managed asset", slog.String("url", url))
		return
	}

	if err := m.store.Remove(ctx, key); err != nil {
		m.logger.Warn("avatar delete failed, asset left orphaned",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}

	m.logger.Debug("avatar deleted", slog.String("key", key))
}

// checkDimensions reads only the image header, so an oversized canvas is
// refused before the decoder allocates it.
func checkDimensions(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return apperror.ValidationFailed("avatar", "Format foto profil tidak didukung")
	}
	if cfg.Width > MaxEdge || cfg.Height > MaxEdge || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return apperror.ValidationFailed("avatar", "Dimensi foto profil terlalu besar")
	}
	return nil
}

// AssetID derives a storage name from the uploaded filename and a
// nanosecond timestamp: "My Photo (1).JPG" → "my-photo-1-1718000000123456789".
func AssetID(originalFilename string, at time.Time) string {
	base := filepath.Base(strings.ReplaceAll(originalFilename, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = slug.Make(base)
	if len(base) > maxNameLen {
		base = strings.TrimRight(base[:maxNameLen], "-")
	}
	if base == "" {
		base = "avatar"
	}
	return fmt.Sprintf("%s-%d", base, at.UnixNano())
}

// squareThumbnail crops the largest centered square out of src and scales
// it to size×size.
//
// TODO: bias the crop toward a detected face once a detector is available;
// today every image uses center gravity.
func squareThumbnail(src image.Image, size int) *image.RGBA {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}
