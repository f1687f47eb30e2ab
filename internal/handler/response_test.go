package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/autodealer/internal/apperror"
)

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantMsg    string
	}{
		{"validation", apperror.ValidationFailed("email", "Format email tidak valid"), 400, "validation_error", "Format email tidak valid"},
		{"conflict is 400", apperror.Conflict("email", "Email sudah terdaftar"), 400, "conflict", "Email sudah terdaftar"},
		{"identity", apperror.IdentityFailed("tanpa email"), 400, "identity_error", "tanpa email"},
		{"auth", apperror.InvalidCredentials(), 401, "unauthorized", "Email atau password salah"},
		{"not found", apperror.NotFound("user", "u1"), 404, "not_found", "user not found with id u1"},
		{"upload", apperror.UploadFailed(errors.New("s3 down")), 500, "upload_failed", "Gagal mengunggah foto profil"},
		{"wrapped app error", fmt.Errorf("service/auth: x: %w", apperror.Conflict("email", "dup")), 400, "conflict", "dup"},
		{"plain error hides detail", errors.New("sql: SELECT * FROM users failed"), 500, "internal_error", internalErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantKind, body.Error)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping() error { return p.err }

func TestHealthHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("ok", func(t *testing.T) {
		rr := httptest.NewRecorder()
		NewHealthHandler(stubPinger{}, logger).HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})

	t.Run("database down", func(t *testing.T) {
		rr := httptest.NewRecorder()
		NewHealthHandler(stubPinger{err: errors.New("closed")}, logger).HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}
