package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/xid"

	"github.com/sakif/autodealer/internal/apperror"
	"github.com/sakif/autodealer/internal/auth"
	"github.com/sakif/autodealer/internal/avatar"
	"github.com/sakif/autodealer/internal/service"
)

const (
	stateCookieName = "oauth_state"

	// maxJSONBody bounds every JSON request body.
	maxJSONBody = 1 << 20
)

// AuthHandler exposes the Session Facade over HTTP.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister / HandleLogin  → JSON in, profile + token out
//   - HandleLogout                  → clear the token cookie
//   - HandleGetProfile / HandleUpdateProfile → the caller's own profile
//   - HandleGoogleLogin / HandleGoogleCallback → the OAuth redirect dance
//
// Every response that carries a token also sets it as an HttpOnly cookie,
// so browser clients may ignore the body and API clients the cookie.
type AuthHandler struct {
	auth          *service.AuthService
	frontendURL   string
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler. frontendURL is where the OAuth
// callback sends the browser; cookies are marked Secure when it is https.
func NewAuthHandler(svc *service.AuthService, frontendURL string, logger *slog.Logger) *AuthHandler {
	frontendURL = strings.TrimRight(frontendURL, "/")
	return &AuthHandler{
		auth:          svc,
		frontendURL:   frontendURL,
		secureCookies: strings.HasPrefix(frontendURL, "https://"),
		logger:        logger,
	}
}

// HandleRegister creates a local account.
//
// HTTP: POST /api/auth/register
// Body: {"firstName", "lastName", "email", "password"}
// 201 with {id, firstName, lastName, email, role, avatarUrl, token}.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	res, err := h.auth.Register(r.Context(), in)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, res)
}

// HandleLogin authenticates with email and password.
//
// HTTP: POST /api/auth/login
// Body: {"email", "password"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	res, err := h.auth.Login(r.Context(), in)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res)
}

// HandleLogout clears the token cookie.
//
// HTTP: POST /api/auth/logout
//
// Tokens are stateless, so this only removes the browser's copy. The token
// itself stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Berhasil keluar"})
}

// HandleGetProfile returns the caller's profile.
//
// HTTP: GET /api/auth/profile
// Auth: Required
func (h *AuthHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	profile, err := h.auth.GetProfile(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdateProfile changes the caller's names, password or avatar.
//
// HTTP: PUT /api/auth/profile
// Auth: Required
//
// Accepts either JSON, or multipart/form-data with the same text fields
// plus an optional "avatar" file part. "removeAvatar" is a boolean in JSON
// and "true"/"1" in a form.
func (h *AuthHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var in service.UpdateProfileInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var err error
		in, err = readProfileForm(w, r)
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
	} else if !h.decodeJSON(w, r, &in) {
		return
	}

	res, err := h.auth.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res)
}

// readProfileForm parses a multipart profile update. The body limit leaves
// room for the text fields on top of the largest accepted image.
func readProfileForm(w http.ResponseWriter, r *http.Request) (service.UpdateProfileInput, error) {
	var in service.UpdateProfileInput

	r.Body = http.MaxBytesReader(w, r.Body, avatar.MaxUploadBytes+maxJSONBody)
	if err := r.ParseMultipartForm(avatar.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, apperror.ValidationFailed("avatar", "Ukuran foto profil maksimal 5 MB")
		}
		return in, apperror.ValidationFailed("body", "Form tidak valid")
	}
	defer r.MultipartForm.RemoveAll()

	in.FirstName = r.FormValue("firstName")
	in.LastName = r.FormValue("lastName")
	in.CurrentPassword = r.FormValue("currentPassword")
	in.NewPassword = r.FormValue("newPassword")
	in.RemoveAvatar, _ = strconv.ParseBool(r.FormValue("removeAvatar"))

	file, header, err := r.FormFile("avatar")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		return in, apperror.ValidationFailed("avatar", "File foto profil tidak dapat dibaca")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, avatar.MaxUploadBytes+1))
	if err != nil {
		return in, fmt.Errorf("handler: reading avatar upload: %w", err)
	}

	in.Avatar = &service.AvatarUpload{Data: data, Filename: header.Filename}
	return in, nil
}

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// HTTP: GET /api/auth/google
//
// CSRF PROTECTION VIA STATE:
// A random state value goes both into a short-lived HttpOnly cookie and
// into the consent URL. The callback only proceeds if the two match, which
// proves the flow was started from this browser.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	loginURL, err := h.auth.OAuthLoginURL(state)
	if err != nil {
		h.redirectLoginError(w, r, "oauth_unavailable")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth login.
//
// HTTP: GET /api/auth/google/callback?code=xxx&state=yyy
//
// The browser always leaves with a redirect, never a JSON error:
//
//	success → FRONTEND_URL/auth/success?token=&role=&id=&name=&email=&avatar=
//	failure → FRONTEND_URL/login?error=<code>
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("oauth callback: state mismatch", slog.String("requestID", requestID(r)))
		h.redirectLoginError(w, r, "invalid_state")
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("oauth callback: provider denied authorization", slog.String("error", errParam))
		h.redirectLoginError(w, r, "access_denied")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.redirectLoginError(w, r, "oauth_failed")
		return
	}

	res, err := h.auth.CompleteOAuth(r.Context(), code)
	if err != nil {
		if errors.Is(err, apperror.ErrIdentity) {
			h.logger.Warn("oauth callback: identity rejected", slog.String("error", err.Error()))
			h.redirectLoginError(w, r, "identity_error")
			return
		}
		h.logger.Error("oauth callback failed",
			slog.String("requestID", requestID(r)),
			slog.String("error", err.Error()),
		)
		h.redirectLoginError(w, r, "oauth_failed")
		return
	}

	h.setTokenCookie(w, res.Token)
	http.Redirect(w, r, h.successURL(res), http.StatusSeeOther)
}

func (h *AuthHandler) successURL(res *service.AuthResult) string {
	v := url.Values{}
	v.Set("token", res.Token)
	v.Set("role", string(res.Role))
	v.Set("id", res.ID)
	v.Set("name", strings.TrimSpace(res.FirstName+" "+res.LastName))
	v.Set("email", res.Email)
	if res.AvatarURL != nil {
		v.Set("avatar", *res.AvatarURL)
	}
	return h.frontendURL + "/auth/success?" + v.Encode()
}

func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, code string) {
	v := url.Values{}
	v.Set("error", code)
	http.Redirect(w, r, h.frontendURL+"/login?"+v.Encode(), http.StatusSeeOther)
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// decodeJSON reads a bounded JSON body into dst. On failure it writes a 400
// and returns false.
func (h *AuthHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Format permintaan tidak valid",
		})
		return false
	}
	return true
}

func requestID(r *http.Request) string {
	return chimiddleware.GetReqID(r.Context())
}
