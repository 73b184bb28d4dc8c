package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hd-notes/notes-api/internal/application/auth"
	"github.com/hd-notes/notes-api/internal/application/session"
	"github.com/hd-notes/notes-api/internal/config"
	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/hd-notes/notes-api/internal/pkg/id"
	"github.com/hd-notes/notes-api/internal/pkg/validate"
	"github.com/hd-notes/notes-api/internal/transport/http/middleware"
)

// UserHandler handles the OTP auth, federation, password-reset and session
// endpoints under /users.
type UserHandler struct {
	authSvc    auth.Service
	sessionSvc session.Service
	cfg        *config.Config
}

func NewUserHandler(authSvc auth.Service, sessionSvc session.Service, cfg *config.Config) *UserHandler {
	return &UserHandler{authSvc: authSvc, sessionSvc: sessionSvc, cfg: cfg}
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SendRegistrationOTP handles POST /users/send-otp.
func (h *UserHandler) SendRegistrationOTP(w http.ResponseWriter, r *http.Request) {
	email, ok := decodeEmail(w, r)
	if !ok {
		return
	}
	if err := h.authSvc.RequestRegistrationOTP(r.Context(), email); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Verification code sent to your email.", struct{}{})
}

// Register handles POST /users/register: OTP verification completes the
// registration, but does not log the user in.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.authSvc.VerifyRegistration(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, "User registered successfully!", u)
}

// SendLoginOTP handles POST /users/login-otp.
func (h *UserHandler) SendLoginOTP(w http.ResponseWriter, r *http.Request) {
	email, ok := decodeEmail(w, r)
	if !ok {
		return
	}
	if err := h.authSvc.RequestLoginOTP(r.Context(), email); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "A login code has been sent to your email.", struct{}{})
}

// VerifyLogin handles POST /users/verify-login: a matching code establishes
// the session and sets both auth cookies.
func (h *UserHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
		OTP   string `json:"otp" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, pair, err := h.authSvc.VerifyLoginOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		httpError(w, err)
		return
	}
	setAuthCookies(w, h.cfg, pair)
	writeJSON(w, http.StatusOK, "User logged in successfully", AuthResult{
		User:         u,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// ResendOTP handles POST /users/resend-otp, shared by both intents.
func (h *UserHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	email, ok := decodeEmail(w, r)
	if !ok {
		return
	}
	if err := h.authSvc.ResendOTP(r.Context(), email); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "A new code has been sent to your email.", struct{}{})
}

// GoogleStart handles GET /users/google: redirect to the consent screen.
func (h *UserHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	state := id.New()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauthState",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   300,
	})
	http.Redirect(w, r, h.sessionSvc.GoogleAuthURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback handles GET /users/google/callback.
func (h *UserHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	state, err := r.Cookie("oauthState")
	if err != nil || state.Value == "" || state.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusUnauthorized, "Google authentication failed. Please try again.")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusUnauthorized, "Google authentication failed. Please try again.")
		return
	}
	u, pair, err := h.sessionSvc.LoginWithGoogle(r.Context(), code)
	if err != nil {
		httpError(w, err)
		return
	}
	setAuthCookies(w, h.cfg, pair)
	writeJSON(w, http.StatusOK, "Successfully logged in with Google.", AuthResult{
		User:         u,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// GoogleFailure handles GET /users/google/failure.
func (h *UserHandler) GoogleFailure(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusUnauthorized, "Google authentication failed.")
}

// ForgotPassword handles POST /users/forgot-password.
func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	email, ok := decodeEmail(w, r)
	if !ok {
		return
	}
	if err := h.authSvc.RequestPasswordReset(r.Context(), email); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "If an account with that email exists, a password reset link has been sent.", struct{}{})
}

// ResetPassword handles POST /users/reset-password/{token}.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPassword string `json:"newPassword" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authSvc.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Password has been reset successfully.", struct{}{})
}

// RefreshToken handles POST /users/refresh-token: the refresh token comes
// from its cookie or, as a fallback, the request body.
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	raw := ""
	if c, err := r.Cookie(middleware.RefreshCookie); err == nil {
		raw = c.Value
	}
	if raw == "" {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			raw = req.RefreshToken
		}
	}
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "refresh token required")
		return
	}
	u, pair, err := h.sessionSvc.Refresh(r.Context(), raw)
	if err != nil {
		httpError(w, err)
		return
	}
	setAuthCookies(w, h.cfg, pair)
	writeJSON(w, http.StatusOK, "Session refreshed", AuthResult{
		User:         u,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	writeJSON(w, http.StatusOK, "Current User found", u)
}

// Logout handles POST /users/logout: clears the stored refresh token and
// both cookies. Already-issued access tokens stay valid until expiry.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	if err := h.sessionSvc.Logout(r.Context(), u.UserID); err != nil {
		httpError(w, err)
		return
	}
	clearAuthCookies(w, h.cfg)
	writeJSON(w, http.StatusOK, "User logged Out Successfully", struct{}{})
}

func decodeEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return req.Email, true
}
