package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hd-notes/notes-api/internal/application/session"
	"github.com/hd-notes/notes-api/internal/config"
	"github.com/hd-notes/notes-api/internal/domain"
	jwtinfra "github.com/hd-notes/notes-api/internal/infrastructure/jwt"
	"github.com/hd-notes/notes-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) RequestRegistrationOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockAuthSvc) VerifyRegistration(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAuthSvc) RequestLoginOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockAuthSvc) VerifyLoginOTP(ctx context.Context, email, otp string) (*domain.User, *session.TokenPair, error) {
	args := m.Called(ctx, email, otp)
	u, _ := args.Get(0).(*domain.User)
	p, _ := args.Get(1).(*session.TokenPair)
	return u, p, args.Error(2)
}
func (m *mockAuthSvc) ResendOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockAuthSvc) RequestPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockAuthSvc) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	return m.Called(ctx, rawToken, newPassword).Error(0)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Issue(ctx context.Context, userID string) (*session.TokenPair, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*session.TokenPair)
	return p, args.Error(1)
}
func (m *mockSessionSvc) Refresh(ctx context.Context, rawRefresh string) (*domain.User, *session.TokenPair, error) {
	args := m.Called(ctx, rawRefresh)
	u, _ := args.Get(0).(*domain.User)
	p, _ := args.Get(1).(*session.TokenPair)
	return u, p, args.Error(2)
}
func (m *mockSessionSvc) Logout(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *mockSessionSvc) Current(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}
func (m *mockSessionSvc) GoogleAuthURL(state string) string {
	return m.Called(state).String(0)
}
func (m *mockSessionSvc) LoginWithGoogle(ctx context.Context, code string) (*domain.User, *session.TokenPair, error) {
	args := m.Called(ctx, code)
	u, _ := args.Get(0).(*domain.User)
	p, _ := args.Get(1).(*session.TokenPair)
	return u, p, args.Error(2)
}

// --- helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:             "development",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 240 * time.Hour,
	}
}

func newHandler(as *mockAuthSvc, ss *mockSessionSvc) *UserHandler {
	return NewUserHandler(as, ss, testConfig())
}

func postJSON(path string, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func domainErr(msg string, sentinel error) error {
	return fmt.Errorf("%s: %w", msg, sentinel)
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- SendRegistrationOTP ---

func TestSendRegistrationOTP_InvalidBody(t *testing.T) {
	h := newHandler(&mockAuthSvc{}, nil)
	rec := httptest.NewRecorder()
	h.SendRegistrationOTP(rec, postJSON("/users/send-otp", "{not json"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, http.StatusBadRequest, env.StatusCode)
	assert.NotEmpty(t, env.Error)
}

func TestSendRegistrationOTP_InvalidEmail(t *testing.T) {
	h := newHandler(&mockAuthSvc{}, nil)
	rec := httptest.NewRecorder()
	h.SendRegistrationOTP(rec, postJSON("/users/send-otp", `{"email":"not-an-email"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendRegistrationOTP_Conflict(t *testing.T) {
	as := &mockAuthSvc{}
	as.On("RequestRegistrationOTP", mock.Anything, "a@b.com").
		Return(domainErr("user with this email already exists, please log in", domain.ErrConflict))

	h := newHandler(as, nil)
	rec := httptest.NewRecorder()
	h.SendRegistrationOTP(rec, postJSON("/users/send-otp", `{"email":"a@b.com"}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "already exists")
}

func TestSendRegistrationOTP_HappyPath(t *testing.T) {
	as := &mockAuthSvc{}
	as.On("RequestRegistrationOTP", mock.Anything, "a@b.com").Return(nil)

	h := newHandler(as, nil)
	rec := httptest.NewRecorder()
	h.SendRegistrationOTP(rec, postJSON("/users/send-otp", `{"email":"a@b.com"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Verification code sent to your email.", env.Message)
	as.AssertExpectations(t)
}

// --- Register ---

func TestRegister_HappyPath(t *testing.T) {
	as := &mockAuthSvc{}
	as.On("VerifyRegistration", mock.Anything, mock.MatchedBy(func(req domain.RegisterRequest) bool {
		return req.Email == "a@b.com" && req.OTP == "123456"
	})).Return(&domain.User{UserID: "u1", Email: "a@b.com", IsVerified: true}, nil)

	h := newHandler(as, nil)
	rec := httptest.NewRecorder()
	h.Register(rec, postJSON("/users/register",
		`{"fullName":"Ada Lovelace","email":"a@b.com","dob":"1990-05-01","otp":"123456"}`))

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	// Registration never sets session cookies; login is a separate step.
	assert.Empty(t, rec.Result().Cookies())
}

func TestRegister_MissingFields(t *testing.T) {
	h := newHandler(&mockAuthSvc{}, nil)
	rec := httptest.NewRecorder()
	h.Register(rec, postJSON("/users/register", `{"email":"a@b.com"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- VerifyLogin ---

func TestVerifyLogin_SetsBothCookies(t *testing.T) {
	as := &mockAuthSvc{}
	as.On("VerifyLoginOTP", mock.Anything, "a@b.com", "123456").
		Return(&domain.User{UserID: "u1"}, &session.TokenPair{AccessToken: "acc", RefreshToken: "ref"}, nil)

	h := newHandler(as, nil)
	rec := httptest.NewRecorder()
	h.VerifyLogin(rec, postJSON("/users/verify-login", `{"email":"a@b.com","otp":"123456"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	access := cookieByName(cookies, middleware.AccessCookie)
	refresh := cookieByName(cookies, middleware.RefreshCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.Equal(t, "acc", access.Value)
	assert.Equal(t, "ref", refresh.Value)
	assert.True(t, access.HttpOnly)
	assert.False(t, access.Secure)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "acc", data["accessToken"])
	assert.Equal(t, "ref", data["refreshToken"])
}

func TestVerifyLogin_ProductionCookieAttributes(t *testing.T) {
	as := &mockAuthSvc{}
	as.On("VerifyLoginOTP", mock.Anything, "a@b.com", "123456").
		Return(&domain.User{UserID: "u1"}, &session.TokenPair{AccessToken: "acc", RefreshToken: "ref"}, nil)

	cfg := testConfig()
	cfg.AppEnv = "production"
	h := NewUserHandler(as, nil, cfg)
	rec := httptest.NewRecorder()
	h.VerifyLogin(rec, postJSON("/users/verify-login", `{"email":"a@b.com","otp":"123456"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	access := cookieByName(rec.Result().Cookies(), middleware.AccessCookie)
	require.NotNil(t, access)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteNoneMode, access.SameSite)
}

func TestVerifyLogin_WrongCode(t *testing.T) {
	as := &mockAuthSvc{}
	as.On("VerifyLoginOTP", mock.Anything, "a@b.com", "000000").
		Return(nil, nil, domainErr("invalid or expired login code", domain.ErrBadRequest))

	h := newHandler(as, nil)
	rec := httptest.NewRecorder()
	h.VerifyLogin(rec, postJSON("/users/verify-login", `{"email":"a@b.com","otp":"000000"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

// --- ResetPassword ---

func TestResetPassword_TokenFromPath(t *testing.T) {
	as := &mockAuthSvc{}
	as.On("ResetPassword", mock.Anything, "rawtok", "newsecret").Return(nil)

	h := newHandler(as, nil)
	r := chi.NewRouter()
	r.Post("/users/reset-password/{token}", h.ResetPassword)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, postJSON("/users/reset-password/rawtok", `{"newPassword":"newsecret"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	as.AssertExpectations(t)
}

func TestResetPassword_InvalidToken(t *testing.T) {
	as := &mockAuthSvc{}
	as.On("ResetPassword", mock.Anything, "bad", "newsecret").
		Return(domainErr("password reset token is invalid or has expired", domain.ErrBadRequest))

	h := newHandler(as, nil)
	r := chi.NewRouter()
	r.Post("/users/reset-password/{token}", h.ResetPassword)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, postJSON("/users/reset-password/bad", `{"newPassword":"newsecret"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- RefreshToken ---

func TestRefreshToken_FromCookie(t *testing.T) {
	ss := &mockSessionSvc{}
	ss.On("Refresh", mock.Anything, "ref-old").
		Return(&domain.User{UserID: "u1"}, &session.TokenPair{AccessToken: "acc2", RefreshToken: "ref2"}, nil)

	h := newHandler(nil, ss)
	req := postJSON("/users/refresh-token", `{}`)
	req.AddCookie(&http.Cookie{Name: middleware.RefreshCookie, Value: "ref-old"})
	rec := httptest.NewRecorder()
	h.RefreshToken(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	refresh := cookieByName(rec.Result().Cookies(), middleware.RefreshCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, "ref2", refresh.Value)
}

func TestRefreshToken_BodyFallback(t *testing.T) {
	ss := &mockSessionSvc{}
	ss.On("Refresh", mock.Anything, "ref-old").
		Return(&domain.User{UserID: "u1"}, &session.TokenPair{AccessToken: "acc2", RefreshToken: "ref2"}, nil)

	h := newHandler(nil, ss)
	rec := httptest.NewRecorder()
	h.RefreshToken(rec, postJSON("/users/refresh-token", `{"refreshToken":"ref-old"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	ss.AssertExpectations(t)
}

func TestRefreshToken_Missing(t *testing.T) {
	h := newHandler(nil, &mockSessionSvc{})
	rec := httptest.NewRecorder()
	h.RefreshToken(rec, postJSON("/users/refresh-token", `{}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- Google ---

func TestGoogleStart_RedirectsWithStateCookie(t *testing.T) {
	ss := &mockSessionSvc{}
	ss.On("GoogleAuthURL", mock.Anything).Return("https://accounts.google.com/o/oauth2/auth?state=x")

	h := newHandler(nil, ss)
	rec := httptest.NewRecorder()
	h.GoogleStart(rec, httptest.NewRequest(http.MethodGet, "/users/google", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	state := cookieByName(rec.Result().Cookies(), "oauthState")
	require.NotNil(t, state)
	assert.True(t, state.HttpOnly)
	assert.NotEmpty(t, rec.Header().Get("Location"))
}

func TestGoogleCallback_StateMismatch(t *testing.T) {
	h := newHandler(nil, &mockSessionSvc{})
	req := httptest.NewRequest(http.MethodGet, "/users/google/callback?state=evil&code=c", nil)
	req.AddCookie(&http.Cookie{Name: "oauthState", Value: "good"})
	rec := httptest.NewRecorder()
	h.GoogleCallback(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGoogleCallback_HappyPath(t *testing.T) {
	ss := &mockSessionSvc{}
	ss.On("LoginWithGoogle", mock.Anything, "c").
		Return(&domain.User{UserID: "u1"}, &session.TokenPair{AccessToken: "acc", RefreshToken: "ref"}, nil)

	h := newHandler(nil, ss)
	req := httptest.NewRequest(http.MethodGet, "/users/google/callback?state=good&code=c", nil)
	req.AddCookie(&http.Cookie{Name: "oauthState", Value: "good"})
	rec := httptest.NewRecorder()
	h.GoogleCallback(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, cookieByName(rec.Result().Cookies(), middleware.AccessCookie))
	ss.AssertExpectations(t)
}

// --- Me / Logout (behind the session boundary) ---

type stubVerifier struct{ claims *jwtinfra.AccessClaims }

func (s *stubVerifier) VerifyAccess(string) (*jwtinfra.AccessClaims, error) {
	if s.claims == nil {
		return nil, domain.ErrUnauthorized
	}
	return s.claims, nil
}

type stubLoader struct{ user *domain.User }

func (s *stubLoader) Get(context.Context, string) (*domain.User, error) {
	if s.user == nil {
		return nil, domain.ErrNotFound
	}
	return s.user, nil
}

func TestMe_ReturnsCurrentUser(t *testing.T) {
	h := newHandler(nil, nil)
	u := &domain.User{UserID: "u1", Email: "a@b.com"}
	wrapped := middleware.Auth(&stubVerifier{claims: &jwtinfra.AccessClaims{UserID: "u1"}}, &stubLoader{user: u})(http.HandlerFunc(h.Me))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: "tok"})
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "u1", data["id"])
}

func TestLogout_ClearsCookies(t *testing.T) {
	ss := &mockSessionSvc{}
	ss.On("Logout", mock.Anything, "u1").Return(nil)

	h := newHandler(nil, ss)
	u := &domain.User{UserID: "u1"}
	wrapped := middleware.Auth(&stubVerifier{claims: &jwtinfra.AccessClaims{UserID: "u1"}}, &stubLoader{user: u})(http.HandlerFunc(h.Logout))

	req := httptest.NewRequest(http.MethodPost, "/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: "tok"})
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	for _, name := range []string{middleware.AccessCookie, middleware.RefreshCookie} {
		c := cookieByName(rec.Result().Cookies(), name)
		require.NotNil(t, c)
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
	}
	ss.AssertExpectations(t)
}
