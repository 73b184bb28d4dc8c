package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/hd-notes/notes-api/internal/infrastructure/google"
	jwtinfra "github.com/hd-notes/notes-api/internal/infrastructure/jwt"
	"github.com/hd-notes/notes-api/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldAvatar       = "avatar"
	fieldGoogleID     = "google_id"
	fieldLoginType    = "login_type"
	fieldRefreshToken = "refresh_token"
)

// TokenPair is one issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Service interface {
	// Issue mints a token pair for the user and persists the refresh token,
	// overwriting any previous one (single active session per user).
	Issue(ctx context.Context, userID string) (*TokenPair, error)
	// Refresh validates a presented refresh token against both its signature
	// and the stored value, then rotates the pair.
	Refresh(ctx context.Context, rawRefresh string) (*domain.User, *TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Current(ctx context.Context, userID string) (*domain.User, error)
	GoogleAuthURL(state string) string
	LoginWithGoogle(ctx context.Context, code string) (*domain.User, *TokenPair, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	ClearRefreshToken(ctx context.Context, userID string) error
}

type tokenProvider interface {
	SignAccess(u *domain.User) (string, error)
	SignRefresh(userID string) (string, error)
	VerifyRefresh(tokenStr string) (*jwtinfra.RefreshClaims, error)
}

type googleClient interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*google.Profile, error)
}

type service struct {
	userRepo userStore
	tokens   tokenProvider
	google   googleClient
}

type ServiceDeps struct {
	UserRepo     userStore
	JWTProvider  tokenProvider
	GoogleClient googleClient
}

func NewService(deps ServiceDeps) Service {
	return &service{
		userRepo: deps.UserRepo,
		tokens:   deps.JWTProvider,
		google:   deps.GoogleClient,
	}
}

func (s *service) Issue(ctx context.Context, userID string) (*TokenPair, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	// Mint both tokens before touching the record so a signing failure
	// never leaves a half-updated session.
	access, err := s.tokens.SignAccess(u)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.tokens.SignRefresh(u.UserID)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{fieldRefreshToken: refresh}); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *service) Refresh(ctx context.Context, rawRefresh string) (*domain.User, *TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(rawRefresh)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("user not found: %w", domain.ErrUnauthorized)
	}
	// A rotated-out token still carries a valid signature; only the token
	// currently stored on the record may mint a new pair.
	if u.RefreshToken == "" || u.RefreshToken != rawRefresh {
		return nil, nil, fmt.Errorf("refresh token is expired or already used: %w", domain.ErrUnauthorized)
	}
	pair, err := s.Issue(ctx, u.UserID)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

func (s *service) Logout(ctx context.Context, userID string) error {
	return s.userRepo.ClearRefreshToken(ctx, userID)
}

func (s *service) Current(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.Get(ctx, userID)
}

func (s *service) GoogleAuthURL(state string) string {
	return s.google.AuthURL(state)
}

func (s *service) LoginWithGoogle(ctx context.Context, code string) (*domain.User, *TokenPair, error) {
	profile, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if !profile.EmailVerified {
		return nil, nil, fmt.Errorf("google account email is not verified: %w", domain.ErrUnauthorized)
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	u, err := s.userRepo.GetByGoogleID(ctx, profile.Sub)
	if err != nil {
		u, err = s.userRepo.GetByEmail(ctx, email)
	}
	if err == nil {
		// Login: claim the google id if this is the first federated sign-in
		// and backfill the avatar; the provider is trusted for both.
		updates := map[string]interface{}{
			fieldGoogleID:  profile.Sub,
			fieldLoginType: domain.LoginTypeGoogle,
		}
		u.GoogleID = profile.Sub
		u.LoginType = domain.LoginTypeGoogle
		if u.Avatar == "" && profile.Avatar != "" {
			updates[fieldAvatar] = profile.Avatar
			u.Avatar = profile.Avatar
		}
		if err := s.userRepo.Update(ctx, u.UserID, updates); err != nil {
			return nil, nil, err
		}
	} else {
		// Signup: the federated identity is trusted, so the account starts
		// out verified.
		now := time.Now().UTC()
		u = &domain.User{
			UserID:     id.New(),
			Email:      email,
			FullName:   profile.DisplayName,
			Username:   synthesizeUsername(email),
			Avatar:     profile.Avatar,
			LoginType:  domain.LoginTypeGoogle,
			GoogleID:   profile.Sub,
			IsVerified: true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.userRepo.Put(ctx, u); err != nil {
			return nil, nil, err
		}
	}

	pair, err := s.Issue(ctx, u.UserID)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// synthesizeUsername builds the legacy handle required on new records: the
// email local-part plus a short random suffix for collision avoidance. It is
// never user-facing identity.
func synthesizeUsername(email string) string {
	local := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		local = email[:i]
	}
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	return local + hex.EncodeToString(b)
}
