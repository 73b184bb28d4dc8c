package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/hd-notes/notes-api/internal/application/session"
	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/hd-notes/notes-api/internal/infrastructure/smtp"
	"github.com/hd-notes/notes-api/internal/pkg/id"
	pkgtoken "github.com/hd-notes/notes-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

// Codes and reset tokens share the same validity window.
const otpValidity = 10 * time.Minute

// DynamoDB attribute names used in partial update maps.
const (
	fieldFullName             = "full_name"
	fieldDOB                  = "dob"
	fieldIsVerified           = "is_verified"
	fieldLoginType            = "login_type"
	fieldPendingOTP           = "pending_otp"
	fieldPasswordHash         = "password_hash"
	fieldPasswordResetToken   = "password_reset_token"
	fieldPasswordResetExpires = "password_reset_expires"
)

type Service interface {
	RequestRegistrationOTP(ctx context.Context, email string) error
	// VerifyRegistration completes registration. It does not issue tokens;
	// login is a separate step.
	VerifyRegistration(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	RequestLoginOTP(ctx context.Context, email string) error
	VerifyLoginOTP(ctx context.Context, email, otp string) (*domain.User, *session.TokenPair, error)
	ResendOTP(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByResetTokenHash(ctx context.Context, hash string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// tokenIssuer is the slice of the session service the OTP login path needs.
type tokenIssuer interface {
	Issue(ctx context.Context, userID string) (*session.TokenPair, error)
}

type service struct {
	userRepo userStore
	mailer   smtp.Mailer
	issuer   tokenIssuer
	// resetBaseURL is the frontend origin embedded in reset links.
	resetBaseURL string
	// maskMissingAccounts collapses the reset-request status for unknown
	// emails to success instead of the observed NotFound.
	maskMissingAccounts bool
}

type ServiceDeps struct {
	UserRepo            userStore
	Mailer              smtp.Mailer
	TokenIssuer         tokenIssuer
	ResetBaseURL        string
	MaskMissingAccounts bool
}

func NewService(deps ServiceDeps) Service {
	return &service{
		userRepo:            deps.UserRepo,
		mailer:              deps.Mailer,
		issuer:              deps.TokenIssuer,
		resetBaseURL:        deps.ResetBaseURL,
		maskMissingAccounts: deps.MaskMissingAccounts,
	}
}

func (s *service) RequestRegistrationOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email address is required: %w", domain.ErrBadRequest)
	}

	existing, getErr := s.userRepo.GetByEmail(ctx, email)
	if getErr != nil && !errors.Is(getErr, domain.ErrNotFound) {
		return getErr
	}
	if getErr == nil && existing.IsVerified {
		return fmt.Errorf("user with this email already exists, please log in: %w", domain.ErrConflict)
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}
	pending := &domain.PendingCode{Code: code, ExpiresAt: time.Now().Add(otpValidity)}

	if getErr == nil {
		err = s.userRepo.Update(ctx, existing.UserID, map[string]interface{}{
			fieldPendingOTP: pending,
			fieldIsVerified: false,
		})
	} else {
		now := time.Now().UTC()
		err = s.userRepo.Put(ctx, &domain.User{
			UserID:     id.New(),
			Email:      email,
			IsVerified: false,
			OTP:        pending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if err != nil {
		return err
	}

	// The placeholder stays behind if the send fails; resend is the
	// recovery path.
	if err := s.mailer.SendEmail(email, "Your Verification Code", otpBody("Your verification code is", code)); err != nil {
		return fmt.Errorf("there was an issue sending the verification email: %w", err)
	}
	return nil
}

func (s *service) VerifyRegistration(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	email := normalizeEmail(req.Email)
	dob, err := time.Parse("2006-01-02", req.DOB)
	if err != nil {
		return nil, fmt.Errorf("dob must be in YYYY-MM-DD format: %w", domain.ErrBadRequest)
	}

	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil || u.IsVerified {
		return nil, fmt.Errorf("verification session not found, please start over: %w", domain.ErrNotFound)
	}
	// Wrong code and expired code are indistinguishable to the caller.
	if u.OTP == nil || u.OTP.Code != req.OTP || u.OTP.Expired(time.Now()) {
		return nil, fmt.Errorf("invalid or expired verification code: %w", domain.ErrBadRequest)
	}

	// Race guard: another verified account may have claimed the email
	// between the placeholder read and this write.
	if claimed, err := s.userRepo.GetByEmail(ctx, email); err == nil && claimed.IsVerified {
		return nil, fmt.Errorf("email address is already registered, please log in: %w", domain.ErrConflict)
	}

	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{
		fieldFullName:   req.FullName,
		fieldDOB:        dob,
		fieldIsVerified: true,
		fieldLoginType:  domain.LoginTypeEmailOTP,
		fieldPendingOTP: nil,
	}); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	u.FullName = req.FullName
	u.DOB = &dob
	u.IsVerified = true
	u.LoginType = domain.LoginTypeEmailOTP
	u.OTP = nil
	return u, nil
}

func (s *service) RequestLoginOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil || !u.IsVerified {
		return fmt.Errorf("user with this email is not registered: %w", domain.ErrNotFound)
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}
	if err := s.storePendingCode(ctx, u.UserID, code); err != nil {
		return err
	}
	if err := s.mailer.SendEmail(u.Email, "Your Login Code", otpBody("Your login code is", code)); err != nil {
		return fmt.Errorf("failed to send login code: %w", err)
	}
	return nil
}

func (s *service) VerifyLoginOTP(ctx context.Context, email, otp string) (*domain.User, *session.TokenPair, error) {
	email = normalizeEmail(email)
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if u.OTP == nil || u.OTP.Code != otp || u.OTP.Expired(time.Now()) {
		return nil, nil, fmt.Errorf("invalid or expired login code: %w", domain.ErrBadRequest)
	}

	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{fieldPendingOTP: nil}); err != nil {
		return nil, nil, err
	}
	u.OTP = nil

	pair, err := s.issuer.Issue(ctx, u.UserID)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// ResendOTP re-triggers code generation for either intent. The subject is the
// only difference between the two.
func (s *service) ResendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("no account is associated with this email address: %w", domain.ErrNotFound)
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}
	if err := s.storePendingCode(ctx, u.UserID, code); err != nil {
		return err
	}

	subject := "Your New Verification Code"
	if u.IsVerified {
		subject = "Your New Login Code"
	}
	if err := s.mailer.SendEmail(u.Email, subject, otpBody("Your new code is", code)); err != nil {
		return fmt.Errorf("there was an issue resending the code: %w", err)
	}
	return nil
}

// The response body never reveals whether the account exists.
const resetRequestMessage = "If an account with that email exists, a password reset link has been sent."

func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil || !u.IsVerified {
		if s.maskMissingAccounts {
			return nil
		}
		return fmt.Errorf("%s: %w", resetRequestMessage, domain.ErrNotFound)
	}

	raw, err := pkgtoken.NewResetToken()
	if err != nil {
		return err
	}
	expiry := time.Now().Add(otpValidity).UTC()
	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{
		fieldPasswordResetToken:   pkgtoken.Hash(raw),
		fieldPasswordResetExpires: expiry,
	}); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.resetBaseURL, raw)
	body := fmt.Sprintf(
		`<p>You requested a password reset. Click this link to reset your password: <a href="%s">%s</a></p><p>This link is valid for 10 minutes.</p>`,
		resetURL, resetURL,
	)
	if err := s.mailer.SendEmail(u.Email, "Password Reset Request", body); err != nil {
		// The dangling token must not remain completable after a failed
		// send; clear it before surfacing the error.
		if clearErr := s.clearResetFields(ctx, u.UserID); clearErr != nil {
			slog.Warn("failed to clear reset token after mail failure", "user_id", u.UserID, "err", clearErr)
		}
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

func (s *service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("a new password is required: %w", domain.ErrBadRequest)
	}

	u, err := s.userRepo.GetByResetTokenHash(ctx, pkgtoken.Hash(rawToken))
	if err != nil || u.PasswordResetExpires == nil || !u.PasswordResetExpires.After(time.Now()) {
		// Non-matching, expired and already-consumed tokens are
		// indistinguishable to the caller.
		return fmt.Errorf("password reset token is invalid or has expired: %w", domain.ErrBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.userRepo.Update(ctx, u.UserID, map[string]interface{}{
		fieldPasswordHash:         string(hash),
		fieldPasswordResetToken:   nil,
		fieldPasswordResetExpires: nil,
	})
}

func (s *service) storePendingCode(ctx context.Context, userID, code string) error {
	return s.userRepo.Update(ctx, userID, map[string]interface{}{
		fieldPendingOTP: &domain.PendingCode{Code: code, ExpiresAt: time.Now().Add(otpValidity)},
	})
}

func (s *service) clearResetFields(ctx context.Context, userID string) error {
	return s.userRepo.Update(ctx, userID, map[string]interface{}{
		fieldPasswordResetToken:   nil,
		fieldPasswordResetExpires: nil,
	})
}

// generateOTP draws a 6-digit code from [100000, 999999].
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

func otpBody(lead, code string) string {
	return fmt.Sprintf("%s: <h1>%s</h1> It is valid for 10 minutes.", lead, code)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
