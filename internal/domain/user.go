package domain

import "time"

// Login types recorded on the user record.
const (
	LoginTypeEmailOTP = "EMAIL_OTP"
	LoginTypeGoogle   = "GOOGLE"
)

// PendingCode is a one-time numeric code awaiting verification.
// Code and ExpiresAt are always written and cleared as one value;
// a nil PendingCode means no code is outstanding.
type PendingCode struct {
	Code      string    `dynamodbav:"code"`
	ExpiresAt time.Time `dynamodbav:"expires_at"`
}

// Expired reports whether the code is past its validity window.
func (c *PendingCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

type User struct {
	UserID   string     `json:"id" dynamodbav:"user_id"`
	Email    string     `json:"email" dynamodbav:"email"`
	FullName string     `json:"full_name" dynamodbav:"full_name"`
	DOB      *time.Time `json:"dob,omitempty" dynamodbav:"dob"`
	// Username is a legacy handle, synthesized only on federated signup.
	// It is never used as an identity.
	Username  string `json:"username,omitempty" dynamodbav:"username"`
	Avatar    string `json:"avatar,omitempty" dynamodbav:"avatar"`
	LoginType string `json:"login_type" dynamodbav:"login_type"` // EMAIL_OTP | GOOGLE
	GoogleID  string `json:"-" dynamodbav:"google_id,omitempty"`

	IsVerified bool         `json:"is_verified" dynamodbav:"is_verified"`
	OTP        *PendingCode `json:"-" dynamodbav:"pending_otp"`

	// RefreshToken is the single currently-valid refresh token.
	// Issuing a new pair overwrites it, invalidating the previous one.
	RefreshToken string `json:"-" dynamodbav:"refresh_token"`

	// PasswordResetToken holds the SHA-256 hex digest of the raw reset token;
	// the raw value leaves the server only by email. Token and expiry are
	// always set or cleared together.
	PasswordResetToken   string     `json:"-" dynamodbav:"password_reset_token,omitempty"`
	PasswordResetExpires *time.Time `json:"-" dynamodbav:"password_reset_expires"`
	// PasswordHash is vestigial: reset completion writes it, login never reads it.
	PasswordHash string `json:"-" dynamodbav:"password_hash"`

	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	DOB      string `json:"dob" validate:"required"` // expected format: YYYY-MM-DD
	OTP      string `json:"otp" validate:"required"`
}
