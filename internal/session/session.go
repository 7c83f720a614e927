package session

import (
	"context"
	"time"

	"github.com/frahmantamala/access-control/internal/auth"
	sessionDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/session"
)

const (
	EventLogin         = "login"
	EventRefresh       = "refresh"
	EventLogout        = "logout"
	EventOtpRequest    = "otp_request"
	EventOtpVerify     = "otp_verify"
	EventPasswordReset = "password_reset"
	EventExternalLogin = "external_login"

	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeThrottle = "rate_limited"
)

// TokenIssuer mints access tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, identity auth.Identity) (*auth.AccessToken, error)
}

// OTPRepository stores password reset codes. FindUnused ignores expiry so the
// caller can tell an expired code from a wrong one.
type OTPRepository interface {
	Create(ctx context.Context, otp *sessionDatamodel.PasswordResetOtp) error
	FindUnused(ctx context.Context, email, code string) (*sessionDatamodel.PasswordResetOtp, error)
	// MarkUsed flips used only if it is still false and reports whether it did.
	MarkUsed(ctx context.Context, id string) (bool, error)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// ExternalIdentity is what an external identity provider vouches for.
type ExternalIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
}

type ExternalProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*ExternalIdentity, error)
}

type SessionUser struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	Name           string   `json:"name"`
	OrganizationID string   `json:"organizationId,omitempty"`
	Roles          []string `json:"roles"`
}

// TokenPair is the outcome of every successful login or refresh.
type TokenPair struct {
	AccessToken           string       `json:"accessToken"`
	AccessTokenExpiresAt  time.Time    `json:"accessTokenExpiresAt"`
	RefreshToken          string       `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time    `json:"refreshTokenExpiresAt"`
	User                  *SessionUser `json:"user"`
}
