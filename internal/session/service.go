package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/auth"
	sessionDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/session"
	userDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/user"
	"github.com/frahmantamala/access-control/internal/core/events"
	"github.com/frahmantamala/access-control/internal/user"
	"github.com/google/uuid"
)

type Config struct {
	RefreshTokenTTL time.Duration
	OTPTTL          time.Duration
	OTPLength       int
	BCryptCost      int
	DefaultRoleIDs  []string
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLoginLimiter(l Limiter) Option {
	return func(m *Manager) { m.loginLimiter = l }
}

func WithOTPLimiter(l Limiter) Option {
	return func(m *Manager) { m.otpLimiter = l }
}

func WithExternalProvider(p ExternalProvider) Option {
	return func(m *Manager) { m.external = p }
}

// WithEventRecorder receives (event, outcome) for every session operation.
func WithEventRecorder(fn func(event, outcome string)) Option {
	return func(m *Manager) { m.record = fn }
}

// Manager runs the credential lifecycle: password login, refresh rotation,
// logout and the OTP password reset.
type Manager struct {
	users     user.RepositoryAPI
	otps      OTPRepository
	issuer    TokenIssuer
	publisher events.Publisher
	cfg       Config
	logger    *slog.Logger

	now          func() time.Time
	loginLimiter Limiter
	otpLimiter   Limiter
	external     ExternalProvider
	record       func(event, outcome string)

	// dummyHash keeps the unknown-email path as slow as a wrong password.
	dummyHash func() string
}

func NewManager(users user.RepositoryAPI, otps OTPRepository, issuer TokenIssuer, publisher events.Publisher, cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 10 * time.Minute
	}
	if cfg.OTPLength <= 0 {
		cfg.OTPLength = 6
	}
	m := &Manager{
		users:     users,
		otps:      otps,
		issuer:    issuer,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		record:    func(string, string) {},
	}
	m.dummyHash = sync.OnceValue(func() string {
		hash, _ := user.HashPassword(uuid.NewString(), cfg.BCryptCost)
		return hash
	})
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Login(ctx context.Context, email, password, clientIP string) (*TokenPair, error) {
	email = user.NormalizeEmail(email)
	if err := m.allow(ctx, m.loginLimiter, "login:"+email+":"+clientIP, EventLogin); err != nil {
		return nil, err
	}

	u, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, m.internal(EventLogin, "lookup user", err)
	}
	if u == nil {
		user.CheckPassword(m.dummyHash(), password)
		m.record(EventLogin, OutcomeFailure)
		return nil, errors.ErrInvalidCredentials
	}
	if !user.CheckPassword(u.PasswordHash, password) {
		m.logger.Info("login rejected: wrong password", "user_id", u.ID)
		m.record(EventLogin, OutcomeFailure)
		return nil, errors.ErrInvalidCredentials
	}
	if !u.IsActive {
		m.record(EventLogin, OutcomeFailure)
		return nil, errors.ErrUserInactive
	}

	pair, err := m.startSession(ctx, u)
	if err != nil {
		m.record(EventLogin, OutcomeFailure)
		return nil, err
	}

	m.logger.Info("user logged in", "user_id", u.ID)
	m.record(EventLogin, OutcomeSuccess)
	m.publish(ctx, events.NewUserLoggedInEvent(u.ID, "password"))
	return pair, nil
}

// Refresh rotates a refresh token. The stored hash is swapped only if it still
// equals the presented one, so a token is good for exactly one refresh even
// under concurrent use.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		m.record(EventRefresh, OutcomeFailure)
		return nil, errors.ErrInvalidRefreshToken
	}

	oldHash := HashRefreshToken(refreshToken)
	u, err := m.users.GetByRefreshTokenHash(ctx, oldHash)
	if err != nil {
		return nil, m.internal(EventRefresh, "lookup refresh token", err)
	}
	if u == nil || u.RefreshTokenExpiry == nil || !m.now().Before(*u.RefreshTokenExpiry) || !u.IsActive {
		m.record(EventRefresh, OutcomeFailure)
		return nil, errors.ErrInvalidRefreshToken
	}

	access, err := m.issuer.Issue(ctx, identityOf(u))
	if err != nil {
		m.record(EventRefresh, OutcomeFailure)
		return nil, err
	}

	newToken, err := NewRefreshToken()
	if err != nil {
		return nil, m.internal(EventRefresh, "generate refresh token", err)
	}
	expiresAt := m.now().Add(m.cfg.RefreshTokenTTL)

	swapped, err := m.users.RotateRefreshToken(ctx, u.ID, oldHash, HashRefreshToken(newToken), expiresAt)
	if err != nil {
		return nil, m.internal(EventRefresh, "rotate refresh token", err)
	}
	if !swapped {
		m.logger.Warn("refresh token reused or raced", "user_id", u.ID)
		m.record(EventRefresh, OutcomeFailure)
		m.publish(ctx, events.NewRefreshRejectedEvent(u.ID))
		return nil, errors.ErrInvalidRefreshToken
	}

	m.logger.Info("refresh token rotated", "user_id", u.ID)
	m.record(EventRefresh, OutcomeSuccess)
	return pairOf(u, access, newToken, expiresAt), nil
}

// Logout revokes the stored refresh token. The user comes from the access
// token when it is still valid, otherwise from the presented refresh token,
// so an expired access token does not keep the session alive.
func (m *Manager) Logout(ctx context.Context, userID, refreshToken string) error {
	if userID == "" && refreshToken != "" {
		u, err := m.users.GetByRefreshTokenHash(ctx, HashRefreshToken(refreshToken))
		if err != nil {
			return m.internal(EventLogout, "lookup refresh token", err)
		}
		if u != nil {
			userID = u.ID
		}
	}
	if userID == "" {
		m.logger.Info("logout without a live session")
		m.record(EventLogout, OutcomeFailure)
		return nil
	}

	if err := m.users.ClearRefreshToken(ctx, userID); err != nil {
		return m.internal(EventLogout, "clear refresh token", err)
	}
	m.logger.Info("user logged out", "user_id", userID)
	m.record(EventLogout, OutcomeSuccess)
	return nil
}

// RequestResetOtp stores a fresh code and hands it to the mailer through the
// event bus. Delivery is not awaited.
func (m *Manager) RequestResetOtp(ctx context.Context, email string) (time.Time, error) {
	email = user.NormalizeEmail(email)
	if err := m.allow(ctx, m.otpLimiter, "otp:"+email, EventOtpRequest); err != nil {
		return time.Time{}, err
	}

	u, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		return time.Time{}, m.internal(EventOtpRequest, "lookup user", err)
	}
	if u == nil {
		m.record(EventOtpRequest, OutcomeFailure)
		return time.Time{}, errors.ErrUserNotFound
	}

	code, err := GenerateOTP(m.cfg.OTPLength)
	if err != nil {
		return time.Time{}, m.internal(EventOtpRequest, "generate otp", err)
	}

	now := m.now()
	rec := &sessionDatamodel.PasswordResetOtp{
		ID:        uuid.NewString(),
		Email:     email,
		Otp:       code,
		ExpiresAt: now.Add(m.cfg.OTPTTL),
		Used:      false,
		CreatedAt: now,
	}
	if err := m.otps.Create(ctx, rec); err != nil {
		return time.Time{}, m.internal(EventOtpRequest, "store otp", err)
	}

	m.logger.Info("password reset otp requested", "user_id", u.ID, "expires_at", rec.ExpiresAt)
	m.record(EventOtpRequest, OutcomeSuccess)
	m.publish(ctx, events.NewOtpRequestedEvent(email, code, rec.ExpiresAt))
	return rec.ExpiresAt, nil
}

// VerifyResetOtp checks a code without consuming it.
func (m *Manager) VerifyResetOtp(ctx context.Context, email, code string) error {
	if _, err := m.validOtp(ctx, user.NormalizeEmail(email), code); err != nil {
		m.record(EventOtpVerify, OutcomeFailure)
		return err
	}
	m.record(EventOtpVerify, OutcomeSuccess)
	return nil
}

// ResetPassword re-checks the code, replaces the password hash and only then
// consumes the code. All refresh tokens of the user are revoked.
func (m *Manager) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < user.MinPasswordLength {
		return errors.NewValidationFieldError("newPassword", "newPassword must be at least 8 characters", errors.ErrCodeValidationFailed)
	}
	email = user.NormalizeEmail(email)

	rec, err := m.validOtp(ctx, email, code)
	if err != nil {
		m.record(EventPasswordReset, OutcomeFailure)
		return err
	}

	u, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		return m.internal(EventPasswordReset, "lookup user", err)
	}
	if u == nil {
		m.record(EventPasswordReset, OutcomeFailure)
		return errors.ErrUserNotFound
	}

	hash, err := user.HashPassword(newPassword, m.cfg.BCryptCost)
	if err != nil {
		return m.internal(EventPasswordReset, "hash password", err)
	}
	if err := m.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return m.internal(EventPasswordReset, "update password", err)
	}

	consumed, err := m.otps.MarkUsed(ctx, rec.ID)
	if err != nil {
		return m.internal(EventPasswordReset, "mark otp used", err)
	}
	if err := m.users.ClearRefreshToken(ctx, u.ID); err != nil {
		m.logger.Error("failed to revoke refresh token after reset", "user_id", u.ID, "error", err)
	}
	if !consumed {
		// A concurrent reset claimed the code first; only one caller may succeed.
		m.logger.Warn("otp consumed by a concurrent reset", "user_id", u.ID)
		m.record(EventPasswordReset, OutcomeFailure)
		return errors.ErrInvalidOTP
	}

	m.logger.Info("password reset", "user_id", u.ID)
	m.record(EventPasswordReset, OutcomeSuccess)
	m.publish(ctx, events.NewPasswordResetEvent(u.ID, email))
	return nil
}

func (m *Manager) validOtp(ctx context.Context, email, code string) (*sessionDatamodel.PasswordResetOtp, error) {
	if email == "" || code == "" {
		return nil, errors.ErrInvalidOTP
	}
	rec, err := m.otps.FindUnused(ctx, email, code)
	if err != nil {
		return nil, m.internal(EventOtpVerify, "lookup otp", err)
	}
	if rec == nil {
		return nil, errors.ErrInvalidOTP
	}
	if !m.now().Before(rec.ExpiresAt) {
		return nil, errors.ErrOTPExpired
	}
	return rec, nil
}

// HasExternalLogin reports whether an external identity provider is wired.
func (m *Manager) HasExternalLogin() bool {
	return m.external != nil
}

// BeginExternalLogin returns the provider redirect and the state the callback
// must echo.
func (m *Manager) BeginExternalLogin() (redirectURL, state string, err error) {
	if m.external == nil {
		return "", "", errors.NewNotFoundError("external login is not enabled", errors.ErrCodeExternalLogin)
	}
	state, err = randomHex(16)
	if err != nil {
		return "", "", m.internal(EventExternalLogin, "generate state", err)
	}
	return m.external.AuthCodeURL(state), state, nil
}

// CompleteExternalLogin trades an authorization code for a session. Unknown
// verified emails become users holding the configured default roles and a
// password nobody knows.
func (m *Manager) CompleteExternalLogin(ctx context.Context, code string) (*TokenPair, error) {
	if m.external == nil {
		return nil, errors.NewNotFoundError("external login is not enabled", errors.ErrCodeExternalLogin)
	}

	ident, err := m.external.Exchange(ctx, code)
	if err != nil {
		m.logger.Warn("external login exchange failed", "error", err)
		m.record(EventExternalLogin, OutcomeFailure)
		return nil, errors.NewUnauthorizedError("external login failed", errors.ErrCodeExternalLogin).WithCause(err)
	}
	email := user.NormalizeEmail(ident.Email)
	if email == "" || !ident.EmailVerified {
		m.record(EventExternalLogin, OutcomeFailure)
		return nil, errors.NewUnauthorizedError("external account has no verified email", errors.ErrCodeExternalLogin)
	}

	u, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, m.internal(EventExternalLogin, "lookup user", err)
	}
	if u == nil {
		if u, err = m.provisionExternalUser(ctx, email, ident); err != nil {
			return nil, err
		}
	}
	if !u.IsActive {
		m.record(EventExternalLogin, OutcomeFailure)
		return nil, errors.ErrUserInactive
	}

	pair, err := m.startSession(ctx, u)
	if err != nil {
		m.record(EventExternalLogin, OutcomeFailure)
		return nil, err
	}

	m.logger.Info("user logged in", "user_id", u.ID, "method", "oidc")
	m.record(EventExternalLogin, OutcomeSuccess)
	m.publish(ctx, events.NewUserLoggedInEvent(u.ID, "oidc"))
	return pair, nil
}

func (m *Manager) provisionExternalUser(ctx context.Context, email string, ident *ExternalIdentity) (*userDatamodel.User, error) {
	secret, err := randomHex(32)
	if err != nil {
		return nil, m.internal(EventExternalLogin, "generate password", err)
	}
	hash, err := user.HashPassword(secret, m.cfg.BCryptCost)
	if err != nil {
		return nil, m.internal(EventExternalLogin, "hash password", err)
	}

	roleIDs := append([]string{}, m.cfg.DefaultRoleIDs...)
	nu := user.NewUser(email, ident.FirstName, ident.LastName, hash, "", roleIDs)
	record := user.ToDataModel(nu)
	if err := m.users.Create(ctx, record); err != nil {
		return nil, m.internal(EventExternalLogin, "create user", err)
	}
	m.logger.Info("user provisioned from external login", "user_id", nu.ID)
	return record, nil
}

func (m *Manager) startSession(ctx context.Context, u *userDatamodel.User) (*TokenPair, error) {
	access, err := m.issuer.Issue(ctx, identityOf(u))
	if err != nil {
		return nil, err
	}

	refresh, err := NewRefreshToken()
	if err != nil {
		return nil, m.internal(EventLogin, "generate refresh token", err)
	}
	expiresAt := m.now().Add(m.cfg.RefreshTokenTTL)
	if err := m.users.SetRefreshToken(ctx, u.ID, HashRefreshToken(refresh), expiresAt); err != nil {
		return nil, m.internal(EventLogin, "store refresh token", err)
	}
	return pairOf(u, access, refresh, expiresAt), nil
}

func (m *Manager) allow(ctx context.Context, l Limiter, key, event string) error {
	if l == nil {
		return nil
	}
	ok, err := l.Allow(ctx, key)
	if err != nil {
		// fail open
		m.logger.Error("rate limiter failure", "event", event, "error", err)
		return nil
	}
	if !ok {
		m.record(event, OutcomeThrottle)
		return errors.NewTooManyRequestsError("too many attempts, try again later")
	}
	return nil
}

func (m *Manager) publish(ctx context.Context, e events.Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, e); err != nil {
		m.logger.Error("failed to publish event", "event_type", e.EventType(), "error", err)
	}
}

func (m *Manager) internal(event, op string, err error) error {
	m.logger.Error("session operation failed", "event", event, "op", op, "error", err)
	m.record(event, OutcomeFailure)
	return errors.NewInternalError("internal server error", err)
}

func identityOf(u *userDatamodel.User) auth.Identity {
	return auth.Identity{
		UserID:         u.ID,
		Email:          u.Email,
		Name:           user.FromDataModel(u).DisplayName(),
		OrganizationID: u.OrganizationID,
		RoleIDs:        u.RoleIDs,
	}
}

func pairOf(u *userDatamodel.User, access *auth.AccessToken, refresh string, refreshExpiresAt time.Time) *TokenPair {
	roles := []string{}
	if access.Claims != nil && access.Claims.Roles != nil {
		roles = access.Claims.Roles
	}
	return &TokenPair{
		AccessToken:           access.Token,
		AccessTokenExpiresAt:  access.ExpiresAt,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: refreshExpiresAt,
		User: &SessionUser{
			ID:             u.ID,
			Email:          u.Email,
			Name:           user.FromDataModel(u).DisplayName(),
			OrganizationID: u.OrganizationID,
			Roles:          roles,
		},
	}
}
