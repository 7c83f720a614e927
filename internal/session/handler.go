package session

import (
	"context"
	"net"
	"net/http"
	"time"

	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/auth"
	"github.com/frahmantamala/access-control/internal/transport"
)

const oidcStateCookie = "OIDCState"

type ServiceAPI interface {
	Login(ctx context.Context, email, password, clientIP string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, userID, refreshToken string) error
	RequestResetOtp(ctx context.Context, email string) (time.Time, error)
	VerifyResetOtp(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	BeginExternalLogin() (redirectURL, state string, err error)
	CompleteExternalLogin(ctx context.Context, code string) (*TokenPair, error)
}

type CookieConfig struct {
	Secure bool
	Domain string
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	cookies CookieConfig
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, cookies CookieConfig) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		cookies:     cookies,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if appErr := h.ReadJSON(r, &dto); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}
	if appErr := dto.Validate(); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}

	pair, err := h.Service.Login(r.Context(), dto.Email, dto.Password, clientIP(r))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.setSessionCookies(w, pair)
	h.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var dto RefreshDTO
	if r.ContentLength > 0 {
		if appErr := h.ReadJSON(r, &dto); appErr != nil {
			h.HandleServiceError(w, r, appErr)
			return
		}
	}
	token := dto.RefreshToken
	if token == "" {
		if c, err := r.Cookie(transport.RefreshTokenCookie); err == nil {
			token = c.Value
		}
	}

	pair, err := h.Service.Refresh(r.Context(), token)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.setSessionCookies(w, pair)
	h.WriteJSON(w, http.StatusOK, pair)
}

// Logout is open to callers whose access token has expired. Both cookies are
// expired whatever the outcome.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, transport.AccessTokenCookie)
	h.clearCookie(w, transport.RefreshTokenCookie)

	var userID string
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		userID = principal.UserID
	}
	var refreshToken string
	if c, err := r.Cookie(transport.RefreshTokenCookie); err == nil {
		refreshToken = c.Value
	}

	if err := h.Service.Logout(r.Context(), userID, refreshToken); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RequestResetOtp(w http.ResponseWriter, r *http.Request) {
	var dto RequestOtpDTO
	if appErr := h.ReadJSON(r, &dto); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}
	if appErr := dto.Validate(); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}

	expiresAt, err := h.Service.RequestResetOtp(r.Context(), dto.Email)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusAccepted, OtpRequestedResponse{
		Message:   "OTP sent",
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) VerifyResetOtp(w http.ResponseWriter, r *http.Request) {
	var dto VerifyOtpDTO
	if appErr := h.ReadJSON(r, &dto); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}
	if appErr := dto.Validate(); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}

	if err := h.Service.VerifyResetOtp(r.Context(), dto.Email, dto.Otp); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "OTP is valid"})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var dto ResetPasswordDTO
	if appErr := h.ReadJSON(r, &dto); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}
	if appErr := dto.Validate(); appErr != nil {
		h.HandleServiceError(w, r, appErr)
		return
	}

	if err := h.Service.ResetPassword(r.Context(), dto.Email, dto.Otp, dto.NewPassword); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "password has been reset"})
}

// ExternalLogin redirects to the identity provider.
func (h *Handler) ExternalLogin(w http.ResponseWriter, r *http.Request) {
	redirectURL, state, err := h.Service.BeginExternalLogin()
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	// Lax, the callback arrives as a cross-site top-level navigation
	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookie,
		Value:    state,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (h *Handler) ExternalCallback(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(oidcStateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || c.Value == "" || c.Value != state {
		h.HandleServiceError(w, r, errors.NewUnauthorizedError("external login state mismatch", errors.ErrCodeExternalLogin))
		return
	}
	h.clearCookie(w, oidcStateCookie)

	pair, err := h.Service.CompleteExternalLogin(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.setSessionCookies(w, pair)
	h.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, pair *TokenPair) {
	http.SetCookie(w, h.cookie(transport.AccessTokenCookie, pair.AccessToken, pair.AccessTokenExpiresAt))
	http.SetCookie(w, h.cookie(transport.RefreshTokenCookie, pair.RefreshToken, pair.RefreshTokenExpiresAt))
}

func (h *Handler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	c := h.cookie(name, "", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func clientIP(r *http.Request) string {
	if ip := errors.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
