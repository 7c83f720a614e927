package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/transport"
	"github.com/frahmantamala/access-control/pkg/logger"
)

const (
	DecisionAllow        = "allow"
	DecisionForbidden    = "forbidden"
	DecisionUnauthorized = "unauthenticated"
	DecisionAnonymous    = "anonymous"
)

// TokenValidator is the read side of TokenGenerator.
type TokenValidator interface {
	Parse(token string) (*Claims, error)
}

type GuardOption func(*Guard)

// WithDecisionObserver reports every guard outcome, for metrics.
func WithDecisionObserver(fn func(decision string)) GuardOption {
	return func(g *Guard) {
		g.observe = fn
	}
}

// Guard enforces (module, feature, action) requirements from the permission
// claim of the access token. It never touches the data store.
type Guard struct {
	*transport.BaseHandler
	tokens  TokenValidator
	observe func(decision string)
}

func NewGuard(tokens TokenValidator, logger *slog.Logger, opts ...GuardOption) *Guard {
	g := &Guard{
		BaseHandler: transport.NewBaseHandler(logger),
		tokens:      tokens,
		observe:     func(string) {},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate verifies the token on r and returns the caller.
func (g *Guard) Authenticate(r *http.Request) (*Principal, error) {
	token := transport.BearerToken(r)
	if token == "" {
		return nil, errors.ErrMissingToken
	}

	claims, err := g.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	principal := PrincipalFromClaims(claims)
	if _, ok := claims.PermissionMap(); !ok {
		// fail closed: the caller is known but holds nothing
		logger.FromOr(r.Context(), g.Logger).Warn("malformed permission claim", "user_id", principal.UserID)
	}
	return principal, nil
}

func (g *Guard) withPrincipal(r *http.Request, p *Principal) *http.Request {
	ctx := ContextWithPrincipal(r.Context(), p)
	ctx = errors.ContextWithUserID(ctx, p.UserID)
	ctx = logger.With(ctx, "user_id", p.UserID)
	return r.WithContext(ctx)
}

// principal reuses a caller already attached by an outer middleware.
func (g *Guard) principal(r *http.Request) (*Principal, *http.Request, error) {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return p, r, nil
	}
	p, err := g.Authenticate(r)
	if err != nil {
		return nil, r, err
	}
	return p, g.withPrincipal(r, p), nil
}

// Anonymous marks everything below it as open. A valid token is still
// attached when present, an invalid one is ignored.
func (g *Guard) Anonymous() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = r.WithContext(context.WithValue(r.Context(), anonymousKey, true))
			if p, err := g.Authenticate(r); err == nil {
				r = g.withPrincipal(r, p)
			}
			g.observe(DecisionAnonymous)
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticated requires a valid access token and nothing else.
func (g *Guard) Authenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isAnonymousAllowed(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			_, r, err := g.principal(r)
			if err != nil {
				g.observe(DecisionUnauthorized)
				g.HandleServiceError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require allows the request only when the token grants action on
// module/feature.
func (g *Guard) Require(module, feature, action string) func(http.Handler) http.Handler {
	required := fmt.Sprintf("%s.%s.%s", module, feature, action)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isAnonymousAllowed(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			p, r, err := g.principal(r)
			if err != nil {
				g.observe(DecisionUnauthorized)
				g.HandleServiceError(w, r, err)
				return
			}

			if !p.Can(module, feature, action) {
				logger.FromOr(r.Context(), g.Logger).Warn("access denied: missing permission",
					"user_id", p.UserID,
					"required_permission", required)
				g.observe(DecisionForbidden)
				g.HandleServiceError(w, r, errors.NewForbiddenError(
					"Access denied: missing permission "+required, errors.ErrCodePermissionDenied))
				return
			}

			g.observe(DecisionAllow)
			next.ServeHTTP(w, r)
		})
	}
}
