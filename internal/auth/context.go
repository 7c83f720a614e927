package auth

import (
	"context"
	"time"

	"github.com/frahmantamala/access-control/internal/permission"
)

type ctxKey string

const (
	principalKey ctxKey = "principal"
	anonymousKey ctxKey = "anonymous"
)

// Principal is the caller as described by a verified access token.
type Principal struct {
	UserID         string
	Email          string
	Name           string
	OrganizationID string
	Roles          []string
	Permissions    permission.Map
	TokenID        string
	ExpiresAt      time.Time
}

func PrincipalFromClaims(c *Claims) *Principal {
	perms, _ := c.PermissionMap()
	p := &Principal{
		UserID:         c.Subject,
		Email:          c.Email,
		Name:           c.Name,
		OrganizationID: c.OrganizationID,
		Roles:          c.Roles,
		Permissions:    perms,
		TokenID:        c.ID,
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}

func (p *Principal) Can(module, feature, action string) bool {
	return p != nil && p.Permissions.Has(module, feature, action)
}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

func isAnonymousAllowed(ctx context.Context) bool {
	allowed, _ := ctx.Value(anonymousKey).(bool)
	return allowed
}
