package auth

import (
	"encoding/json"
	"time"

	"github.com/frahmantamala/access-control/internal/permission"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the issuer needs to know about a user.
type Identity struct {
	UserID         string
	Email          string
	Name           string
	OrganizationID string
	RoleIDs        []string
}

// AccessToken is a signed token plus the claims it carries.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
	Claims    *Claims
}

// Claims is the access token payload. Permissions holds the nested
// module -> feature -> actions map as raw JSON so a malformed claim can be
// detected instead of silently decoding to an empty map.
type Claims struct {
	Email          string          `json:"email"`
	Name           string          `json:"name"`
	OrganizationID string          `json:"org,omitempty"`
	Roles          []string        `json:"role"`
	Permissions    json.RawMessage `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// PermissionMap decodes the permission claim. Anything that is not the
// expected shape yields an empty map and false.
func (c *Claims) PermissionMap() (permission.Map, bool) {
	m, err := permission.ParseMap(c.Permissions)
	if err != nil {
		return permission.Map{}, false
	}
	return m, true
}

// TokenGenerator signs and verifies access tokens.
type TokenGenerator interface {
	Sign(claims *Claims) (token string, expiresAt time.Time, err error)
	Parse(token string) (*Claims, error)
}
