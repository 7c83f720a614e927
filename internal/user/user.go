package user

import (
	"strings"
	"time"

	userDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/user"
	"github.com/google/uuid"
)

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	PasswordHash   string    `json:"-"`
	OrganizationID string    `json:"organizationId,omitempty"`
	RoleIDs        []string  `json:"roleIds"`
	IsActive       bool      `json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func NewUser(email, firstName, lastName, passwordHash, organizationID string, roleIDs []string) *User {
	now := time.Now()
	if roleIDs == nil {
		roleIDs = []string{}
	}
	return &User{
		ID:             uuid.NewString(),
		Email:          NormalizeEmail(email),
		FirstName:      firstName,
		LastName:       lastName,
		PasswordHash:   passwordHash,
		OrganizationID: organizationID,
		RoleIDs:        roleIDs,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NormalizeEmail is applied on every write and lookup so addresses match
// regardless of case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DisplayName is "First Last", falling back to the email.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		PasswordHash:   u.PasswordHash,
		OrganizationID: u.OrganizationID,
		RoleIDs:        u.RoleIDs,
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	roleIDs := u.RoleIDs
	if roleIDs == nil {
		roleIDs = []string{}
	}
	return &User{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		PasswordHash:   u.PasswordHash,
		OrganizationID: u.OrganizationID,
		RoleIDs:        roleIDs,
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}
