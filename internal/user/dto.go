package user

import (
	"fmt"

	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/core/common/validation"
	"github.com/frahmantamala/access-control/internal/permission"
)

const MinPasswordLength = 8

type CreateUserDTO struct {
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	OrganizationID string   `json:"organizationId"`
	RoleIDs        []string `json:"roleIds"`
}

func (d CreateUserDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("email", NormalizeEmail(d.Email)).Required().Email().MaxLength(255)
	v.Field("password", d.Password).Required().MinLength(MinPasswordLength).MaxLength(72)
	v.Field("firstName", d.FirstName).MaxLength(100)
	v.Field("lastName", d.LastName).MaxLength(100)
	for i, id := range d.RoleIDs {
		v.Field(fmt.Sprintf("roleIds[%d]", i), id).Required()
	}
	return v.Validate()
}

// CurrentUserResponse is the caller as their access token describes them.
type CurrentUserResponse struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	Name           string         `json:"name"`
	OrganizationID string         `json:"organizationId,omitempty"`
	Roles          []string       `json:"roles"`
	Permissions    permission.Map `json:"permissions"`
}
