package role

import (
	"fmt"

	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/core/common/validation"
)

type PermissionFlagDTO struct {
	PermissionTypeID string `json:"permissionTypeId"`
	IsGranted        bool   `json:"isGranted"`
}

type PermissionEntryDTO struct {
	ModuleID        string              `json:"moduleId"`
	FeatureID       string              `json:"featureId"`
	PermissionFlags []PermissionFlagDTO `json:"permissionFlags"`
}

type RoleDTO struct {
	Name        string               `json:"name"`
	DisplayName string               `json:"displayName"`
	Description string               `json:"description"`
	Permissions []PermissionEntryDTO `json:"permissions"`
}

func (d RoleDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(100)
	v.Field("displayName", d.DisplayName).MaxLength(200)
	v.Field("description", d.Description).MaxLength(1000)
	validateEntries(v, d.Permissions)
	return v.Validate()
}

type AddPermissionsDTO struct {
	Permissions []PermissionEntryDTO `json:"permissions"`
}

func (d AddPermissionsDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("permissions", d.Permissions).Custom(func(interface{}) *errors.AppError {
		if len(d.Permissions) == 0 {
			return errors.NewValidationFieldError("permissions", "permissions must not be empty", errors.ErrCodeValidationFailed)
		}
		return nil
	})
	validateEntries(v, d.Permissions)
	return v.Validate()
}

func validateEntries(v *validation.ValidationBuilder, entries []PermissionEntryDTO) {
	for i, e := range entries {
		v.Field(fmt.Sprintf("permissions[%d].moduleId", i), e.ModuleID).Required()
		v.Field(fmt.Sprintf("permissions[%d].featureId", i), e.FeatureID).Required()
		for j, f := range e.PermissionFlags {
			v.Field(fmt.Sprintf("permissions[%d].permissionFlags[%d].permissionTypeId", i, j), f.PermissionTypeID).Required()
		}
	}
}

type AssignRolesDTO struct {
	RoleIDs []string `json:"roleIds"`
}

func (d AssignRolesDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	for i, id := range d.RoleIDs {
		v.Field(fmt.Sprintf("roleIds[%d]", i), id).Required()
	}
	return v.Validate()
}

type RolesResponse struct {
	Roles []*Role `json:"roles"`
}

type AssignRolesResponse struct {
	UserID  string   `json:"userId"`
	RoleIDs []string `json:"roleIds"`
}
