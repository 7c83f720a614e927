package catalog

import (
	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/core/common/validation"
	"github.com/frahmantamala/access-control/internal/permission"
)

type ModuleDTO struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

func (d ModuleDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(100)
	v.Field("displayName", d.DisplayName).MaxLength(200)
	v.Field("description", d.Description).MaxLength(1000)
	return v.Validate()
}

type FeatureDTO struct {
	ModuleID    string `json:"moduleId"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

func (d FeatureDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("moduleId", d.ModuleID).Required()
	v.Field("name", d.Name).Required().MaxLength(100)
	v.Field("displayName", d.DisplayName).MaxLength(200)
	v.Field("description", d.Description).MaxLength(1000)
	return v.Validate()
}

type PermissionTypeDTO struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	BitPosition *int   `json:"bitPosition"`
}

func (d PermissionTypeDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(100)
	v.Field("displayName", d.DisplayName).MaxLength(200)
	v.Field("bitPosition", d.BitPosition).Required().IntRange(0, permission.MaxBitPosition, errors.ErrCodeInvalidBit)
	return v.Validate()
}

type SetupDefaultsResponse struct {
	Created  bool              `json:"created"`
	Existing int64             `json:"existing"`
	Types    []*PermissionType `json:"permissionTypes,omitempty"`
	Message  string            `json:"message"`
}

type ModulesResponse struct {
	Modules []*Module `json:"modules"`
}

type FeaturesResponse struct {
	Features []*Feature `json:"features"`
}

type PermissionTypesResponse struct {
	PermissionTypes []*PermissionType `json:"permissionTypes"`
}
