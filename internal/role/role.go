package role

import (
	"time"

	roleDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/role"
	"github.com/frahmantamala/access-control/internal/permission"
	"github.com/google/uuid"
)

// RolePermission grants the bits of PermissionValue on one (module, feature)
// pair. A role holds at most one entry per pair.
type RolePermission struct {
	ModuleID        string          `json:"moduleId"`
	FeatureID       string          `json:"featureId"`
	PermissionValue permission.Mask `json:"permissionValue"`
}

type Role struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	DisplayName string           `json:"displayName"`
	Description string           `json:"description"`
	IsActive    bool             `json:"active"`
	Permissions []RolePermission `json:"permissions"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func NewRole(name, displayName, description string, permissions []RolePermission) *Role {
	now := time.Now()
	return &Role{
		ID:          uuid.NewString(),
		Name:        name,
		DisplayName: displayName,
		Description: description,
		IsActive:    true,
		Permissions: permissions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func ToDataModel(r *Role) *roleDatamodel.Role {
	perms := make([]roleDatamodel.RolePermission, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, roleDatamodel.RolePermission{
			ModuleID:        p.ModuleID,
			FeatureID:       p.FeatureID,
			PermissionValue: p.PermissionValue.Int64(),
		})
	}
	return &roleDatamodel.Role{
		ID:          r.ID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Description: r.Description,
		IsActive:    r.IsActive,
		Permissions: perms,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func FromDataModel(r *roleDatamodel.Role) *Role {
	perms := make([]RolePermission, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, RolePermission{
			ModuleID:        p.ModuleID,
			FeatureID:       p.FeatureID,
			PermissionValue: permission.FromInt64(p.PermissionValue),
		})
	}
	return &Role{
		ID:          r.ID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Description: r.Description,
		IsActive:    r.IsActive,
		Permissions: perms,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
