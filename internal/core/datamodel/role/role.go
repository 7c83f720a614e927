package role

import "time"

// RolePermission is embedded in the role row as a JSON document, the role is
// always written as a whole.
type RolePermission struct {
	ModuleID        string `json:"module_id"`
	FeatureID       string `json:"feature_id"`
	PermissionValue int64  `json:"permission_value"`
}

type Role struct {
	ID          string           `gorm:"primaryKey;type:varchar(36)"`
	Name        string           `gorm:"column:name;not null;index"`
	DisplayName string           `gorm:"column:display_name"`
	Description string           `gorm:"column:description"`
	IsActive    bool             `gorm:"column:is_active;default:true"`
	Permissions []RolePermission `gorm:"column:permissions;serializer:json"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Role) TableName() string {
	return "roles"
}
