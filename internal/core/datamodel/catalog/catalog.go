package catalog

import "time"

type Module struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	Name        string    `gorm:"column:name;not null;index"`
	DisplayName string    `gorm:"column:display_name"`
	Description string    `gorm:"column:description"`
	IsActive    bool      `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Module) TableName() string {
	return "modules"
}

type Feature struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	ModuleID    string    `gorm:"column:module_id;type:varchar(36);not null;index"`
	Name        string    `gorm:"column:name;not null"`
	DisplayName string    `gorm:"column:display_name"`
	Description string    `gorm:"column:description"`
	IsActive    bool      `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Feature) TableName() string {
	return "features"
}

type PermissionType struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	Name        string    `gorm:"column:name;not null"`
	DisplayName string    `gorm:"column:display_name"`
	BitPosition int       `gorm:"column:bit_position;not null"`
	IsActive    bool      `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PermissionType) TableName() string {
	return "permission_types"
}
