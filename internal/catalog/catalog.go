package catalog

import (
	"time"

	catalogDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/catalog"
	"github.com/google/uuid"
)

type Module struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description"`
	IsActive    bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Feature struct {
	ID          string    `json:"id"`
	ModuleID    string    `json:"moduleId"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description"`
	IsActive    bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PermissionType is a named action bound to one bit of a role's bitmask.
type PermissionType struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	BitPosition int       `json:"bitPosition"`
	IsActive    bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DefaultPermissionTypes is the bootstrap set.
var DefaultPermissionTypes = []PermissionType{
	{Name: "Create", DisplayName: "Create", BitPosition: 0},
	{Name: "Read", DisplayName: "Read", BitPosition: 1},
	{Name: "Update", DisplayName: "Update", BitPosition: 2},
	{Name: "Delete", DisplayName: "Delete", BitPosition: 3},
}

func NewModule(name, displayName, description string) *Module {
	now := time.Now()
	return &Module{
		ID:          uuid.NewString(),
		Name:        name,
		DisplayName: displayName,
		Description: description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func NewFeature(moduleID, name, displayName, description string) *Feature {
	now := time.Now()
	return &Feature{
		ID:          uuid.NewString(),
		ModuleID:    moduleID,
		Name:        name,
		DisplayName: displayName,
		Description: description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func NewPermissionType(name, displayName string, bit int) *PermissionType {
	now := time.Now()
	return &PermissionType{
		ID:          uuid.NewString(),
		Name:        name,
		DisplayName: displayName,
		BitPosition: bit,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func ModuleToDataModel(m *Module) *catalogDatamodel.Module {
	return &catalogDatamodel.Module{
		ID:          m.ID,
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Description: m.Description,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func ModuleFromDataModel(m *catalogDatamodel.Module) *Module {
	return &Module{
		ID:          m.ID,
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Description: m.Description,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func FeatureToDataModel(f *Feature) *catalogDatamodel.Feature {
	return &catalogDatamodel.Feature{
		ID:          f.ID,
		ModuleID:    f.ModuleID,
		Name:        f.Name,
		DisplayName: f.DisplayName,
		Description: f.Description,
		IsActive:    f.IsActive,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func FeatureFromDataModel(f *catalogDatamodel.Feature) *Feature {
	return &Feature{
		ID:          f.ID,
		ModuleID:    f.ModuleID,
		Name:        f.Name,
		DisplayName: f.DisplayName,
		Description: f.Description,
		IsActive:    f.IsActive,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func PermissionTypeToDataModel(p *PermissionType) *catalogDatamodel.PermissionType {
	return &catalogDatamodel.PermissionType{
		ID:          p.ID,
		Name:        p.Name,
		DisplayName: p.DisplayName,
		BitPosition: p.BitPosition,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func PermissionTypeFromDataModel(p *catalogDatamodel.PermissionType) *PermissionType {
	return &PermissionType{
		ID:          p.ID,
		Name:        p.Name,
		DisplayName: p.DisplayName,
		BitPosition: p.BitPosition,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
