package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/access-control/internal/catalog"
	catalogDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/catalog"
	"gorm.io/gorm"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) catalog.RepositoryAPI {
	return &CatalogRepository{db: db}
}

func first[T any](q *gorm.DB) (*T, error) {
	var row T
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *CatalogRepository) CreateModule(ctx context.Context, module *catalogDatamodel.Module) error {
	return r.db.WithContext(ctx).Create(module).Error
}

func (r *CatalogRepository) UpdateModule(ctx context.Context, module *catalogDatamodel.Module) error {
	return r.db.WithContext(ctx).Save(module).Error
}

func (r *CatalogRepository) GetModuleByID(ctx context.Context, id string) (*catalogDatamodel.Module, error) {
	return first[catalogDatamodel.Module](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *CatalogRepository) GetActiveModuleByName(ctx context.Context, name string) (*catalogDatamodel.Module, error) {
	return first[catalogDatamodel.Module](r.db.WithContext(ctx).Where("name = ? AND is_active = ?", name, true))
}

func (r *CatalogRepository) GetActiveModulesByIDs(ctx context.Context, ids []string) ([]*catalogDatamodel.Module, error) {
	var modules []*catalogDatamodel.Module
	err := r.db.WithContext(ctx).Where("id IN ? AND is_active = ?", ids, true).Find(&modules).Error
	return modules, err
}

func (r *CatalogRepository) ListActiveModules(ctx context.Context) ([]*catalogDatamodel.Module, error) {
	var modules []*catalogDatamodel.Module
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&modules).Error
	return modules, err
}

func (r *CatalogRepository) DeactivateModule(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&catalogDatamodel.Module{}).Where("id = ?", id).Update("is_active", false).Error
}

func (r *CatalogRepository) CreateFeature(ctx context.Context, feature *catalogDatamodel.Feature) error {
	return r.db.WithContext(ctx).Create(feature).Error
}

func (r *CatalogRepository) UpdateFeature(ctx context.Context, feature *catalogDatamodel.Feature) error {
	return r.db.WithContext(ctx).Save(feature).Error
}

func (r *CatalogRepository) GetFeatureByID(ctx context.Context, id string) (*catalogDatamodel.Feature, error) {
	return first[catalogDatamodel.Feature](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *CatalogRepository) GetActiveFeatureByName(ctx context.Context, moduleID, name string) (*catalogDatamodel.Feature, error) {
	return first[catalogDatamodel.Feature](r.db.WithContext(ctx).
		Where("module_id = ? AND name = ? AND is_active = ?", moduleID, name, true))
}

func (r *CatalogRepository) GetActiveFeaturesByIDs(ctx context.Context, ids []string) ([]*catalogDatamodel.Feature, error) {
	var features []*catalogDatamodel.Feature
	err := r.db.WithContext(ctx).Where("id IN ? AND is_active = ?", ids, true).Find(&features).Error
	return features, err
}

func (r *CatalogRepository) ListActiveFeatures(ctx context.Context, moduleID string) ([]*catalogDatamodel.Feature, error) {
	var features []*catalogDatamodel.Feature
	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	if moduleID != "" {
		q = q.Where("module_id = ?", moduleID)
	}
	err := q.Order("name ASC").Find(&features).Error
	return features, err
}

func (r *CatalogRepository) DeactivateFeature(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&catalogDatamodel.Feature{}).Where("id = ?", id).Update("is_active", false).Error
}

func (r *CatalogRepository) CreatePermissionType(ctx context.Context, pt *catalogDatamodel.PermissionType) error {
	return r.db.WithContext(ctx).Create(pt).Error
}

func (r *CatalogRepository) UpdatePermissionType(ctx context.Context, pt *catalogDatamodel.PermissionType) error {
	return r.db.WithContext(ctx).Save(pt).Error
}

func (r *CatalogRepository) GetPermissionTypeByID(ctx context.Context, id string) (*catalogDatamodel.PermissionType, error) {
	return first[catalogDatamodel.PermissionType](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *CatalogRepository) ListActivePermissionTypes(ctx context.Context) ([]*catalogDatamodel.PermissionType, error) {
	var types []*catalogDatamodel.PermissionType
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("bit_position ASC").Find(&types).Error
	return types, err
}

func (r *CatalogRepository) CountActivePermissionTypes(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&catalogDatamodel.PermissionType{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}

func (r *CatalogRepository) DeactivatePermissionType(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&catalogDatamodel.PermissionType{}).Where("id = ?", id).Update("is_active", false).Error
}
