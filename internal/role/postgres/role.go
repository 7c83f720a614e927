package postgres

import (
	"context"
	"errors"

	roleDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/role"
	"github.com/frahmantamala/access-control/internal/role"
	"gorm.io/gorm"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) role.RepositoryAPI {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) Create(ctx context.Context, rl *roleDatamodel.Role) error {
	return r.db.WithContext(ctx).Create(rl).Error
}

// Update rewrites the whole row; permissions are one JSON document.
func (r *RoleRepository) Update(ctx context.Context, rl *roleDatamodel.Role) error {
	return r.db.WithContext(ctx).Save(rl).Error
}

func (r *RoleRepository) GetByID(ctx context.Context, id string) (*roleDatamodel.Role, error) {
	var rl roleDatamodel.Role
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rl, nil
}

func (r *RoleRepository) GetActiveByName(ctx context.Context, name string) (*roleDatamodel.Role, error) {
	var rl roleDatamodel.Role
	err := r.db.WithContext(ctx).Where("name = ? AND is_active = ?", name, true).First(&rl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rl, nil
}

func (r *RoleRepository) GetActiveByIDs(ctx context.Context, ids []string) ([]*roleDatamodel.Role, error) {
	var roles []*roleDatamodel.Role
	err := r.db.WithContext(ctx).Where("id IN ? AND is_active = ?", ids, true).Order("name ASC").Find(&roles).Error
	return roles, err
}

func (r *RoleRepository) ListActive(ctx context.Context) ([]*roleDatamodel.Role, error) {
	var roles []*roleDatamodel.Role
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&roles).Error
	return roles, err
}

func (r *RoleRepository) Deactivate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&roleDatamodel.Role{}).Where("id = ?", id).Update("is_active", false).Error
}
