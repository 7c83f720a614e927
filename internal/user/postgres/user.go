package postgres

import (
	"context"
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/user"
	"github.com/frahmantamala/access-control/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*userDatamodel.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *UserRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*userDatamodel.User, error) {
	if hash == "" {
		return nil, nil
	}
	return r.first(ctx, "refresh_token_hash = ?", hash)
}

func (r *UserRepository) first(ctx context.Context, query string, args ...interface{}) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) UpdateRoles(ctx context.Context, id string, roleIDs []string) error {
	u := userDatamodel.User{ID: id, RoleIDs: roleIDs, UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).Model(&u).Select("role_ids", "updated_at").Updates(&u).Error
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash).Error
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"refresh_token_hash":   hash,
			"refresh_token_expiry": expiresAt,
		}).Error
}

// RotateRefreshToken is a compare-and-swap on the stored hash: of two
// concurrent refreshes with the same token only one matches a row.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ? AND refresh_token_hash = ?", id, oldHash).
		Updates(map[string]interface{}{
			"refresh_token_hash":   newHash,
			"refresh_token_expiry": expiresAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"refresh_token_hash":   "",
			"refresh_token_expiry": nil,
		}).Error
}
