package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/access-control/internal"
	userDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/user"
	"github.com/frahmantamala/access-control/internal/role"
)

// RepositoryAPI is the user store. Lookups return nil, nil when nothing
// matches.
type RepositoryAPI interface {
	Create(ctx context.Context, u *userDatamodel.User) error
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*userDatamodel.User, error)
	UpdateRoles(ctx context.Context, id string, roleIDs []string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetRefreshToken(ctx context.Context, id, hash string, expiresAt time.Time) error
	// RotateRefreshToken swaps oldHash for newHash only if oldHash is still
	// the stored one, and reports whether it did.
	RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error
}

type RoleChecker interface {
	ActiveRolesByIDs(ctx context.Context, ids []string) ([]*role.Role, error)
}

type Service struct {
	repo       RepositoryAPI
	roles      RoleChecker
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, roles RoleChecker, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		roles:      roles,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func (s *Service) CreateUser(ctx context.Context, dto CreateUserDTO) (*User, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	email := NormalizeEmail(dto.Email)
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.internal("lookup user by email", err)
	}
	if existing != nil {
		return nil, errors.NewConflictError("a user with this email already exists", errors.ErrCodeEmailAlreadyExists)
	}

	roleIDs := dedupe(dto.RoleIDs)
	if len(roleIDs) > 0 {
		found, err := s.roles.ActiveRolesByIDs(ctx, roleIDs)
		if err != nil {
			return nil, err
		}
		if missing := firstMissing(roleIDs, found); missing != "" {
			return nil, errors.NewReferenceError(
				fmt.Sprintf("role %s does not exist or is inactive", missing), errors.ErrCodeInvalidReference)
		}
	}

	hash, err := HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, s.internal("hash password", err)
	}

	u := NewUser(email, dto.FirstName, dto.LastName, hash, dto.OrganizationID, roleIDs)
	if err := s.repo.Create(ctx, ToDataModel(u)); err != nil {
		return nil, s.internal("create user", err)
	}

	s.logger.Info("user created", "user_id", u.ID, "roles", len(roleIDs))
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.internal("get user", err)
	}
	if u == nil {
		return nil, errors.ErrUserNotFound
	}
	return FromDataModel(u), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, s.internal("get user by email", err)
	}
	if u == nil {
		return nil, errors.ErrUserNotFound
	}
	return FromDataModel(u), nil
}

func (s *Service) internal(op string, err error) error {
	s.logger.Error("user store failure", "op", op, "error", err)
	return errors.NewInternalError("internal server error", err)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func firstMissing(ids []string, found []*role.Role) string {
	have := make(map[string]struct{}, len(found))
	for _, r := range found {
		have[r.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			return id
		}
	}
	return ""
}
