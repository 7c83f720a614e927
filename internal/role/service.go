package role

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/core/events"
	roleDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/user"
)

type RepositoryAPI interface {
	Create(ctx context.Context, role *roleDatamodel.Role) error
	Update(ctx context.Context, role *roleDatamodel.Role) error
	GetByID(ctx context.Context, id string) (*roleDatamodel.Role, error)
	GetActiveByName(ctx context.Context, name string) (*roleDatamodel.Role, error)
	GetActiveByIDs(ctx context.Context, ids []string) ([]*roleDatamodel.Role, error)
	ListActive(ctx context.Context) ([]*roleDatamodel.Role, error)
	Deactivate(ctx context.Context, id string) error
}

// UserRepositoryAPI is the slice of the user store that role assignment
// writes to.
type UserRepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*userDatamodel.User, error)
	UpdateRoles(ctx context.Context, id string, roleIDs []string) error
}

type Service struct {
	repo      RepositoryAPI
	users     UserRepositoryAPI
	catalog   CatalogAPI
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, users UserRepositoryAPI, catalog CatalogAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		catalog:   catalog,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) internal(op string, err error) error {
	s.logger.Error("role repository failure", "operation", op, "error", err)
	return errors.NewInternalError("internal server error", err)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func (s *Service) CreateRole(ctx context.Context, dto RoleDTO) (*Role, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	name := strings.TrimSpace(dto.Name)
	existing, err := s.repo.GetActiveByName(ctx, name)
	if err != nil {
		return nil, s.internal("get role by name", err)
	}
	if existing != nil {
		return nil, errors.NewConflictError(fmt.Sprintf("role %q already exists", name), errors.ErrCodeDuplicateName)
	}

	perms, err := s.computePermissions(ctx, dto.Permissions)
	if err != nil {
		return nil, err
	}

	data := ToDataModel(NewRole(name, dto.DisplayName, dto.Description, perms))
	if err := s.repo.Create(ctx, data); err != nil {
		return nil, s.internal("create role", err)
	}

	s.logger.Info("role created", "role_id", data.ID, "name", data.Name, "permissions", len(data.Permissions))
	s.publish(ctx, events.NewRoleChangedEvent(data.ID, "created"))
	return FromDataModel(data), nil
}

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	data, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, s.internal("list roles", err)
	}

	roles := make([]*Role, 0, len(data))
	for _, r := range data {
		roles = append(roles, FromDataModel(r))
	}
	return roles, nil
}

func (s *Service) GetRole(ctx context.Context, id string) (*Role, error) {
	data, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.internal("get role", err)
	}
	if data == nil {
		return nil, errors.ErrRoleNotFound
	}
	return FromDataModel(data), nil
}

func (s *Service) activeRole(ctx context.Context, id string) (*roleDatamodel.Role, error) {
	data, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.internal("get role", err)
	}
	if data == nil || !data.IsActive {
		return nil, errors.ErrRoleNotFound
	}
	return data, nil
}

// UpdateRole is a full replace: the submitted permissions supersede the
// stored list.
func (s *Service) UpdateRole(ctx context.Context, id string, dto RoleDTO) (*Role, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	data, err := s.activeRole(ctx, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(dto.Name)
	if name != data.Name {
		clash, err := s.repo.GetActiveByName(ctx, name)
		if err != nil {
			return nil, s.internal("get role by name", err)
		}
		if clash != nil && clash.ID != id {
			return nil, errors.NewConflictError(fmt.Sprintf("role %q already exists", name), errors.ErrCodeDuplicateName)
		}
	}

	perms, err := s.computePermissions(ctx, dto.Permissions)
	if err != nil {
		return nil, err
	}

	role := FromDataModel(data)
	role.Name = name
	role.DisplayName = dto.DisplayName
	role.Description = dto.Description
	role.Permissions = perms
	role.UpdatedAt = time.Now()

	updated := ToDataModel(role)
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, s.internal("update role", err)
	}

	s.logger.Info("role replaced", "role_id", id, "permissions", len(perms))
	s.publish(ctx, events.NewRoleChangedEvent(id, "updated"))
	return FromDataModel(updated), nil
}

// AddPermissionsToRole merges: pairs already on the role get the new value,
// new pairs are appended.
func (s *Service) AddPermissionsToRole(ctx context.Context, id string, dto AddPermissionsDTO) (*Role, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	data, err := s.activeRole(ctx, id)
	if err != nil {
		return nil, err
	}

	incoming, err := s.computePermissions(ctx, dto.Permissions)
	if err != nil {
		return nil, err
	}

	role := FromDataModel(data)
	role.Permissions = mergePermissions(role.Permissions, incoming)
	role.UpdatedAt = time.Now()

	updated := ToDataModel(role)
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, s.internal("update role", err)
	}

	s.logger.Info("role permissions merged", "role_id", id, "incoming", len(incoming), "total", len(role.Permissions))
	s.publish(ctx, events.NewRoleChangedEvent(id, "permissions_added"))
	return FromDataModel(updated), nil
}

// DeleteRole only deactivates. Tokens already carrying the role's grants
// stay valid until they expire.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	data, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return s.internal("get role", err)
	}
	if data == nil {
		return errors.ErrRoleNotFound
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return s.internal("deactivate role", err)
	}

	s.logger.Info("role deactivated", "role_id", id)
	s.publish(ctx, events.NewRoleChangedEvent(id, "deleted"))
	return nil
}

// AssignRoleToUser replaces the user's role set after every id has been
// checked, so a bad id leaves the user untouched.
func (s *Service) AssignRoleToUser(ctx context.Context, userID string, dto AssignRolesDTO) ([]string, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, s.internal("get user", err)
	}
	if user == nil {
		return nil, errors.ErrUserNotFound
	}

	roleIDs := dedupe(dto.RoleIDs)
	if len(roleIDs) > 0 {
		active, err := s.repo.GetActiveByIDs(ctx, roleIDs)
		if err != nil {
			return nil, s.internal("get roles", err)
		}
		found := make(map[string]bool, len(active))
		for _, r := range active {
			found[r.ID] = true
		}
		for _, id := range roleIDs {
			if !found[id] {
				return nil, errors.NewReferenceError(
					fmt.Sprintf("role %s does not exist or is inactive", id), errors.ErrCodeInvalidReference)
			}
		}
	}

	if err := s.users.UpdateRoles(ctx, userID, roleIDs); err != nil {
		return nil, s.internal("update user roles", err)
	}

	s.logger.Info("roles assigned", "user_id", userID, "role_ids", roleIDs)
	s.publish(ctx, events.NewRolesAssignedEvent(userID, roleIDs))
	return roleIDs, nil
}

// ActiveRolesByIDs returns the active roles among ids; unknown or inactive
// ids are dropped.
func (s *Service) ActiveRolesByIDs(ctx context.Context, ids []string) ([]*Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	data, err := s.repo.GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, s.internal("get roles", err)
	}
	roles := make([]*Role, 0, len(data))
	for _, r := range data {
		roles = append(roles, FromDataModel(r))
	}
	return roles, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
