package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	errors "github.com/frahmantamala/access-control/internal"
	catalogDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/catalog"
)

type RepositoryAPI interface {
	CreateModule(ctx context.Context, module *catalogDatamodel.Module) error
	UpdateModule(ctx context.Context, module *catalogDatamodel.Module) error
	GetModuleByID(ctx context.Context, id string) (*catalogDatamodel.Module, error)
	GetActiveModuleByName(ctx context.Context, name string) (*catalogDatamodel.Module, error)
	GetActiveModulesByIDs(ctx context.Context, ids []string) ([]*catalogDatamodel.Module, error)
	ListActiveModules(ctx context.Context) ([]*catalogDatamodel.Module, error)
	DeactivateModule(ctx context.Context, id string) error

	CreateFeature(ctx context.Context, feature *catalogDatamodel.Feature) error
	UpdateFeature(ctx context.Context, feature *catalogDatamodel.Feature) error
	GetFeatureByID(ctx context.Context, id string) (*catalogDatamodel.Feature, error)
	GetActiveFeatureByName(ctx context.Context, moduleID, name string) (*catalogDatamodel.Feature, error)
	GetActiveFeaturesByIDs(ctx context.Context, ids []string) ([]*catalogDatamodel.Feature, error)
	ListActiveFeatures(ctx context.Context, moduleID string) ([]*catalogDatamodel.Feature, error)
	DeactivateFeature(ctx context.Context, id string) error

	CreatePermissionType(ctx context.Context, pt *catalogDatamodel.PermissionType) error
	UpdatePermissionType(ctx context.Context, pt *catalogDatamodel.PermissionType) error
	GetPermissionTypeByID(ctx context.Context, id string) (*catalogDatamodel.PermissionType, error)
	ListActivePermissionTypes(ctx context.Context) ([]*catalogDatamodel.PermissionType, error)
	CountActivePermissionTypes(ctx context.Context) (int64, error)
	DeactivatePermissionType(ctx context.Context, id string) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) internal(op string, err error) error {
	s.logger.Error("catalog repository failure", "operation", op, "error", err)
	return errors.NewInternalError("internal server error", err)
}

// Modules

func (s *Service) CreateModule(ctx context.Context, dto ModuleDTO) (*Module, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	name := strings.TrimSpace(dto.Name)
	if err := s.checkModuleName(ctx, "", name); err != nil {
		return nil, err
	}

	module := NewModule(name, dto.DisplayName, dto.Description)
	data := ModuleToDataModel(module)
	if err := s.repo.CreateModule(ctx, data); err != nil {
		return nil, s.internal("create module", err)
	}

	s.logger.Info("module created", "module_id", data.ID, "name", data.Name)
	return ModuleFromDataModel(data), nil
}

func (s *Service) ListModules(ctx context.Context) ([]*Module, error) {
	data, err := s.repo.ListActiveModules(ctx)
	if err != nil {
		return nil, s.internal("list modules", err)
	}

	modules := make([]*Module, 0, len(data))
	for _, m := range data {
		modules = append(modules, ModuleFromDataModel(m))
	}
	return modules, nil
}

func (s *Service) GetModule(ctx context.Context, id string) (*Module, error) {
	data, err := s.repo.GetModuleByID(ctx, id)
	if err != nil {
		return nil, s.internal("get module", err)
	}
	if data == nil {
		return nil, errors.NewNotFoundError("module not found", errors.ErrCodeModuleNotFound)
	}
	return ModuleFromDataModel(data), nil
}

// UpdateModule replaces every mutable field and marks the module active.
func (s *Service) UpdateModule(ctx context.Context, id string, dto ModuleDTO) (*Module, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	data, err := s.repo.GetModuleByID(ctx, id)
	if err != nil {
		return nil, s.internal("get module", err)
	}
	if data == nil {
		return nil, errors.NewNotFoundError("module not found", errors.ErrCodeModuleNotFound)
	}

	name := strings.TrimSpace(dto.Name)
	if err := s.checkModuleName(ctx, id, name); err != nil {
		return nil, err
	}

	data.Name = name
	data.DisplayName = dto.DisplayName
	data.Description = dto.Description
	data.IsActive = true
	data.UpdatedAt = time.Now()

	if err := s.repo.UpdateModule(ctx, data); err != nil {
		return nil, s.internal("update module", err)
	}
	return ModuleFromDataModel(data), nil
}

func (s *Service) DeleteModule(ctx context.Context, id string) error {
	data, err := s.repo.GetModuleByID(ctx, id)
	if err != nil {
		return s.internal("get module", err)
	}
	if data == nil {
		return errors.NewNotFoundError("module not found", errors.ErrCodeModuleNotFound)
	}

	if err := s.repo.DeactivateModule(ctx, id); err != nil {
		return s.internal("deactivate module", err)
	}
	s.logger.Info("module deactivated", "module_id", id)
	return nil
}

// Features

func (s *Service) CreateFeature(ctx context.Context, dto FeatureDTO) (*Feature, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	if _, err := s.ActiveModule(ctx, dto.ModuleID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(dto.Name)
	if err := s.checkFeatureName(ctx, "", dto.ModuleID, name); err != nil {
		return nil, err
	}

	feature := NewFeature(dto.ModuleID, name, dto.DisplayName, dto.Description)
	data := FeatureToDataModel(feature)
	if err := s.repo.CreateFeature(ctx, data); err != nil {
		return nil, s.internal("create feature", err)
	}

	s.logger.Info("feature created", "feature_id", data.ID, "module_id", data.ModuleID, "name", data.Name)
	return FeatureFromDataModel(data), nil
}

// ListFeatures returns active features, optionally narrowed to one module.
func (s *Service) ListFeatures(ctx context.Context, moduleID string) ([]*Feature, error) {
	data, err := s.repo.ListActiveFeatures(ctx, moduleID)
	if err != nil {
		return nil, s.internal("list features", err)
	}

	features := make([]*Feature, 0, len(data))
	for _, f := range data {
		features = append(features, FeatureFromDataModel(f))
	}
	return features, nil
}

func (s *Service) GetFeature(ctx context.Context, id string) (*Feature, error) {
	data, err := s.repo.GetFeatureByID(ctx, id)
	if err != nil {
		return nil, s.internal("get feature", err)
	}
	if data == nil {
		return nil, errors.NewNotFoundError("feature not found", errors.ErrCodeFeatureNotFound)
	}
	return FeatureFromDataModel(data), nil
}

func (s *Service) UpdateFeature(ctx context.Context, id string, dto FeatureDTO) (*Feature, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	data, err := s.repo.GetFeatureByID(ctx, id)
	if err != nil {
		return nil, s.internal("get feature", err)
	}
	if data == nil {
		return nil, errors.NewNotFoundError("feature not found", errors.ErrCodeFeatureNotFound)
	}
	if _, err := s.ActiveModule(ctx, dto.ModuleID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(dto.Name)
	if err := s.checkFeatureName(ctx, id, dto.ModuleID, name); err != nil {
		return nil, err
	}

	data.ModuleID = dto.ModuleID
	data.Name = name
	data.DisplayName = dto.DisplayName
	data.Description = dto.Description
	data.IsActive = true
	data.UpdatedAt = time.Now()

	if err := s.repo.UpdateFeature(ctx, data); err != nil {
		return nil, s.internal("update feature", err)
	}
	return FeatureFromDataModel(data), nil
}

func (s *Service) DeleteFeature(ctx context.Context, id string) error {
	data, err := s.repo.GetFeatureByID(ctx, id)
	if err != nil {
		return s.internal("get feature", err)
	}
	if data == nil {
		return errors.NewNotFoundError("feature not found", errors.ErrCodeFeatureNotFound)
	}

	if err := s.repo.DeactivateFeature(ctx, id); err != nil {
		return s.internal("deactivate feature", err)
	}
	s.logger.Info("feature deactivated", "feature_id", id)
	return nil
}

// Permission types

func (s *Service) CreatePermissionType(ctx context.Context, dto PermissionTypeDTO) (*PermissionType, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	name := strings.TrimSpace(dto.Name)
	if err := s.checkPermissionTypeCollision(ctx, "", name, *dto.BitPosition); err != nil {
		return nil, err
	}

	pt := NewPermissionType(name, dto.DisplayName, *dto.BitPosition)
	data := PermissionTypeToDataModel(pt)
	if err := s.repo.CreatePermissionType(ctx, data); err != nil {
		return nil, s.internal("create permission type", err)
	}

	s.logger.Info("permission type created", "permission_type_id", data.ID, "name", data.Name, "bit_position", data.BitPosition)
	return PermissionTypeFromDataModel(data), nil
}

// ListPermissionTypes returns active types ordered by bit position.
func (s *Service) ListPermissionTypes(ctx context.Context) ([]*PermissionType, error) {
	data, err := s.repo.ListActivePermissionTypes(ctx)
	if err != nil {
		return nil, s.internal("list permission types", err)
	}

	types := make([]*PermissionType, 0, len(data))
	for _, pt := range data {
		types = append(types, PermissionTypeFromDataModel(pt))
	}
	return types, nil
}

func (s *Service) GetPermissionType(ctx context.Context, id string) (*PermissionType, error) {
	data, err := s.repo.GetPermissionTypeByID(ctx, id)
	if err != nil {
		return nil, s.internal("get permission type", err)
	}
	if data == nil {
		return nil, errors.NewNotFoundError("permission type not found", errors.ErrCodePermissionTypeNotFound)
	}
	return PermissionTypeFromDataModel(data), nil
}

func (s *Service) UpdatePermissionType(ctx context.Context, id string, dto PermissionTypeDTO) (*PermissionType, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	data, err := s.repo.GetPermissionTypeByID(ctx, id)
	if err != nil {
		return nil, s.internal("get permission type", err)
	}
	if data == nil {
		return nil, errors.NewNotFoundError("permission type not found", errors.ErrCodePermissionTypeNotFound)
	}

	name := strings.TrimSpace(dto.Name)
	if err := s.checkPermissionTypeCollision(ctx, id, name, *dto.BitPosition); err != nil {
		return nil, err
	}

	data.Name = name
	data.DisplayName = dto.DisplayName
	data.BitPosition = *dto.BitPosition
	data.IsActive = true
	data.UpdatedAt = time.Now()

	if err := s.repo.UpdatePermissionType(ctx, data); err != nil {
		return nil, s.internal("update permission type", err)
	}
	return PermissionTypeFromDataModel(data), nil
}

func (s *Service) DeletePermissionType(ctx context.Context, id string) error {
	data, err := s.repo.GetPermissionTypeByID(ctx, id)
	if err != nil {
		return s.internal("get permission type", err)
	}
	if data == nil {
		return errors.NewNotFoundError("permission type not found", errors.ErrCodePermissionTypeNotFound)
	}

	if err := s.repo.DeactivatePermissionType(ctx, id); err != nil {
		return s.internal("deactivate permission type", err)
	}
	s.logger.Info("permission type deactivated", "permission_type_id", id, "bit_position", data.BitPosition)
	return nil
}

// SetupDefaultPermissionTypes creates Create/Read/Update/Delete on bits 0..3
// when no active permission type exists yet.
func (s *Service) SetupDefaultPermissionTypes(ctx context.Context) (*SetupDefaultsResponse, error) {
	count, err := s.repo.CountActivePermissionTypes(ctx)
	if err != nil {
		return nil, s.internal("count permission types", err)
	}
	if count > 0 {
		return &SetupDefaultsResponse{
			Created:  false,
			Existing: count,
			Message:  fmt.Sprintf("%d permission types already exist", count),
		}, nil
	}

	created := make([]*PermissionType, 0, len(DefaultPermissionTypes))
	for _, def := range DefaultPermissionTypes {
		data := PermissionTypeToDataModel(NewPermissionType(def.Name, def.DisplayName, def.BitPosition))
		if err := s.repo.CreatePermissionType(ctx, data); err != nil {
			return nil, s.internal("create default permission type", err)
		}
		created = append(created, PermissionTypeFromDataModel(data))
	}

	s.logger.Info("default permission types created", "count", len(created))
	return &SetupDefaultsResponse{
		Created: true,
		Types:   created,
		Message: "default permission types created",
	}, nil
}

// checkModuleName rejects a name held by another active module.
func (s *Service) checkModuleName(ctx context.Context, selfID, name string) error {
	clash, err := s.repo.GetActiveModuleByName(ctx, name)
	if err != nil {
		return s.internal("get module by name", err)
	}
	if clash != nil && clash.ID != selfID {
		return errors.NewConflictError(fmt.Sprintf("module %q already exists", name), errors.ErrCodeDuplicateName)
	}
	return nil
}

func (s *Service) checkFeatureName(ctx context.Context, selfID, moduleID, name string) error {
	clash, err := s.repo.GetActiveFeatureByName(ctx, moduleID, name)
	if err != nil {
		return s.internal("get feature by name", err)
	}
	if clash != nil && clash.ID != selfID {
		return errors.NewConflictError(
			fmt.Sprintf("feature %q already exists in module %s", name, moduleID), errors.ErrCodeDuplicateName)
	}
	return nil
}

func (s *Service) checkPermissionTypeCollision(ctx context.Context, selfID, name string, bit int) error {
	active, err := s.repo.ListActivePermissionTypes(ctx)
	if err != nil {
		return s.internal("list permission types", err)
	}

	for _, pt := range active {
		if pt.ID == selfID {
			continue
		}
		if strings.EqualFold(pt.Name, name) {
			return errors.NewReferenceError(
				fmt.Sprintf("permission type %q already exists", name), errors.ErrCodeDuplicateName)
		}
		if pt.BitPosition == bit {
			return errors.NewReferenceError(
				fmt.Sprintf("bit position %d is already used by %q", bit, pt.Name), errors.ErrCodeDuplicateBit)
		}
	}
	return nil
}

// Lookups used by the role store and the token issuer.

// ActiveModule returns a ReferenceError when id is unknown or inactive.
func (s *Service) ActiveModule(ctx context.Context, id string) (*Module, error) {
	data, err := s.repo.GetModuleByID(ctx, id)
	if err != nil {
		return nil, s.internal("get module", err)
	}
	if data == nil || !data.IsActive {
		return nil, errors.NewReferenceError(
			fmt.Sprintf("module %s does not exist or is inactive", id), errors.ErrCodeInvalidReference)
	}
	return ModuleFromDataModel(data), nil
}

// ActiveFeature also checks the feature belongs to moduleID.
func (s *Service) ActiveFeature(ctx context.Context, moduleID, id string) (*Feature, error) {
	data, err := s.repo.GetFeatureByID(ctx, id)
	if err != nil {
		return nil, s.internal("get feature", err)
	}
	if data == nil || !data.IsActive {
		return nil, errors.NewReferenceError(
			fmt.Sprintf("feature %s does not exist or is inactive", id), errors.ErrCodeInvalidReference)
	}
	if data.ModuleID != moduleID {
		return nil, errors.NewReferenceError(
			fmt.Sprintf("feature %s does not belong to module %s", id, moduleID), errors.ErrCodeInvalidReference)
	}
	return FeatureFromDataModel(data), nil
}

// ActivePermissionTypes indexes the active permission types by id.
func (s *Service) ActivePermissionTypes(ctx context.Context) (map[string]*PermissionType, error) {
	types, err := s.ListPermissionTypes(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*PermissionType, len(types))
	for _, pt := range types {
		byID[pt.ID] = pt
	}
	return byID, nil
}

func (s *Service) ModulesByIDs(ctx context.Context, ids []string) (map[string]*Module, error) {
	if len(ids) == 0 {
		return map[string]*Module{}, nil
	}
	data, err := s.repo.GetActiveModulesByIDs(ctx, ids)
	if err != nil {
		return nil, s.internal("get modules", err)
	}
	byID := make(map[string]*Module, len(data))
	for _, m := range data {
		byID[m.ID] = ModuleFromDataModel(m)
	}
	return byID, nil
}

func (s *Service) FeaturesByIDs(ctx context.Context, ids []string) (map[string]*Feature, error) {
	if len(ids) == 0 {
		return map[string]*Feature{}, nil
	}
	data, err := s.repo.GetActiveFeaturesByIDs(ctx, ids)
	if err != nil {
		return nil, s.internal("get features", err)
	}
	byID := make(map[string]*Feature, len(data))
	for _, f := range data {
		byID[f.ID] = FeatureFromDataModel(f)
	}
	return byID, nil
}
