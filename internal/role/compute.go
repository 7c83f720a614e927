package role

import (
	"context"
	"fmt"

	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/catalog"
	"github.com/frahmantamala/access-control/internal/permission"
)

// CatalogAPI is the part of the permission catalog the role store validates
// against.
type CatalogAPI interface {
	ActiveModule(ctx context.Context, id string) (*catalog.Module, error)
	ActiveFeature(ctx context.Context, moduleID, id string) (*catalog.Feature, error)
	ActivePermissionTypes(ctx context.Context) (map[string]*catalog.PermissionType, error)
}

type pairKey struct {
	moduleID  string
	featureID string
}

// computePermissions resolves every id in entries and folds granted flags
// into one mask per (module, feature) pair. Nothing is written here; any bad
// reference aborts the whole request. A pair submitted twice keeps its first
// position and the value of its last occurrence.
func (s *Service) computePermissions(ctx context.Context, entries []PermissionEntryDTO) ([]RolePermission, error) {
	types, err := s.catalog.ActivePermissionTypes(ctx)
	if err != nil {
		return nil, err
	}

	checkedModules := make(map[string]bool)
	checkedFeatures := make(map[pairKey]bool)

	result := make([]RolePermission, 0, len(entries))
	index := make(map[pairKey]int, len(entries))

	for _, entry := range entries {
		if !checkedModules[entry.ModuleID] {
			if _, err := s.catalog.ActiveModule(ctx, entry.ModuleID); err != nil {
				return nil, err
			}
			checkedModules[entry.ModuleID] = true
		}

		key := pairKey{moduleID: entry.ModuleID, featureID: entry.FeatureID}
		if !checkedFeatures[key] {
			if _, err := s.catalog.ActiveFeature(ctx, entry.ModuleID, entry.FeatureID); err != nil {
				return nil, err
			}
			checkedFeatures[key] = true
		}

		var mask permission.Mask
		for _, flag := range entry.PermissionFlags {
			pt, ok := types[flag.PermissionTypeID]
			if !ok {
				return nil, errors.NewReferenceError(
					fmt.Sprintf("permission type %s does not exist or is inactive", flag.PermissionTypeID),
					errors.ErrCodeInvalidReference)
			}
			if !flag.IsGranted {
				continue
			}
			mask, err = mask.With(pt.BitPosition)
			if err != nil {
				return nil, errors.NewValidationError(err.Error(), errors.ErrCodeInvalidBit)
			}
		}

		rp := RolePermission{ModuleID: entry.ModuleID, FeatureID: entry.FeatureID, PermissionValue: mask}
		if i, seen := index[key]; seen {
			result[i] = rp
			continue
		}
		index[key] = len(result)
		result = append(result, rp)
	}

	return result, nil
}

// mergePermissions overwrites the value of pairs already on the role and
// appends the rest.
func mergePermissions(existing, incoming []RolePermission) []RolePermission {
	merged := make([]RolePermission, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	index := make(map[pairKey]int, len(merged))
	for i, p := range merged {
		index[pairKey{moduleID: p.ModuleID, featureID: p.FeatureID}] = i
	}

	for _, p := range incoming {
		key := pairKey{moduleID: p.ModuleID, featureID: p.FeatureID}
		if i, ok := index[key]; ok {
			merged[i].PermissionValue = p.PermissionValue
			continue
		}
		index[key] = len(merged)
		merged = append(merged, p)
	}
	return merged
}
