package auth

import (
	"context"
	"log/slog"
	"sort"

	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/catalog"
	"github.com/frahmantamala/access-control/internal/permission"
	"github.com/frahmantamala/access-control/internal/role"
)

type RoleSource interface {
	ActiveRolesByIDs(ctx context.Context, ids []string) ([]*role.Role, error)
}

type CatalogSource interface {
	ModulesByIDs(ctx context.Context, ids []string) (map[string]*catalog.Module, error)
	FeaturesByIDs(ctx context.Context, ids []string) (map[string]*catalog.Feature, error)
	ActivePermissionTypes(ctx context.Context) (map[string]*catalog.PermissionType, error)
}

// Issuer flattens a user's active roles into a permission map and signs it
// into an access token. The map is a snapshot; later role edits only show up
// in the next token.
type Issuer struct {
	roles   RoleSource
	catalog CatalogSource
	tokens  TokenGenerator
	logger  *slog.Logger
}

func NewIssuer(roles RoleSource, catalog CatalogSource, tokens TokenGenerator, logger *slog.Logger) *Issuer {
	return &Issuer{
		roles:   roles,
		catalog: catalog,
		tokens:  tokens,
		logger:  logger,
	}
}

func (i *Issuer) Issue(ctx context.Context, identity Identity) (*AccessToken, error) {
	perms, roleNames, err := i.BuildPermissionMap(ctx, identity.RoleIDs)
	if err != nil {
		return nil, err
	}

	raw, err := perms.MarshalJSON()
	if err != nil {
		return nil, errors.NewInternalError("internal server error", err)
	}

	claims := &Claims{
		Email:          identity.Email,
		Name:           identity.Name,
		OrganizationID: identity.OrganizationID,
		Roles:          roleNames,
		Permissions:    raw,
	}
	claims.Subject = identity.UserID

	token, expiresAt, err := i.tokens.Sign(claims)
	if err != nil {
		i.logger.Error("failed to sign access token", "user_id", identity.UserID, "error", err)
		return nil, errors.NewInternalError("internal server error", err)
	}

	i.logger.Debug("access token issued",
		"user_id", identity.UserID,
		"roles", len(roleNames),
		"grants", len(perms.Triples()))

	return &AccessToken{Token: token, ExpiresAt: expiresAt, Claims: claims}, nil
}

// BuildPermissionMap unions the grants of every active role in roleIDs.
// Pairs whose module or feature is gone are skipped, as are bits with no
// active permission type. It also returns the sorted role names.
func (i *Issuer) BuildPermissionMap(ctx context.Context, roleIDs []string) (permission.Map, []string, error) {
	perms := permission.Map{}
	if len(roleIDs) == 0 {
		return perms, []string{}, nil
	}

	roles, err := i.roles.ActiveRolesByIDs(ctx, roleIDs)
	if err != nil {
		return nil, nil, err
	}

	type pair struct{ moduleID, featureID string }
	union := make(map[pair]permission.Mask)
	roleNames := make([]string, 0, len(roles))
	moduleIDs := []string{}
	featureIDs := []string{}

	for _, r := range roles {
		roleNames = append(roleNames, r.Name)
		for _, rp := range r.Permissions {
			key := pair{moduleID: rp.ModuleID, featureID: rp.FeatureID}
			if _, seen := union[key]; !seen {
				moduleIDs = append(moduleIDs, rp.ModuleID)
				featureIDs = append(featureIDs, rp.FeatureID)
			}
			union[key] |= rp.PermissionValue
		}
	}
	sort.Strings(roleNames)

	if len(union) == 0 {
		return perms, roleNames, nil
	}

	modules, err := i.catalog.ModulesByIDs(ctx, moduleIDs)
	if err != nil {
		return nil, nil, err
	}
	features, err := i.catalog.FeaturesByIDs(ctx, featureIDs)
	if err != nil {
		return nil, nil, err
	}
	activeTypes, err := i.catalog.ActivePermissionTypes(ctx)
	if err != nil {
		return nil, nil, err
	}

	types := make([]*catalog.PermissionType, 0, len(activeTypes))
	rank := make(map[string]int, len(activeTypes))
	for _, pt := range activeTypes {
		types = append(types, pt)
		rank[pt.Name] = pt.BitPosition
	}
	sort.Slice(types, func(a, b int) bool { return types[a].BitPosition < types[b].BitPosition })

	for key, mask := range union {
		module, ok := modules[key.moduleID]
		if !ok {
			continue
		}
		feature, ok := features[key.featureID]
		if !ok || feature.ModuleID != key.moduleID {
			// A feature moved to another module no longer resolves under the stored pair.
			continue
		}
		for _, pt := range types {
			if mask.Has(pt.BitPosition) {
				perms.Add(module.Name, feature.Name, pt.Name)
			}
		}
	}

	perms.Sort(func(action string) int {
		if r, ok := rank[action]; ok {
			return r
		}
		return permission.MaxBitPosition + 1
	})
	return perms, roleNames, nil
}
