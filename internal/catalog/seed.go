package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed is the declarative catalog read from db/seed/catalog.yml.
type Seed struct {
	PermissionTypes []SeedPermissionType `yaml:"permission_types"`
	Modules         []SeedModule         `yaml:"modules"`
}

type SeedPermissionType struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	BitPosition int    `yaml:"bit_position"`
}

type SeedModule struct {
	Name        string        `yaml:"name"`
	DisplayName string        `yaml:"display_name"`
	Description string        `yaml:"description"`
	Features    []SeedFeature `yaml:"features"`
}

type SeedFeature struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
}

type SeedResult struct {
	PermissionTypesCreated int
	ModulesCreated         int
	FeaturesCreated        int
}

func LoadSeed(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		if err == io.EOF {
			return &seed, nil
		}
		return nil, fmt.Errorf("decode catalog seed: %w", err)
	}

	for i, m := range seed.Modules {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("catalog seed: module %d has no name", i)
		}
		for j, f := range m.Features {
			if strings.TrimSpace(f.Name) == "" {
				return nil, fmt.Errorf("catalog seed: feature %d of module %q has no name", j, m.Name)
			}
		}
	}
	return &seed, nil
}

// ApplySeed creates whatever the seed names that is not already active.
// Running it twice is a no-op.
func (s *Service) ApplySeed(ctx context.Context, seed *Seed) (*SeedResult, error) {
	result := &SeedResult{}

	existing, err := s.ActivePermissionTypes(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]bool, len(existing))
	for _, pt := range existing {
		byName[strings.ToLower(pt.Name)] = true
	}

	for _, def := range seed.PermissionTypes {
		if byName[strings.ToLower(def.Name)] {
			continue
		}
		bit := def.BitPosition
		if _, err := s.CreatePermissionType(ctx, PermissionTypeDTO{
			Name:        def.Name,
			DisplayName: def.DisplayName,
			BitPosition: &bit,
		}); err != nil {
			return nil, fmt.Errorf("seed permission type %q: %w", def.Name, err)
		}
		byName[strings.ToLower(def.Name)] = true
		result.PermissionTypesCreated++
	}

	for _, m := range seed.Modules {
		module, err := s.repo.GetActiveModuleByName(ctx, m.Name)
		if err != nil {
			return nil, s.internal("get module by name", err)
		}

		moduleID := ""
		if module != nil {
			moduleID = module.ID
		} else {
			created, err := s.CreateModule(ctx, ModuleDTO{
				Name:        m.Name,
				DisplayName: m.DisplayName,
				Description: m.Description,
			})
			if err != nil {
				return nil, fmt.Errorf("seed module %q: %w", m.Name, err)
			}
			moduleID = created.ID
			result.ModulesCreated++
		}

		for _, f := range m.Features {
			feature, err := s.repo.GetActiveFeatureByName(ctx, moduleID, f.Name)
			if err != nil {
				return nil, s.internal("get feature by name", err)
			}
			if feature != nil {
				continue
			}
			if _, err := s.CreateFeature(ctx, FeatureDTO{
				ModuleID:    moduleID,
				Name:        f.Name,
				DisplayName: f.DisplayName,
				Description: f.Description,
			}); err != nil {
				return nil, fmt.Errorf("seed feature %q: %w", f.Name, err)
			}
			result.FeaturesCreated++
		}
	}

	s.logger.Info("catalog seed applied",
		"permission_types_created", result.PermissionTypesCreated,
		"modules_created", result.ModulesCreated,
		"features_created", result.FeaturesCreated)
	return result, nil
}
