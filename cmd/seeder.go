package cmd

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/frahmantamala/access-control/db/seed"
	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/catalog"
	catalogPostgres "github.com/frahmantamala/access-control/internal/catalog/postgres"
	"github.com/frahmantamala/access-control/internal/core/events"
	"github.com/frahmantamala/access-control/internal/role"
	rolePostgres "github.com/frahmantamala/access-control/internal/role/postgres"
	"github.com/frahmantamala/access-control/internal/user"
	userPostgres "github.com/frahmantamala/access-control/internal/user/postgres"
	"github.com/frahmantamala/access-control/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const AdministratorRole = "Administrator"

var (
	seedCatalogFile string
	seedAdminEmail  string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the permission catalog and an administrator",
	Long: `Apply the default permission catalog (or --catalog), grant every action of every
feature to the Administrator role and make sure the administrator account holds it.
The administrator password is read from ADMIN_PASSWORD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		setupLogger(cfg)
		lg := logger.LoggerWrapper()

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		db, err := initGorm(sqlDB)
		if err != nil {
			return err
		}

		var src io.Reader = bytes.NewReader(seed.Catalog)
		if seedCatalogFile != "" {
			f, err := os.Open(seedCatalogFile)
			if err != nil {
				return fmt.Errorf("open catalog seed: %w", err)
			}
			defer f.Close()
			src = f
		}

		s := newSeeder(db, cfg.Security.BCryptCost, lg)
		return s.Run(ctx, src, seedAdminEmail, os.Getenv("ADMIN_PASSWORD"))
	},
}

type seeder struct {
	catalog *catalog.Service
	roles   *role.Service
	users   *user.Service
	bus     *events.EventBus
	logger  *slog.Logger
}

func newSeeder(db *gorm.DB, bcryptCost int, lg *slog.Logger) *seeder {
	bus := events.NewEventBus(lg)
	userRepo := userPostgres.NewUserRepository(db)
	catalogService := catalog.NewService(catalogPostgres.NewCatalogRepository(db), lg)
	roleService := role.NewService(rolePostgres.NewRoleRepository(db), userRepo, catalogService, bus, lg)
	return &seeder{
		catalog: catalogService,
		roles:   roleService,
		users:   user.NewService(userRepo, roleService, bcryptCost, lg),
		bus:     bus,
		logger:  lg,
	}
}

// Run is idempotent: a second run only tops up missing grants.
func (s *seeder) Run(ctx context.Context, catalogSrc io.Reader, adminEmail, adminPassword string) error {
	catalogSeed, err := catalog.LoadSeed(catalogSrc)
	if err != nil {
		return err
	}
	result, err := s.catalog.ApplySeed(ctx, catalogSeed)
	if err != nil {
		return err
	}
	s.logger.Info("catalog seeded",
		"permission_types_created", result.PermissionTypesCreated,
		"modules_created", result.ModulesCreated,
		"features_created", result.FeaturesCreated)

	admin, err := s.ensureAdministratorRole(ctx)
	if err != nil {
		return err
	}

	if adminEmail != "" {
		if err := s.ensureAdministrator(ctx, adminEmail, adminPassword, admin.ID); err != nil {
			return err
		}
	}
	return s.bus.Wait(ctx)
}

func (s *seeder) fullAccess(ctx context.Context) ([]role.PermissionEntryDTO, error) {
	types, err := s.catalog.ListPermissionTypes(ctx)
	if err != nil {
		return nil, err
	}
	flags := make([]role.PermissionFlagDTO, 0, len(types))
	for _, t := range types {
		flags = append(flags, role.PermissionFlagDTO{PermissionTypeID: t.ID, IsGranted: true})
	}

	modules, err := s.catalog.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	var entries []role.PermissionEntryDTO
	for _, m := range modules {
		features, err := s.catalog.ListFeatures(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range features {
			entries = append(entries, role.PermissionEntryDTO{
				ModuleID:        m.ID,
				FeatureID:       f.ID,
				PermissionFlags: flags,
			})
		}
	}
	return entries, nil
}

func (s *seeder) ensureAdministratorRole(ctx context.Context) (*role.Role, error) {
	entries, err := s.fullAccess(ctx)
	if err != nil {
		return nil, err
	}
	dto := role.RoleDTO{
		Name:        AdministratorRole,
		DisplayName: "Administrator",
		Description: "Every action on every feature",
		Permissions: entries,
	}

	existing, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.Name == AdministratorRole {
			updated, err := s.roles.UpdateRole(ctx, r.ID, dto)
			if err != nil {
				return nil, err
			}
			s.logger.Info("administrator role refreshed", "role_id", updated.ID, "grants", len(entries))
			return updated, nil
		}
	}

	created, err := s.roles.CreateRole(ctx, dto)
	if err != nil {
		return nil, err
	}
	s.logger.Info("administrator role created", "role_id", created.ID, "grants", len(entries))
	return created, nil
}

func (s *seeder) ensureAdministrator(ctx context.Context, email, password, roleID string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if slices.Contains(existing.RoleIDs, roleID) {
			return nil
		}
		if _, err := s.roles.AssignRoleToUser(ctx, existing.ID, role.AssignRolesDTO{
			RoleIDs: append(slices.Clone(existing.RoleIDs), roleID),
		}); err != nil {
			return err
		}
		s.logger.Info("administrator role granted", "user_id", existing.ID)
		return nil
	case !stdErrors.Is(err, errors.ErrUserNotFound):
		return err
	}

	if password == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required to create %s", email)
	}
	created, err := s.users.CreateUser(ctx, user.CreateUserDTO{
		Email:     email,
		Password:  password,
		FirstName: "Administrator",
		RoleIDs:   []string{roleID},
	})
	if err != nil {
		return err
	}
	s.logger.Info("administrator created", "user_id", created.ID)
	return nil
}

func init() {
	seedCmd.Flags().StringVar(&seedCatalogFile, "catalog", "", "catalog seed file (defaults to the embedded db/seed/catalog.yml)")
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@example.com", "administrator account to create or upgrade")
}
