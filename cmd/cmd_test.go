package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/frahmantamala/access-control/db/seed"
	catalogDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/catalog"
	roleDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/role"
	userDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/user"
	"github.com/frahmantamala/access-control/internal/permission"
	"github.com/frahmantamala/access-control/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func TestCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cmd Suite")
}

var _ = Describe("loadConfig", func() {
	It("reads config.yml and fills defaults", func() {
		GinkgoT().Setenv("APP_ENV", "")
		GinkgoT().Setenv("DOCKER_ENV", "")

		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(`
database:
  source: postgres://localhost/access_control
security:
  access_token_secret: 0123456789abcdef0123456789abcdef
  bcrypt_cost: 10
`), 0o600)).To(Succeed())

		cfg, err := loadConfig(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Security.AccessTokenDuration).To(Equal(15 * time.Minute))
		Expect(cfg.Security.OTPLength).To(Equal(6))
		Expect(cfg.Mail.Driver).To(Equal("log"))
		Expect(cfg.Observability.Metrics.Path).To(Equal("/metrics"))
	})

	It("rejects a short signing secret", func() {
		GinkgoT().Setenv("APP_ENV", "")
		GinkgoT().Setenv("DOCKER_ENV", "")

		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(`
database:
  source: postgres://localhost/access_control
security:
  access_token_secret: short
`), 0o600)).To(Succeed())

		_, err := loadConfig(dir)
		Expect(err).To(MatchError(ContainSubstring("access_token_secret")))
	})
})

var _ = Describe("seeder", func() {
	var (
		ctx context.Context
		s   *seeder
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&catalogDatamodel.Module{}, &catalogDatamodel.Feature{}, &catalogDatamodel.PermissionType{},
			&roleDatamodel.Role{}, &userDatamodel.User{})).To(Succeed())

		s = newSeeder(db, bcrypt.MinCost, logger.Discard())
	})

	It("grants the administrator every action on every feature", func() {
		Expect(s.Run(ctx, bytes.NewReader(seed.Catalog), "admin@x.com", "correct-password")).To(Succeed())

		roles, err := s.roles.ListRoles(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(roles).To(HaveLen(1))
		Expect(roles[0].Name).To(Equal(AdministratorRole))
		Expect(roles[0].Permissions).To(HaveLen(5))
		for _, p := range roles[0].Permissions {
			Expect(p.PermissionValue).To(Equal(permission.Mask(0b1111)))
		}

		admin, err := s.users.GetByEmail(ctx, "admin@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(admin.RoleIDs).To(ConsistOf(roles[0].ID))
	})

	It("is idempotent", func() {
		Expect(s.Run(ctx, bytes.NewReader(seed.Catalog), "admin@x.com", "correct-password")).To(Succeed())
		Expect(s.Run(ctx, bytes.NewReader(seed.Catalog), "admin@x.com", "")).To(Succeed())

		roles, err := s.roles.ListRoles(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(roles).To(HaveLen(1))

		modules, err := s.catalog.ListModules(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(modules).To(HaveLen(1))

		admin, err := s.users.GetByEmail(ctx, "admin@x.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(admin.RoleIDs).To(HaveLen(1))
	})

	It("needs a password to create a missing administrator", func() {
		err := s.Run(ctx, bytes.NewReader(seed.Catalog), "admin@x.com", "")
		Expect(err).To(MatchError(ContainSubstring("ADMIN_PASSWORD")))
	})
})
