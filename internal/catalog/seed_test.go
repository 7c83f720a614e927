package catalog_test

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/frahmantamala/access-control/internal/catalog"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const seedYAML = `
permission_types:
  - name: Create
    display_name: Create
    bit_position: 0
  - name: Read
    display_name: Read
    bit_position: 1
modules:
  - name: Administration
    display_name: Administration
    features:
      - name: Roles
      - name: Users
`

var _ = Describe("Catalog seed", func() {
	var (
		ctx      context.Context
		mockRepo *MockRepository
		service  *catalog.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockRepo = NewMockRepository()
		service = catalog.NewService(mockRepo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	It("parses the declarative catalog", func() {
		seed, err := catalog.LoadSeed(strings.NewReader(seedYAML))
		Expect(err).NotTo(HaveOccurred())
		Expect(seed.PermissionTypes).To(HaveLen(2))
		Expect(seed.Modules).To(HaveLen(1))
		Expect(seed.Modules[0].Features).To(HaveLen(2))
	})

	It("rejects unknown keys", func() {
		_, err := catalog.LoadSeed(strings.NewReader("modules:\n  - name: A\n    colour: red\n"))
		Expect(err).To(HaveOccurred())
	})

	It("rejects a module without a name", func() {
		_, err := catalog.LoadSeed(strings.NewReader("modules:\n  - display_name: A\n"))
		Expect(err).To(MatchError(ContainSubstring("has no name")))
	})

	It("creates everything once and nothing on the second run", func() {
		seed, err := catalog.LoadSeed(strings.NewReader(seedYAML))
		Expect(err).NotTo(HaveOccurred())

		result, err := service.ApplySeed(ctx, seed)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.PermissionTypesCreated).To(Equal(2))
		Expect(result.ModulesCreated).To(Equal(1))
		Expect(result.FeaturesCreated).To(Equal(2))

		again, err := service.ApplySeed(ctx, seed)
		Expect(err).NotTo(HaveOccurred())
		Expect(*again).To(Equal(catalog.SeedResult{}))
		Expect(mockRepo.modules).To(HaveLen(1))
		Expect(mockRepo.features).To(HaveLen(2))
	})

	It("fails when a seeded bit is taken by another active type", func() {
		_, err := service.CreatePermissionType(ctx, catalog.PermissionTypeDTO{Name: "Approve", BitPosition: bit(0)})
		Expect(err).NotTo(HaveOccurred())

		seed, err := catalog.LoadSeed(strings.NewReader(seedYAML))
		Expect(err).NotTo(HaveOccurred())

		_, err = service.ApplySeed(ctx, seed)
		Expect(err).To(MatchError(ContainSubstring("bit position 0")))
	})
})
