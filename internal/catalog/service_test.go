package catalog_test

import (
	"context"
	goerrors "errors"
	"io"
	"log/slog"
	"sort"
	"testing"

	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/catalog"
	catalogDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/catalog"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCatalogService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Catalog Service Suite")
}

// MockRepository implements catalog.RepositoryAPI for testing
type MockRepository struct {
	modules    map[string]*catalogDatamodel.Module
	features   map[string]*catalogDatamodel.Feature
	types      map[string]*catalogDatamodel.PermissionType
	shouldFail bool
	failError  error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		modules:  make(map[string]*catalogDatamodel.Module),
		features: make(map[string]*catalogDatamodel.Feature),
		types:    make(map[string]*catalogDatamodel.PermissionType),
	}
}

func (m *MockRepository) SetShouldFail(shouldFail bool, err error) {
	m.shouldFail = shouldFail
	m.failError = err
}

func (m *MockRepository) CreateModule(_ context.Context, module *catalogDatamodel.Module) error {
	if m.shouldFail {
		return m.failError
	}
	m.modules[module.ID] = module
	return nil
}

func (m *MockRepository) UpdateModule(_ context.Context, module *catalogDatamodel.Module) error {
	if m.shouldFail {
		return m.failError
	}
	m.modules[module.ID] = module
	return nil
}

func (m *MockRepository) GetModuleByID(_ context.Context, id string) (*catalogDatamodel.Module, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	if module, ok := m.modules[id]; ok {
		cp := *module
		return &cp, nil
	}
	return nil, nil
}

func (m *MockRepository) GetActiveModuleByName(_ context.Context, name string) (*catalogDatamodel.Module, error) {
	for _, module := range m.modules {
		if module.Name == name && module.IsActive {
			return module, nil
		}
	}
	return nil, nil
}

func (m *MockRepository) GetActiveModulesByIDs(_ context.Context, ids []string) ([]*catalogDatamodel.Module, error) {
	var result []*catalogDatamodel.Module
	for _, id := range ids {
		if module, ok := m.modules[id]; ok && module.IsActive {
			result = append(result, module)
		}
	}
	return result, nil
}

func (m *MockRepository) ListActiveModules(_ context.Context) ([]*catalogDatamodel.Module, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var result []*catalogDatamodel.Module
	for _, module := range m.modules {
		if module.IsActive {
			result = append(result, module)
		}
	}
	return result, nil
}

func (m *MockRepository) DeactivateModule(_ context.Context, id string) error {
	if module, ok := m.modules[id]; ok {
		module.IsActive = false
	}
	return nil
}

func (m *MockRepository) CreateFeature(_ context.Context, feature *catalogDatamodel.Feature) error {
	if m.shouldFail {
		return m.failError
	}
	m.features[feature.ID] = feature
	return nil
}

func (m *MockRepository) UpdateFeature(_ context.Context, feature *catalogDatamodel.Feature) error {
	m.features[feature.ID] = feature
	return nil
}

func (m *MockRepository) GetFeatureByID(_ context.Context, id string) (*catalogDatamodel.Feature, error) {
	if feature, ok := m.features[id]; ok {
		cp := *feature
		return &cp, nil
	}
	return nil, nil
}

func (m *MockRepository) GetActiveFeatureByName(_ context.Context, moduleID, name string) (*catalogDatamodel.Feature, error) {
	for _, feature := range m.features {
		if feature.ModuleID == moduleID && feature.Name == name && feature.IsActive {
			return feature, nil
		}
	}
	return nil, nil
}

func (m *MockRepository) GetActiveFeaturesByIDs(_ context.Context, ids []string) ([]*catalogDatamodel.Feature, error) {
	var result []*catalogDatamodel.Feature
	for _, id := range ids {
		if feature, ok := m.features[id]; ok && feature.IsActive {
			result = append(result, feature)
		}
	}
	return result, nil
}

func (m *MockRepository) ListActiveFeatures(_ context.Context, moduleID string) ([]*catalogDatamodel.Feature, error) {
	var result []*catalogDatamodel.Feature
	for _, feature := range m.features {
		if feature.IsActive && (moduleID == "" || feature.ModuleID == moduleID) {
			result = append(result, feature)
		}
	}
	return result, nil
}

func (m *MockRepository) DeactivateFeature(_ context.Context, id string) error {
	if feature, ok := m.features[id]; ok {
		feature.IsActive = false
	}
	return nil
}

func (m *MockRepository) CreatePermissionType(_ context.Context, pt *catalogDatamodel.PermissionType) error {
	if m.shouldFail {
		return m.failError
	}
	m.types[pt.ID] = pt
	return nil
}

func (m *MockRepository) UpdatePermissionType(_ context.Context, pt *catalogDatamodel.PermissionType) error {
	m.types[pt.ID] = pt
	return nil
}

func (m *MockRepository) GetPermissionTypeByID(_ context.Context, id string) (*catalogDatamodel.PermissionType, error) {
	if pt, ok := m.types[id]; ok {
		cp := *pt
		return &cp, nil
	}
	return nil, nil
}

func (m *MockRepository) ListActivePermissionTypes(_ context.Context) ([]*catalogDatamodel.PermissionType, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var result []*catalogDatamodel.PermissionType
	for _, pt := range m.types {
		if pt.IsActive {
			result = append(result, pt)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BitPosition < result[j].BitPosition })
	return result, nil
}

func (m *MockRepository) CountActivePermissionTypes(ctx context.Context) (int64, error) {
	types, err := m.ListActivePermissionTypes(ctx)
	return int64(len(types)), err
}

func (m *MockRepository) DeactivatePermissionType(_ context.Context, id string) error {
	if pt, ok := m.types[id]; ok {
		pt.IsActive = false
	}
	return nil
}

func bit(n int) *int { return &n }

func appErrOf(err error) *errors.AppError {
	appErr, ok := errors.IsAppError(err)
	Expect(ok).To(BeTrue(), "expected an AppError, got %v", err)
	return appErr
}

var _ = Describe("Catalog Service", func() {
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

	Describe("Modules", func() {
		It("creates an active module with a fresh id", func() {
			module, err := service.CreateModule(ctx, catalog.ModuleDTO{Name: "Events", DisplayName: "Events"})
			Expect(err).NotTo(HaveOccurred())
			Expect(module.ID).NotTo(BeEmpty())
			Expect(module.IsActive).To(BeTrue())
		})

		It("rejects an empty name with a validation error", func() {
			_, err := service.CreateModule(ctx, catalog.ModuleDTO{Name: "  "})
			Expect(appErrOf(err).Type).To(Equal(errors.ErrorTypeValidation))
		})

		It("soft deletes and hides the module from listings", func() {
			module, err := service.CreateModule(ctx, catalog.ModuleDTO{Name: "Events"})
			Expect(err).NotTo(HaveOccurred())

			Expect(service.DeleteModule(ctx, module.ID)).To(Succeed())

			modules, err := service.ListModules(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(modules).To(BeEmpty())

			stored, err := service.GetModule(ctx, module.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.IsActive).To(BeFalse())
		})

		It("rejects a second active module with the same name", func() {
			_, err := service.CreateModule(ctx, catalog.ModuleDTO{Name: "Events"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CreateModule(ctx, catalog.ModuleDTO{Name: " Events "})
			appErr := appErrOf(err)
			Expect(appErr.Type).To(Equal(errors.ErrorTypeConflict))
			Expect(appErr.Code).To(Equal(errors.ErrCodeDuplicateName))
			Expect(appErr.Message).To(ContainSubstring("Events"))
			Expect(mockRepo.modules).To(HaveLen(1))
		})

		It("lets a module keep its own name on update but not take another's", func() {
			events, err := service.CreateModule(ctx, catalog.ModuleDTO{Name: "Events"})
			Expect(err).NotTo(HaveOccurred())
			docs, err := service.CreateModule(ctx, catalog.ModuleDTO{Name: "Docs"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.UpdateModule(ctx, events.ID, catalog.ModuleDTO{Name: "Events", DisplayName: "All events"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.UpdateModule(ctx, docs.ID, catalog.ModuleDTO{Name: "Events"})
			Expect(appErrOf(err).Type).To(Equal(errors.ErrorTypeConflict))
		})

		It("refuses to reactivate a module whose name is taken again", func() {
			old, err := service.CreateModule(ctx, catalog.ModuleDTO{Name: "Events"})
			Expect(err).NotTo(HaveOccurred())
			Expect(service.DeleteModule(ctx, old.ID)).To(Succeed())
			_, err = service.CreateModule(ctx, catalog.ModuleDTO{Name: "Events"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.UpdateModule(ctx, old.ID, catalog.ModuleDTO{Name: "Events"})
			Expect(appErrOf(err).Type).To(Equal(errors.ErrorTypeConflict))

			stored, err := service.GetModule(ctx, old.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.IsActive).To(BeFalse())
		})

		It("reports NOT_FOUND for an unknown id", func() {
			_, err := service.UpdateModule(ctx, "missing", catalog.ModuleDTO{Name: "Events"})
			Expect(appErrOf(err).Type).To(Equal(errors.ErrorTypeNotFound))

			err = service.DeleteModule(ctx, "missing")
			Expect(appErrOf(err).Type).To(Equal(errors.ErrorTypeNotFound))
		})

		It("hides repository failures behind a generic internal error", func() {
			mockRepo.SetShouldFail(true, goerrors.New("pq: connection refused"))

			_, err := service.ListModules(ctx)
			appErr := appErrOf(err)
			Expect(appErr.Type).To(Equal(errors.ErrorTypeInternal))
			Expect(appErr.Message).NotTo(ContainSubstring("pq"))
		})
	})

	Describe("Features", func() {
		var module *catalog.Module

		BeforeEach(func() {
			var err error
			module, err = service.CreateModule(ctx, catalog.ModuleDTO{Name: "Events"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("creates a feature under an active module", func() {
			feature, err := service.CreateFeature(ctx, catalog.FeatureDTO{ModuleID: module.ID, Name: "EventMgmt"})
			Expect(err).NotTo(HaveOccurred())
			Expect(feature.ModuleID).To(Equal(module.ID))
		})

		It("rejects an unknown module with a reference error", func() {
			_, err := service.CreateFeature(ctx, catalog.FeatureDTO{ModuleID: "nope", Name: "EventMgmt"})
			appErr := appErrOf(err)
			Expect(appErr.Type).To(Equal(errors.ErrorTypeReference))
			Expect(appErr.Message).To(ContainSubstring("nope"))
		})

		It("rejects an inactive module with a reference error", func() {
			Expect(service.DeleteModule(ctx, module.ID)).To(Succeed())

			_, err := service.CreateFeature(ctx, catalog.FeatureDTO{ModuleID: module.ID, Name: "EventMgmt"})
			Expect(appErrOf(err).Type).To(Equal(errors.ErrorTypeReference))
			Expect(mockRepo.features).To(BeEmpty())
		})

		It("rejects a duplicate feature name within one module only", func() {
			first, err := service.CreateFeature(ctx, catalog.FeatureDTO{ModuleID: module.ID, Name: "EventMgmt"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CreateFeature(ctx, catalog.FeatureDTO{ModuleID: module.ID, Name: "EventMgmt"})
			appErr := appErrOf(err)
			Expect(appErr.Type).To(Equal(errors.ErrorTypeConflict))
			Expect(appErr.Code).To(Equal(errors.ErrCodeDuplicateName))

			other, err := service.CreateModule(ctx, catalog.ModuleDTO{Name: "Docs"})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CreateFeature(ctx, catalog.FeatureDTO{ModuleID: other.ID, Name: "EventMgmt"})
			Expect(err).NotTo(HaveOccurred())

			second, err := service.CreateFeature(ctx, catalog.FeatureDTO{ModuleID: module.ID, Name: "Tickets"})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.UpdateFeature(ctx, second.ID, catalog.FeatureDTO{ModuleID: module.ID, Name: "EventMgmt"})
			Expect(appErrOf(err).Type).To(Equal(errors.ErrorTypeConflict))

			_, err = service.UpdateFeature(ctx, first.ID, catalog.FeatureDTO{ModuleID: module.ID, Name: "EventMgmt", DisplayName: "Events"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("filters listings by module", func() {
			other, err := service.CreateModule(ctx, catalog.ModuleDTO{Name: "Docs"})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CreateFeature(ctx, catalog.FeatureDTO{ModuleID: module.ID, Name: "EventMgmt"})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CreateFeature(ctx, catalog.FeatureDTO{ModuleID: other.ID, Name: "Files"})
			Expect(err).NotTo(HaveOccurred())

			features, err := service.ListFeatures(ctx, other.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(features).To(HaveLen(1))
			Expect(features[0].Name).To(Equal("Files"))

			all, err := service.ListFeatures(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})

		It("checks that a feature belongs to the given module", func() {
			other, err := service.CreateModule(ctx, catalog.ModuleDTO{Name: "Docs"})
			Expect(err).NotTo(HaveOccurred())
			feature, err := service.CreateFeature(ctx, catalog.FeatureDTO{ModuleID: module.ID, Name: "EventMgmt"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ActiveFeature(ctx, other.ID, feature.ID)
			Expect(appErrOf(err).Type).To(Equal(errors.ErrorTypeReference))

			found, err := service.ActiveFeature(ctx, module.ID, feature.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Name).To(Equal("EventMgmt"))
		})
	})

	Describe("Permission types", func() {
		It("creates a permission type on a free bit", func() {
			pt, err := service.CreatePermissionType(ctx, catalog.PermissionTypeDTO{Name: "Approve", BitPosition: bit(4)})
			Expect(err).NotTo(HaveOccurred())
			Expect(pt.BitPosition).To(Equal(4))
		})

		DescribeTable("rejects bits outside 0..63 with a validation error",
			func(b *int) {
				_, err := service.CreatePermissionType(ctx, catalog.PermissionTypeDTO{Name: "X", BitPosition: b})
				Expect(appErrOf(err).Type).To(Equal(errors.ErrorTypeValidation))
				Expect(mockRepo.types).To(BeEmpty())
			},
			Entry("missing", nil),
			Entry("negative", bit(-1)),
			Entry("past the ceiling", bit(64)),
		)

		It("accepts the highest bit", func() {
			_, err := service.CreatePermissionType(ctx, catalog.PermissionTypeDTO{Name: "Top", BitPosition: bit(63)})
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects a bit already used by an active type", func() {
			_, err := service.CreatePermissionType(ctx, catalog.PermissionTypeDTO{Name: "Create", BitPosition: bit(0)})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CreatePermissionType(ctx, catalog.PermissionTypeDTO{Name: "Approve", BitPosition: bit(0)})
			appErr := appErrOf(err)
			Expect(appErr.Type).To(Equal(errors.ErrorTypeReference))
			Expect(appErr.Code).To(Equal(errors.ErrCodeDuplicateBit))
		})

		It("rejects a name already used by an active type", func() {
			_, err := service.CreatePermissionType(ctx, catalog.PermissionTypeDTO{Name: "Create", BitPosition: bit(0)})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CreatePermissionType(ctx, catalog.PermissionTypeDTO{Name: "create", BitPosition: bit(5)})
			Expect(appErrOf(err).Code).To(Equal(errors.ErrCodeDuplicateName))
		})

		It("frees the bit once the holder is deactivated", func() {
			pt, err := service.CreatePermissionType(ctx, catalog.PermissionTypeDTO{Name: "Create", BitPosition: bit(0)})
			Expect(err).NotTo(HaveOccurred())
			Expect(service.DeletePermissionType(ctx, pt.ID)).To(Succeed())

			replacement, err := service.CreatePermissionType(ctx, catalog.PermissionTypeDTO{Name: "Create", BitPosition: bit(0)})
			Expect(err).NotTo(HaveOccurred())
			Expect(replacement.ID).NotTo(Equal(pt.ID))
		})

		It("lets an update keep its own bit", func() {
			pt, err := service.CreatePermissionType(ctx, catalog.PermissionTypeDTO{Name: "Create", BitPosition: bit(0)})
			Expect(err).NotTo(HaveOccurred())

			updated, err := service.UpdatePermissionType(ctx, pt.ID, catalog.PermissionTypeDTO{Name: "Create", DisplayName: "Add", BitPosition: bit(0)})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.DisplayName).To(Equal("Add"))
		})
	})

	Describe("SetupDefaultPermissionTypes", func() {
		It("creates the four defaults on an empty catalog", func() {
			resp, err := service.SetupDefaultPermissionTypes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Created).To(BeTrue())

			types, err := service.ListPermissionTypes(ctx)
			Expect(err).NotTo(HaveOccurred())
			names := []string{}
			bits := []int{}
			for _, pt := range types {
				names = append(names, pt.Name)
				bits = append(bits, pt.BitPosition)
			}
			Expect(names).To(Equal([]string{"Create", "Read", "Update", "Delete"}))
			Expect(bits).To(Equal([]int{0, 1, 2, 3}))
		})

		It("is a no-op reporting the existing count when any active type exists", func() {
			_, err := service.CreatePermissionType(ctx, catalog.PermissionTypeDTO{Name: "Approve", BitPosition: bit(7)})
			Expect(err).NotTo(HaveOccurred())

			resp, err := service.SetupDefaultPermissionTypes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Created).To(BeFalse())
			Expect(resp.Existing).To(Equal(int64(1)))
			Expect(mockRepo.types).To(HaveLen(1))
		})

		It("runs only once", func() {
			_, err := service.SetupDefaultPermissionTypes(ctx)
			Expect(err).NotTo(HaveOccurred())
			resp, err := service.SetupDefaultPermissionTypes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Created).To(BeFalse())
			Expect(resp.Existing).To(Equal(int64(4)))
		})
	})

	Describe("Lookups", func() {
		It("indexes only active modules by id", func() {
			active, err := service.CreateModule(ctx, catalog.ModuleDTO{Name: "Events"})
			Expect(err).NotTo(HaveOccurred())
			gone, err := service.CreateModule(ctx, catalog.ModuleDTO{Name: "Old"})
			Expect(err).NotTo(HaveOccurred())
			Expect(service.DeleteModule(ctx, gone.ID)).To(Succeed())

			byID, err := service.ModulesByIDs(ctx, []string{active.ID, gone.ID, "unknown"})
			Expect(err).NotTo(HaveOccurred())
			Expect(byID).To(HaveLen(1))
			Expect(byID).To(HaveKey(active.ID))
		})
	})
})
