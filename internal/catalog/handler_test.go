package catalog_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/access-control/internal/catalog"
	catalogPostgres "github.com/frahmantamala/access-control/internal/catalog/postgres"
	catalogDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/catalog"
	"github.com/frahmantamala/access-control/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ = Describe("Catalog Handler Integration", func() {
	var router *chi.Mux

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(io.Discard, nil))

		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		// each :memory: connection is its own database
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&catalogDatamodel.Module{}, &catalogDatamodel.Feature{}, &catalogDatamodel.PermissionType{})).To(Succeed())

		service := catalog.NewService(catalogPostgres.NewCatalogRepository(db), slogger)
		handler := catalog.NewHandler(&transport.BaseHandler{Logger: slogger}, service)

		router = chi.NewRouter()
		router.Post("/modules", handler.CreateModule)
		router.Get("/modules", handler.ListModules)
		router.Get("/modules/{id}", handler.GetModule)
		router.Delete("/modules/{id}", handler.DeleteModule)
		router.Post("/features", handler.CreateFeature)
		router.Post("/permission-types", handler.CreatePermissionType)
		router.Post("/permission-types/setup-defaults", handler.SetupDefaultPermissionTypes)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("creates, reads and soft deletes a module", func() {
		w := do(http.MethodPost, "/modules", `{"name":"Events","displayName":"Events"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

		var created catalog.Module
		Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())
		Expect(created.ID).NotTo(BeEmpty())

		w = do(http.MethodGet, "/modules/"+created.ID, "")
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodDelete, "/modules/"+created.ID, "")
		Expect(w.Code).To(Equal(http.StatusNoContent))

		w = do(http.MethodGet, "/modules", "")
		var list catalog.ModulesResponse
		Expect(json.NewDecoder(w.Body).Decode(&list)).To(Succeed())
		Expect(list.Modules).To(BeEmpty())
	})

	It("returns 404 for an unknown module", func() {
		w := do(http.MethodGet, "/modules/missing", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(w.Body.String()).To(ContainSubstring("MODULE_NOT_FOUND"))
	})

	It("returns 400 with a reference error for a feature on an unknown module", func() {
		w := do(http.MethodPost, "/features", `{"moduleId":"ghost","name":"EventMgmt"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("REFERENCE_ERROR"))
	})

	It("rejects malformed and unknown-field bodies", func() {
		w := do(http.MethodPost, "/modules", `{"name":`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		w = do(http.MethodPost, "/modules", `{"name":"Events","owner":"me"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("INVALID_BODY"))
	})

	It("rejects bit positions past 63", func() {
		w := do(http.MethodPost, "/permission-types", `{"name":"Huge","bitPosition":64}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("INVALID_BIT_POSITION"))
	})

	It("bootstraps default permission types exactly once", func() {
		w := do(http.MethodPost, "/permission-types/setup-defaults", "")
		Expect(w.Code).To(Equal(http.StatusCreated))

		w = do(http.MethodPost, "/permission-types/setup-defaults", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp catalog.SetupDefaultsResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Created).To(BeFalse())
		Expect(resp.Existing).To(Equal(int64(4)))
	})
})
