package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/access-control/internal/auth"
	"github.com/frahmantamala/access-control/internal/catalog"
	"github.com/frahmantamala/access-control/internal/metrics"
	"github.com/frahmantamala/access-control/internal/role"
	"github.com/frahmantamala/access-control/internal/session"
	"github.com/frahmantamala/access-control/internal/transport/middleware"
	"github.com/frahmantamala/access-control/internal/transport/swagger"
	"github.com/frahmantamala/access-control/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Administrative endpoints are guarded by Administration.<Feature>.<Action>;
// the default seed catalog defines exactly these.
const (
	AdminModule = "Administration"

	FeatureModules         = "Modules"
	FeatureFeatures        = "Features"
	FeaturePermissionTypes = "PermissionTypes"
	FeatureRoles           = "Roles"
	FeatureUsers           = "Users"

	ActionCreate = "Create"
	ActionRead   = "Read"
	ActionUpdate = "Update"
	ActionDelete = "Delete"
)

type Handlers struct {
	Catalog *catalog.Handler
	Role    *role.Handler
	User    *user.Handler
	Session *session.Handler
	Health  *HealthHandler
}

type Options struct {
	Guard          *auth.Guard
	Metrics        *metrics.Metrics
	MetricsPath    string
	OpenAPI        []byte
	AllowedOrigins []string
	Logger         *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options) {
	guard := opts.Guard

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.ClientIP)
	router.Use(middleware.RecoveryMiddleware(opts.Logger))
	router.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.Metrics != nil {
		router.Use(opts.Metrics.Instrument)
	}

	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Method(http.MethodGet, path, opts.Metrics.Handler())
	}
	if len(opts.OpenAPI) > 0 {
		doc := opts.OpenAPI
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(doc)
		})
		router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.LoggingMiddleware(opts.Logger))

		r.Group(func(pub chi.Router) {
			pub.Use(guard.Anonymous())

			if h.Health != nil {
				pub.Get("/health", h.Health.healthCheckHandler)
				pub.Get("/ping", h.Health.pingHandler)
			}

			pub.Post("/auth/login", h.Session.Login)
			pub.Post("/auth/refresh", h.Session.Refresh)
			pub.Post("/auth/logout", h.Session.Logout)
			pub.Post("/auth/password/request-otp", h.Session.RequestResetOtp)
			pub.Post("/auth/password/verify-otp", h.Session.VerifyResetOtp)
			pub.Post("/auth/password/reset", h.Session.ResetPassword)
			pub.Get("/auth/oidc/login", h.Session.ExternalLogin)
			pub.Get("/auth/oidc/callback", h.Session.ExternalCallback)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(guard.Authenticated())

			pr.Get("/users/me", h.User.GetCurrentUser)

			pr.With(guard.Require(AdminModule, FeatureUsers, ActionCreate)).Post("/users", h.User.CreateUser)
			pr.With(guard.Require(AdminModule, FeatureUsers, ActionRead)).Get("/users/{id}", h.User.GetUser)

			pr.Route("/modules", func(mr chi.Router) {
				crud(mr, guard, FeatureModules, crudHandlers{
					create: h.Catalog.CreateModule,
					list:   h.Catalog.ListModules,
					get:    h.Catalog.GetModule,
					update: h.Catalog.UpdateModule,
					delete: h.Catalog.DeleteModule,
				})
			})

			pr.Route("/features", func(fr chi.Router) {
				crud(fr, guard, FeatureFeatures, crudHandlers{
					create: h.Catalog.CreateFeature,
					list:   h.Catalog.ListFeatures,
					get:    h.Catalog.GetFeature,
					update: h.Catalog.UpdateFeature,
					delete: h.Catalog.DeleteFeature,
				})
			})

			pr.Route("/permission-types", func(tr chi.Router) {
				tr.With(guard.Require(AdminModule, FeaturePermissionTypes, ActionCreate)).
					Post("/setup-defaults", h.Catalog.SetupDefaultPermissionTypes)
				crud(tr, guard, FeaturePermissionTypes, crudHandlers{
					create: h.Catalog.CreatePermissionType,
					list:   h.Catalog.ListPermissionTypes,
					get:    h.Catalog.GetPermissionType,
					update: h.Catalog.UpdatePermissionType,
					delete: h.Catalog.DeletePermissionType,
				})
			})

			pr.Route("/roles", func(rr chi.Router) {
				rr.With(guard.Require(AdminModule, FeatureRoles, ActionUpdate)).
					Post("/assign/{userId}", h.Role.AssignRoles)
				rr.With(guard.Require(AdminModule, FeatureRoles, ActionUpdate)).
					Post("/{id}/permissions", h.Role.AddPermissions)
				crud(rr, guard, FeatureRoles, crudHandlers{
					create: h.Role.CreateRole,
					list:   h.Role.ListRoles,
					get:    h.Role.GetRole,
					update: h.Role.UpdateRole,
					delete: h.Role.DeleteRole,
				})
			})
		})
	})
}

type crudHandlers struct {
	create, list, get, update, delete http.HandlerFunc
}

func crud(r chi.Router, guard *auth.Guard, feature string, h crudHandlers) {
	r.With(guard.Require(AdminModule, feature, ActionCreate)).Post("/", h.create)
	r.With(guard.Require(AdminModule, feature, ActionRead)).Get("/", h.list)
	r.With(guard.Require(AdminModule, feature, ActionRead)).Get("/{id}", h.get)
	r.With(guard.Require(AdminModule, feature, ActionUpdate)).Put("/{id}", h.update)
	r.With(guard.Require(AdminModule, feature, ActionDelete)).Delete("/{id}", h.delete)
}
