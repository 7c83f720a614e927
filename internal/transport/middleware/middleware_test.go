package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/transport/middleware"
	"github.com/frahmantamala/access-control/pkg/logger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var _ = Describe("LoggingMiddleware", func() {
	It("never writes secrets to the log", func() {
		var buf bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&buf, nil))

		handler := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			Expect(body["password"]).To(Equal("hunter2-secret"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"accessToken":"eyJ.jwt.value","refreshToken":"deadbeef"}`))
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"a@x.com","password":"hunter2-secret","otp":"493817","newPassword":"n3w-pass"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer eyJ.header.token")
		req.AddCookie(&http.Cookie{Name: "RefreshToken", Value: "cookie-secret"})
		handler.ServeHTTP(httptest.NewRecorder(), req)

		out := buf.String()
		Expect(out).To(ContainSubstring("a@x.com"))
		for _, secret := range []string{"hunter2-secret", "493817", "n3w-pass", "eyJ.header.token", "cookie-secret", "eyJ.jwt.value", "deadbeef"} {
			Expect(out).NotTo(ContainSubstring(secret))
		}
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("answers a generic 500 without the panic text", func() {
		handler := middleware.RecoveryMiddleware(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("db password is hunter2")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(ContainSubstring("internal server error"))
		Expect(rec.Body.String()).NotTo(ContainSubstring("hunter2"))
	})
})

var _ = Describe("CORS", func() {
	var handler http.Handler

	BeforeEach(func() {
		handler = middleware.CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	})

	It("answers preflight for allowed origins", func() {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/roles", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://app.example.com"))
		Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
	})

	It("does not grant other origins", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/roles", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})
})

var _ = Describe("RequestID and ClientIP", func() {
	It("exposes the request id and the caller address", func() {
		var ip string
		router := chi.NewRouter()
		router.Use(chiMiddleware.RequestID, chiMiddleware.RealIP, middleware.RequestID, middleware.ClientIP)
		router.Get("/", func(w http.ResponseWriter, r *http.Request) {
			ip = errors.ClientIPFromContext(r.Context())
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(ip).To(Equal("203.0.113.7"))
		Expect(rec.Header().Get(chiMiddleware.RequestIDHeader)).NotTo(BeEmpty())
	})
})
