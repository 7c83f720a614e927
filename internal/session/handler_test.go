package session_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/access-control/internal/auth"
	"github.com/frahmantamala/access-control/internal/session"
	"github.com/frahmantamala/access-control/internal/transport"
	"github.com/frahmantamala/access-control/internal/user"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = Describe("Session Handler", func() {
	var (
		router  *chi.Mux
		users   *MockUserRepository
		userID  string
		manager *session.Manager
	)

	BeforeEach(func() {
		users = NewMockUserRepository()
		hash, err := user.HashPassword("correct-password", bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		u := user.ToDataModel(user.NewUser("a@x.com", "Ada", "", hash, "", nil))
		userID = u.ID
		Expect(users.Create(context.Background(), u)).To(Succeed())

		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		manager = session.NewManager(users, &MockOTPRepository{}, &fakeIssuer{}, &recordingPublisher{},
			session.Config{BCryptCost: bcrypt.MinCost}, log,
			session.WithExternalProvider(&fakeProvider{identity: &session.ExternalIdentity{Email: "a@x.com", EmailVerified: true}}))
		handler := session.NewHandler(transport.NewBaseHandler(log), manager, session.CookieConfig{Secure: true})

		router = chi.NewRouter()
		router.Post("/auth/login", handler.Login)
		router.Post("/auth/refresh", handler.Refresh)
		router.With(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := auth.ContextWithPrincipal(r.Context(), &auth.Principal{UserID: userID})
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		}).Post("/auth/logout", handler.Logout)
		router.Post("/auth/password/verify-otp", handler.VerifyResetOtp)
		router.Get("/auth/oidc/login", handler.ExternalLogin)
		router.Get("/auth/oidc/callback", handler.ExternalCallback)
	})

	cookieNamed := func(res *http.Response, name string) *http.Cookie {
		for _, c := range res.Cookies() {
			if c.Name == name {
				return c
			}
		}
		return nil
	}

	login := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"a@x.com","password":"correct-password"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("sets strict http-only cookies on login", func() {
		rec := login()
		Expect(rec.Code).To(Equal(http.StatusOK))

		var pair session.TokenPair
		Expect(json.Unmarshal(rec.Body.Bytes(), &pair)).To(Succeed())
		Expect(pair.RefreshToken).NotTo(BeEmpty())

		for _, name := range []string{transport.AccessTokenCookie, transport.RefreshTokenCookie} {
			c := cookieNamed(rec.Result(), name)
			Expect(c).NotTo(BeNil(), name)
			Expect(c.HttpOnly).To(BeTrue())
			Expect(c.Secure).To(BeTrue())
			Expect(c.SameSite).To(Equal(http.SameSiteStrictMode))
			Expect(c.Path).To(Equal("/"))
		}
	})

	It("answers 401 for wrong credentials and sets no cookie", func() {
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"a@x.com","password":"nope"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(rec.Result().Cookies()).To(BeEmpty())
		Expect(rec.Body.String()).To(ContainSubstring("invalid email or password"))
	})

	It("refreshes from the cookie", func() {
		refresh := cookieNamed(login().Result(), transport.RefreshTokenCookie)

		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(refresh)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(cookieNamed(rec.Result(), transport.RefreshTokenCookie).Value).NotTo(Equal(refresh.Value))
	})

	It("expires both cookies on logout", func() {
		login()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

		Expect(rec.Code).To(Equal(http.StatusNoContent))
		for _, name := range []string{transport.AccessTokenCookie, transport.RefreshTokenCookie} {
			c := cookieNamed(rec.Result(), name)
			Expect(c).NotTo(BeNil())
			Expect(c.MaxAge).To(BeNumerically("<", 0))
		}
		stored, _ := users.GetByID(context.Background(), userID)
		Expect(stored.RefreshTokenHash).To(BeEmpty())
	})

	It("rejects unknown body fields", func() {
		req := httptest.NewRequest(http.MethodPost, "/auth/password/verify-otp",
			strings.NewReader(`{"email":"a@x.com","otp":"123456","extra":true}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	Describe("external login", func() {
		It("redirects with a state cookie and accepts the matching callback", func() {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/oidc/login", nil))
			Expect(rec.Code).To(Equal(http.StatusFound))

			state := cookieNamed(rec.Result(), "OIDCState")
			Expect(state).NotTo(BeNil())
			Expect(rec.Header().Get("Location")).To(HaveSuffix(state.Value))

			req := httptest.NewRequest(http.MethodGet, "/auth/oidc/callback?code=c&state="+state.Value, nil)
			req.AddCookie(state)
			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(cookieNamed(rec.Result(), transport.AccessTokenCookie)).NotTo(BeNil())
		})

		It("rejects a callback whose state does not match", func() {
			req := httptest.NewRequest(http.MethodGet, "/auth/oidc/callback?code=c&state=forged", nil)
			req.AddCookie(&http.Cookie{Name: "OIDCState", Value: "real", Expires: time.Now().Add(time.Minute)})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
