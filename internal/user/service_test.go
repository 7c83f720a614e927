package user_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	errors "github.com/frahmantamala/access-control/internal"
	"github.com/frahmantamala/access-control/internal/auth"
	userDatamodel "github.com/frahmantamala/access-control/internal/core/datamodel/user"
	"github.com/frahmantamala/access-control/internal/permission"
	"github.com/frahmantamala/access-control/internal/role"
	"github.com/frahmantamala/access-control/internal/transport"
	"github.com/frahmantamala/access-control/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestUserService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Service Suite")
}

// MockRepository implements user.RepositoryAPI for testing
type MockRepository struct {
	users      map[string]*userDatamodel.User
	shouldFail bool
}

func NewMockRepository() *MockRepository {
	return &MockRepository{users: make(map[string]*userDatamodel.User)}
}

func (m *MockRepository) Create(_ context.Context, u *userDatamodel.User) error {
	if m.shouldFail {
		return io.ErrUnexpectedEOF
	}
	m.users[u.ID] = u
	return nil
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*userDatamodel.User, error) {
	if m.shouldFail {
		return nil, io.ErrUnexpectedEOF
	}
	return m.users[id], nil
}

func (m *MockRepository) GetByEmail(_ context.Context, email string) (*userDatamodel.User, error) {
	if m.shouldFail {
		return nil, io.ErrUnexpectedEOF
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *MockRepository) GetByRefreshTokenHash(_ context.Context, hash string) (*userDatamodel.User, error) {
	for _, u := range m.users {
		if hash != "" && u.RefreshTokenHash == hash {
			return u, nil
		}
	}
	return nil, nil
}

func (m *MockRepository) UpdateRoles(_ context.Context, id string, roleIDs []string) error {
	m.users[id].RoleIDs = roleIDs
	return nil
}

func (m *MockRepository) UpdatePassword(_ context.Context, id, hash string) error {
	m.users[id].PasswordHash = hash
	return nil
}

func (m *MockRepository) SetRefreshToken(_ context.Context, id, hash string, expiresAt time.Time) error {
	m.users[id].RefreshTokenHash = hash
	m.users[id].RefreshTokenExpiry = &expiresAt
	return nil
}

func (m *MockRepository) RotateRefreshToken(_ context.Context, id, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	u := m.users[id]
	if u == nil || u.RefreshTokenHash != oldHash {
		return false, nil
	}
	u.RefreshTokenHash = newHash
	u.RefreshTokenExpiry = &expiresAt
	return true, nil
}

func (m *MockRepository) ClearRefreshToken(_ context.Context, id string) error {
	m.users[id].RefreshTokenHash = ""
	m.users[id].RefreshTokenExpiry = nil
	return nil
}

type fakeRoles struct {
	roles map[string]*role.Role
}

func (f *fakeRoles) ActiveRolesByIDs(_ context.Context, ids []string) ([]*role.Role, error) {
	var out []*role.Role
	for _, id := range ids {
		if r, ok := f.roles[id]; ok && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

var _ = Describe("User Service", func() {
	var (
		ctx     context.Context
		repo    *MockRepository
		roles   *fakeRoles
		service *user.Service
		editor  *role.Role
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = NewMockRepository()
		editor = role.NewRole("Editor", "Editor", "", nil)
		roles = &fakeRoles{roles: map[string]*role.Role{editor.ID: editor}}
		service = user.NewService(repo, roles, bcrypt.MinCost, slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	Describe("CreateUser", func() {
		It("stores a bcrypt hash and a normalized email", func() {
			u, err := service.CreateUser(ctx, user.CreateUserDTO{
				Email:     "  Ada@Example.com ",
				Password:  "correct-horse",
				FirstName: "Ada",
				LastName:  "Lovelace",
				RoleIDs:   []string{editor.ID, editor.ID},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Email).To(Equal("ada@example.com"))
			Expect(u.RoleIDs).To(Equal([]string{editor.ID}))
			Expect(u.DisplayName()).To(Equal("Ada Lovelace"))

			stored := repo.users[u.ID]
			Expect(stored.PasswordHash).NotTo(Equal("correct-horse"))
			Expect(user.CheckPassword(stored.PasswordHash, "correct-horse")).To(BeTrue())
			Expect(user.CheckPassword(stored.PasswordHash, "wrong")).To(BeFalse())
		})

		It("rejects a duplicate email regardless of case", func() {
			_, err := service.CreateUser(ctx, user.CreateUserDTO{Email: "a@x.com", Password: "password1"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CreateUser(ctx, user.CreateUserDTO{Email: "A@X.com", Password: "password1"})
			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(errors.ErrorTypeConflict))
			Expect(appErr.Code).To(Equal(errors.ErrCodeEmailAlreadyExists))
		})

		It("rejects unknown or inactive roles", func() {
			editor.IsActive = false
			_, err := service.CreateUser(ctx, user.CreateUserDTO{
				Email: "a@x.com", Password: "password1", RoleIDs: []string{editor.ID},
			})
			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(errors.ErrorTypeReference))
			Expect(appErr.Message).To(ContainSubstring(editor.ID))
			Expect(repo.users).To(BeEmpty())
		})

		It("validates the payload", func() {
			_, err := service.CreateUser(ctx, user.CreateUserDTO{Email: "not-an-email", Password: "short"})
			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(errors.ErrorTypeValidation))
		})

		It("hides store failures behind an internal error", func() {
			repo.shouldFail = true
			_, err := service.CreateUser(ctx, user.CreateUserDTO{Email: "a@x.com", Password: "password1"})
			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(errors.ErrorTypeInternal))
			Expect(appErr.Message).NotTo(ContainSubstring("EOF"))
		})
	})

	Describe("lookups", func() {
		It("returns not found for unknown users", func() {
			_, err := service.GetByID(ctx, "missing")
			Expect(err).To(MatchError(errors.ErrUserNotFound))

			_, err = service.GetByEmail(ctx, "nobody@x.com")
			Expect(err).To(MatchError(errors.ErrUserNotFound))
		})

		It("falls back to the email for the display name", func() {
			created, err := service.CreateUser(ctx, user.CreateUserDTO{Email: "a@x.com", Password: "password1"})
			Expect(err).NotTo(HaveOccurred())

			u, err := service.GetByEmail(ctx, "A@x.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(u.ID).To(Equal(created.ID))
			Expect(u.DisplayName()).To(Equal("a@x.com"))
		})
	})

	Describe("Handler", func() {
		var handler *user.Handler

		BeforeEach(func() {
			handler = user.NewHandler(transport.NewBaseHandler(slog.New(slog.NewTextHandler(io.Discard, nil))), service)
		})

		It("describes the caller from the token alone", func() {
			perms := permission.Map{}
			perms.Add("Events", "EventMgmt", "Read")
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			req = req.WithContext(auth.ContextWithPrincipal(req.Context(), &auth.Principal{
				UserID:      "not-in-store",
				Email:       "a@x.com",
				Name:        "Ada",
				Roles:       []string{"Editor"},
				Permissions: perms,
			}))
			rec := httptest.NewRecorder()
			handler.GetCurrentUser(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["email"]).To(Equal("a@x.com"))
			Expect(body["name"]).To(Equal("Ada"))
			Expect(body["roles"]).To(ConsistOf("Editor"))
			Expect(body["permissions"]).To(HaveKeyWithValue("Events", HaveKeyWithValue("EventMgmt", ConsistOf("Read"))))
			Expect(body["id"]).To(Equal("not-in-store"))
		})

		It("returns 401 without a principal", func() {
			rec := httptest.NewRecorder()
			handler.GetCurrentUser(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("creates a user and returns 201", func() {
			req := httptest.NewRequest(http.MethodPost, "/users",
				strings.NewReader(`{"email":"b@x.com","password":"password1"}`))
			rec := httptest.NewRecorder()
			handler.CreateUser(rec, req)
			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(rec.Body.String()).NotTo(ContainSubstring("password"))
		})
	})
})
