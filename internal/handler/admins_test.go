package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cocsc-web/api/internal/auth"
	"github.com/cocsc-web/api/internal/database"
	"github.com/cocsc-web/api/internal/handler"
	"github.com/cocsc-web/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock store ---

type mockAdminStore struct {
	admins   []database.Admin
	inserted database.CreateAdminParams
}

func (m *mockAdminStore) ListAdmins(context.Context) ([]database.Admin, error) {
	return m.admins, nil
}

func (m *mockAdminStore) InsertAdmin(_ context.Context, arg database.CreateAdminParams) (database.Admin, error) {
	for _, a := range m.admins {
		if a.Email == arg.Email {
			return database.Admin{}, &pgconn.PgError{Code: "23505"}
		}
	}
	m.inserted = arg
	a := database.Admin{ID: arg.ID, Email: arg.Email, HashedPassword: arg.HashedPassword, FullName: arg.FullName, CreatedAt: time.Now()}
	m.admins = append(m.admins, a)
	return a, nil
}

func (m *mockAdminStore) DeleteAdmin(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	for i, a := range m.admins {
		if a.ID == id {
			m.admins = append(m.admins[:i], m.admins[i+1:]...)
			return id, nil
		}
	}
	return uuid.Nil, pgx.ErrNoRows
}

// newAdminRouter injects claims for the given admin the way Authenticate would.
func newAdminRouter(store handler.AdminStore, self uuid.UUID) http.Handler {
	h := handler.NewAdminHandler(store, zap.NewNop())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithClaims(r.Context(), &auth.Claims{AdminID: self, Role: "ADMIN"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Route("/admins", h.RegisterRoutes)
	return r
}

func TestAdmins_CreateAndList(t *testing.T) {
	self := makeTestAdmin(t)
	store := &mockAdminStore{admins: []database.Admin{self}}
	r := newAdminRouter(store, self.ID)

	rr := postJSON(t, r, "/admins", map[string]string{
		"email":    " Secretary@COCSC.test",
		"password": "long-enough",
		"fullName": "  Org   Secretary ",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["email"] != "secretary@cocsc.test" || resp["fullName"] != "Org Secretary" || resp["role"] != "ADMIN" {
		t.Errorf("response: %v", resp)
	}
	if _, leaked := resp["hashedPassword"]; leaked {
		t.Error("password hash must not be returned")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(store.inserted.HashedPassword), []byte("long-enough")); err != nil {
		t.Errorf("stored hash does not match: %v", err)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/admins", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list status: got %d", rr.Code)
	}
	list := decodeResponse(t, rr)["admins"].([]interface{})
	if len(list) != 2 {
		t.Errorf("admins: got %d, want 2", len(list))
	}
}

func TestAdmins_CreateRejections(t *testing.T) {
	self := makeTestAdmin(t)
	r := newAdminRouter(&mockAdminStore{admins: []database.Admin{self}}, self.ID)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"short password", map[string]string{"email": "a@b.c", "password": "short", "fullName": "A"}, http.StatusBadRequest},
		{"missing name", map[string]string{"email": "a@b.c", "password": "long-enough"}, http.StatusBadRequest},
		{"bad email", map[string]string{"email": "nobody", "password": "long-enough", "fullName": "A"}, http.StatusBadRequest},
		{"duplicate", map[string]string{"email": self.Email, "password": "long-enough", "fullName": "A"}, http.StatusConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rr := postJSON(t, r, "/admins", tc.body); rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestAdmins_Delete(t *testing.T) {
	self := makeTestAdmin(t)
	other := database.Admin{ID: uuid.New(), Email: "auditor@cocsc.test", FullName: "Auditor"}
	store := &mockAdminStore{admins: []database.Admin{self, other}}
	r := newAdminRouter(store, self.ID)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"self", "/admins/" + self.ID.String(), http.StatusConflict},
		{"other", "/admins/" + other.ID.String(), http.StatusNoContent},
		{"already gone", "/admins/" + other.ID.String(), http.StatusNotFound},
		{"malformed", "/admins/xyz", http.StatusBadRequest},
	}

	for _, tc := range tests {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("DELETE", tc.path, nil))
		if rr.Code != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, rr.Code, tc.want)
		}
	}
	if len(store.admins) != 1 || store.admins[0].ID != self.ID {
		t.Errorf("remaining admins: %+v", store.admins)
	}
}
