package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cocsc-web/api/internal/database"
	"github.com/cocsc-web/api/internal/enum"
	"github.com/cocsc-web/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// AdminStore defines the database methods needed by admin management handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AdminStore interface {
	ListAdmins(ctx context.Context) ([]database.Admin, error)
	InsertAdmin(ctx context.Context, arg database.CreateAdminParams) (database.Admin, error)
	DeleteAdmin(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// AdminHandler lets admins manage the other officers' dashboard accounts.
type AdminHandler struct {
	store  AdminStore
	logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store AdminStore, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{store: store, logger: logger}
}

// RegisterRoutes registers admin management endpoints. Expected to be
// mounted at /api/admins behind admin authentication.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type adminDetailResponse struct {
	adminResponse
	CreatedAt time.Time `json:"createdAt"`
}

func toAdminDetailResponse(a database.Admin) adminDetailResponse {
	return adminDetailResponse{
		adminResponse: adminResponse{
			ID:       a.ID,
			FullName: a.FullName,
			Email:    a.Email,
			Role:     enum.AdminRole,
		},
		CreatedAt: a.CreatedAt,
	}
}

// --- Handlers ---

// List returns every admin account.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	admins, err := h.store.ListAdmins(r.Context())
	if err != nil {
		h.logger.Error("list admins", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]adminDetailResponse, len(admins))
	for i, a := range admins {
		resp[i] = toAdminDetailResponse(a)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"admins": resp})
}

// Create adds an admin account.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = sanitizeName(req.FullName)
	if req.Email == "" || req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and fullName are required"})
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email must be a valid email address"})
		return
	}
	if len(req.Password) < minPasswordLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	admin, err := h.store.InsertAdmin(r.Context(), database.CreateAdminParams{
		ID:             uuid.New(),
		Email:          req.Email,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
			return
		}
		h.logger.Error("insert admin", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.logger.Info("admin created", zap.String("admin_id", admin.ID.String()))
	writeJSON(w, http.StatusCreated, toAdminDetailResponse(admin))
}

// Delete removes an admin account. Admins cannot delete themselves, so at
// least one account always remains.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid admin ID"})
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil && claims.AdminID == id {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot delete your own account"})
		return
	}

	if _, err := h.store.DeleteAdmin(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "admin not found"})
			return
		}
		h.logger.Error("delete admin", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.logger.Info("admin deleted", zap.String("admin_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func sanitizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
