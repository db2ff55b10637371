package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cocsc-web/api/internal/config"
	"github.com/cocsc-web/api/internal/database"
	"github.com/cocsc-web/api/internal/lifecycle"
	"github.com/cocsc-web/api/internal/receipt"
	"github.com/cocsc-web/api/internal/router"
	"github.com/cocsc-web/api/internal/service"
	"github.com/cocsc-web/api/internal/ws"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type noAdmins struct{}

func (noAdmins) GetAdminByEmail(context.Context, string) (database.Admin, error) {
	return database.Admin{}, pgx.ErrNoRows
}

func (noAdmins) GetAdminByID(context.Context, uuid.UUID) (database.Admin, error) {
	return database.Admin{}, pgx.ErrNoRows
}

func (noAdmins) ListAdmins(context.Context) ([]database.Admin, error) {
	return nil, nil
}

func (noAdmins) InsertAdmin(context.Context, database.CreateAdminParams) (database.Admin, error) {
	return database.Admin{}, pgx.ErrNoRows
}

func (noAdmins) DeleteAdmin(context.Context, uuid.UUID) (uuid.UUID, error) {
	return uuid.Nil, pgx.ErrNoRows
}

// noOrders reports every order as missing.
type noOrders struct{}

func (noOrders) CreateOrder(context.Context, service.CreateOrderRequest) (*service.Order, error) {
	return nil, service.ErrValidation
}

func (noOrders) ListOrders(context.Context, service.ListFilter) ([]service.Order, error) {
	return nil, nil
}

func (noOrders) GetOrder(context.Context, uuid.UUID) (*service.Order, error) {
	return nil, service.ErrNotFound
}

func (noOrders) SetOrderStatus(context.Context, service.SetStatusRequest) (*service.Order, error) {
	return nil, service.ErrNotFound
}

func (noOrders) AttachReceipt(context.Context, uuid.UUID, receipt.Upload, lifecycle.Actor) (*service.Order, error) {
	return nil, service.ErrNotFound
}

func (noOrders) StoreReceipt(context.Context, receipt.Upload) (string, error) {
	return "", receipt.ErrInvalidPayload
}

func (noOrders) DeleteOrder(context.Context, uuid.UUID) error {
	return service.ErrNotFound
}

type noReports struct{}

func (noReports) GetPaymentSummary(context.Context, database.GetPaymentSummaryParams) ([]database.GetPaymentSummaryRow, error) {
	return nil, nil
}

func (noReports) GetItemSales(context.Context, database.GetItemSalesParams) ([]database.GetItemSalesRow, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		JWTSecret:        "router-secret",
		CORSOrigins:      []string{"http://localhost:8080"},
		ReceiptStorage:   "file",
		ReceiptDir:       dir,
		ReceiptURLPrefix: "/uploads/receipts/",
	}
	r := router.New(cfg, router.Deps{
		Admins:  noAdmins{},
		Orders:  noOrders{},
		Reports: noReports{},
		Hub:     ws.NewHub(),
		Logger:  zap.NewNop(),
	})
	return r, dir
}

func TestRoutes(t *testing.T) {
	r, dir := newTestRouter(t)
	if err := os.WriteFile(filepath.Join(dir, "abc.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write receipt: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", "GET", "/health", http.StatusOK},
		{"api health", "GET", "/api/health", http.StatusOK},
		{"metrics", "GET", "/metrics", http.StatusOK},
		{"public order lookup", "GET", "/api/orders/" + uuid.NewString(), http.StatusNotFound},
		{"list requires token", "GET", "/api/orders", http.StatusUnauthorized},
		{"update requires token", "PUT", "/api/orders/" + uuid.NewString(), http.StatusUnauthorized},
		{"delete requires token", "DELETE", "/api/orders/" + uuid.NewString(), http.StatusUnauthorized},
		{"reports require token", "GET", "/api/reports/payment-summary", http.StatusUnauthorized},
		{"admins require token", "GET", "/api/admins", http.StatusUnauthorized},
		{"receipt file", "GET", "/uploads/receipts/abc.png", http.StatusOK},
		{"missing receipt file", "GET", "/uploads/receipts/nope.png", http.StatusNotFound},
		{"no directory listing", "GET", "/uploads/receipts/", http.StatusNotFound},
		{"admin feed requires token", "GET", "/ws/orders", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
			if rr.Code != tc.want {
				t.Errorf("%s %s: got %d, want %d", tc.method, tc.path, rr.Code, tc.want)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest("OPTIONS", "/api/orders", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:8080" {
		t.Errorf("allow origin: got %q", got)
	}

	req = httptest.NewRequest("OPTIONS", "/api/orders", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}
