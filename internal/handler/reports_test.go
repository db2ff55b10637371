package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cocsc-web/api/internal/database"
	"github.com/cocsc-web/api/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// --- Mock store ---

type mockReportsStore struct {
	paymentSummaryFn func(ctx context.Context, arg database.GetPaymentSummaryParams) ([]database.GetPaymentSummaryRow, error)
	itemSalesFn      func(ctx context.Context, arg database.GetItemSalesParams) ([]database.GetItemSalesRow, error)
}

func (m *mockReportsStore) GetPaymentSummary(ctx context.Context, arg database.GetPaymentSummaryParams) ([]database.GetPaymentSummaryRow, error) {
	if m.paymentSummaryFn != nil {
		return m.paymentSummaryFn(ctx, arg)
	}
	return []database.GetPaymentSummaryRow{}, nil
}

func (m *mockReportsStore) GetItemSales(ctx context.Context, arg database.GetItemSalesParams) ([]database.GetItemSalesRow, error) {
	if m.itemSalesFn != nil {
		return m.itemSalesFn(ctx, arg)
	}
	return []database.GetItemSalesRow{}, nil
}

// --- Helpers ---

func testNumeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(s)
	return n
}

func newReportsRouter(store handler.ReportsStore) http.Handler {
	h := handler.NewReportsHandler(store, zap.NewNop())
	r := chi.NewRouter()
	r.Route("/reports", h.RegisterRoutes)
	return r
}

func getReport(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
	return rr
}

// --- Payment summary ---

func TestPaymentSummary(t *testing.T) {
	store := &mockReportsStore{
		paymentSummaryFn: func(_ context.Context, _ database.GetPaymentSummaryParams) ([]database.GetPaymentSummaryRow, error) {
			return []database.GetPaymentSummaryRow{
				{PaymentMethod: "CASH", Status: "paid", OrderCount: 2, TotalAmount: testNumeric("500")},
				{PaymentMethod: "CASH", Status: "pending", OrderCount: 1, TotalAmount: testNumeric("250")},
				{PaymentMethod: "GCASH", Status: "cancelled", OrderCount: 1, TotalAmount: testNumeric("300")},
				{PaymentMethod: "GCASH", Status: "pending_payment", OrderCount: 3, TotalAmount: testNumeric("900.50")},
			}, nil
		},
	}

	rr := getReport(t, newReportsRouter(store), "/reports/payment-summary")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	var resp []struct {
		PaymentMethod  string `json:"paymentMethod"`
		OrderCount     int64  `json:"orderCount"`
		CancelledCount int64  `json:"cancelledCount"`
		Collected      string `json:"collected"`
		Outstanding    string `json:"outstanding"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected CASH and GCASH rows, got %d", len(resp))
	}

	cash, gcash := resp[0], resp[1]
	if cash.PaymentMethod != "CASH" || cash.OrderCount != 3 || cash.Collected != "500.00" || cash.Outstanding != "250.00" {
		t.Errorf("cash: %+v", cash)
	}
	if gcash.PaymentMethod != "GCASH" || gcash.OrderCount != 4 || gcash.CancelledCount != 1 || gcash.Collected != "0.00" || gcash.Outstanding != "900.50" {
		t.Errorf("gcash: %+v", gcash)
	}
}

func TestPaymentSummary_DateRange(t *testing.T) {
	var got database.GetPaymentSummaryParams
	store := &mockReportsStore{
		paymentSummaryFn: func(_ context.Context, arg database.GetPaymentSummaryParams) ([]database.GetPaymentSummaryRow, error) {
			got = arg
			return nil, nil
		},
	}
	r := newReportsRouter(store)

	rr := getReport(t, r, "/reports/payment-summary?start_date=2025-03-01&end_date=2025-03-01")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if d := got.CreatedAt_2.Sub(got.CreatedAt); d != 24*time.Hour {
		t.Errorf("single day range spans %v, want 24h", d)
	}
	if _, offset := got.CreatedAt.Zone(); offset != 8*3600 {
		t.Errorf("start offset: got %d, want +8h", offset)
	}

	for _, path := range []string{
		"/reports/payment-summary?start_date=03-01-2025",
		"/reports/payment-summary?end_date=yesterday",
		"/reports/payment-summary?start_date=2025-03-02&end_date=2025-03-01",
	} {
		if rr := getReport(t, r, path); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want %d", path, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestPaymentSummary_StoreError(t *testing.T) {
	store := &mockReportsStore{
		paymentSummaryFn: func(context.Context, database.GetPaymentSummaryParams) ([]database.GetPaymentSummaryRow, error) {
			return nil, errors.New("connection refused")
		},
	}
	if rr := getReport(t, newReportsRouter(store), "/reports/payment-summary"); rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

// --- Item sales ---

func TestItemSales(t *testing.T) {
	store := &mockReportsStore{
		itemSalesFn: func(_ context.Context, _ database.GetItemSalesParams) ([]database.GetItemSalesRow, error) {
			return []database.GetItemSalesRow{
				{Name: "Lanyard", QuantitySold: 12, TotalRevenue: testNumeric("600")},
				{Name: "Org Shirt", Size: "M", QuantitySold: 5, TotalRevenue: testNumeric("750")},
			}, nil
		},
	}

	rr := getReport(t, newReportsRouter(store), "/reports/item-sales")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("rows: got %d, want 2", len(resp))
	}
	if resp[0]["totalRevenue"] != "600.00" || resp[0]["quantitySold"] != float64(12) {
		t.Errorf("lanyard: %v", resp[0])
	}
	if _, present := resp[0]["size"]; present {
		t.Error("size should be omitted when empty")
	}
	if resp[1]["size"] != "M" {
		t.Errorf("shirt size: %v", resp[1]["size"])
	}
}
