package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cocsc-web/api/internal/database"
	"github.com/cocsc-web/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetPaymentSummary(ctx context.Context, arg database.GetPaymentSummaryParams) ([]database.GetPaymentSummaryRow, error)
	GetItemSales(ctx context.Context, arg database.GetItemSalesParams) ([]database.GetItemSalesRow, error)
}

// ReportsHandler handles treasurer report endpoints.
type ReportsHandler struct {
	store  ReportsStore
	logger *zap.Logger
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore, logger *zap.Logger) *ReportsHandler {
	return &ReportsHandler{store: store, logger: logger}
}

// RegisterRoutes registers report endpoints. Expected to be mounted at
// /api/reports behind admin authentication.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/payment-summary", h.PaymentSummary)
	r.Get("/item-sales", h.ItemSales)
}

// --- Response types ---

type paymentSummaryResponse struct {
	PaymentMethod  string `json:"paymentMethod"`
	OrderCount     int64  `json:"orderCount"`
	CancelledCount int64  `json:"cancelledCount"`
	Collected      string `json:"collected"`
	Outstanding    string `json:"outstanding"`
}

type itemSalesResponse struct {
	Name         string `json:"name"`
	Size         string `json:"size,omitempty"`
	QuantitySold int64  `json:"quantitySold"`
	TotalRevenue string `json:"totalRevenue"`
}

// --- Handlers ---

// PaymentSummary returns per payment method how much was collected and how
// much is still owed on open orders.
func (h *ReportsHandler) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	startDate, endDate, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetPaymentSummary(r.Context(), database.GetPaymentSummaryParams{
		CreatedAt:   startDate,
		CreatedAt_2: endDate,
	})
	if err != nil {
		h.logger.Error("get payment summary", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	type totals struct {
		orders, cancelled      int64
		collected, outstanding decimal.Decimal
	}
	byMethod := map[string]*totals{}
	for _, row := range rows {
		t, ok := byMethod[row.PaymentMethod]
		if !ok {
			t = &totals{}
			byMethod[row.PaymentMethod] = t
		}
		t.orders += row.OrderCount
		amount := numericToDecimal(row.TotalAmount)
		switch row.Status {
		case enum.OrderStatusPaid:
			t.collected = t.collected.Add(amount)
		case enum.OrderStatusCancelled:
			t.cancelled += row.OrderCount
		default:
			t.outstanding = t.outstanding.Add(amount)
		}
	}

	resp := make([]paymentSummaryResponse, 0, 2)
	for _, method := range []string{enum.PaymentMethodCash, enum.PaymentMethodGCash} {
		t, ok := byMethod[method]
		if !ok {
			t = &totals{}
		}
		resp = append(resp, paymentSummaryResponse{
			PaymentMethod:  method,
			OrderCount:     t.orders,
			CancelledCount: t.cancelled,
			Collected:      t.collected.StringFixed(2),
			Outstanding:    t.outstanding.StringFixed(2),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ItemSales returns quantity sold per item and size.
func (h *ReportsHandler) ItemSales(w http.ResponseWriter, r *http.Request) {
	startDate, endDate, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetItemSales(r.Context(), database.GetItemSalesParams{
		CreatedAt:   startDate,
		CreatedAt_2: endDate,
	})
	if err != nil {
		h.logger.Error("get item sales", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]itemSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = itemSalesResponse{
			Name:         row.Name,
			Size:         row.Size,
			QuantitySold: row.QuantitySold,
			TotalRevenue: numericToDecimal(row.TotalRevenue).StringFixed(2),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseDateRange parses start_date and end_date query params in Asia/Manila time.
// Defaults to the last 30 days. endDate is exclusive (midnight after end_date).
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	loc, err := time.LoadLocation("Asia/Manila")
	if err != nil {
		loc = time.FixedZone("PHT", 8*3600)
	}

	now := time.Now().In(loc)
	startDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -30)
	endDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format, use YYYY-MM-DD")
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format, use YYYY-MM-DD")
		}
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must not be after end_date")
	}

	return startDate, endDate, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}
