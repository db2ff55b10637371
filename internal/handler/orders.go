package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/cocsc-web/api/internal/lifecycle"
	"github.com/cocsc-web/api/internal/middleware"
	"github.com/cocsc-web/api/internal/receipt"
	"github.com/cocsc-web/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.Order, error)
	ListOrders(ctx context.Context, f service.ListFilter) ([]service.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*service.Order, error)
	SetOrderStatus(ctx context.Context, req service.SetStatusRequest) (*service.Order, error)
	AttachReceipt(ctx context.Context, id uuid.UUID, u receipt.Upload, actor lifecycle.Actor) (*service.Order, error)
	StoreReceipt(ctx context.Context, u receipt.Upload) (string, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

// multipart framing on top of the receipt itself
const uploadOverhead = 1 << 20

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

// RegisterPublicRoutes registers the customer-facing order endpoints.
// Expected to be mounted at /api/orders.
func (h *OrderHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Post("/upload-receipt", h.UploadReceipt)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/receipt", h.AttachReceipt)
}

// RegisterAdminRoutes registers the dashboard endpoints. The caller is
// responsible for putting them behind admin authentication.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type updateOrderRequest struct {
	Status            string `json:"status"`
	FulfillmentStatus string `json:"fulfillmentStatus"`
	ReceiptURL        string `json:"receiptUrl"`
}

type attachReceiptRequest struct {
	Receipt string `json:"receipt"`
}

type orderItemResponse struct {
	Name       string `json:"name"`
	Size       string `json:"size,omitempty"`
	CustomName string `json:"customName,omitempty"`
	Quantity   int    `json:"quantity"`
	Price      string `json:"price"`
	Subtotal   string `json:"subtotal"`
}

type orderResponse struct {
	ID                uuid.UUID           `json:"id"`
	OrderNumber       string              `json:"orderNumber"`
	FullName          string              `json:"fullName"`
	Phone             string              `json:"phone"`
	Email             string              `json:"email"`
	ProgramYear       string              `json:"programYear"`
	PaymentMethod     string              `json:"paymentMethod"`
	Items             []orderItemResponse `json:"items"`
	Total             string              `json:"total"`
	Status            string              `json:"status"`
	PaymentStatus     string              `json:"paymentStatus"`
	FulfillmentStatus string              `json:"fulfillmentStatus"`
	ReceiptURL        string              `json:"receiptUrl,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

type orderEnvelope struct {
	Order orderResponse `json:"order"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
}

// --- Handlers ---

// Create handles POST /api/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), req)
	middleware.RecordOrderOperation("create", err == nil)
	if err != nil {
		h.writeError(w, "create order", err)
		return
	}

	h.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.Number),
		zap.String("payment_method", order.PaymentMethod),
	)
	writeJSON(w, http.StatusCreated, orderEnvelope{Order: toOrderResponse(order)})
}

// List handles GET /api/orders. Orders come back newest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.svc.ListOrders(r.Context(), service.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	})
	middleware.RecordOrderOperation("list", err == nil)
	if err != nil {
		h.writeError(w, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp})
}

// Get handles GET /api/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, orderEnvelope{Order: toOrderResponse(order)})
}

// Update handles PUT /api/orders/{id}.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req updateOrderRequest
	r.Body = http.MaxBytesReader(w, r.Body, dataURILimit())
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBodyError(w, err)
		return
	}

	order, err := h.svc.SetOrderStatus(r.Context(), service.SetStatusRequest{
		ID:          id,
		Status:      req.Status,
		Fulfillment: req.FulfillmentStatus,
		ReceiptRef:  req.ReceiptURL,
		Actor:       lifecycle.ActorAdmin,
	})
	middleware.RecordOrderOperation("update", err == nil)
	if err != nil {
		h.writeError(w, "update order", err)
		return
	}

	h.logger.Info("order updated",
		zap.String("order_id", order.ID.String()),
		zap.String("status", order.Status),
		zap.String("fulfillment_status", order.FulfillmentStatus),
	)
	writeJSON(w, http.StatusOK, orderEnvelope{Order: toOrderResponse(order)})
}

// Delete handles DELETE /api/orders/{id}.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	err := h.svc.DeleteOrder(r.Context(), id)
	middleware.RecordOrderOperation("delete", err == nil)
	if err != nil {
		h.writeError(w, "delete order", err)
		return
	}

	h.logger.Info("order deleted", zap.String("order_id", id.String()))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order deleted successfully"})
}

// UploadReceipt handles POST /api/orders/upload-receipt. The returned
// receiptUrl can be passed to a later PUT /api/orders/{id}.
func (h *OrderHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	u, ok := h.readMultipartReceipt(w, r)
	if !ok {
		return
	}

	ref, err := h.svc.StoreReceipt(r.Context(), u)
	middleware.RecordOrderOperation("upload_receipt", err == nil)
	if err != nil {
		h.writeError(w, "store receipt", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"receiptUrl": ref})
}

// AttachReceipt handles POST /api/orders/{id}/receipt. Accepts either a
// multipart "receipt" file or a JSON body carrying a data URI.
func (h *OrderHandler) AttachReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var u receipt.Upload
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if u, ok = h.readMultipartReceipt(w, r); !ok {
			return
		}
	} else {
		var req attachReceiptRequest
		r.Body = http.MaxBytesReader(w, r.Body, dataURILimit())
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeBodyError(w, err)
			return
		}
		if req.Receipt == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "receipt is required"})
			return
		}
		var err error
		if u, err = receipt.ParseDataURI(req.Receipt); err != nil {
			h.writeError(w, "parse receipt", err)
			return
		}
	}

	order, err := h.svc.AttachReceipt(r.Context(), id, u, lifecycle.ActorCustomer)
	middleware.RecordOrderOperation("attach_receipt", err == nil)
	if err != nil {
		h.writeError(w, "attach receipt", err)
		return
	}

	h.logger.Info("receipt attached", zap.String("order_id", order.ID.String()))
	writeJSON(w, http.StatusOK, orderEnvelope{Order: toOrderResponse(order)})
}

// --- Helpers ---

func (h *OrderHandler) readMultipartReceipt(w http.ResponseWriter, r *http.Request) (receipt.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, receipt.MaxSize+uploadOverhead)
	if err := r.ParseMultipartForm(receipt.MaxSize); err != nil {
		h.writeBodyError(w, err)
		return receipt.Upload{}, false
	}
	defer r.MultipartForm.RemoveAll()

	fh := firstFile(r, "receipt")
	if fh == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "receipt file is required"})
		return receipt.Upload{}, false
	}

	u, err := receipt.FromMultipart(fh)
	if err != nil {
		h.writeError(w, "read receipt", err)
		return receipt.Upload{}, false
	}
	return u, true
}

func firstFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// dataURILimit bounds a JSON body carrying a base64 receipt.
func dataURILimit() int64 {
	return receipt.MaxSize*4/3 + uploadOverhead
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *OrderHandler) writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": receipt.ErrPayloadTooLarge.Error()})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
}

// writeError maps service, lifecycle and receipt errors onto HTTP statuses.
func (h *OrderHandler) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, receipt.ErrInvalidPayload),
		errors.Is(err, receipt.ErrUnsupportedMediaType):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, receipt.ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, lifecycle.ErrActorNotAllowed):
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(op, zap.Error(err))
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func toOrderResponse(o *service.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			Name:       it.Name,
			Size:       it.Size,
			CustomName: it.CustomName,
			Quantity:   it.Quantity,
			Price:      it.Price.StringFixed(2),
			Subtotal:   it.Subtotal().StringFixed(2),
		}
	}
	return orderResponse{
		ID:                o.ID,
		OrderNumber:       o.Number,
		FullName:          o.FullName,
		Phone:             o.Phone,
		Email:             o.Email,
		ProgramYear:       o.ProgramYear,
		PaymentMethod:     o.PaymentMethod,
		Items:             items,
		Total:             o.Total.StringFixed(2),
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		ReceiptURL:        o.ReceiptURL,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}
