package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cocsc-web/api/internal/database"
	"github.com/cocsc-web/api/internal/enum"
	"github.com/cocsc-web/api/internal/events"
	"github.com/cocsc-web/api/internal/lifecycle"
	"github.com/cocsc-web/api/internal/receipt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Errors returned by the order service.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("order not found")

	// ErrReceiptInUse rejects a stored receipt that another order already links to.
	ErrReceiptInUse = fmt.Errorf("%w: receipt is attached to another order", receipt.ErrInvalidPayload)
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderRank(ctx context.Context, id uuid.UUID) (int64, error)
	ListOrders(ctx context.Context) ([]database.Order, error)
	UpdateOrderState(ctx context.Context, arg database.UpdateOrderStateParams) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ReceiptInUse(ctx context.Context, arg database.ReceiptInUseParams) (bool, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// ReceiptHandler validates and stores receipt blobs. Satisfied by *receipt.Handler.
type ReceiptHandler interface {
	Accept(ctx context.Context, u receipt.Upload) (string, error)
	AcceptReference(ctx context.Context, ref string) (string, error)
	Discard(ctx context.Context, ref string) error
}

// Item is one line of an order.
type Item struct {
	Name       string          `json:"name" validate:"required,max=100"`
	Size       string          `json:"size,omitempty" validate:"max=10"`
	CustomName string          `json:"customName,omitempty" validate:"max=50"`
	Quantity   int             `json:"quantity" validate:"min=1,max=100"`
	Price      decimal.Decimal `json:"price" validate:"-"`
}

// Subtotal is quantity × price.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CreateOrderRequest is a checkout submission.
type CreateOrderRequest struct {
	FullName      string          `json:"fullName" validate:"required,max=100"`
	Phone         string          `json:"phone" validate:"required,max=20"`
	Email         string          `json:"email" validate:"required,max=254,email"`
	ProgramYear   string          `json:"programYear" validate:"required,max=100"`
	PaymentMethod string          `json:"paymentMethod" validate:"required,oneof=CASH GCASH"`
	Items         []Item          `json:"items" validate:"required,min=1,max=50,dive"`
	Total         decimal.Decimal `json:"total" validate:"-"`
	// Status is optional; when present it must be the initial status for the payment method.
	Status string `json:"status,omitempty" validate:"-"`
}

// Order is an order with its derived fields filled in.
type Order struct {
	ID                uuid.UUID
	Number            string
	FullName          string
	Phone             string
	Email             string
	ProgramYear       string
	PaymentMethod     string
	Items             []Item
	Total             decimal.Decimal
	Status            string
	PaymentStatus     string
	FulfillmentStatus string
	ReceiptURL        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ListFilter narrows ListOrders. Status matches any of the status,
// payment status or fulfillment status values; Search matches name, email,
// phone or order number, case-insensitively.
type ListFilter struct {
	Status string
	Search string
}

// SetStatusRequest is an admin edit of an order's lifecycle fields.
type SetStatusRequest struct {
	ID          uuid.UUID
	Status      string
	Fulfillment string
	ReceiptRef  string
	Actor       lifecycle.Actor
}

// OrderService handles order business logic.
type OrderService struct {
	pool      TxBeginner
	newStore  NewOrderStore
	engine    *lifecycle.Engine
	receipts  ReceiptHandler
	publisher events.Publisher
	logger    *zap.Logger
}

// NewOrderService creates a new OrderService. publisher and logger may be nil.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, engine *lifecycle.Engine, receipts ReceiptHandler, publisher events.Publisher, logger *zap.Logger) *OrderService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		pool:      pool,
		newStore:  newStore,
		engine:    engine,
		receipts:  receipts,
		publisher: publisher,
		logger:    logger,
	}
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (s *OrderService) withTx(ctx context.Context, fn func(store OrderStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(s.newStore(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CreateOrder validates a checkout submission and stores it. The returned
// order carries its number as of the moment of creation.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	req.normalize()

	total, err := validateDraft(req)
	if err != nil {
		return nil, err
	}

	status, err := lifecycle.InitialStatus(req.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.Status != "" && req.Status != status {
		return nil, fmt.Errorf("%w: a new %s order starts as %s, not %s", ErrValidation, req.PaymentMethod, status, req.Status)
	}

	items, err := json.Marshal(req.Items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}

	var created *Order
	err = s.withTx(ctx, func(store OrderStore) error {
		row, err := store.CreateOrder(ctx, database.CreateOrderParams{
			ID:            uuid.New(),
			FullName:      req.FullName,
			Phone:         req.Phone,
			Email:         req.Email,
			ProgramYear:   req.ProgramYear,
			PaymentMethod: req.PaymentMethod,
			Items:         items,
			Total:         decimalToNumeric(total),
			Status:        status,
		})
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		created, err = s.numbered(ctx, store, row)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, enum.EventOrderCreated, created)
	return created, nil
}

// ListOrders returns orders newest first. Numbers are assigned over the
// complete list before filtering, so a filtered view shows the same numbers.
func (s *OrderService) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	f.Search = strings.ToLower(strings.TrimSpace(f.Search))
	if f.Status != "" && !isKnownFilterStatus(f.Status) {
		return nil, fmt.Errorf("%w: unknown status filter %q", ErrValidation, f.Status)
	}

	var rows []database.Order
	err := s.withTx(ctx, func(store OrderStore) error {
		var err error
		rows, err = store.ListOrders(ctx)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortByCreation(rows)

	orders := make([]Order, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		o, err := toOrder(rows[i], int64(i+1))
		if err != nil {
			return nil, err
		}
		if f.matches(o) {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func isKnownFilterStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusPendingPayment, enum.OrderStatusPaid, enum.OrderStatusCancelled,
		enum.PaymentStatusUnpaid, enum.PaymentStatusPendingVerification,
		enum.FulfillmentNotReceived, enum.FulfillmentReceived:
		return true
	}
	return false
}

func (f ListFilter) matches(o Order) bool {
	if f.Status != "" && f.Status != o.Status && f.Status != o.PaymentStatus && f.Status != o.FulfillmentStatus {
		return false
	}
	if f.Search == "" {
		return true
	}
	for _, field := range []string{o.FullName, o.Email, o.Phone, o.Number} {
		if strings.Contains(strings.ToLower(field), f.Search) {
			return true
		}
	}
	return false
}

// GetOrder returns one order with its current number.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var order *Order
	err := s.withTx(ctx, func(store OrderStore) error {
		row, err := store.GetOrder(ctx, id)
		if err != nil {
			return notFound(err, "get order")
		}
		order, err = s.numbered(ctx, store, row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SetOrderStatus applies an admin edit. The order row is locked before the
// lifecycle check so the check always sees the persisted state.
func (s *OrderService) SetOrderStatus(ctx context.Context, req SetStatusRequest) (*Order, error) {
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	req.Fulfillment = strings.ToLower(strings.TrimSpace(req.Fulfillment))
	req.ReceiptRef = strings.TrimSpace(req.ReceiptRef)

	if req.Status == "" && req.Fulfillment == "" && req.ReceiptRef == "" {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if req.Status != "" && !isOrderStatus(req.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, req.Status)
	}
	if req.Fulfillment != "" && req.Fulfillment != enum.FulfillmentNotReceived && req.Fulfillment != enum.FulfillmentReceived {
		return nil, fmt.Errorf("%w: unknown fulfillment status %q", ErrValidation, req.Fulfillment)
	}

	// Resolve the receipt before taking the row lock; a data URI gets saved
	// here and must be discarded if the update does not go through.
	var ref string
	var savedHere bool
	if req.ReceiptRef != "" {
		var err error
		ref, err = s.receipts.AcceptReference(ctx, req.ReceiptRef)
		if err != nil {
			return nil, err
		}
		savedHere = ref != req.ReceiptRef
	}

	var updated *Order
	var replaced string
	err := s.withTx(ctx, func(store OrderStore) error {
		row, err := store.GetOrderForUpdate(ctx, req.ID)
		if err != nil {
			return notFound(err, "lock order")
		}

		// Re-sending the current receipt is not a new attachment.
		attach := ref != "" && ref != row.ReceiptUrl.String
		if attach && !savedHere && !receipt.IsDataURI(ref) {
			inUse, err := store.ReceiptInUse(ctx, database.ReceiptInUseParams{ReceiptUrl: ref, ID: row.ID})
			if err != nil {
				return fmt.Errorf("check receipt: %w", err)
			}
			if inUse {
				return ErrReceiptInUse
			}
		}

		next, actions, err := s.engine.Plan(stateOf(row), lifecycle.Change{
			Status:        req.Status,
			Fulfillment:   req.Fulfillment,
			AttachReceipt: attach,
		}, req.Actor)
		if err != nil {
			return err
		}
		if len(actions) == 0 {
			updated, err = s.numbered(ctx, store, row)
			return err
		}

		params := database.UpdateOrderStateParams{
			ID:                row.ID,
			Status:            next.Status,
			FulfillmentStatus: next.Fulfillment,
			ReceiptUrl:        row.ReceiptUrl,
		}
		if attach {
			if row.ReceiptUrl.Valid {
				replaced = row.ReceiptUrl.String
			}
			params.ReceiptUrl = pgtype.Text{String: ref, Valid: true}
		}

		row, err = store.UpdateOrderState(ctx, params)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrReceiptInUse
			}
			return fmt.Errorf("update order: %w", err)
		}
		updated, err = s.numbered(ctx, store, row)
		return err
	})
	if err != nil {
		if savedHere {
			s.discard(ctx, ref)
		}
		return nil, err
	}

	s.discard(ctx, replaced)
	s.publish(ctx, enum.EventOrderUpdated, updated)
	return updated, nil
}

func isOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusPendingPayment, enum.OrderStatusPaid, enum.OrderStatusCancelled:
		return true
	}
	return false
}

// AttachReceipt validates u, then stores it and links it to the order if the
// order is awaiting a GCASH receipt. Status is not changed.
func (s *OrderService) AttachReceipt(ctx context.Context, id uuid.UUID, u receipt.Upload, actor lifecycle.Actor) (*Order, error) {
	if _, err := receipt.Validate(u); err != nil {
		return nil, err
	}

	var ref, replaced string
	var updated *Order
	err := s.withTx(ctx, func(store OrderStore) error {
		row, err := store.GetOrderForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "lock order")
		}
		if _, err := s.engine.Apply(stateOf(row), lifecycle.ActionAttachReceipt, actor); err != nil {
			return err
		}

		ref, err = s.receipts.Accept(ctx, u)
		if err != nil {
			return err
		}
		if row.ReceiptUrl.Valid {
			replaced = row.ReceiptUrl.String
		}

		row, err = store.UpdateOrderState(ctx, database.UpdateOrderStateParams{
			ID:                row.ID,
			Status:            row.Status,
			FulfillmentStatus: row.FulfillmentStatus,
			ReceiptUrl:        pgtype.Text{String: ref, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		updated, err = s.numbered(ctx, store, row)
		return err
	})
	if err != nil {
		s.discard(ctx, ref)
		return nil, err
	}

	s.discard(ctx, replaced)
	s.publish(ctx, enum.EventOrderUpdated, updated)
	return updated, nil
}

// StoreReceipt validates and stores a receipt that is not yet linked to an
// order, returning a reference for a later SetOrderStatus.
func (s *OrderService) StoreReceipt(ctx context.Context, u receipt.Upload) (string, error) {
	return s.receipts.Accept(ctx, u)
}

// DeleteOrder removes an order and its receipt. Later orders move up one
// number on the next read.
func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	var deleted database.Order
	err := s.withTx(ctx, func(store OrderStore) error {
		row, err := store.GetOrderForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "lock order")
		}
		if _, err := store.DeleteOrder(ctx, id); err != nil {
			return notFound(err, "delete order")
		}
		deleted = row
		return nil
	})
	if err != nil {
		return err
	}

	if deleted.ReceiptUrl.Valid {
		s.discard(ctx, deleted.ReceiptUrl.String)
	}
	s.publishEvent(ctx, events.Event{
		Type:       enum.EventOrderDeleted,
		OrderID:    id,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// numbered converts a row and looks up its current rank.
func (s *OrderService) numbered(ctx context.Context, store OrderStore, row database.Order) (*Order, error) {
	rank, err := store.GetOrderRank(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("get order rank: %w", err)
	}
	o, err := toOrder(row, rank)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrderService) discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.receipts.Discard(ctx, ref); err != nil {
		s.logger.Warn("discard receipt", zap.String("ref", ref), zap.Error(err))
	}
}

func (s *OrderService) publish(ctx context.Context, typ string, o *Order) {
	s.publishEvent(ctx, events.Event{
		Type:              typ,
		OrderID:           o.ID,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		OccurredAt:        time.Now().UTC(),
	})
}

// publishEvent never fails the caller; the change is already committed.
func (s *OrderService) publishEvent(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish order event", zap.String("type", e.Type), zap.Stringer("order_id", e.OrderID), zap.Error(err))
	}
}

// --- Helpers ---

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func stateOf(row database.Order) lifecycle.State {
	return lifecycle.State{
		Status:        row.Status,
		Fulfillment:   row.FulfillmentStatus,
		PaymentMethod: row.PaymentMethod,
		HasReceipt:    row.ReceiptUrl.Valid && row.ReceiptUrl.String != "",
	}
}

func toOrder(row database.Order, rank int64) (Order, error) {
	var items []Item
	if err := json.Unmarshal(row.Items, &items); err != nil {
		return Order{}, fmt.Errorf("decode items of order %s: %w", row.ID, err)
	}
	return Order{
		ID:                row.ID,
		Number:            FormatOrderNumber(rank),
		FullName:          row.FullName,
		Phone:             row.Phone,
		Email:             row.Email,
		ProgramYear:       row.ProgramYear,
		PaymentMethod:     row.PaymentMethod,
		Items:             items,
		Total:             numericToDecimal(row.Total),
		Status:            row.Status,
		PaymentStatus:     stateOf(row).PaymentStatus(),
		FulfillmentStatus: row.FulfillmentStatus,
		ReceiptURL:        row.ReceiptUrl.String,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}, nil
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

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
