package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, seq, full_name, phone, email, program_year, payment_method, items, total,
    status, fulfillment_status, receipt_url, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.Seq,
		&i.FullName,
		&i.Phone,
		&i.Email,
		&i.ProgramYear,
		&i.PaymentMethod,
		&i.Items,
		&i.Total,
		&i.Status,
		&i.FulfillmentStatus,
		&i.ReceiptUrl,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (id, full_name, phone, email, program_year, payment_method, items, total, status, receipt_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	ID            uuid.UUID      `json:"id"`
	FullName      string         `json:"full_name"`
	Phone         string         `json:"phone"`
	Email         string         `json:"email"`
	ProgramYear   string         `json:"program_year"`
	PaymentMethod string         `json:"payment_method"`
	Items         []byte         `json:"items"`
	Total         pgtype.Numeric `json:"total"`
	Status        string         `json:"status"`
	ReceiptUrl    pgtype.Text    `json:"receipt_url"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.ID,
		arg.FullName,
		arg.Phone,
		arg.Email,
		arg.ProgramYear,
		arg.PaymentMethod,
		arg.Items,
		arg.Total,
		arg.Status,
		arg.ReceiptUrl,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	return scanOrder(row)
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
FOR UPDATE`

// GetOrderForUpdate locks the row until the surrounding transaction ends, so
// a transition check always sees the latest committed state.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderForUpdate, id)
	return scanOrder(row)
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders
ORDER BY created_at ASC, seq ASC`

func (q *Queries) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getOrderRank = `-- name: GetOrderRank :one
SELECT count(*)
FROM orders o, orders t
WHERE t.id = $1
  AND (o.created_at, o.seq) <= (t.created_at, t.seq)`

// GetOrderRank returns the 1-based position of the order in creation order,
// or 0 when the order does not exist.
func (q *Queries) GetOrderRank(ctx context.Context, id uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, getOrderRank, id)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const updateOrderState = `-- name: UpdateOrderState :one
UPDATE orders
SET status = $2,
    fulfillment_status = $3,
    receipt_url = $4,
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStateParams struct {
	ID                uuid.UUID   `json:"id"`
	Status            string      `json:"status"`
	FulfillmentStatus string      `json:"fulfillment_status"`
	ReceiptUrl        pgtype.Text `json:"receipt_url"`
}

func (q *Queries) UpdateOrderState(ctx context.Context, arg UpdateOrderStateParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderState,
		arg.ID,
		arg.Status,
		arg.FulfillmentStatus,
		arg.ReceiptUrl,
	)
	return scanOrder(row)
}

const deleteOrder = `-- name: DeleteOrder :one
DELETE FROM orders
WHERE id = $1
RETURNING id`

func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteOrder, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}

const receiptInUse = `-- name: ReceiptInUse :one
SELECT EXISTS (
    SELECT 1 FROM orders WHERE receipt_url = $1 AND id <> $2
)`

type ReceiptInUseParams struct {
	ReceiptUrl string    `json:"receipt_url"`
	ID         uuid.UUID `json:"id"`
}

// ReceiptInUse reports whether an order other than arg.ID links to the receipt.
func (q *Queries) ReceiptInUse(ctx context.Context, arg ReceiptInUseParams) (bool, error) {
	row := q.db.QueryRow(ctx, receiptInUse, arg.ReceiptUrl, arg.ID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}
