package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const getPaymentSummary = `-- name: GetPaymentSummary :many
SELECT payment_method,
       status,
       count(*)::bigint AS order_count,
       COALESCE(sum(total), 0)::numeric AS total_amount
FROM orders
WHERE created_at >= $1
  AND created_at < $2
GROUP BY payment_method, status
ORDER BY payment_method, status`

type GetPaymentSummaryParams struct {
	CreatedAt   time.Time `json:"created_at"`
	CreatedAt_2 time.Time `json:"created_at_2"`
}

type GetPaymentSummaryRow struct {
	PaymentMethod string         `json:"payment_method"`
	Status        string         `json:"status"`
	OrderCount    int64          `json:"order_count"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
}

func (q *Queries) GetPaymentSummary(ctx context.Context, arg GetPaymentSummaryParams) ([]GetPaymentSummaryRow, error) {
	rows, err := q.db.Query(ctx, getPaymentSummary, arg.CreatedAt, arg.CreatedAt_2)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetPaymentSummaryRow{}
	for rows.Next() {
		var i GetPaymentSummaryRow
		if err := rows.Scan(
			&i.PaymentMethod,
			&i.Status,
			&i.OrderCount,
			&i.TotalAmount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getItemSales = `-- name: GetItemSales :many
SELECT item->>'name' AS name,
       COALESCE(item->>'size', '') AS size,
       sum((item->>'quantity')::int)::bigint AS quantity_sold,
       sum((item->>'quantity')::numeric * (item->>'price')::numeric)::numeric AS total_revenue
FROM orders, jsonb_array_elements(items) AS item
WHERE created_at >= $1
  AND created_at < $2
  AND status <> 'cancelled'
GROUP BY 1, 2
ORDER BY quantity_sold DESC, name, size`

type GetItemSalesParams struct {
	CreatedAt   time.Time `json:"created_at"`
	CreatedAt_2 time.Time `json:"created_at_2"`
}

type GetItemSalesRow struct {
	Name         string         `json:"name"`
	Size         string         `json:"size"`
	QuantitySold int64          `json:"quantity_sold"`
	TotalRevenue pgtype.Numeric `json:"total_revenue"`
}

// GetItemSales totals quantities per item name and size, ignoring cancelled orders.
func (q *Queries) GetItemSales(ctx context.Context, arg GetItemSalesParams) ([]GetItemSalesRow, error) {
	rows, err := q.db.Query(ctx, getItemSales, arg.CreatedAt, arg.CreatedAt_2)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetItemSalesRow{}
	for rows.Next() {
		var i GetItemSalesRow
		if err := rows.Scan(
			&i.Name,
			&i.Size,
			&i.QuantitySold,
			&i.TotalRevenue,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
