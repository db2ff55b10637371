// Command orders prints the numbered order list for treasurers who prefer a
// terminal to the dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cocsc-web/api/internal/config"
	"github.com/cocsc-web/api/internal/database"
	"github.com/cocsc-web/api/internal/lifecycle"
	"github.com/cocsc-web/api/internal/logging"
	"github.com/cocsc-web/api/internal/receipt"
	"github.com/cocsc-web/api/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	status := flag.String("status", "", "Filter by status, payment status or fulfillment status")
	search := flag.String("search", "", "Filter by name, email, phone or order number")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Must(cfg.IsProduction())
	defer logger.Sync()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer pool.Close()

	svc := service.NewOrderService(
		pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		lifecycle.NewEngine(cfg.StrictReceiptVerification),
		receipt.NewHandler(receipt.InlineStore{}),
		nil,
		logger,
	)

	orders, err := svc.ListOrders(ctx, service.ListFilter{Status: *status, Search: *search})
	if err != nil {
		logger.Fatal("list orders", zap.Error(err))
	}

	if err := render(os.Stdout, orders); err != nil {
		logger.Fatal("render table", zap.Error(err))
	}
}

// render writes orders as a table, newest first, with a footer row holding
// the collected total of paid orders.
func render(w io.Writer, orders []service.Order) error {
	table := tablewriter.NewWriter(w)
	table.Header("No.", "Name", "Program/Year", "Method", "Total", "Status", "Payment", "Fulfillment", "Created")

	rows := make([][]string, 0, len(orders)+1)
	collected := decimal.Zero
	for _, o := range orders {
		if o.PaymentStatus == "paid" {
			collected = collected.Add(o.Total)
		}
		rows = append(rows, []string{
			o.Number,
			o.FullName,
			o.ProgramYear,
			o.PaymentMethod,
			o.Total.StringFixed(2),
			o.Status,
			o.PaymentStatus,
			o.FulfillmentStatus,
			o.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	rows = append(rows, []string{"", fmt.Sprintf("%d orders", len(orders)), "", "", collected.StringFixed(2), "collected", "", "", ""})

	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
