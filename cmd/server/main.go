package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cocsc-web/api/internal/config"
	"github.com/cocsc-web/api/internal/database"
	"github.com/cocsc-web/api/internal/events"
	"github.com/cocsc-web/api/internal/lifecycle"
	"github.com/cocsc-web/api/internal/logging"
	"github.com/cocsc-web/api/internal/receipt"
	"github.com/cocsc-web/api/internal/router"
	"github.com/cocsc-web/api/internal/service"
	"github.com/cocsc-web/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Must(cfg.IsProduction())
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	var store receipt.Store = receipt.InlineStore{}
	if cfg.ReceiptStorage == "file" {
		fs, err := receipt.NewFileStore(cfg.ReceiptDir, cfg.ReceiptURLPrefix)
		if err != nil {
			return fmt.Errorf("receipt store: %w", err)
		}
		store = fs
	}

	hub := ws.NewHub()
	go hub.Run()

	publishers := events.Multi{events.NewHubPublisher(hub)}
	if cfg.RabbitMQURL != "" {
		mq, err := events.DialRabbitMQ(cfg.RabbitMQURL, cfg.OrderExchange)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer mq.Close()
		publishers = append(publishers, mq)
		logger.Info("publishing order events", zap.String("exchange", cfg.OrderExchange))
	}

	queries := database.New(pool)
	orders := service.NewOrderService(
		pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		lifecycle.NewEngine(cfg.StrictReceiptVerification),
		receipt.NewHandler(store),
		publishers,
		logger,
	)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(cfg, router.Deps{
			Admins:  queries,
			Orders:  orders,
			Reports: queries,
			Hub:     hub,
			Logger:  logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Environment),
			zap.String("receipt_storage", cfg.ReceiptStorage),
			zap.Bool("strict_receipt_verification", cfg.StrictReceiptVerification),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
