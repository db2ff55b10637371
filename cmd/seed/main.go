package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cocsc-web/api/internal/config"
	"github.com/cocsc-web/api/internal/database"
	"github.com/cocsc-web/api/internal/logging"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	flag.Parse()

	// Fall back to environment variables
	if *email == "" {
		*email = os.Getenv("SEED_EMAIL")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *name == "" {
		*name = os.Getenv("SEED_NAME")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Must(cfg.IsProduction())
	defer logger.Sync()

	// Fall back to defaults
	if *email == "" {
		*email = "admin@cocsc.org"
	}
	if *password == "" {
		if cfg.IsProduction() {
			logger.Fatal("refusing to seed the default password in production; pass -password or SEED_PASSWORD")
		}
		*password = "password123"
		logger.Warn("using default password 'password123'; change it before going live")
	}
	if *name == "" {
		*name = "COCSC Admin"
	}

	ctx := context.Background()

	if cfg.RunMigrations {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal("run migrations", zap.Error(err))
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("ping database", zap.Error(err))
	}

	admin, err := seedAdmin(ctx, database.New(pool), *email, *password, *name)
	if err != nil {
		logger.Fatal("seed admin", zap.Error(err))
	}

	logger.Info("seed completed",
		zap.String("admin_id", admin.ID.String()),
		zap.String("email", admin.Email),
	)
}

type adminCreator interface {
	CreateAdmin(ctx context.Context, arg database.CreateAdminParams) (database.Admin, error)
}

// seedAdmin creates the admin account, or resets the password and name if
// the email is already registered.
func seedAdmin(ctx context.Context, store adminCreator, email, password, fullName string) (database.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return database.Admin{}, fmt.Errorf("email and password are required")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return database.Admin{}, fmt.Errorf("hash password: %w", err)
	}

	admin, err := store.CreateAdmin(ctx, database.CreateAdminParams{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: string(hashed),
		FullName:       strings.TrimSpace(fullName),
	})
	if err != nil {
		return database.Admin{}, fmt.Errorf("insert admin: %w", err)
	}
	return admin, nil
}
