package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Order struct {
	ID                uuid.UUID      `json:"id"`
	Seq               int64          `json:"seq"`
	FullName          string         `json:"full_name"`
	Phone             string         `json:"phone"`
	Email             string         `json:"email"`
	ProgramYear       string         `json:"program_year"`
	PaymentMethod     string         `json:"payment_method"`
	Items             []byte         `json:"items"`
	Total             pgtype.Numeric `json:"total"`
	Status            string         `json:"status"`
	FulfillmentStatus string         `json:"fulfillment_status"`
	ReceiptUrl        pgtype.Text    `json:"receipt_url"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type Admin struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
	CreatedAt      time.Time `json:"created_at"`
}
