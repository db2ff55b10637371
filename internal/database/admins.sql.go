package database

import (
	"context"

	"github.com/google/uuid"
)

const adminColumns = `id, email, hashed_password, full_name, created_at`

const createAdmin = `-- name: CreateAdmin :one
INSERT INTO admins (id, email, hashed_password, full_name)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO UPDATE
SET hashed_password = EXCLUDED.hashed_password,
    full_name = EXCLUDED.full_name
RETURNING ` + adminColumns

type CreateAdminParams struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	FullName       string    `json:"full_name"`
}

// CreateAdmin inserts an admin or resets the password of an existing one.
func (q *Queries) CreateAdmin(ctx context.Context, arg CreateAdminParams) (Admin, error) {
	row := q.db.QueryRow(ctx, createAdmin,
		arg.ID,
		arg.Email,
		arg.HashedPassword,
		arg.FullName,
	)
	var i Admin
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.HashedPassword,
		&i.FullName,
		&i.CreatedAt,
	)
	return i, err
}

const getAdminByEmail = `-- name: GetAdminByEmail :one
SELECT ` + adminColumns + `
FROM admins
WHERE email = $1`

func (q *Queries) GetAdminByEmail(ctx context.Context, email string) (Admin, error) {
	row := q.db.QueryRow(ctx, getAdminByEmail, email)
	var i Admin
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.HashedPassword,
		&i.FullName,
		&i.CreatedAt,
	)
	return i, err
}

const getAdminByID = `-- name: GetAdminByID :one
SELECT ` + adminColumns + `
FROM admins
WHERE id = $1`

func (q *Queries) GetAdminByID(ctx context.Context, id uuid.UUID) (Admin, error) {
	row := q.db.QueryRow(ctx, getAdminByID, id)
	var i Admin
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.HashedPassword,
		&i.FullName,
		&i.CreatedAt,
	)
	return i, err
}

const insertAdmin = `-- name: InsertAdmin :one
INSERT INTO admins (id, email, hashed_password, full_name)
VALUES ($1, $2, $3, $4)
RETURNING ` + adminColumns

// InsertAdmin fails with a unique violation when the email is taken.
func (q *Queries) InsertAdmin(ctx context.Context, arg CreateAdminParams) (Admin, error) {
	row := q.db.QueryRow(ctx, insertAdmin,
		arg.ID,
		arg.Email,
		arg.HashedPassword,
		arg.FullName,
	)
	var i Admin
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.HashedPassword,
		&i.FullName,
		&i.CreatedAt,
	)
	return i, err
}

const listAdmins = `-- name: ListAdmins :many
SELECT ` + adminColumns + `
FROM admins
ORDER BY created_at ASC, email ASC`

func (q *Queries) ListAdmins(ctx context.Context) ([]Admin, error) {
	rows, err := q.db.Query(ctx, listAdmins)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Admin{}
	for rows.Next() {
		var i Admin
		if err := rows.Scan(
			&i.ID,
			&i.Email,
			&i.HashedPassword,
			&i.FullName,
			&i.CreatedAt,
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

const deleteAdmin = `-- name: DeleteAdmin :one
DELETE FROM admins
WHERE id = $1
RETURNING id`

func (q *Queries) DeleteAdmin(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteAdmin, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}
