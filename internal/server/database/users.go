package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, email, role, can_upload, skip_review,
	join_date, upload_count, permissions`

// UserRepository provides CRUD operations for user records.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Role,
		&u.CanUpload,
		&u.SkipReview,
		&u.JoinDate,
		&u.UploadCount,
		&u.Permissions,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user record.
func (r *UserRepository) Create(ctx context.Context, u *User) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO users (id, name, email, role, can_upload, skip_review,
			join_date, upload_count, permissions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		u.ID, u.Name, u.Email, u.Role, u.CanUpload, u.SkipReview,
		u.JoinDate, u.UploadCount, u.Permissions,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	row := r.db.Pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by exact email match. When several records
// share an email the oldest wins, matching first-match lookup semantics.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.Pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1 ORDER BY id LIMIT 1", email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// List returns all user records, oldest first.
func (r *UserRepository) List(ctx context.Context) ([]*User, error) {
	rows, err := r.db.Pool.Query(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update writes the full user record back. Callers merge partial changes
// into a fetched record first.
func (r *UserRepository) Update(ctx context.Context, u *User) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE users SET name = $2, email = $3, role = $4, can_upload = $5,
			skip_review = $6, join_date = $7, upload_count = $8, permissions = $9
		WHERE id = $1
	`,
		u.ID, u.Name, u.Email, u.Role, u.CanUpload, u.SkipReview,
		u.JoinDate, u.UploadCount, u.Permissions,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user record by ID. The user's scripts are left in place.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
