package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"procurement-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, username, password_hash, full_name, email, role, branch_id, created_at`

// CreateUser inserts a staff account
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password_hash, full_name, email, role, branch_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return sqlx.GetContext(ctx, s.q, user, query,
		user.Username, user.PasswordHash, user.FullName, user.Email, user.Role, user.BranchID)
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

// GetUserByUsername retrieves a user by login name, ignoring case to match
// the users_username_lower_idx unique index
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE LOWER(username) = LOWER($1)", username)
}

func (s *Store) getUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, s.q, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsersByRole returns every user holding role
func (s *Store) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	users := []models.User{}
	err := sqlx.SelectContext(ctx, s.q, &users,
		"SELECT "+userColumns+" FROM users WHERE role = $1 ORDER BY id", role)
	if err != nil {
		return nil, err
	}
	return users, nil
}
