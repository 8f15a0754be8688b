package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/frahmantamala/invoice-payments/internal"
	"github.com/frahmantamala/invoice-payments/internal/auth"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	var creds auth.Credentials
	query := `SELECT id, email, password_hash, is_active FROM users WHERE email = ?`

	row := r.db.WithContext(ctx).Raw(query, email).Row()
	if err := row.Scan(&creds.UserID, &creds.Email, &creds.PasswordHash, &creds.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return &creds, nil
}

func (r *Repository) GetPrincipal(ctx context.Context, userID int64) (*internal.Principal, error) {
	var (
		principal  internal.Principal
		customerID sql.NullInt64
	)

	query := `SELECT id, email, customer_id FROM users WHERE id = ? AND is_active = ?`
	row := r.db.WithContext(ctx).Raw(query, userID, true).Row()
	if err := row.Scan(&principal.UserID, &principal.Email, &customerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if customerID.Valid {
		principal.CustomerID = &customerID.Int64
	}

	permQuery := `SELECT p.name
	             FROM permissions p
	             JOIN user_permissions up ON p.id = up.permission_id
	             WHERE up.user_id = ?
	             ORDER BY p.name`

	rows, err := r.db.WithContext(ctx).Raw(permQuery, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var permName string
		if err := rows.Scan(&permName); err != nil {
			return nil, err
		}
		principal.Permissions = append(principal.Permissions, permName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &principal, nil
}
