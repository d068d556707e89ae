package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"faceattend/internal/store"
)

// Admin is a dashboard account.
type Admin struct {
	ID           int64
	Username     string
	PasswordHash string
}

// AdminRepository persists admin credentials.
type AdminRepository struct {
	db *store.DB
}

// NewAdminRepository creates a repo.
func NewAdminRepository(db *store.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// Get returns the admin with username, or nil if there is none.
func (r *AdminRepository) Get(ctx context.Context, username string) (*Admin, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, username, password_hash FROM admins WHERE username = ?
	`), username)
	var a Admin
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// SetPassword creates the admin or replaces its password.
func (r *AdminRepository) SetPassword(ctx context.Context, username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO admins (username, password_hash)
		VALUES (?, ?)
		ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash
	`), username, hash)
	return err
}

// EnsureAdmin seeds username with password unless it already exists. It
// reports whether a record was created.
func (r *AdminRepository) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	existing, err := r.Get(ctx, username)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO admins (username, password_hash)
		VALUES (?, ?)
		ON CONFLICT (username) DO NOTHING
	`), username, hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
