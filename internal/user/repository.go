package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"codedrop/internal/database"
	"codedrop/internal/models"
)

// Repository defines the user repository interface
type Repository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error
	// GetByID retrieves a user by their ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetByUsername retrieves a user by their username
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type repository struct {
	*database.Repository
}

// NewRepository creates a new user repository
func NewRepository(db *database.DB) Repository {
	return &repository{
		Repository: database.NewRepository(db),
	}
}

func (r *repository) Create(ctx context.Context, user *models.User) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", user.Email); err != nil {
			return err
		}
		if exists {
			return ErrEmailExists
		}

		if err := tx.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", user.Username); err != nil {
			return err
		}
		if exists {
			return ErrUsernameExists
		}

		query := `
            INSERT INTO users (id, email, username, password_hash, is_active, created_at, updated_at)
            VALUES (:id, :email, :username, :password_hash, :is_active, NOW(), NOW())
            RETURNING created_at, updated_at`

		rows, err := sqlx.NamedQueryContext(ctx, tx, query, user)
		if err != nil {
			return err
		}
		defer rows.Close()
		if rows.Next() {
			return rows.Scan(&user.CreatedAt, &user.UpdatedAt)
		}
		return rows.Err()
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.Get(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.Get(ctx, &user, "SELECT * FROM users WHERE username = $1", username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
