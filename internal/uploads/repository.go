package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"codedrop/internal/database"
	"codedrop/internal/models"
)

// Repository persists upload records
type Repository interface {
	Create(ctx context.Context, upload *models.Upload) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Upload, error)
	GetByObjectKey(ctx context.Context, key string) (*models.Upload, error)

	// GetActiveByCode returns the newest record carrying code whose expiry is after now
	GetActiveByCode(ctx context.Context, code string, now time.Time) (*models.Upload, error)

	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Upload, error)
	SumFileSize(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ListExpiredAnonymous returns up to limit anonymous records expired at now,
	// ordered by expiry and id, starting after the cursor when one is given
	ListExpiredAnonymous(ctx context.Context, now time.Time, after *ExpiryCursor, limit int) ([]*models.Upload, error)
}

// ExpiryCursor is the position of the last record of a purge batch
type ExpiryCursor struct {
	ExpiresAt time.Time
	ID        uuid.UUID
}

var uploadColumns = []string{
	"id", "user_id", "type", "filename", "url", "text_content", "thumbnail_url",
	"code", "expires_at", "object_key", "file_size", "mime_type", "created_at",
}

type postgresRepository struct {
	db *database.Repository
}

func NewPostgresRepository(db *database.DB) Repository {
	return &postgresRepository{db: database.NewRepository(db)}
}

func (r *postgresRepository) selectUploads() sq.SelectBuilder {
	return r.db.Builder().Select(uploadColumns...).From("uploads")
}

func (r *postgresRepository) Create(ctx context.Context, upload *models.Upload) error {
	query := `
		INSERT INTO uploads (
			id, user_id, type, filename, url, text_content, thumbnail_url,
			code, expires_at, object_key, file_size, mime_type, created_at
		) VALUES (
			:id, :user_id, :type, :filename, :url, :text_content, :thumbnail_url,
			:code, :expires_at, :object_key, :file_size, :mime_type, :created_at
		)`

	if _, err := r.db.NamedExec(ctx, query, upload); err != nil {
		return fmt.Errorf("inserting upload: %w", err)
	}
	return nil
}

func (r *postgresRepository) get(ctx context.Context, q sq.SelectBuilder) (*models.Upload, error) {
	var upload models.Upload
	if err := r.db.GetBuilt(ctx, &upload, q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting upload: %w", err)
	}
	return &upload, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Upload, error) {
	return r.get(ctx, r.selectUploads().Where("id = ?", id))
}

func (r *postgresRepository) GetByObjectKey(ctx context.Context, key string) (*models.Upload, error) {
	return r.get(ctx, r.selectUploads().
		Where(sq.Eq{"object_key": key}).
		OrderBy("created_at DESC").
		Limit(1))
}

func (r *postgresRepository) GetActiveByCode(ctx context.Context, code string, now time.Time) (*models.Upload, error) {
	return r.get(ctx, r.selectUploads().
		Where(sq.Eq{"code": code}).
		Where(sq.Gt{"expires_at": now}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1))
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Upload, error) {
	q := r.selectUploads().
		Where("user_id = ?", userID).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	uploads := make([]*models.Upload, 0, limit)
	if err := r.db.SelectBuilt(ctx, &uploads, q); err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}
	return uploads, nil
}

func (r *postgresRepository) SumFileSize(ctx context.Context, userID uuid.UUID) (int64, error) {
	var used int64
	q := r.db.Builder().
		Select("COALESCE(SUM(file_size), 0)").
		From("uploads").
		Where("user_id = ?", userID)

	if err := r.db.GetBuilt(ctx, &used, q); err != nil {
		return 0, fmt.Errorf("summing file sizes: %w", err)
	}
	return used, nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting upload: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) ListExpiredAnonymous(ctx context.Context, now time.Time, after *ExpiryCursor, limit int) ([]*models.Upload, error) {
	q := r.selectUploads().
		Where(sq.Eq{"user_id": nil}).
		Where(sq.LtOrEq{"expires_at": now}).
		OrderBy("expires_at", "id").
		Limit(uint64(limit))
	if after != nil {
		q = q.Where("(expires_at, id) > (?, ?)", after.ExpiresAt, after.ID)
	}

	var uploads []*models.Upload
	if err := r.db.SelectBuilt(ctx, &uploads, q); err != nil {
		return nil, fmt.Errorf("listing expired uploads: %w", err)
	}
	return uploads, nil
}
