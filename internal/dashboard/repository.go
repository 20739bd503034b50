package dashboard

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"codedrop/internal/database"
	"codedrop/internal/models"
)

type Repository interface {
	GetDashboardStats(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error)
	GetRecentUploads(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Upload, error)
}

type repository struct {
	*database.Repository
}

func NewRepository(db *database.DB) Repository {
	return &repository{
		Repository: database.NewRepository(db),
	}
}

func (r *repository) GetDashboardStats(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
            SELECT
                COUNT(*) AS total_uploads,
                COUNT(*) FILTER (WHERE type = 'file') AS total_files,
                COUNT(*) FILTER (WHERE type = 'image') AS total_images,
                COUNT(*) FILTER (WHERE type = 'text') AS total_texts,
                COALESCE(SUM(file_size), 0) AS storage_used
            FROM uploads
            WHERE user_id = $1`

		return tx.GetContext(ctx, stats, query, userID)
	})

	return stats, err
}

func (r *repository) GetRecentUploads(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Upload, error) {
	query := `
        SELECT id, user_id, type, filename, url, text_content, thumbnail_url,
               code, expires_at, object_key, file_size, mime_type, created_at
        FROM uploads
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2`

	uploads := []*models.Upload{}
	err := r.Select(ctx, &uploads, query, userID, limit)
	return uploads, err
}
