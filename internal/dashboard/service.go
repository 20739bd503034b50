package dashboard

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"codedrop/internal/models"
)

const recentLimit = 5

type Service interface {
	GetDashboardStats(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error)
}

type service struct {
	repo  Repository
	quota int64
}

func NewService(repo Repository, quota int64) Service {
	return &service{
		repo:  repo,
		quota: quota,
	}
}

func (s *service) GetDashboardStats(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error) {
	stats, err := s.repo.GetDashboardStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchingStats, err)
	}

	recent, err := s.repo.GetRecentUploads(ctx, userID, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchingStats, err)
	}
	stats.Recent = recent

	stats.StorageQuota = s.quota
	stats.StorageUsedHuman = humanize.IBytes(uint64(stats.StorageUsed))
	stats.StorageQuotaHuman = humanize.IBytes(uint64(s.quota))
	if s.quota > 0 {
		stats.QuotaPercent = float64(stats.StorageUsed) / float64(s.quota) * 100
	}

	return stats, nil
}
