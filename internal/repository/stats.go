package repository

import (
	"context"

	"meeplehall/internal/models"

	"gorm.io/gorm"
)

// StatsRepository computes the admin dashboard.
type StatsRepository interface {
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
}

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a StatsRepository.
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	db := r.db.WithContext(ctx)
	stats := &models.DashboardStats{OrdersByStatus: map[string]int64{}}

	counts := []struct {
		dst   *int64
		model interface{}
		where string
		args  []interface{}
	}{
		{&stats.Users, &models.User{}, "is_deleted = ?", []interface{}{false}},
		{&stats.DeletedUsers, &models.User{}, "is_deleted = ?", []interface{}{true}},
		{&stats.BannedUsers, &models.User{}, "is_banned = ? AND is_deleted = ?", []interface{}{true, false}},
		{&stats.Posts, &models.Post{}, "", nil},
		{&stats.Comments, &models.Comment{}, "is_deleted = ?", []interface{}{false}},
		{&stats.ActiveListings, &models.TradeItem{}, "status = ?", []interface{}{models.TradeItemActive}},
		{&stats.OpenReports, &models.ModerationReport{}, "status = ?", []interface{}{models.ReportOpen}},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	var rows []struct {
		Status string
		N      int64
		Total  int64
	}
	err := db.Model(&models.Order{}).
		Select("status, COUNT(*) AS n, COALESCE(SUM(total_cents), 0) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.OrdersByStatus[row.Status] = row.N
		if row.Status != models.OrderCancelled {
			stats.GrossMerchandiseCt += row.Total
		}
	}
	return stats, nil
}
