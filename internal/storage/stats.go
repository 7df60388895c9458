package storage

import (
	"context"
	"fmt"
)

// GetDataStats returns aggregate counts across all users and content.
func (db *DB) GetDataStats(ctx context.Context) (*DataStats, error) {
	stats := &DataStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_premium),
		        COUNT(*) FILTER (WHERE active_plan IS NOT NULL)
		 FROM users`,
	).Scan(&stats.TotalUsers, &stats.PremiumUsers, &stats.ActivePrograms)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE status = 'Completed'),
		        COUNT(*) FILTER (WHERE status = 'Replaced')
		 FROM plan_history`,
	).Scan(&stats.CompletedPlans, &stats.ReplacedPlans)
	if err != nil {
		return nil, fmt.Errorf("counting plan history: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM announcements), (SELECT COUNT(*) FROM journals)`,
	).Scan(&stats.Announcements, &stats.Journals)
	if err != nil {
		return nil, fmt.Errorf("counting content: %w", err)
	}

	return stats, nil
}
