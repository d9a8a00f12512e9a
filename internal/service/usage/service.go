package usage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"bloodinsight/internal/models"
)

// Service tracks invocations of the AI-facing endpoints. Recording is
// best-effort: a failed insert is logged and never surfaces to the request
// that triggered it.
type Service struct {
	db *sql.DB
}

// NewService builds a usage tracker over the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Record persists one usage entry on a detached context so a slow insert
// cannot block or fail the response. userID may be 0 when the caller's
// identity is not derivable.
func (s *Service) Record(endpoint string, userID int64, status string, duration time.Duration) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var uid interface{}
		if userID > 0 {
			uid = userID
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO api_usage (user_id, endpoint, status, duration_ms, created_at) VALUES (?, ?, ?, ?, ?)`,
			uid, endpoint, status, duration.Milliseconds(), time.Now().UTC(),
		)
		if err != nil {
			log.Printf("record usage for %s failed: %v", endpoint, err)
		}
	}()
}

// Recent returns the latest tracked invocations, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.UsageEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(user_id, 0), endpoint, status, duration_ms, created_at
		 FROM api_usage ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent usage: %w", err)
	}
	defer rows.Close()

	entries := make([]models.UsageEntry, 0, limit)
	for rows.Next() {
		var e models.UsageEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Endpoint, &e.Status, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats aggregates tracked invocations for the admin page.
func (s *Service) Stats(ctx context.Context) (*models.UsageStats, error) {
	stats := &models.UsageStats{ByEndpoint: make(map[string]int64)}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(duration_ms), 0) FROM api_usage`,
	).Scan(&stats.TotalCalls, &stats.AvgDurationMS)
	if err != nil {
		return nil, fmt.Errorf("aggregate usage: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT endpoint, COUNT(*) FROM api_usage GROUP BY endpoint`,
	)
	if err != nil {
		return nil, fmt.Errorf("usage by endpoint: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var endpoint string
		var count int64
		if err := rows.Scan(&endpoint, &count); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		stats.ByEndpoint[endpoint] = count
	}
	return stats, rows.Err()
}
