package models

import "time"

// UsageEntry records one invocation of a tracked endpoint.
type UsageEntry struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id,omitempty"`
	Endpoint   string    `json:"endpoint"`
	Status     string    `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// UsageStats aggregates tracked invocations for the admin page.
type UsageStats struct {
	TotalCalls    int64            `json:"total_calls"`
	AvgDurationMS float64          `json:"avg_duration_ms"`
	ByEndpoint    map[string]int64 `json:"by_endpoint"`
}
