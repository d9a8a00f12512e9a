package models

import "time"

// Report groups the metric readings extracted from one analyzed document.
type Report struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Name         string          `json:"name"`
	FileID       string          `json:"file_id,omitempty"`
	TextAnalysis string          `json:"text_analysis,omitempty"`
	ReportDate   time.Time       `json:"date"`
	CreatedAt    time.Time       `json:"created_at"`
	Readings     []MetricReading `json:"readings"`
}

// MetricReading is a single extracted value. Status is derived from the
// metric's normal range when the reading is written and never recomputed.
type MetricReading struct {
	ID       int64   `json:"id"`
	ReportID int64   `json:"report_id"`
	MetricID int64   `json:"metric_id"`
	Value    float64 `json:"value"`
	Status   string  `json:"status"`
}

// Reading statuses assigned at write time.
const (
	ReadingStatusLow    = "low"
	ReadingStatusNormal = "normal"
	ReadingStatusHigh   = "high"
)
