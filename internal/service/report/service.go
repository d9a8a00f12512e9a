package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bloodinsight/internal/models"
)

// Service persists analyzed reports, their metric readings, and the health
// metric catalog.
type Service struct {
	db *sql.DB
}

// NewService builds a report service over the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ReadingInput is one structured value extracted from an analysis.
type ReadingInput struct {
	MetricID int64   `json:"metricId"`
	Value    float64 `json:"value"`
}

// ListMetrics returns the metric catalog ordered by name.
func (s *Service) ListMetrics(ctx context.Context) ([]models.HealthMetric, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, unit, min_value, max_value, description, category FROM health_metrics ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	defer rows.Close()

	var metrics []models.HealthMetric
	for rows.Next() {
		var m models.HealthMetric
		if err := rows.Scan(&m.ID, &m.Name, &m.Unit, &m.MinValue, &m.MaxValue, &m.Description, &m.Category); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// CreateMetric adds one catalog entry.
func (s *Service) CreateMetric(ctx context.Context, m models.HealthMetric) (*models.HealthMetric, error) {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return nil, errors.New("metric name is required")
	}
	if m.MaxValue < m.MinValue {
		return nil, errors.New("max_value must not be below min_value")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO health_metrics (name, unit, min_value, max_value, description, category) VALUES (?, ?, ?, ?, ?, ?)`,
		m.Name, m.Unit, m.MinValue, m.MaxValue, m.Description, m.Category,
	)
	if err != nil {
		return nil, fmt.Errorf("create metric: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("metric id: %w", err)
	}
	m.ID = id
	return &m, nil
}

// CreateReport stores a report and its readings in one transaction. Reading
// status is derived here, at write time, from the metric's normal range and
// is never recomputed on read. Every reading must reference an existing
// metric.
func (s *Service) CreateReport(ctx context.Context, userID int64, name, fileID, analysis string, readings []ReadingInput) (*models.Report, error) {
	if userID <= 0 {
		return nil, errors.New("user_id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("report name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO reports (user_id, name, file_id, text_analysis, report_date, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, name, fileID, analysis, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	reportID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("report id: %w", err)
	}

	report := &models.Report{
		ID:           reportID,
		UserID:       userID,
		Name:         name,
		FileID:       fileID,
		TextAnalysis: analysis,
		ReportDate:   now,
		CreatedAt:    now,
		Readings:     make([]models.MetricReading, 0, len(readings)),
	}

	for _, in := range readings {
		var minValue, maxValue float64
		err = tx.QueryRowContext(ctx,
			`SELECT min_value, max_value FROM health_metrics WHERE id = ?`, in.MetricID,
		).Scan(&minValue, &maxValue)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = fmt.Errorf("metric %d not found", in.MetricID)
			}
			return nil, err
		}
		status := deriveStatus(in.Value, minValue, maxValue)

		var rres sql.Result
		rres, err = tx.ExecContext(ctx,
			`INSERT INTO metric_readings (report_id, metric_id, value, status) VALUES (?, ?, ?, ?)`,
			reportID, in.MetricID, in.Value, status,
		)
		if err != nil {
			return nil, fmt.Errorf("create reading: %w", err)
		}
		readingID, _ := rres.LastInsertId()
		report.Readings = append(report.Readings, models.MetricReading{
			ID:       readingID,
			ReportID: reportID,
			MetricID: in.MetricID,
			Value:    in.Value,
			Status:   status,
		})
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit report: %w", err)
	}
	return report, nil
}

// ListReports returns the caller's reports with readings, newest first.
func (s *Service) ListReports(ctx context.Context, userID int64) ([]models.Report, error) {
	if userID <= 0 {
		return nil, errors.New("user_id is required")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, file_id, text_analysis, report_date, created_at
		 FROM reports WHERE user_id = ? ORDER BY report_date DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var r models.Report
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.FileID, &r.TextAnalysis, &r.ReportDate, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.Readings = make([]models.MetricReading, 0)
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range reports {
		readings, err := s.listReadings(ctx, reports[i].ID)
		if err != nil {
			return nil, err
		}
		reports[i].Readings = readings
	}
	return reports, nil
}

func (s *Service) listReadings(ctx context.Context, reportID int64) ([]models.MetricReading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, report_id, metric_id, value, status FROM metric_readings WHERE report_id = ? ORDER BY id ASC`,
		reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	readings := make([]models.MetricReading, 0)
	for rows.Next() {
		var r models.MetricReading
		if err := rows.Scan(&r.ID, &r.ReportID, &r.MetricID, &r.Value, &r.Status); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func deriveStatus(value, minValue, maxValue float64) string {
	switch {
	case value < minValue:
		return models.ReadingStatusLow
	case value > maxValue:
		return models.ReadingStatusHigh
	default:
		return models.ReadingStatusNormal
	}
}
