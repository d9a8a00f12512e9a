package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bloodinsight/internal/models"
)

// Service manages user feedback reviewed through the admin panel.
type Service struct {
	db *sql.DB
}

// NewService builds a feedback service over the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create stores a new feedback entry. Status defaults to "New".
func (s *Service) Create(ctx context.Context, userID int64, message, category, status string) (*models.Feedback, error) {
	if userID <= 0 {
		return nil, errors.New("user_id is required")
	}
	message = strings.TrimSpace(message)
	category = strings.TrimSpace(category)
	if message == "" || category == "" {
		return nil, errors.New("message and category are required")
	}
	if status == "" {
		status = "New"
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (user_id, message, category, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, message, category, status, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("feedback id: %w", err)
	}
	return &models.Feedback{
		ID: id, UserID: userID, Message: message, Category: category,
		Status: status, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// List returns all feedback entries with the submitter's email, newest first.
func (s *Service) List(ctx context.Context) ([]models.Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.user_id, u.email, f.message, f.category, f.status, f.created_at, f.updated_at
		 FROM feedback f JOIN users u ON u.id = f.user_id
		 ORDER BY f.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	items := make([]models.Feedback, 0)
	for rows.Next() {
		var f models.Feedback
		if err := rows.Scan(&f.ID, &f.UserID, &f.UserEmail, &f.Message, &f.Category, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

// Update modifies the message, category, and/or status of one entry. Empty
// fields keep their stored value.
func (s *Service) Update(ctx context.Context, id int64, message, category, status string) (*models.Feedback, error) {
	if id <= 0 {
		return nil, errors.New("invalid feedback id")
	}

	var f models.Feedback
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, message, category, status, created_at, updated_at FROM feedback WHERE id = ?`, id,
	).Scan(&f.ID, &f.UserID, &f.Message, &f.Category, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find feedback: %w", err)
	}

	if m := strings.TrimSpace(message); m != "" {
		f.Message = m
	}
	if c := strings.TrimSpace(category); c != "" {
		f.Category = c
	}
	if st := strings.TrimSpace(status); st != "" {
		f.Status = st
	}
	f.UpdatedAt = time.Now().UTC()

	if _, err := s.db.ExecContext(ctx,
		`UPDATE feedback SET message = ?, category = ?, status = ?, updated_at = ? WHERE id = ?`,
		f.Message, f.Category, f.Status, f.UpdatedAt, f.ID,
	); err != nil {
		return nil, fmt.Errorf("update feedback: %w", err)
	}
	return &f, nil
}

// Delete removes one entry.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid feedback id")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM feedback WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
