package models

import "time"

// Feedback is a user-submitted message reviewed through the admin panel.
type Feedback struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	UserEmail string    `json:"user,omitempty"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
