package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bloodinsight/internal/models"
)

// DefaultSystemPrompt is used until an admin stores a prompt of their own.
const DefaultSystemPrompt = `You are BloodInsight AI, an assistant specialized in analyzing and explaining blood test and lab reports.
Your task is to:
1. Extract key metrics and values from the provided lab report
2. Identify which values are within normal range and which are outside normal range
3. Provide a clear, simple explanation of what each metric means and its significance
4. Offer general insights about the overall health picture based on these results
5. Suggest potential lifestyle modifications or follow-up actions when appropriate

Important notes:
- Always clarify that your analysis is for educational purposes only and not a substitute for medical advice
- Use plain, accessible language that a non-medical person can understand
- When values are outside normal range, explain the potential implications without causing alarm
- Organize information in a structured, easy-to-read format
- Focus on factual information and avoid speculative diagnoses`

// Service manages the singleton Gemini configuration row and the default
// system prompt. Reads go through an in-process cache that is populated
// lazily and invalidated on every successful write; the next read reloads
// both fields from the database, so a read right after a write observes the
// new value within the same process.
type Service struct {
	db *sql.DB

	mu     sync.RWMutex
	cached *models.GeminiSettings
}

// NewService builds a settings service over the given database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Settings returns the current configuration, loading it on first use.
func (s *Service) Settings(ctx context.Context) (models.GeminiSettings, error) {
	s.mu.RLock()
	if s.cached != nil {
		out := *s.cached
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	loaded, err := s.load(ctx)
	if err != nil {
		return models.GeminiSettings{}, err
	}
	s.mu.Lock()
	s.cached = &loaded
	s.mu.Unlock()
	return loaded, nil
}

func (s *Service) load(ctx context.Context) (models.GeminiSettings, error) {
	out := models.GeminiSettings{SystemPrompt: DefaultSystemPrompt}

	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT api_key FROM gemini_config ORDER BY id LIMIT 1`,
	).Scan(&key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return out, fmt.Errorf("load gemini config: %w", err)
	}
	out.APIKey = key

	var prompt string
	err = s.db.QueryRowContext(ctx,
		`SELECT content FROM system_prompts WHERE is_default = 1 ORDER BY id LIMIT 1`,
	).Scan(&prompt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return out, fmt.Errorf("load system prompt: %w", err)
	}
	if prompt != "" {
		out.SystemPrompt = prompt
	}
	return out, nil
}

// UpdateAPIKey stores a new API key. Exactly one gemini_config row is
// authoritative: an existing row is updated in place, otherwise one is
// created. A concurrent create racing this one resolves to an update.
func (s *Service) UpdateAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key cannot be empty")
	}

	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM gemini_config ORDER BY id LIMIT 1`).Scan(&id)
	switch {
	case err == nil:
		if _, err := s.db.ExecContext(ctx,
			`UPDATE gemini_config SET api_key = ?, updated_at = ? WHERE id = ?`, key, now, id,
		); err != nil {
			return fmt.Errorf("update gemini config: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO gemini_config (api_key, updated_at) VALUES (?, ?)`, key, now,
		); err != nil {
			// another writer may have created the row first
			if _, uerr := s.db.ExecContext(ctx,
				`UPDATE gemini_config SET api_key = ?, updated_at = ?`, key, now,
			); uerr != nil {
				return fmt.Errorf("insert gemini config: %w", err)
			}
		}
	default:
		return fmt.Errorf("find gemini config: %w", err)
	}

	s.invalidate()
	return nil
}

// UpdateSystemPrompt stores a new default instruction template with the same
// find-first-or-create discipline as the API key.
func (s *Service) UpdateSystemPrompt(ctx context.Context, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("system prompt cannot be empty")
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM system_prompts WHERE is_default = 1 ORDER BY id LIMIT 1`,
	).Scan(&id)
	switch {
	case err == nil:
		if _, err := s.db.ExecContext(ctx,
			`UPDATE system_prompts SET content = ? WHERE id = ?`, prompt, id,
		); err != nil {
			return fmt.Errorf("update system prompt: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO system_prompts (name, content, is_default) VALUES ('Default', ?, 1)`, prompt,
		); err != nil {
			if _, uerr := s.db.ExecContext(ctx,
				`UPDATE system_prompts SET content = ? WHERE is_default = 1`, prompt,
			); uerr != nil {
				return fmt.Errorf("insert system prompt: %w", err)
			}
		}
	default:
		return fmt.Errorf("find system prompt: %w", err)
	}

	s.invalidate()
	return nil
}

// invalidate drops the cached view. Rebuilding from the database on the next
// read keeps a write from masking the field it did not touch, even when the
// cache was never populated before the write.
func (s *Service) invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
