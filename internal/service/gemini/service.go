package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bloodinsight/internal/models"
	"bloodinsight/internal/service/settings"
	"bloodinsight/internal/service/usage"
)

// DefaultModel is the generation model used for lab report analysis.
const DefaultModel = "gemini-2.5-pro"

// handlePrefix is the documented naming convention for file resource handles.
// Handles are otherwise opaque and passed through unmodified.
const handlePrefix = "files/"

// Service orchestrates the upload-and-analyze pipeline: it resolves the API
// credential, registers documents with the hosting service, and merges the
// stored instruction template with a registered file into one generation
// request.
type Service struct {
	settings    *settings.Service
	usage       *usage.Service
	factory     ClientFactory
	fallbackKey string
	model       string

	mu        sync.Mutex
	client    Client
	clientKey string
}

// NewService wires the orchestrator. fallbackKey is the environment-level
// credential used when no configuration row exists; usage may be nil.
func NewService(settingsSvc *settings.Service, usageSvc *usage.Service, factory ClientFactory, fallbackKey, model string) *Service {
	if factory == nil {
		factory = NewGenaiClient
	}
	if model == "" {
		model = DefaultModel
	}
	return &Service{
		settings:    settingsSvc,
		usage:       usageSvc,
		factory:     factory,
		fallbackKey: fallbackKey,
		model:       model,
	}
}

// resolve returns a ready client plus the active system prompt. Resolution
// order: stored configuration row, then the environment fallback. With
// neither present it fails before any network call is attempted.
func (s *Service) resolve(ctx context.Context) (Client, string, error) {
	cfg, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load settings: %w", err)
	}
	key := cfg.APIKey
	if key == "" {
		key = s.fallbackKey
	}
	if key == "" {
		return nil, "", ErrNotConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || s.clientKey != key {
		client, err := s.factory(ctx, key, s.model)
		if err != nil {
			return nil, "", fmt.Errorf("build gemini client: %w", err)
		}
		s.client = client
		s.clientKey = key
	}
	return s.client, cfg.SystemPrompt, nil
}

// RegisterFile hands a validated temporary file to the hosting service and
// returns the opaque handle identifying it. The caller keeps ownership of the
// local file and deletes it when the request finishes.
func (s *Service) RegisterFile(ctx context.Context, userID int64, path, mimeType, displayName string) (handle string, err error) {
	started := time.Now()
	defer func() { s.track("/api/upload", userID, started, err) }()

	client, _, err := s.resolve(ctx)
	if err != nil {
		return "", err
	}
	handle, err = client.UploadFile(ctx, path, mimeType, displayName)
	if err != nil {
		return "", classifyUpstream(err)
	}
	return handle, nil
}

// Analyze resolves a handle into a file reference and asks the model for an
// analysis. The returned text is exactly what the model produced.
func (s *Service) Analyze(ctx context.Context, userID int64, handle string) (result *models.AnalysisResult, err error) {
	started := time.Now()
	defer func() { s.track("/api/analyze", userID, started, err) }()

	if handle == "" || !strings.HasPrefix(handle, handlePrefix) {
		return nil, ErrInvalidHandle
	}

	client, prompt, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	ref, err := client.LookupFile(ctx, handle)
	if err != nil {
		return nil, classifyUpstream(err)
	}
	if ref.MIMEType == "" {
		ref.MIMEType = "application/octet-stream"
	}

	instruction := prompt + "\n\nAnalyze the lab report contained in the uploaded file referenced below:"
	text, err := client.GenerateFromFile(ctx, instruction, ref)
	if err != nil {
		return nil, classifyUpstream(err)
	}
	return &models.AnalysisResult{Success: true, Analysis: text, Timestamp: time.Now().UTC()}, nil
}

// AnalyzeText analyzes pasted report text without a file registration step.
func (s *Service) AnalyzeText(ctx context.Context, userID int64, content string) (result *models.AnalysisResult, err error) {
	started := time.Now()
	defer func() { s.track("/api/analyze-text", userID, started, err) }()

	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	client, prompt, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}
	text, err := client.GenerateFromText(ctx, prompt, content)
	if err != nil {
		return nil, classifyUpstream(err)
	}
	return &models.AnalysisResult{Success: true, Analysis: text, Timestamp: time.Now().UTC()}, nil
}

// SystemPrompt exposes the active instruction template for the admin page.
func (s *Service) SystemPrompt(ctx context.Context) (string, error) {
	cfg, err := s.settings.Settings(ctx)
	if err != nil {
		return "", err
	}
	return cfg.SystemPrompt, nil
}

// track records one usage entry. It never blocks or fails the request.
func (s *Service) track(endpoint string, userID int64, started time.Time, err error) {
	if s.usage == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.usage.Record(endpoint, userID, status, time.Since(started))
}
