package models

import "time"

// GeminiSettings is the in-process view of the singleton AI configuration:
// the stored API key plus the active system prompt.
type GeminiSettings struct {
	APIKey       string
	SystemPrompt string
}

// AnalysisResult is produced once per analyze call. It is not persisted
// unless the caller saves a Report from it.
type AnalysisResult struct {
	Success   bool      `json:"success"`
	Analysis  string    `json:"analysis,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
