package gemini

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured means no API key is available from the store or the
	// environment fallback. No network call is attempted in that state.
	ErrNotConfigured = errors.New("gemini api key not configured")
	// ErrInvalidHandle means the supplied file handle is empty or does not
	// follow the collaborator's reference naming convention.
	ErrInvalidHandle = errors.New("missing or invalid file id")
	// ErrEmptyContent means an inline analysis was requested without text.
	ErrEmptyContent = errors.New("no content provided")
)

// UpstreamKind is the best-effort classification of an upstream failure.
type UpstreamKind int

const (
	KindGeneric UpstreamKind = iota
	KindInvalidAPIKey
	KindFileAccess
	KindPermission
)

// UpstreamError wraps a failure from the hosted service with its classified
// kind.
type UpstreamError struct {
	Kind UpstreamKind
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gemini upstream: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// classifyUpstream maps an SDK error onto an UpstreamError by sniffing its
// message. The upstream API exposes no typed errors, so this is a heuristic
// over documented substrings; wording may change upstream without notice.
func classifyUpstream(err error) *UpstreamError {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "API key not valid"),
		strings.Contains(msg, "API_KEY_INVALID"):
		return &UpstreamError{Kind: KindInvalidAPIKey, Err: err}
	case strings.Contains(msg, "Unable to find file"),
		strings.Contains(msg, "NOT_FOUND"),
		strings.Contains(msg, "not exist"):
		return &UpstreamError{Kind: KindFileAccess, Err: err}
	case strings.Contains(msg, "PERMISSION_DENIED"),
		strings.Contains(strings.ToLower(msg), "permission"):
		return &UpstreamError{Kind: KindPermission, Err: err}
	default:
		return &UpstreamError{Kind: KindGeneric, Err: err}
	}
}
