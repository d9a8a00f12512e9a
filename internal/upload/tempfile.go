package upload

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// SaveTemp writes the upload to a uniquely named file in the platform temp
// directory and returns its path. The name combines a random component with
// the sanitized basename of the original filename, so path-traversal segments
// in the client-supplied name can never influence the target directory.
//
// Callers own the returned path and must release it with RemoveTemp on every
// exit path, success or failure.
func SaveTemp(r io.Reader, originalName string) (string, error) {
	name := fmt.Sprintf("%s-%s", uuid.NewString(), SanitizeFilename(originalName))
	path := filepath.Join(os.TempDir(), name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		RemoveTemp(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		RemoveTemp(path)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

// RemoveTemp deletes a temp file. Failures are logged and swallowed so
// cleanup can never mask the primary result of a request.
func RemoveTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("remove temp file %s failed: %v", path, err)
	}
}

// SanitizeFilename reduces a client-supplied filename to a safe base
// component: directory segments are stripped and both separator styles are
// removed regardless of platform.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "upload"
	}
	return name
}
