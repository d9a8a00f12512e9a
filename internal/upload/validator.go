package upload

import (
	"errors"
	"regexp"
	"strconv"
)

// DefaultMaxBytes is the upload size cap used when MAX_UPLOAD_BYTES is unset
// or malformed.
const DefaultMaxBytes int64 = 5 << 20 // 5 MiB

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// acceptedTypes is the declared-MIME allowlist for lab report documents.
var acceptedTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
	"image/tiff":      {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
}

var numericPattern = regexp.MustCompile(`^\d+$`)

// Validator performs the pure size/MIME checks on an incoming document. It
// touches neither the network nor the disk.
type Validator struct {
	maxBytes int64
}

// NewValidator builds a validator from the raw MAX_UPLOAD_BYTES value. Only a
// pure non-negative integer string overrides the default; anything else
// ("5mb", "-1", "") falls back rather than failing startup or silently
// accepting a malformed limit.
func NewValidator(rawLimit string) *Validator {
	return &Validator{maxBytes: parseLimit(rawLimit)}
}

func parseLimit(raw string) int64 {
	if !numericPattern.MatchString(raw) {
		return DefaultMaxBytes
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return DefaultMaxBytes
	}
	return limit
}

// MaxBytes reports the effective size limit.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// Check validates the declared MIME type and byte length of an upload.
func (v *Validator) Check(size int64, declaredMIME string) error {
	if _, ok := acceptedTypes[declaredMIME]; !ok {
		return ErrUnsupportedType
	}
	if size > v.maxBytes {
		return ErrFileTooLarge
	}
	return nil
}
