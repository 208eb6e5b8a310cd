package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrFileNotFound = errors.New("stored file not found")

// FileStorage keeps uploaded ticket files under flat, unique names.
// The name passed to Save is also the key used by Open and Delete.
type FileStorage interface {
	Save(ctx context.Context, r io.Reader, name string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces an uploaded name to a safe ASCII base name.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.ReplaceAll(name, "/", " ")
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// UniqueName prefixes the sanitized name with the upload time and a random tag.
func UniqueName(original string, now time.Time) string {
	clean := SanitizeFilename(original)
	if clean == "" {
		clean = "upload"
	}
	return fmt.Sprintf("%s_%s_%s", now.UTC().Format("20060102_150405"), uuid.NewString()[:8], clean)
}

// ValidName reports whether name could have been produced by UniqueName.
func ValidName(name string) bool {
	return name != "" && SanitizeFilename(name) == name
}

// Ext returns the lower-cased extension of name without the dot.
func Ext(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}
