package errors

import (
	"math"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

// ValidateThreshold checks a length threshold in km. A required threshold
// must be positive; an optional one may also be zero, meaning unset.
func ValidateThreshold(name string, v float64, required bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(ErrCodeInvalidThreshold, "%s must be a finite number, got %v", name, v)
	}
	if required && v <= 0 {
		return New(ErrCodeInvalidThreshold, "%s must be positive, got %v", name, v)
	}
	if v < 0 {
		return New(ErrCodeInvalidThreshold, "%s must not be negative, got %v", name, v)
	}
	return nil
}

// ValidatePath validates a table file path given on the command line or in
// a config file.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}
	return nil
}

// ValidateExtension checks that path ends in one of the allowed extensions.
// Extensions are compared case-insensitively and include the leading dot.
func ValidateExtension(path string, allowed ...string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(allowed, ext) {
		return New(ErrCodeInvalidFormat, "unsupported file extension %q (want one of %s)", ext, strings.Join(allowed, ", "))
	}
	return nil
}

// ValidateCOMIDs checks a list of segment identifiers, such as an exclude
// list.
func ValidateCOMIDs(ids []int64) error {
	for _, id := range ids {
		if id <= 0 {
			return New(ErrCodeInvalidInput, "COMID must be positive, got %d", id)
		}
	}
	return nil
}
