package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// nameRegex matches valid package names: starting with an alphanumeric or
// underscore, 1 to 101 characters. Case is preserved and significant.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_+.-]{0,100}$`)

// userChannelRegex matches valid user and channel fields.
var userChannelRegex = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_+.-]{1,50}$`)

// ValidatePackageName validates a package name for safety and correctness.
// It rejects names that could be used for path traversal or injection attacks
// when the name becomes a store key or a remote URL segment.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path separators or traversal sequences
//   - Letters, digits, and _ + . - only
//   - Between 1 and 101 characters
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidReference, "package name cannot be empty")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidReference, "package name contains invalid control characters")
		}
	}

	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidReference, "package name contains invalid characters: %q", "..")
	}

	if !nameRegex.MatchString(name) {
		return New(ErrCodeInvalidReference, "invalid package name: %q", name)
	}

	return nil
}

// ValidateUserChannel validates the optional user or channel component of a
// reference. Empty values are allowed.
func ValidateUserChannel(field, value string) error {
	if value == "" || value == "_" {
		return nil
	}
	if !userChannelRegex.MatchString(value) {
		return New(ErrCodeInvalidReference, "invalid %s: %q", field, value)
	}
	return nil
}

// ValidatePath validates a relative path for safety.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidInput, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidInput, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidInput, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidInput, "path cannot contain backslashes")
	}

	return nil
}

// ValidateURL validates a remote URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
