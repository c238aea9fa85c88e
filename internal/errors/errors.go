package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeLoginRequired        ErrorCode = "AUTH-001"
	ErrCodeSessionExpired       ErrorCode = "AUTH-002"
	ErrCodeInvalidCredentials   ErrorCode = "AUTH-003"
	ErrCodeAlreadyAuthenticated ErrorCode = "AUTH-004"
	ErrCodeOAuthFailed          ErrorCode = "AUTH-005"
	ErrCodeOAuthTimeout         ErrorCode = "AUTH-006"

	// API errors (API-001 to API-099)
	ErrCodeAPIRequest    ErrorCode = "API-001"
	ErrCodeAPINotFound   ErrorCode = "API-002"
	ErrCodeAPIValidation ErrorCode = "API-003"
	ErrCodeAPIServer     ErrorCode = "API-004"
	ErrCodeAPIDecode     ErrorCode = "API-005"

	// Network errors (NET-001 to NET-099)
	ErrCodeNetworkDown    ErrorCode = "NET-001"
	ErrCodeNetworkTimeout ErrorCode = "NET-002"

	// Local storage errors (STORE-001 to STORE-099)
	ErrCodeStorageRead    ErrorCode = "STORE-001"
	ErrCodeStorageWrite   ErrorCode = "STORE-002"
	ErrCodeStorageCorrupt ErrorCode = "STORE-003"

	// Configuration errors (CFG-001 to CFG-099)
	ErrCodeConfigInvalid ErrorCode = "CFG-001"
	ErrCodeConfigKey     ErrorCode = "CFG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileReadFailed  ErrorCode = "IO-001"
	ErrCodeFileWriteFailed ErrorCode = "IO-002"
	ErrCodeDirectoryFailed ErrorCode = "IO-003"
)

// OKRError represents an error with code, suggestions, and documentation
type OKRError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *OKRError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *OKRError) Unwrap() error {
	return e.Cause
}

// New creates a new OKRError
func New(code ErrorCode, message string) *OKRError {
	return &OKRError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new OKRError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *OKRError {
	return &OKRError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *OKRError) WithSuggestion(suggestion string) *OKRError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *OKRError) WithSuggestions(suggestions ...string) *OKRError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *OKRError) WithDocs(url string) *OKRError {
	e.DocsURL = url
	return e
}

// Is reports whether err is an OKRError carrying code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*OKRError); ok && e.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// NewLoginRequiredError is returned when a command needs a session and none is held.
// redirect is the path the user was trying to reach.
func NewLoginRequiredError(redirect string) *OKRError {
	login := "okr auth login"
	if redirect != "" && redirect != "/" {
		login += " --redirect " + redirect
	}
	return New(ErrCodeLoginRequired, "you must be signed in to continue").
		WithSuggestion(fmt.Sprintf("Run '%s' to sign in", login)).
		WithSuggestion("Run 'okr auth google' to sign in with Google")
}

// NewSessionExpiredError creates an error for a token the server rejected
func NewSessionExpiredError(cause error) *OKRError {
	return Wrap(ErrCodeSessionExpired, "your session has expired", cause).
		WithSuggestion("Run 'okr auth login' to sign in again")
}

// NewAlreadyAuthenticatedError creates an error for guest-only commands run while signed in
func NewAlreadyAuthenticatedError(email string) *OKRError {
	msg := "already signed in"
	if email != "" {
		msg = fmt.Sprintf("already signed in as %s", email)
	}
	return New(ErrCodeAlreadyAuthenticated, msg).
		WithSuggestion("Run 'okr auth logout' to switch accounts")
}

// NewNotFoundError creates a missing resource error
func NewNotFoundError(resource, id string) *OKRError {
	return New(ErrCodeAPINotFound, fmt.Sprintf("%s not found: %s", resource, id)).
		WithSuggestion(fmt.Sprintf("Run 'okr %ss list' to see available records", resource))
}

// NewNetworkError creates an unreachable backend error
func NewNetworkError(baseURL string, cause error) *OKRError {
	return Wrap(ErrCodeNetworkDown, fmt.Sprintf("cannot reach API at %s", baseURL), cause).
		WithSuggestion("Check that the backend server is running").
		WithSuggestion("Set OKR_API_URL or run 'okr config set api.url <url>'")
}

// NewStorageCorruptError creates an error for an unreadable persisted value
func NewStorageCorruptError(key string, cause error) *OKRError {
	return Wrap(ErrCodeStorageCorrupt, fmt.Sprintf("stored value for %q is corrupt", key), cause).
		WithSuggestion("Run 'okr auth logout' to reset local state")
}

// NewConfigKeyError creates an unknown configuration key error
func NewConfigKeyError(key string) *OKRError {
	return New(ErrCodeConfigKey, fmt.Sprintf("unknown configuration key: %s", key)).
		WithSuggestion("Run 'okr config view' to list available keys")
}
