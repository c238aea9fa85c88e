package ux

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/okr/internal/api"
	"github.com/felixgeelhaar/okr/internal/errors"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// EnhanceError adds a recovery suggestion to errors that carry none.
// Coded errors already hold their own suggestions and are returned as is.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	var coded *errors.OKRError
	if stderrors.As(err, &coded) && len(coded.Suggestions) > 0 {
		return err
	}

	if apiErr, ok := api.AsError(err); ok {
		switch apiErr.Kind {
		case api.KindUnauthorized:
			return NewErrorWithSuggestion(err, "Run 'okr auth login' to sign in again")
		case api.KindNetwork:
			return NewErrorWithSuggestion(err,
				"Check that the backend server is running, or set OKR_API_URL / 'okr config set api.url <url>'")
		case api.KindTimeout:
			return NewErrorWithSuggestion(err,
				"Raise the request timeout with 'okr config set api.timeout 30s'")
		case api.KindNotFound:
			return NewErrorWithSuggestion(err, "Check the ID with the matching 'list' command")
		case api.KindServer:
			return NewErrorWithSuggestion(err, "Retry in a moment; run 'okr doctor' if it persists")
		}
		return err
	}

	errMsg := err.Error()

	// Permission errors on the state directory
	if strings.Contains(errMsg, "permission denied") {
		return NewErrorWithSuggestion(err,
			"Check permissions on the okr home directory (OKR_HOME, default ~/.okr)")
	}

	// Network errors
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no route to host") {
		return NewErrorWithSuggestion(err,
			"Check your network connection and firewall settings")
	}

	// Generic suggestion
	if strings.Contains(errMsg, "failed to") {
		return NewErrorWithSuggestion(err, "Re-run with --verbose for details")
	}

	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}

// PrintError writes err to w with the error style applied to its first line.
func PrintError(w io.Writer, s Styles, err error) {
	if err == nil {
		return
	}
	msg := EnhanceError(err).Error()
	head, rest, _ := strings.Cut(msg, "\n")
	fmt.Fprintln(w, s.Error.Render("Error: "+head))
	if rest != "" {
		fmt.Fprintln(w, rest)
	}
}
