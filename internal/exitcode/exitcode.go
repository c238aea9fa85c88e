package exitcode

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/okr/internal/api"
	"github.com/felixgeelhaar/okr/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// NotFound indicates the requested record does not exist
	NotFound = 3

	// ServerError indicates the API answered with a 5xx or an unreadable body
	ServerError = 4

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// Interrupted indicates the command was canceled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	code := DetermineExitCode(err)
	Exit(code)
}

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Typed API and coded errors are matched first; the message is inspected only
// when neither is found in the chain.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var coded *errors.OKRError
	if stderrors.As(err, &coded) {
		if code, ok := fromErrorCode(coded.Code); ok {
			return code
		}
	}

	if apiErr, ok := api.AsError(err); ok {
		return fromKind(apiErr.Kind)
	}

	return fromMessage(strings.ToLower(err.Error()))
}

func fromErrorCode(code errors.ErrorCode) (int, bool) {
	switch {
	case strings.HasPrefix(string(code), "AUTH-"):
		return AuthError, true
	case code == errors.ErrCodeAPINotFound:
		return NotFound, true
	case code == errors.ErrCodeAPIServer, code == errors.ErrCodeAPIDecode:
		return ServerError, true
	case strings.HasPrefix(string(code), "NET-"):
		return NetworkError, true
	case strings.HasPrefix(string(code), "CFG-"), code == errors.ErrCodeAPIValidation:
		return UsageError, true
	}
	return 0, false
}

func fromKind(kind api.Kind) int {
	switch kind {
	case api.KindUnauthorized:
		return AuthError
	case api.KindNotFound:
		return NotFound
	case api.KindServer, api.KindDecode:
		return ServerError
	case api.KindNetwork, api.KindTimeout:
		return NetworkError
	default:
		return GeneralError
	}
}

func fromMessage(errMsg string) int {
	// Authentication errors
	if strings.Contains(errMsg, "authentication") || strings.Contains(errMsg, "unauthorized") {
		return AuthError
	}
	if strings.Contains(errMsg, "signed in") || strings.Contains(errMsg, "token") {
		return AuthError
	}
	if strings.Contains(errMsg, "forbidden") || strings.Contains(errMsg, "permission denied") {
		return AuthError
	}

	// Network errors
	if strings.Contains(errMsg, "network") || strings.Contains(errMsg, "connection") {
		return NetworkError
	}
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unreachable") {
		return NetworkError
	}
	if strings.Contains(errMsg, "no route to host") || strings.Contains(errMsg, "dns") {
		return NetworkError
	}

	// Usage errors
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "missing argument") {
		return UsageError
	}
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "invalid argument") {
		return UsageError
	}
	if strings.Contains(errMsg, "accepts") && strings.Contains(errMsg, "arg(s)") {
		return UsageError
	}

	// Default to general error
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case NotFound:
		return "Record not found"
	case ServerError:
		return "Server error"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
