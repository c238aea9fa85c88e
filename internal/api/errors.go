package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

// Kind classifies a failed request.
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindNetwork      Kind = "network"
	KindCanceled     Kind = "canceled"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindClient       Kind = "client"
	KindServer       Kind = "server"
	KindDecode       Kind = "decode"
)

// User-facing transport messages.
const (
	MsgTimeout  = "Request timeout - please check your connection"
	MsgNetwork  = "Network error - please check if the backend server is running"
	MsgCanceled = "Request canceled"
)

// Error is a normalized request failure.
type Error struct {
	Kind       Kind
	StatusCode int

	// Message is always set and safe to display.
	Message string

	// ServerMessage is the message supplied in the response payload, if any.
	ServerMessage string

	Method    string
	Path      string
	RequestID string
	Cause     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// LogAttrs implements log.Attributer.
func (e *Error) LogAttrs() []any {
	attrs := []any{"kind", string(e.Kind)}
	if e.StatusCode != 0 {
		attrs = append(attrs, "status", e.StatusCode)
	}
	if e.Method != "" {
		attrs = append(attrs, "method", e.Method, "path", e.Path)
	}
	if e.RequestID != "" {
		attrs = append(attrs, "request_id", e.RequestID)
	}
	if e.Cause != nil {
		attrs = append(attrs, "cause", e.Cause.Error())
	}
	return attrs
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 rejection.
func IsUnauthorized(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindUnauthorized
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if e, ok := AsError(err); ok {
		return e.StatusCode
	}
	return 0
}

// ServerMessage returns the payload-supplied message of err, or fallback.
func ServerMessage(err error, fallback string) string {
	if e, ok := AsError(err); ok && e.ServerMessage != "" {
		return e.ServerMessage
	}
	return fallback
}

// transportError classifies a failure that produced no response.
func transportError(ctx context.Context, err error) *Error {
	if stderrors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
		return &Error{Kind: KindCanceled, Message: MsgCanceled, Cause: err}
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: MsgTimeout, Cause: err}
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: MsgTimeout, Cause: err}
	}

	var urlErr *url.Error
	if stderrors.As(err, &urlErr) && urlErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: MsgTimeout, Cause: err}
	}

	return &Error{Kind: KindNetwork, Message: MsgNetwork, Cause: err}
}

// responseError classifies a non-2xx response.
// The payload message is read from "error", then "message".
func responseError(status int, body []byte) *Error {
	serverMsg := payloadMessage(body)

	e := &Error{StatusCode: status, ServerMessage: serverMsg}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
		e.Message = orDefault(serverMsg, "Unauthorized - please sign in again")
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = orDefault(serverMsg, "Resource not found")
	case status >= 400 && status < 500:
		e.Kind = KindClient
		e.Message = orDefault(serverMsg, fmt.Sprintf("Request failed with status %d", status))
	default:
		e.Kind = KindServer
		e.Message = orDefault(serverMsg, fmt.Sprintf("Server error (status %d) - please try again later", status))
	}
	return e
}

func payloadMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	for _, key := range []string{"error", "message"} {
		if v := gjson.GetBytes(body, key); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	// Some handlers nest the message: {"error": {"message": "..."}}.
	if v := gjson.GetBytes(body, "error.message"); v.Type == gjson.String {
		return v.String()
	}
	return ""
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}
