package ux

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/okr/internal/api"
	okrerrors "github.com/felixgeelhaar/okr/internal/errors"
)

func TestNewErrorWithSuggestion(t *testing.T) {
	if NewErrorWithSuggestion(nil, "x") != nil {
		t.Fatal("nil error should stay nil")
	}

	err := NewErrorWithSuggestion(errors.New("something failed"), "try this fix")
	msg := err.Error()
	if !strings.Contains(msg, "something failed") || !strings.Contains(msg, "try this fix") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestErrorWithSuggestion_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		suggestion string
		wantMsg    string
	}{
		{
			name:       "with suggestion",
			err:        errors.New("test error"),
			suggestion: "do this",
			wantMsg:    "test error\n\nSuggestion: do this",
		},
		{
			name:       "without suggestion",
			err:        errors.New("test error"),
			suggestion: "",
			wantMsg:    "test error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &ErrorWithSuggestion{Err: tt.err, Suggestion: tt.suggestion}
			if e.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", e.Error(), tt.wantMsg)
			}
		})
	}
}

func TestErrorWithSuggestion_Unwrap(t *testing.T) {
	origErr := &api.Error{Kind: api.KindServer, Message: "boom"}
	wrapped := NewErrorWithSuggestion(origErr, "retry")

	if !errors.Is(wrapped, origErr) {
		t.Error("wrapped error should match the original")
	}
	if _, ok := api.AsError(wrapped); !ok {
		t.Error("api error should stay reachable")
	}
}

func TestEnhanceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantSuggestion string
	}{
		{
			name:           "unauthorized",
			err:            &api.Error{Kind: api.KindUnauthorized, Message: "Session expired"},
			wantSuggestion: "okr auth login",
		},
		{
			name:           "network",
			err:            &api.Error{Kind: api.KindNetwork, Message: api.MsgNetwork},
			wantSuggestion: "OKR_API_URL",
		},
		{
			name:           "timeout",
			err:            &api.Error{Kind: api.KindTimeout, Message: api.MsgTimeout},
			wantSuggestion: "api.timeout",
		},
		{
			name:           "not found",
			err:            &api.Error{Kind: api.KindNotFound, Message: "Objective not found"},
			wantSuggestion: "'list' command",
		},
		{
			name:           "server",
			err:            &api.Error{Kind: api.KindServer, Message: "db down"},
			wantSuggestion: "okr doctor",
		},
		{
			name:           "permission denied",
			err:            errors.New("open /home/x/.okr/state.json: permission denied"),
			wantSuggestion: "OKR_HOME",
		},
		{
			name:           "connection refused",
			err:            errors.New("dial tcp: connection refused"),
			wantSuggestion: "network connection",
		},
		{
			name:           "generic failure",
			err:            errors.New("failed to render"),
			wantSuggestion: "--verbose",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EnhanceError(tt.err).Error()
			if !strings.Contains(got, tt.wantSuggestion) {
				t.Errorf("EnhanceError() = %q, want suggestion containing %q", got, tt.wantSuggestion)
			}
		})
	}
}

func TestEnhanceError_Passthrough(t *testing.T) {
	if EnhanceError(nil) != nil {
		t.Error("nil should stay nil")
	}

	coded := okrerrors.NewLoginRequiredError("/objectives")
	if got := EnhanceError(coded); got != error(coded) {
		t.Errorf("coded error with suggestions should pass through, got %v", got)
	}

	plain := errors.New("nothing to add")
	if got := EnhanceError(plain); got != plain {
		t.Errorf("unknown error should pass through, got %v", got)
	}

	client := &api.Error{Kind: api.KindClient, Message: "title is required"}
	if got := EnhanceError(client); got != error(client) {
		t.Errorf("validation error should pass through, got %v", got)
	}
}

func TestFormatError(t *testing.T) {
	if FormatError(nil, "ctx") != nil {
		t.Error("nil should stay nil")
	}

	err := FormatError(errors.New("failed to save"), "objectives create")
	if !strings.HasPrefix(err.Error(), "objectives create: failed to save") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, NewStyles(true), okrerrors.NewLoginRequiredError("/people"))

	out := buf.String()
	if !strings.HasPrefix(out, "Error: [AUTH-001] you must be signed in to continue") {
		t.Errorf("unexpected first line in %q", out)
	}
	if !strings.Contains(out, "okr auth login --redirect /people") {
		t.Errorf("expected suggestion in %q", out)
	}

	buf.Reset()
	PrintError(&buf, NewStyles(true), nil)
	if buf.Len() != 0 {
		t.Errorf("nil error should print nothing, got %q", buf.String())
	}
}
