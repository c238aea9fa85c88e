package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCI(t *testing.T) {
	t.Helper()
	for _, v := range ciEnvVars {
		t.Setenv(v, "")
	}
}

func TestInCI(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		want   bool
	}{
		{"none", "", false},
		{"GitHub Actions", "GITHUB_ACTIONS", true},
		{"GitLab CI", "GITLAB_CI", true},
		{"Jenkins", "JENKINS_URL", true},
		{"Generic CI", "CI", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearCI(t)
			if tt.envVar != "" {
				t.Setenv(tt.envVar, "true")
			}
			assert.Equal(t, tt.want, InCI())
		})
	}
}

func TestShouldPrompt_DisabledInCI(t *testing.T) {
	clearCI(t)
	t.Setenv("CI", "true")
	assert.False(t, ShouldPrompt())
}

func TestPromptForCredentials_NothingMissing(t *testing.T) {
	in := Credentials{Email: "ada@example.com", Password: "secret"}
	got, err := PromptForCredentials(in)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestPromptForSelect_NoOptions(t *testing.T) {
	_, err := PromptForSelect("Pick", nil)
	assert.Error(t, err)
}

func TestRequired(t *testing.T) {
	check := required("email")
	assert.EqualError(t, check("  "), "email is required")
	assert.NoError(t, check("ada@example.com"))
}
