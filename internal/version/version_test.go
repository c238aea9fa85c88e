package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetInfo(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123def456", "2026-01-01T12:00:00Z"
	defer func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	}()

	info := GetInfo()
	if info.Version != "1.0.0" || info.Commit != "abc123def456" || info.Date != "2026-01-01T12:00:00Z" {
		t.Errorf("GetInfo() = %+v, ldflags values not picked up", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GetInfo().GoVersion = %v, want %v", info.GoVersion, runtime.Version())
	}
	if want := runtime.GOOS + "/" + runtime.GOARCH; info.Platform != want {
		t.Errorf("GetInfo().Platform = %v, want %v", info.Platform, want)
	}
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name   string
		commit string
		want   string
	}{
		{"long commit is truncated", "abc123def456", "(abc123de)"},
		{"short commit kept", "abc123", "(abc123)"},
		{"unknown commit", "unknown", "(unknown)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Info{Version: "1.0.0", Commit: tt.commit, Date: "2026-01-01", GoVersion: "go1.24.6", Platform: "linux/amd64"}
			got := info.String()
			if !strings.HasPrefix(got, "okr 1.0.0 ") {
				t.Errorf("Info.String() = %q, want okr prefix", got)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Info.String() = %q, missing %q", got, tt.want)
			}
			if !strings.HasSuffix(got, "with go1.24.6 for linux/amd64") {
				t.Errorf("Info.String() = %q, missing toolchain suffix", got)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	info := Info{Version: "1.2.3", Platform: "darwin/arm64"}
	if got := info.UserAgent(); got != "okr-cli/1.2.3 (darwin/arm64)" {
		t.Errorf("UserAgent() = %q", got)
	}
}
