package telemetry

import (
	"context"
	"testing"
)

func TestInitProviderDisabled(t *testing.T) {
	ctx := context.Background()
	shutdown, err := InitProvider(ctx, DefaultConfig())
	if err != nil {
		t.Fatalf("InitProvider failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function, got nil")
	}
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestInitProviderEnabledWithoutExporter(t *testing.T) {
	config := DefaultConfig()
	config.Enabled = true
	config.SampleRate = 0.5

	ctx := context.Background()
	shutdown, err := InitProvider(ctx, config)
	if err != nil {
		t.Fatalf("InitProvider failed: %v", err)
	}
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestShutdownWithoutInit(t *testing.T) {
	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestFromEndpoint(t *testing.T) {
	cfg := FromEndpoint("", "1.2.3")
	if cfg.Enabled {
		t.Error("tracing should stay disabled without an endpoint")
	}
	if cfg.ServiceVersion != "1.2.3" {
		t.Errorf("ServiceVersion = %q, want 1.2.3", cfg.ServiceVersion)
	}

	cfg = FromEndpoint("localhost:4318", "")
	if !cfg.Enabled || cfg.Endpoint != "localhost:4318" {
		t.Errorf("endpoint should enable tracing: %+v", cfg)
	}
	if cfg.ServiceName != "okr" || cfg.ServiceVersion != "dev" {
		t.Errorf("unexpected identity: %+v", cfg)
	}
}
