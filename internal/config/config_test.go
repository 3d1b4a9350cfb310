package config

import "testing"

func TestValidate_InvalidAdapterDriver(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 8080},
		Adapter: AdapterConfig{Driver: "mongo"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid adapter driver")
	}

	expected := `adapter.driver must be "memory" or "redis", got "mongo"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidAdapterDrivers(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 8080},
		Adapter: AdapterConfig{Driver: "memory"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error for memory driver: %v", err)
	}

	cfg = Config{
		HTTP:    HTTPConfig{Port: 8080},
		Adapter: AdapterConfig{Driver: "redis", Addrs: []string{"localhost:6379"}},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error for redis driver: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 0},
		Adapter: AdapterConfig{Driver: "memory"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingRedisAddrs(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 8080},
		Adapter: AdapterConfig{Driver: "redis"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing redis addrs")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Adapter.Driver != "memory" {
		t.Errorf("expected Driver=memory, got %q", cfg.Adapter.Driver)
	}
	if cfg.Adapter.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Adapter.ReadinessTimeout)
	}
	if cfg.Engine.Namespace != "docbase" {
		t.Errorf("expected Namespace=docbase, got %q", cfg.Engine.Namespace)
	}
	if cfg.Engine.CacheTTLSec != 60 {
		t.Errorf("expected CacheTTLSec=60, got %d", cfg.Engine.CacheTTLSec)
	}
	if cfg.Engine.MaxRelationDepth != 3 {
		t.Errorf("expected MaxRelationDepth=3, got %d", cfg.Engine.MaxRelationDepth)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Adapter: AdapterConfig{Driver: "redis", ReadinessTimeout: 15},
		Engine:  EngineConfig{Namespace: "custom", CacheTTLSec: 120, MaxRelationDepth: 5},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Adapter.Driver != "redis" {
		t.Errorf("expected Driver=redis, got %q", cfg.Adapter.Driver)
	}
	if cfg.Engine.Namespace != "custom" {
		t.Errorf("expected Namespace=custom, got %q", cfg.Engine.Namespace)
	}
}
