package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSettingsValidate(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
	if s.ComponentsDir == "" || s.PackagesDir == "" {
		t.Error("default directories not populated")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empack.yaml")
	content := `
components_dir: /opt/empack/components
blueprints_dir: /opt/empack/blueprints
packages_dir: /opt/empack/datapackages
telemetry:
  logging:
    level: debug
    format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.ComponentsDir != "/opt/empack/components" {
		t.Errorf("ComponentsDir = %q", s.ComponentsDir)
	}
	if s.Telemetry.Logging.Level != "debug" || s.Telemetry.Logging.Format != "json" {
		t.Errorf("telemetry logging not loaded: %+v", s.Telemetry.Logging)
	}
	// File must not clobber defaults it does not mention.
	if s.RawDir == "" {
		t.Error("RawDir default lost during file merge")
	}
}

func TestEnvironmentWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empack.yaml")
	if err := os.WriteFile(path, []byte("components_dir: /from/file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("COMPONENTS_DIR", "/from/env")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.ComponentsDir != "/from/env" {
		t.Errorf("ComponentsDir = %q, want /from/env", s.ComponentsDir)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empack.yaml")
	if err := os.WriteFile(path, []byte("components_dir: [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	if _, err := Load(""); err == nil {
		t.Error("expected validation error for unknown log level")
	}
}
