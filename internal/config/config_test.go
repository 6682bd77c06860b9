package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	doc := `
listen_addr: ":9000"
advancement_dir: "/srv/advancements"
flush_interval_ms: 100
telemetry_enabled: true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ListenAddr != ":9000" || c.AdvancementDir != "/srv/advancements" {
		t.Fatalf("config = %+v", c)
	}
	if c.FlushIntervalMs != 100 || !c.TelemetryEnabled {
		t.Fatalf("config = %+v", c)
	}
	// Unset fields keep their defaults.
	if c.DataDir != Default().DataDir {
		t.Fatalf("data dir = %q", c.DataDir)
	}
}

func TestLoad_BadInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("flush_interval_ms: -5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.FlushIntervalMs != Default().FlushIntervalMs {
		t.Fatalf("interval = %d", c.FlushIntervalMs)
	}
}
