package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestServerConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "server.yaml")
	data := []byte("port: 9000\nsend_queue: 8\nwrite_timeout: 2s\nfile_root: /srv/files\nallowed_origins: [\"https://a\"]\n")
	if err := os.WriteFile(file, data, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var cfg ServerConfig
	cfg.SetDefaults()
	if cfg.Port != 8080 || cfg.SendQueue != 64 || cfg.FileChunkSize != 64<<10 {
		t.Fatalf("defaults: %+v", cfg)
	}
	if err := cfg.LoadFile(file); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Port != 9000 || cfg.SendQueue != 8 || cfg.WriteTimeout != 2*time.Second || cfg.FileRoot != "/srv/files" {
		t.Fatalf("file values: %+v", cfg)
	}

	t.Setenv("PORT", "9100")
	t.Setenv("METRICS_PORT", "9200")
	t.Setenv("PUSH_RATE", "50")
	cfg.ApplyEnv()
	if cfg.Port != 9100 || cfg.MetricsAddr != ":9200" || cfg.PushRate != 50 {
		t.Fatalf("env values: %+v", cfg)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.BindFlagsFromCurrent(fs)
	if err := fs.Parse([]string{"--port", "9300", "--allowed-origins", "https://x, https://y", "--metrics-port", "127.0.0.1:9400"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != 9300 || cfg.MetricsAddr != "127.0.0.1:9400" {
		t.Fatalf("flag values: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://y" {
		t.Fatalf("origins: %v", cfg.AllowedOrigins)
	}
}

func TestPushBurstDefault(t *testing.T) {
	cfg := ServerConfig{PushRate: 0.5}
	cfg.SetDefaults()
	if cfg.PushBurst != 1 {
		t.Fatalf("burst = %d; want 1", cfg.PushBurst)
	}
}

func TestLoadFileMissing(t *testing.T) {
	var cfg ServerConfig
	err := cfg.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
