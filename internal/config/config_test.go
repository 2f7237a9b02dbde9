package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"crawlqueue/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "crawlqueue")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.StorePath() != filepath.Join(wantData, "queue.db") {
		t.Fatalf("unexpected store path: %q", cfg.StorePath())
	}
	if cfg.Store.Driver != "sqlite" {
		t.Fatalf("unexpected driver: %q", cfg.Store.Driver)
	}
	if cfg.Retention() != 24*time.Hour {
		t.Fatalf("unexpected retention: %v", cfg.Retention())
	}
	if cfg.ProcessTTL() != 2*time.Minute {
		t.Fatalf("unexpected process ttl: %v", cfg.ProcessTTL())
	}
	if cfg.ReaperInterval() != 30*time.Second {
		t.Fatalf("unexpected reaper interval: %v", cfg.ReaperInterval())
	}
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	payload := struct {
		Store config.Store `toml:"store"`
		Queue config.Queue `toml:"queue"`
		Redis config.Redis `toml:"redis"`
	}{
		Store: config.Store{Driver: "postgresql", DSN: "postgres://crawler@localhost/crawler"},
		Queue: config.Queue{RetentionHours: 48},
		Redis: config.Redis{Address: "redis:6379", KeyPrefix: "crawl:"},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Store.Driver != "postgres" {
		t.Fatalf("expected postgres driver alias to normalize, got %q", cfg.Store.Driver)
	}
	if cfg.Retention() != 48*time.Hour {
		t.Fatalf("unexpected retention: %v", cfg.Retention())
	}
	if cfg.Redis.KeyPrefix != "crawl" {
		t.Fatalf("expected trimmed key prefix, got %q", cfg.Redis.KeyPrefix)
	}
	if cfg.Queue.FetchLimit != 50 {
		t.Fatalf("expected default fetch limit, got %d", cfg.Queue.FetchLimit)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[queue]\nretention = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestPostgresRequiresDSN(t *testing.T) {
	t.Setenv("CRAWLQUEUE_DSN", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[store]\ndriver = \"postgres\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "store.dsn") {
		t.Fatalf("expected dsn error, got %v", err)
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("CRAWLQUEUE_DSN", "postgres://env@localhost/crawler")
	t.Setenv("CRAWLQUEUE_REDIS_ADDR", "env-redis:6379")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[store]\ndriver = \"postgres\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.DSN != "postgres://env@localhost/crawler" {
		t.Fatalf("expected dsn from env, got %q", cfg.Store.DSN)
	}
	if cfg.Redis.Address != "env-redis:6379" {
		t.Fatalf("expected redis address from env, got %q", cfg.Redis.Address)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"driver":    func(c *config.Config) { c.Store.Driver = "mysql" },
		"retention": func(c *config.Config) { c.Queue.RetentionHours = -1 },
		"redis db":  func(c *config.Config) { c.Redis.DB = -2 },
		"format":    func(c *config.Config) { c.Logging.Format = "xml" },
		"level":     func(c *config.Config) { c.Logging.Level = "trace" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Redis.ProcessTTLSeconds != 120 {
		t.Fatalf("unexpected sample ttl %d", cfg.Redis.ProcessTTLSeconds)
	}
}

func TestEnsureDirectoriesCreatesStoreDir(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Store.Path = filepath.Join(base, "db", "queue.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{"data", "logs", "db"} {
		if info, err := os.Stat(filepath.Join(base, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory, got %v", dir, err)
		}
	}
}
