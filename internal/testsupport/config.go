package testsupport

import (
	"path/filepath"
	"testing"

	"crawlqueue/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Store.Driver = "sqlite"
	cfgVal.Store.Path = filepath.Join(base, "data", "queue.db")
	cfgVal.Server.MetricsBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRetentionHours overrides the cleanup window on the test config.
func WithRetentionHours(hours int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.RetentionHours = hours
	}
}

// WithRedisAddress points the registry at a test server such as miniredis.
func WithRedisAddress(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Redis.Address = addr
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
