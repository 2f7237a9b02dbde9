package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeRedis()
	c.normalizeServer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "":
		c.Store.Driver = defaultStoreDriver
	case "sqlite3":
		c.Store.Driver = "sqlite"
	case "postgresql", "pgx":
		c.Store.Driver = "postgres"
	}
	if c.Store.DSN == "" {
		if value, ok := os.LookupEnv("CRAWLQUEUE_DSN"); ok {
			c.Store.DSN = value
		}
	}
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if strings.TrimSpace(c.Store.Path) != "" {
		var err error
		if c.Store.Path, err = expandPath(c.Store.Path); err != nil {
			return fmt.Errorf("store.path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeQueue() {
	if c.Queue.RetentionHours == 0 {
		c.Queue.RetentionHours = defaultRetentionHours
	}
	if c.Queue.FetchLimit <= 0 {
		c.Queue.FetchLimit = defaultFetchLimit
	}
}

func (c *Config) normalizeRedis() {
	if value, ok := os.LookupEnv("CRAWLQUEUE_REDIS_ADDR"); ok && strings.TrimSpace(value) != "" {
		c.Redis.Address = value
	}
	c.Redis.Address = strings.TrimSpace(c.Redis.Address)
	c.Redis.KeyPrefix = strings.Trim(strings.TrimSpace(c.Redis.KeyPrefix), ":")
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = defaultRedisKeyPrefix
	}
	if c.Redis.ProcessTTLSeconds <= 0 {
		c.Redis.ProcessTTLSeconds = defaultProcessTTLSeconds
	}
}

func (c *Config) normalizeServer() {
	c.Server.MetricsBind = strings.TrimSpace(c.Server.MetricsBind)
	if c.Server.MetricsBind == "" {
		c.Server.MetricsBind = defaultMetricsBind
	}
	if c.Server.ReaperIntervalSeconds <= 0 {
		c.Server.ReaperIntervalSeconds = defaultReaperIntervalSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
