package config

const (
	defaultDataDir               = "~/.local/share/crawlqueue"
	defaultLogDir                = "~/.local/share/crawlqueue/logs"
	defaultStoreDriver           = "sqlite"
	defaultStoreFile             = "queue.db"
	defaultRetentionHours        = 24
	defaultFetchLimit            = 50
	defaultRedisAddress          = "127.0.0.1:6379"
	defaultRedisKeyPrefix        = "crawlqueue"
	defaultProcessTTLSeconds     = 120
	defaultMetricsBind           = "127.0.0.1:9464"
	defaultReaperIntervalSeconds = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Store: Store{
			Driver: defaultStoreDriver,
		},
		Queue: Queue{
			RetentionHours: defaultRetentionHours,
			FetchLimit:     defaultFetchLimit,
		},
		Redis: Redis{
			Address:           defaultRedisAddress,
			KeyPrefix:         defaultRedisKeyPrefix,
			ProcessTTLSeconds: defaultProcessTTLSeconds,
		},
		Server: Server{
			MetricsBind:           defaultMetricsBind,
			ReaperIntervalSeconds: defaultReaperIntervalSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
