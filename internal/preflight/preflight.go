package preflight

import (
	"context"
	"path/filepath"

	"crawlqueue/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options toggles checks that need external services.
type Options struct {
	// Redis enables the registry connectivity check.
	Redis bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.Store.Driver == "sqlite" {
		storeDir := filepath.Dir(cfg.StorePath())
		if storeDir != filepath.Clean(cfg.Paths.DataDir) {
			results = append(results, CheckDirectoryAccess("Store directory", storeDir))
		}
	}

	if opts.Redis {
		results = append(results, CheckRedis(ctx, cfg.Redis))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
