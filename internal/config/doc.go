// Package config loads, normalizes, and validates crawlqueue configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CRAWLQUEUE_DSN and CRAWLQUEUE_REDIS_ADDR. The Config type centralizes every
// knob the CLI and the serve loop need.
package config
