// Package logging assembles structured slog loggers used across crawlqueue.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so store and registry code can tag
// log lines with the worker process identifier. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
