// Package daemon hosts the long-running crawlqueue service behind the serve
// command.
//
// A Daemon holds a host-wide lock so a single instance runs per data
// directory, sweeps the process registry on an interval to release entries
// held by dead workers, and serves Prometheus metrics plus a JSON status
// endpoint over HTTP.
package daemon
