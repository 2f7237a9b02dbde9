// Package preflight provides readiness checks for the filesystem paths and
// services crawlqueue depends on.
//
// The serve command calls RunAll before starting and refuses to run when a
// check fails. The queue health command prints the same results next to the
// database diagnostics.
package preflight
