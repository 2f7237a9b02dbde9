// Command crawlqueue inspects and manages the crawl queue.
//
// It opens the configured record store directly for queue and statistics
// commands, talks to Redis for the worker process registry, and hosts the
// metrics endpoint and liveness reaper through the serve command.
package main
