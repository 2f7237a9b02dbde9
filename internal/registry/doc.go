// Package registry tracks live crawl worker processes in Redis.
//
// Each registered process owns a heartbeat key that expires after the
// configured TTL and is listed in a member set. A process whose key has
// expired while it is still listed is considered dead; liveness sweeps use
// Expired to find those ids and release their queue entries.
package registry
