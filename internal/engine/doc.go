// Package engine orchestrates multi-account calendar aggregation: it fans
// out across every linked Google account, merges events into one ordered
// schedule, locates events for reads and writes, and computes free slots
// from batched free/busy lookups.
//
// The engine owns no credentials and no HTTP client. Tokens come from a
// TokenSource, provider access from a GatewayFactory, and account records
// from a Store; all three are narrow interfaces so tests run against fakes.
package engine
