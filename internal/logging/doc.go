// Package logging provides structured logging utilities for whenfree.
//
// It centralizes slog attribute naming so log lines stay correlatable across
// the engine, provider gateway, and tool layers, and it sanitizes PII: user
// identifiers are hashed, tokens are never logged directly.
package logging
