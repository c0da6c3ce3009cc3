// Package google handles OAuth2 credentials for linked Google accounts.
//
// It owns the OAuth client configuration, the scopes the engine requires, and
// the TokenManager that keeps per-account access tokens valid. The refresh
// grant is the only provider call made here; everything Calendar-specific
// lives in the calendar package.
package google
