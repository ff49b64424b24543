// Package microsoft is the gateway's client for Microsoft Graph and the
// Microsoft identity platform.
//
// This package provides:
//   - A Graph HTTP client that takes a bearer token per request
//   - Per-resource rate limiting with Retry-After backoff
//   - Typed Graph errors that unwrap to status sentinels
//   - Identity platform endpoints for a single tenant
//
// Subpackages (outlook, calendar, onedrive, sharepoint) turn route query
// parameters into Graph requests.
//
// # Tokens
//
// The client never acquires or refreshes tokens itself. Callers pass the
// access token for each request; a 401 surfaces as ErrUnauthorised so the
// caller can refresh and retry.
//
// # Rate Limits
//
// Microsoft Graph allows approximately 10,000 requests per 10 minutes per app.
// A 429 response sets a backoff from the Retry-After header that later
// requests for the same resource wait out.
package microsoft
