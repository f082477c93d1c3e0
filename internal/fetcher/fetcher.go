// Package fetcher downloads and parses data from HTTP, CSV, and XLSX sources.
package fetcher

import "context"

// Client defines the interface for talking to external enrichment sources.
// Implementations perform a single attempt; retry, rate limiting, and circuit
// breaking are layered on by the caller.
type Client interface {
	// Get fetches the URL and returns the raw response body.
	Get(ctx context.Context, url string) ([]byte, error)

	// GetJSON fetches the URL and decodes the JSON response into out.
	GetJSON(ctx context.Context, url string, out any) error

	// GetHTML fetches the URL and returns the body decoded to UTF-8 using
	// the charset announced in the Content-Type header.
	GetHTML(ctx context.Context, url string) (string, error)
}
