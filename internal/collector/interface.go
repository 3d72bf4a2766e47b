package collector

import (
	"context"
)

// Fetcher downloads the raw minute-bar series of one coin from a remote source.
//
// The returned bytes are comma-separated rows of at least seven fields:
// timestamp in millis, time label, symbol, open, high, low, close. Leading
// header lines may be present and are left for the caller to strip.
type Fetcher interface {
	// Name returns the source identifier (e.g., "cdd", "binance")
	Name() string

	// Fetch downloads the full series for coin. Any non-200 response is an error.
	Fetch(ctx context.Context, coin string) ([]byte, error)
}
