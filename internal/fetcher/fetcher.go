package fetcher

import (
	"context"

	"priceloupe/internal/types"
)

// Fetcher is the interface the source adapters fetch pages through.
type Fetcher interface {
	// Fetch retrieves the content at the given URL with a GET request.
	Fetch(ctx context.Context, url string) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error
}
