package providers

import (
	"context"

	"review-radar/models"
)

// Provider is the fixed contract every review crawler implements.
type Provider interface {
	// Crawl fetches up to maxCount reviews for a product URL. Crawl
	// failures that are not transport errors are reported through
	// CrawlResult.Success/Message.
	Crawl(ctx context.Context, productURL string, maxCount int) (*models.CrawlResult, error)

	// Matches reports whether this provider can handle the URL.
	Matches(productURL string) bool

	// Name returns the unique provider name (e.g. "musinsa").
	Name() string
}
