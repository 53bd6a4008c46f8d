package repositories

import (
	"context"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
)

// NewsSource abstracts a headline feed.
type NewsSource interface {
	// Headlines fetches up to limit items from the named channel.
	Headlines(ctx context.Context, channel string, limit int) ([]entities.NewsItem, error)
}

// PaperSource abstracts a research-paper feed.
type PaperSource interface {
	// Recent fetches up to max papers matching query, submitted within the
	// last daysBack days.
	Recent(ctx context.Context, query string, max int, daysBack int) ([]entities.Paper, error)
}

// ContentSource abstracts a remote document holding the text to broadcast.
type ContentSource interface {
	// Latest returns the current content as plain text.
	Latest(ctx context.Context) (string, error)
}
