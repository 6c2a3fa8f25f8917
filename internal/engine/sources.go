package engine

import (
	"context"

	"crypto_watch/internal/domain"
)

// PriceSource returns priced assets for the requested symbols.
// Implementations: watchapi.Client (REST), binance.StreamSource (live).
type PriceSource interface {
	FetchPrices(ctx context.Context, symbols []string) ([]domain.Asset, error)
}

// FavoritesSource maintains the favorited-symbol set.
type FavoritesSource interface {
	FetchFavorites(ctx context.Context) (map[string]bool, error)
	SetFavorite(ctx context.Context, symbol string, favorite bool) error
}

// OrderStore persists the user's display order. ReadOrder returns nil
// when nothing was ever persisted.
type OrderStore interface {
	ReadOrder(ctx context.Context) ([]string, error)
	WriteOrder(ctx context.Context, order []string) error
}

// Journal is the optional best-effort action log.
type Journal interface {
	Append(ctx context.Context, kind string, ts int64, detail string) error
}
