package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// assetKeyPrefix namespaces the per-asset meta records in the metadata
// table, one record per symbol.
const assetKeyPrefix = "asset:"

// AssetMeta is the per-asset record kept in the store. Trimmed to what
// the watch list needs today; the record shape leaves room for icon
// paths and sync timestamps later.
type AssetMeta struct {
	UpdatedAtUnixM int64  `json:"updated_at_unix,string"` // Unix Micro
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	IsFavorite     bool   `json:"is_favorite"`
}

// FavoritesRepo maintains the favorited-symbol set on top of the
// per-asset meta records.
type FavoritesRepo struct {
	store *Store
}

func NewFavoritesRepo(store *Store) *FavoritesRepo {
	return &FavoritesRepo{store: store}
}

// FetchFavorites scans the asset records and returns the set of
// favorited symbols. Records that fail to decode are skipped.
func (r *FavoritesRepo) FetchFavorites(ctx context.Context) (map[string]bool, error) {
	records, err := r.store.GetPrefix(ctx, assetKeyPrefix)
	if err != nil {
		return nil, err
	}

	favorites := make(map[string]bool)
	for key, raw := range records {
		var meta AssetMeta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			continue
		}
		if meta.Symbol == "" {
			meta.Symbol = strings.TrimPrefix(key, assetKeyPrefix)
		}
		if meta.IsFavorite {
			favorites[meta.Symbol] = true
		}
	}
	return favorites, nil
}

// SetFavorite read-modify-writes the meta record for one symbol.
// The store's keys have no external writers, so no transaction is
// needed around the read and the write.
func (r *FavoritesRepo) SetFavorite(ctx context.Context, symbol string, favorite bool) error {
	key := assetKeyPrefix + symbol

	meta := AssetMeta{Symbol: symbol}
	if raw, err := r.store.Get(ctx, key); err != nil {
		return err
	} else if raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			// Corrupt record: rebuild it rather than fail the toggle.
			meta = AssetMeta{Symbol: symbol}
		}
	}

	now := time.Now().UnixMicro()
	meta.IsFavorite = favorite
	meta.UpdatedAtUnixM = now
	if meta.Name == "" {
		meta.Name = symbol
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return storageErr("encode asset meta "+symbol, err)
	}
	return r.store.Put(ctx, key, string(raw), now)
}
