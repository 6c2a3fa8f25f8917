package storage

import (
	"context"
	"time"
)

// orderKey is the single well-known key holding the user's display order.
const orderKey = "display_order"

// OrderRepo persists the user-defined display order as an ordered list
// of opaque symbol strings.
type OrderRepo struct {
	store *Store
}

func NewOrderRepo(store *Store) *OrderRepo {
	return &OrderRepo{store: store}
}

// ReadOrder returns the persisted order, or nil when none was ever
// saved. Callers treat nil and a read failure the same way: no custom
// order.
func (r *OrderRepo) ReadOrder(ctx context.Context) ([]string, error) {
	return r.store.ReadStringList(ctx, orderKey)
}

// WriteOrder durably replaces the persisted order.
func (r *OrderRepo) WriteOrder(ctx context.Context, order []string) error {
	return r.store.WriteStringList(ctx, orderKey, order, time.Now().UnixMicro())
}
