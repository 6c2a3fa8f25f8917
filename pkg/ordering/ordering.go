// Package ordering holds the pure list algebra behind the user-defined
// display order: overlaying a persisted symbol sequence onto a fetched
// asset list, and the index arithmetic of drag reordering.
package ordering

import "crypto_watch/internal/domain"

// Apply reorders assets according to customOrder: assets named by
// customOrder come first, in customOrder's relative order, skipping
// entries with no matching asset; the remaining assets follow in their
// original relative order. Identity when customOrder is empty.
// O(n) via a symbol index; the input slice is never mutated.
func Apply(assets []domain.Asset, customOrder []string) []domain.Asset {
	if len(customOrder) == 0 || len(assets) == 0 {
		out := make([]domain.Asset, len(assets))
		copy(out, assets)
		return out
	}

	index := make(map[string]int, len(assets))
	for i, a := range assets {
		index[a.Symbol] = i
	}

	out := make([]domain.Asset, 0, len(assets))
	placed := make(map[string]bool, len(customOrder))

	for _, sym := range customOrder {
		if placed[sym] {
			continue
		}
		if i, ok := index[sym]; ok {
			out = append(out, assets[i])
			placed[sym] = true
		}
	}

	for _, a := range assets {
		if !placed[a.Symbol] {
			out = append(out, a)
		}
	}
	return out
}

// Move returns a copy of list with the element at from moved so it ends
// up at index to. The final resulting order is the contract: the
// persisted order must correspond to what was displayed, whatever index
// convention the gesture layer uses. to may be given one past the end
// (drag-callback coordinates); anything at or beyond the last index
// lands the element at the end. Out-of-range indices yield an unchanged
// copy.
func Move(list []string, from, to int) []string {
	out := make([]string, len(list))
	copy(out, list)

	n := len(list)
	if from < 0 || from >= n || to < 0 || to > n {
		return out
	}
	if to > n-1 {
		to = n - 1
	}
	if from == to {
		return out
	}

	moved := out[from]
	out = append(out[:from], out[from+1:]...)

	// Reinsert at the target slot.
	out = append(out, "")
	copy(out[to+1:], out[to:])
	out[to] = moved
	return out
}

// Symbols projects a displayed asset sequence onto its symbol list,
// the shape the order store persists.
func Symbols(assets []domain.Asset) []string {
	if len(assets) == 0 {
		return nil
	}
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Symbol
	}
	return out
}
