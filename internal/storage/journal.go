package storage

import (
	"context"
)

// JournalEntry is one appended action record.
type JournalEntry struct {
	ID     int64  `json:"id"`
	Kind   string `json:"kind"`
	Ts     int64  `json:"ts"` // Unix Micro
	Detail string `json:"detail,omitempty"`
}

// Journal is an append-only log of processed user actions, kept for
// post-restart diagnostics. Appends are best-effort: a failed append
// never affects a state transition.
type Journal struct {
	store *Store
}

func NewJournal(store *Store) *Journal {
	return &Journal{store: store}
}

// Append records one action.
func (j *Journal) Append(ctx context.Context, kind string, ts int64, detail string) error {
	_, err := j.store.db.ExecContext(ctx,
		"INSERT INTO journal (kind, ts, detail) VALUES (?, ?, ?)",
		kind, ts, detail,
	)
	if err != nil {
		return storageErr("append journal", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := j.store.db.QueryContext(ctx,
		"SELECT id, kind, ts, detail FROM journal ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, storageErr("query journal", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Ts, &e.Detail); err != nil {
			return nil, storageErr("scan journal row", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate journal rows", err)
	}
	return entries, nil
}
