package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// OffsetStore persists the next getUpdates offset for one consumer.
type OffsetStore struct {
	db       *sqlx.DB
	consumer string
	now      func() time.Time
}

// NewOffsetStore binds the store to consumer, typically the bot username.
func NewOffsetStore(db *sqlx.DB, consumer string) *OffsetStore {
	if consumer == "" {
		consumer = "default"
	}
	return &OffsetStore{db: db, consumer: consumer, now: time.Now}
}

// Load returns the stored offset, or 0 when nothing was saved yet.
func (s *OffsetStore) Load(ctx context.Context) (int, error) {
	var offset int64
	q := s.db.Rebind(`SELECT next_offset FROM update_offsets WHERE consumer = ?`)
	err := s.db.GetContext(ctx, &offset, q, s.consumer)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load offset: %w", err)
	}
	return int(offset), nil
}

// Save upserts the offset.
func (s *OffsetStore) Save(ctx context.Context, offset int) error {
	q := s.db.Rebind(`INSERT INTO update_offsets (consumer, next_offset, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (consumer) DO UPDATE SET next_offset = excluded.next_offset, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, q, s.consumer, int64(offset), s.now().UTC()); err != nil {
		return fmt.Errorf("save offset: %w", err)
	}
	return nil
}
