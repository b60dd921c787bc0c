package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	coretelegram "github.com/m3rciful/cmdbus/core/telegram"
)

// InvocationRow is a stored command invocation.
type InvocationRow struct {
	UpdateID   int64     `db:"update_id"`
	ChatID     int64     `db:"chat_id"`
	UserID     int64     `db:"user_id"`
	Command    string    `db:"command"`
	Route      string    `db:"route"`
	Depth      int       `db:"depth"`
	Status     string    `db:"status"`
	ErrCode    string    `db:"err_code"`
	DurationMS int64     `db:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"`
}

// Journal records command invocations into command_invocations.
type Journal struct {
	db *sqlx.DB
}

// NewJournal returns a Journal writing to db.
func NewJournal(db *sqlx.DB) *Journal {
	return &Journal{db: db}
}

// Record stores one invocation.
func (j *Journal) Record(ctx context.Context, inv coretelegram.Invocation) error {
	at := inv.At
	if at.IsZero() {
		at = time.Now()
	}
	row := InvocationRow{
		UpdateID:   int64(inv.UpdateID),
		ChatID:     inv.ChatID,
		UserID:     inv.UserID,
		Command:    inv.Command,
		Route:      inv.Route,
		Depth:      inv.Depth,
		Status:     inv.Status,
		ErrCode:    inv.ErrCode,
		DurationMS: inv.Duration.Milliseconds(),
		CreatedAt:  at.UTC(),
	}
	_, err := j.db.NamedExecContext(ctx, `INSERT INTO command_invocations
(update_id, chat_id, user_id, command, route, depth, status, err_code, duration_ms, created_at)
VALUES (:update_id, :chat_id, :user_id, :command, :route, :depth, :status, :err_code, :duration_ms, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("record invocation: %w", err)
	}
	return nil
}

// Recent returns up to limit invocations, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]InvocationRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []InvocationRow
	q := j.db.Rebind(`SELECT update_id, chat_id, user_id, command, route, depth, status, err_code, duration_ms, created_at
FROM command_invocations ORDER BY created_at DESC LIMIT ?`)
	if err := j.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, fmt.Errorf("recent invocations: %w", err)
	}
	return rows, nil
}
