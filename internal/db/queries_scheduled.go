package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const scheduledColumns = "id, thread_id, channel_id, message_id, sender_name, prompt_name, created_at, run_date, finished, finished_at"

// CreateScheduledPrompt stores a one-shot thread entry and returns its ID.
func (d *DB) CreateScheduledPrompt(ctx context.Context, sp ScheduledPrompt) (int64, error) {
	res, err := d.conn.ExecContext(ctx,
		`INSERT INTO scheduled_prompts (thread_id, channel_id, message_id, sender_name, prompt_name, created_at, run_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sp.ThreadID, sp.ChannelID, sp.MessageID, sp.SenderName, sp.PromptName,
		millis(sp.CreatedAt), millis(sp.RunDate),
	)
	if err != nil {
		return 0, fmt.Errorf("creating scheduled prompt: %w", err)
	}
	return res.LastInsertId()
}

// FindOpenScheduledPrompt returns an unfinished entry for the thread whose
// run date falls in [from, to), or nil.
func (d *DB) FindOpenScheduledPrompt(ctx context.Context, threadID string, from, to time.Time) (*ScheduledPrompt, error) {
	row := d.conn.QueryRowContext(ctx,
		"SELECT "+scheduledColumns+` FROM scheduled_prompts
		 WHERE thread_id = ? AND run_date >= ? AND run_date < ? AND finished != 1
		 ORDER BY id LIMIT 1`,
		threadID, millis(from), millis(to))
	sp, err := scanScheduledPrompt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding scheduled prompt: %w", err)
	}
	return sp, nil
}

// ListDueScheduledPrompts returns unfinished entries with run date in [from, to), oldest first.
func (d *DB) ListDueScheduledPrompts(ctx context.Context, from, to time.Time) ([]ScheduledPrompt, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+scheduledColumns+` FROM scheduled_prompts
		 WHERE run_date >= ? AND run_date < ? AND finished != 1
		 ORDER BY run_date, id`,
		millis(from), millis(to))
	if err != nil {
		return nil, fmt.Errorf("listing due scheduled prompts: %w", err)
	}
	defer rows.Close()
	var out []ScheduledPrompt
	for rows.Next() {
		sp, err := scanScheduledPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scheduled prompt: %w", err)
		}
		out = append(out, *sp)
	}
	return out, rows.Err()
}

// MarkScheduledPromptFinished records that an entry was delivered.
func (d *DB) MarkScheduledPromptFinished(ctx context.Context, id int64, at time.Time) error {
	return d.updateRow(ctx, "scheduled_prompts", id, map[string]any{
		"finished":    1,
		"finished_at": millis(at),
	})
}

func scanScheduledPrompt(s scanner) (*ScheduledPrompt, error) {
	var sp ScheduledPrompt
	var createdAt, runDate int64
	var finished int
	var finishedAt sql.NullInt64
	err := s.Scan(&sp.ID, &sp.ThreadID, &sp.ChannelID, &sp.MessageID, &sp.SenderName, &sp.PromptName,
		&createdAt, &runDate, &finished, &finishedAt)
	if err != nil {
		return nil, err
	}
	sp.CreatedAt = fromMillis(createdAt)
	sp.RunDate = fromMillis(runDate)
	sp.Finished = finished == 1
	sp.FinishedAt = fromNullMillis(finishedAt)
	return &sp, nil
}
