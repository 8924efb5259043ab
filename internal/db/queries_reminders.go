package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const reminderColumns = "id, channel_id, message_id, prompt_name, time, repeat, days, with_history, created_by, active, created_at, run_date, finished_at"

// CreateReminder stores an active reminder and returns its ID.
func (d *DB) CreateReminder(ctx context.Context, r Reminder) (int64, error) {
	days, _ := json.Marshal(r.Days) // []string always marshals
	if r.Days == nil {
		days = []byte("[]")
	}
	res, err := d.conn.ExecContext(ctx,
		`INSERT INTO reminders (channel_id, message_id, prompt_name, time, repeat, days, with_history, created_by, active, created_at, run_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		r.ChannelID, r.MessageID, r.PromptName, r.Time, boolInt(r.Repeat), string(days), boolInt(r.WithHistory),
		r.CreatedBy, millis(r.CreatedAt), millis(r.RunDate),
	)
	if err != nil {
		return 0, fmt.Errorf("creating reminder: %w", err)
	}
	return res.LastInsertId()
}

// FindActiveReminder returns the active reminder for a prompt in a channel, or nil.
func (d *DB) FindActiveReminder(ctx context.Context, promptName, channelID string) (*Reminder, error) {
	row := d.conn.QueryRowContext(ctx,
		"SELECT "+reminderColumns+" FROM reminders WHERE prompt_name = ? AND channel_id = ? AND active = 1 ORDER BY id LIMIT 1",
		promptName, channelID)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding reminder: %w", err)
	}
	return r, nil
}

// ListActiveReminders returns a channel's active reminders ordered by time of day.
func (d *DB) ListActiveReminders(ctx context.Context, channelID string) ([]Reminder, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+reminderColumns+" FROM reminders WHERE channel_id = ? AND active = 1 ORDER BY time, id",
		channelID)
	if err != nil {
		return nil, fmt.Errorf("listing reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// ListRemindersAt returns active reminders whose time of day equals clock ("HH:mm").
func (d *DB) ListRemindersAt(ctx context.Context, clock string) ([]Reminder, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+reminderColumns+" FROM reminders WHERE time = ? AND active = 1 ORDER BY id",
		clock)
	if err != nil {
		return nil, fmt.Errorf("listing due reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// DeactivateReminder soft-deletes a reminder. Rows are kept for auditing.
func (d *DB) DeactivateReminder(ctx context.Context, id int64, at time.Time) error {
	return d.updateRow(ctx, "reminders", id, map[string]any{
		"active":      0,
		"finished_at": millis(at),
	})
}

// RescheduleReminder records when a repeating reminder fires next.
func (d *DB) RescheduleReminder(ctx context.Context, id int64, next time.Time) error {
	return d.updateRow(ctx, "reminders", id, map[string]any{"run_date": millis(next)})
}

func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanReminder(s scanner) (*Reminder, error) {
	var r Reminder
	var repeat, withHistory, active int
	var days string
	var createdAt, runDate int64
	var finishedAt sql.NullInt64
	err := s.Scan(&r.ID, &r.ChannelID, &r.MessageID, &r.PromptName, &r.Time, &repeat, &days, &withHistory,
		&r.CreatedBy, &active, &createdAt, &runDate, &finishedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(days), &r.Days); err != nil {
		return nil, fmt.Errorf("decoding days of reminder %d: %w", r.ID, err)
	}
	r.Repeat = repeat == 1
	r.WithHistory = withHistory == 1
	r.Active = active == 1
	r.CreatedAt = fromMillis(createdAt)
	r.RunDate = fromMillis(runDate)
	r.FinishedAt = fromNullMillis(finishedAt)
	return &r, nil
}
