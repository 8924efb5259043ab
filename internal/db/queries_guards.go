package db

import (
	"context"
	"database/sql"
	"fmt"
)

const guardColumns = "id, channel_display_name, should_validate, prompt, created_by"

// GetGuard returns the guard for a channel display name, or nil if there is none.
func (d *DB) GetGuard(ctx context.Context, channel string) (*ChannelGuard, error) {
	row := d.conn.QueryRowContext(ctx,
		"SELECT "+guardColumns+" FROM channel_guards WHERE channel_display_name = ?", channel)
	g, err := scanGuard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting guard: %w", err)
	}
	return g, nil
}

// ListActiveGuards returns guards that currently validate content.
func (d *DB) ListActiveGuards(ctx context.Context) ([]ChannelGuard, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+guardColumns+" FROM channel_guards WHERE should_validate = 1 ORDER BY channel_display_name")
	if err != nil {
		return nil, fmt.Errorf("listing guards: %w", err)
	}
	defer rows.Close()
	var out []ChannelGuard
	for rows.Next() {
		g, err := scanGuard(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning guard: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// SetGuard creates or replaces the guard for a channel.
func (d *DB) SetGuard(ctx context.Context, channel, prompt, createdBy string) error {
	existing, err := d.GetGuard(ctx, channel)
	if err != nil {
		return err
	}
	if existing != nil {
		return d.updateRow(ctx, "channel_guards", existing.ID, map[string]any{
			"should_validate": 1,
			"prompt":          prompt,
			"created_by":      createdBy,
		})
	}
	_, err = d.conn.ExecContext(ctx,
		"INSERT INTO channel_guards (channel_display_name, should_validate, prompt, created_by) VALUES (?, 1, ?, ?)",
		channel, prompt, createdBy,
	)
	if err != nil {
		return fmt.Errorf("creating guard: %w", err)
	}
	return nil
}

// DeleteGuard removes a guard by ID.
func (d *DB) DeleteGuard(ctx context.Context, id int64) error {
	if _, err := d.conn.ExecContext(ctx, "DELETE FROM channel_guards WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting guard: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGuard(s scanner) (*ChannelGuard, error) {
	var g ChannelGuard
	var validate int
	if err := s.Scan(&g.ID, &g.ChannelDisplayName, &validate, &g.Prompt, &g.CreatedBy); err != nil {
		return nil, err
	}
	g.ShouldValidate = validate == 1
	return &g, nil
}
