package db

import (
	"context"
	"database/sql"
	"fmt"
)

const promptColumns = "id, name, text, visibility, created_by"

// GetPrompt returns a prompt by name regardless of visibility, or nil.
func (d *DB) GetPrompt(ctx context.Context, name string) (*Prompt, error) {
	p, err := scanPrompt(d.conn.QueryRowContext(ctx,
		"SELECT "+promptColumns+" FROM prompts WHERE name = ?", name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting prompt: %w", err)
	}
	return p, nil
}

// GetVisiblePrompt returns a prompt the user may read: public, or private and theirs.
func (d *DB) GetVisiblePrompt(ctx context.Context, name, user string) (*Prompt, error) {
	p, err := scanPrompt(d.conn.QueryRowContext(ctx,
		"SELECT "+promptColumns+" FROM prompts WHERE name = ? AND (visibility = 'public' OR created_by = ?)",
		name, user))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting visible prompt: %w", err)
	}
	return p, nil
}

// ListVisiblePrompts returns every prompt the user may read.
func (d *DB) ListVisiblePrompts(ctx context.Context, user string) ([]Prompt, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+promptColumns+" FROM prompts WHERE visibility = 'public' OR created_by = ? ORDER BY name",
		user)
	if err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}
	defer rows.Close()
	var out []Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning prompt: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CreatePrompt stores a new prompt and returns its ID.
func (d *DB) CreatePrompt(ctx context.Context, name, text, visibility, createdBy string) (int64, error) {
	res, err := d.conn.ExecContext(ctx,
		"INSERT INTO prompts (name, text, visibility, created_by) VALUES (?, ?, ?, ?)",
		name, text, visibility, createdBy,
	)
	if err != nil {
		return 0, fmt.Errorf("creating prompt: %w", err)
	}
	return res.LastInsertId()
}

// DeletePrompt removes a prompt by name.
func (d *DB) DeletePrompt(ctx context.Context, name string) error {
	if _, err := d.conn.ExecContext(ctx, "DELETE FROM prompts WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting prompt: %w", err)
	}
	return nil
}

func scanPrompt(s scanner) (*Prompt, error) {
	var p Prompt
	if err := s.Scan(&p.ID, &p.Name, &p.Text, &p.Visibility, &p.CreatedBy); err != nil {
		return nil, err
	}
	return &p, nil
}
