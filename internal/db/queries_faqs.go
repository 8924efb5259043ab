package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetFAQ returns an FAQ by name, or nil.
func (d *DB) GetFAQ(ctx context.Context, name string) (*FAQ, error) {
	var f FAQ
	var createdAt int64
	err := d.conn.QueryRowContext(ctx,
		"SELECT id, name, text, created_by, created_at FROM faqs WHERE name = ?", name,
	).Scan(&f.ID, &f.Name, &f.Text, &f.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting faq: %w", err)
	}
	f.CreatedAt = fromMillis(createdAt)
	return &f, nil
}

// ListFAQs returns all FAQs ordered by name.
func (d *DB) ListFAQs(ctx context.Context) ([]FAQ, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT id, name, text, created_by, created_at FROM faqs ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing faqs: %w", err)
	}
	defer rows.Close()
	var out []FAQ
	for rows.Next() {
		var f FAQ
		var createdAt int64
		if err := rows.Scan(&f.ID, &f.Name, &f.Text, &f.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning faq: %w", err)
		}
		f.CreatedAt = fromMillis(createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateFAQ stores an FAQ and returns its ID.
func (d *DB) CreateFAQ(ctx context.Context, name, text, createdBy string, at time.Time) (int64, error) {
	res, err := d.conn.ExecContext(ctx,
		"INSERT INTO faqs (name, text, created_by, created_at) VALUES (?, ?, ?, ?)",
		name, text, createdBy, millis(at),
	)
	if err != nil {
		return 0, fmt.Errorf("creating faq: %w", err)
	}
	return res.LastInsertId()
}

// DeleteFAQ removes an FAQ by ID.
func (d *DB) DeleteFAQ(ctx context.Context, id int64) error {
	if _, err := d.conn.ExecContext(ctx, "DELETE FROM faqs WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting faq: %w", err)
	}
	return nil
}
