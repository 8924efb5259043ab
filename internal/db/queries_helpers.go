package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

var allowedColumns = map[string]map[string]bool{
	"channel_guards":    {"should_validate": true, "prompt": true, "created_by": true},
	"scheduled_prompts": {"finished": true, "finished_at": true},
	"reminders":         {"active": true, "finished_at": true, "run_date": true},
}

// updateRow is a generic helper for updating a row's fields.
func (d *DB) updateRow(ctx context.Context, table string, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	allowed, ok := allowedColumns[table]
	if !ok {
		return fmt.Errorf("unknown table: %s", table)
	}
	var setClauses []string
	var args []any
	for col, val := range fields {
		if !allowed[col] {
			return fmt.Errorf("disallowed column %q for table %s", col, table)
		}
		setClauses = append(setClauses, col+" = ?")
		args = append(args, val)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(setClauses, ", "))
	res, err := d.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating %s %d: %w", table, id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s %d not found", table, id)
	}
	return nil
}

// millis stores instants as epoch milliseconds.
func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func fromNullMillis(ms sql.NullInt64) time.Time {
	if !ms.Valid {
		return time.Time{}
	}
	return time.UnixMilli(ms.Int64)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
