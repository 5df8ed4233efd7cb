package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/trunk/internal/core"
)

type ItemsRepo struct {
	db *sql.DB
}

func NewItemsRepo(db *sql.DB) *ItemsRepo {
	return &ItemsRepo{db: db}
}

const itemColumns = `id, thread, module, key, token, summary, elaboration, weight, access_count, last_accessed, created_at, updated_at`

func (r *ItemsRepo) Get(ctx context.Context, thread, module, key string) (core.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE thread = ? AND module = ? AND key = ?`,
		thread, module, key)
	return scanItem(row)
}

func (r *ItemsRepo) Upsert(ctx context.Context, thread, module, key string, content core.ContentByDepth, weight float64) (core.Item, error) {
	if err := validateItemWrite(thread, key, content, weight); err != nil {
		return core.Item{}, err
	}

	now := time.Now().UTC()

	// Single-statement upsert: the conflict branch never touches
	// created_at, so re-writing identical content is idempotent.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (thread, module, key, token, summary, elaboration, weight, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (thread, module, key) DO UPDATE SET
			token = excluded.token,
			summary = excluded.summary,
			elaboration = excluded.elaboration,
			weight = excluded.weight,
			updated_at = excluded.updated_at`,
		thread, module, key, content.Token, content.Summary, content.Elaboration, weight, now, now)
	if err != nil {
		return core.Item{}, fmt.Errorf("failed to upsert item: %w", err)
	}

	return r.Get(ctx, thread, module, key)
}

func (r *ItemsRepo) List(ctx context.Context, thread, module string, minLevel, limit int) ([]core.Item, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE thread = ?`
	args := []any{thread}
	if module != "" {
		query += ` AND module = ?`
		args = append(args, module)
	}

	switch {
	case minLevel >= core.DepthElaboration:
		query += ` AND elaboration IS NOT NULL`
	case minLevel == core.DepthSummary:
		query += ` AND (summary IS NOT NULL OR elaboration IS NOT NULL)`
	default:
		query += ` AND (token IS NOT NULL OR summary IS NOT NULL OR elaboration IS NOT NULL)`
	}

	query += ` ORDER BY weight DESC, last_accessed DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ItemsRepo) Delete(ctx context.Context, thread, module, key string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE thread = ? AND module = ? AND key = ?`,
		thread, module, key)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *ItemsRepo) Touch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE items SET access_count = access_count + 1, last_accessed = ? WHERE id IN (%s)`, placeholders),
		args...)
	if err != nil {
		return fmt.Errorf("failed to touch items: %w", err)
	}
	return nil
}

func validateItemWrite(thread, key string, content core.ContentByDepth, weight float64) error {
	if strings.TrimSpace(thread) == "" || strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: thread and key must be non-empty", core.ErrInvalidInput)
	}
	if weight < 0 || weight > 1 {
		return fmt.Errorf("%w: weight %v out of range [0,1]", core.ErrInvalidInput, weight)
	}
	if content.Token == nil && content.Summary == nil && content.Elaboration == nil {
		return fmt.Errorf("%w: item needs content at one depth at least", core.ErrInvalidInput)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (core.Item, error) {
	var item core.Item
	var lastAccessed sql.NullTime
	err := row.Scan(
		&item.ID, &item.Thread, &item.Module, &item.Key,
		&item.Token, &item.Summary, &item.Elaboration,
		&item.Weight, &item.AccessCount, &lastAccessed,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Item{}, core.ErrNotFound
	}
	if err != nil {
		return core.Item{}, fmt.Errorf("failed to scan item: %w", err)
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		item.LastAccessed = &t
	}
	return item, nil
}
