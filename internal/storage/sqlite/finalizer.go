package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sandevgo/trunk/internal/core"
)

// Finalizer commits the outcome of scoring one pending fact. The item
// upsert (when promoted), the relevance record and the pending-fact
// removal share one transaction, so a crash mid-consolidation cannot
// leave a fact both promoted and still pending.
type Finalizer struct {
	db *sql.DB
}

func NewFinalizer(db *sql.DB) *Finalizer {
	return &Finalizer{db: db}
}

func (f *Finalizer) Finalize(ctx context.Context, factID string, promote *core.Promotion, rec core.RelevanceRecord) error {
	if promote != nil {
		if err := validateItemWrite(promote.Thread, promote.Key, promote.Content, promote.Weight); err != nil {
			return err
		}
	}

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin finalize tx: %w", err)
	}
	defer tx.Rollback()

	if promote != nil {
		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO items (thread, module, key, token, summary, elaboration, weight, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (thread, module, key) DO UPDATE SET
				token = excluded.token,
				summary = excluded.summary,
				elaboration = excluded.elaboration,
				weight = excluded.weight,
				updated_at = excluded.updated_at`,
			promote.Thread, promote.Module, promote.Key,
			promote.Content.Token, promote.Content.Summary, promote.Content.Elaboration,
			promote.Weight, now, now)
		if err != nil {
			return fmt.Errorf("failed to promote fact %s: %w", factID, err)
		}
	}

	if err := putRelevance(ctx, tx, rec); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_facts WHERE id = ?`, factID); err != nil {
		return fmt.Errorf("failed to consume pending fact %s: %w", factID, err)
	}

	return tx.Commit()
}
