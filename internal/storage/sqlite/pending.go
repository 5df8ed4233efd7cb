package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/trunk/internal/core"
)

type PendingRepo struct {
	db *sql.DB
}

func NewPendingRepo(db *sql.DB) *PendingRepo {
	return &PendingRepo{db: db}
}

func (r *PendingRepo) Add(ctx context.Context, fact core.PendingFact) error {
	if fact.ID == "" || fact.Text == "" {
		return fmt.Errorf("%w: pending fact needs id and text", core.ErrInvalidInput)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pending_facts (id, text, source, score, created_at) VALUES (?, ?, ?, ?, ?)`,
		fact.ID, fact.Text, fact.Source, fact.Score, fact.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add pending fact: %w", err)
	}
	return nil
}

// Oldest returns up to limit facts in FIFO order. ULIDs sort
// lexicographically by creation time, so the id is the tiebreaker.
func (r *PendingRepo) Oldest(ctx context.Context, limit int) ([]core.PendingFact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, text, source, score, created_at FROM pending_facts
		 ORDER BY created_at ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending facts: %w", err)
	}
	defer rows.Close()

	var facts []core.PendingFact
	for rows.Next() {
		var f core.PendingFact
		var score sql.NullFloat64
		if err := rows.Scan(&f.ID, &f.Text, &f.Source, &score, &f.CreatedAt); err != nil {
			return nil, err
		}
		if score.Valid {
			v := score.Float64
			f.Score = &v
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (r *PendingRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_facts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending facts: %w", err)
	}
	return n, nil
}
