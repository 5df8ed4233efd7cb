package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sandevgo/trunk/internal/core"
)

type RelevanceRepo struct {
	db *sql.DB
}

func NewRelevanceRepo(db *sql.DB) *RelevanceRepo {
	return &RelevanceRepo{db: db}
}

func (r *RelevanceRepo) Get(ctx context.Context, itemKey string) (core.RelevanceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT item_key, item_text, query_hash, identity, recency, similarity, salience, frequency, graph,
		       final_score, access_count, last_accessed
		FROM fact_relevance WHERE item_key = ?`, itemKey)

	var rec core.RelevanceRecord
	err := row.Scan(
		&rec.ItemKey, &rec.ItemText, &rec.QueryHash,
		&rec.Identity, &rec.Recency, &rec.Similarity, &rec.Salience, &rec.Frequency, &rec.Graph,
		&rec.FinalScore, &rec.AccessCount, &rec.LastAccessed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RelevanceRecord{}, core.ErrNotFound
	}
	if err != nil {
		return core.RelevanceRecord{}, fmt.Errorf("failed to scan relevance record: %w", err)
	}
	return rec, nil
}

func (r *RelevanceRepo) Put(ctx context.Context, rec core.RelevanceRecord) error {
	return putRelevance(ctx, r.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putRelevance(ctx context.Context, ex execer, rec core.RelevanceRecord) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO fact_relevance
			(item_key, item_text, query_hash, identity, recency, similarity, salience, frequency, graph,
			 final_score, access_count, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (item_key) DO UPDATE SET
			item_text = excluded.item_text,
			query_hash = excluded.query_hash,
			identity = excluded.identity,
			recency = excluded.recency,
			similarity = excluded.similarity,
			salience = excluded.salience,
			frequency = excluded.frequency,
			graph = excluded.graph,
			final_score = excluded.final_score,
			access_count = excluded.access_count,
			last_accessed = excluded.last_accessed`,
		rec.ItemKey, rec.ItemText, rec.QueryHash,
		rec.Identity, rec.Recency, rec.Similarity, rec.Salience, rec.Frequency, rec.Graph,
		rec.FinalScore, rec.AccessCount, rec.LastAccessed)
	if err != nil {
		return fmt.Errorf("failed to put relevance record: %w", err)
	}
	return nil
}
