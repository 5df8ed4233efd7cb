package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sandevgo/trunk/internal/core"
)

// LinksRepo persists concept graph edges. Callers pass concepts already in
// canonical order (concept_a < concept_b); the graph service enforces it.
type LinksRepo struct {
	db *sql.DB
}

func NewLinksRepo(db *sql.DB) *LinksRepo {
	return &LinksRepo{db: db}
}

func (r *LinksRepo) Get(ctx context.Context, conceptA, conceptB string) (core.ConceptLink, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT concept_a, concept_b, strength, fire_count, last_fired, decayed_at
		 FROM concept_links WHERE concept_a = ? AND concept_b = ?`,
		conceptA, conceptB)

	var link core.ConceptLink
	err := row.Scan(&link.ConceptA, &link.ConceptB, &link.Strength, &link.FireCount, &link.LastFired, &link.DecayedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ConceptLink{}, core.ErrNotFound
	}
	if err != nil {
		return core.ConceptLink{}, fmt.Errorf("failed to scan link: %w", err)
	}
	return link, nil
}

func (r *LinksRepo) Put(ctx context.Context, link core.ConceptLink) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO concept_links (concept_a, concept_b, strength, fire_count, last_fired, decayed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (concept_a, concept_b) DO UPDATE SET
			strength = excluded.strength,
			fire_count = excluded.fire_count,
			last_fired = excluded.last_fired,
			decayed_at = excluded.decayed_at`,
		link.ConceptA, link.ConceptB, link.Strength, link.FireCount, link.LastFired, link.DecayedAt)
	if err != nil {
		return fmt.Errorf("failed to put link: %w", err)
	}
	return nil
}

func (r *LinksRepo) Delete(ctx context.Context, conceptA, conceptB string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM concept_links WHERE concept_a = ? AND concept_b = ?`,
		conceptA, conceptB)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return nil
}

func (r *LinksRepo) Neighbors(ctx context.Context, concept string) ([]core.ConceptLink, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT concept_a, concept_b, strength, fire_count, last_fired, decayed_at
		 FROM concept_links WHERE concept_a = ? OR concept_b = ?`,
		concept, concept)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors: %w", err)
	}
	defer rows.Close()
	return collectLinks(rows)
}

func (r *LinksRepo) ConceptsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	// ESCAPE guards against prefixes containing LIKE wildcards.
	rows, err := r.db.QueryContext(ctx, `
		SELECT concept_a AS c FROM concept_links WHERE concept_a LIKE ? ESCAPE '\'
		UNION
		SELECT concept_b AS c FROM concept_links WHERE concept_b LIKE ? ESCAPE '\'`,
		escapeLike(prefix)+"%", escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query concepts by prefix: %w", err)
	}
	defer rows.Close()

	var concepts []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}

func (r *LinksRepo) All(ctx context.Context) ([]core.ConceptLink, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT concept_a, concept_b, strength, fire_count, last_fired, decayed_at FROM concept_links`)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()
	return collectLinks(rows)
}

func collectLinks(rows *sql.Rows) ([]core.ConceptLink, error) {
	var links []core.ConceptLink
	for rows.Next() {
		var link core.ConceptLink
		if err := rows.Scan(&link.ConceptA, &link.ConceptB, &link.Strength, &link.FireCount, &link.LastFired, &link.DecayedAt); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
