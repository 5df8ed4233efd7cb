package core

import (
	"context"
	"time"
)

type ItemsRepository interface {
	Get(ctx context.Context, thread, module, key string) (Item, error)
	// Upsert is idempotent: re-writing identical content at the same depths
	// leaves created_at untouched and only bumps updated_at.
	Upsert(ctx context.Context, thread, module, key string, content ContentByDepth, weight float64) (Item, error)
	// List returns items retained at minLevel or deeper, ordered by weight
	// descending, ties by last_accessed descending.
	List(ctx context.Context, thread, module string, minLevel, limit int) ([]Item, error)
	Delete(ctx context.Context, thread, module, key string) error
	// Touch bumps access_count and last_accessed for the given item IDs.
	Touch(ctx context.Context, ids []int64) error
}

type LinksRepository interface {
	Get(ctx context.Context, conceptA, conceptB string) (ConceptLink, error)
	Put(ctx context.Context, link ConceptLink) error
	Delete(ctx context.Context, conceptA, conceptB string) error
	// Neighbors returns every link touching the given concept.
	Neighbors(ctx context.Context, concept string) ([]ConceptLink, error)
	// ConceptsWithPrefix lists distinct concepts whose name starts with the
	// given prefix. Feeds hierarchical child activation.
	ConceptsWithPrefix(ctx context.Context, prefix string) ([]string, error)
	All(ctx context.Context) ([]ConceptLink, error)
}

type PendingRepository interface {
	Add(ctx context.Context, fact PendingFact) error
	// Oldest returns up to limit pending facts, FIFO by creation order.
	Oldest(ctx context.Context, limit int) ([]PendingFact, error)
	Count(ctx context.Context) (int, error)
}

type RelevanceRepository interface {
	Get(ctx context.Context, itemKey string) (RelevanceRecord, error)
	Put(ctx context.Context, rec RelevanceRecord) error
}

// FactFinalizer commits the outcome of scoring one pending fact. The item
// upsert (if any), the relevance record write and the pending-fact removal
// happen in one transaction: a crash cannot leave a scored fact both
// promoted and still pending.
type FactFinalizer interface {
	Finalize(ctx context.Context, factID string, promote *Promotion, rec RelevanceRecord) error
}

// Promotion describes the Item Store write side of a consolidation
// decision. Nil Promotion means the fact is discarded.
type Promotion struct {
	Thread  string
	Module  string
	Key     string
	Content ContentByDepth
	Weight  float64
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
