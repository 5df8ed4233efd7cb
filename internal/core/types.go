package core

import "time"

const (
	TrunkName          = "Trunk"
	TrunkUserAgent     = "Trunk-Memory/0.1"
	TrunkRepositoryURL = "https://github.com/sandevgo/trunk"
	TrunkVersion       = "0.1.0"
)

// Retention depths for item content. L1 is a terse token, L2 a short
// summary, L3 a full elaboration.
const (
	DepthToken       = 1
	DepthSummary     = 2
	DepthElaboration = 3
)

// Item is a stored fact/capability/value record with depth-tiered content.
// Content slots are nullable: an item retained only at L1 has Summary and
// Elaboration nil. An item with all three nil is logically deleted.
type Item struct {
	ID           int64      `json:"id"`
	Thread       string     `json:"thread"`
	Module       string     `json:"module"`
	Key          string     `json:"key"`
	Token        *string    `json:"token,omitempty"`
	Summary      *string    `json:"summary,omitempty"`
	Elaboration  *string    `json:"elaboration,omitempty"`
	Weight       float64    `json:"weight"`
	AccessCount  int64      `json:"access_count"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Content returns the deepest content available at or below the given
// depth, or "" if none is retained there.
func (i Item) Content(depth int) string {
	if depth >= DepthElaboration && i.Elaboration != nil {
		return *i.Elaboration
	}
	if depth >= DepthSummary && i.Summary != nil {
		return *i.Summary
	}
	if depth >= DepthToken && i.Token != nil {
		return *i.Token
	}
	return ""
}

// Live reports whether the item retains content at any depth.
func (i Item) Live() bool {
	return i.Token != nil || i.Summary != nil || i.Elaboration != nil
}

// ContentByDepth is the write-side representation of the three slots.
// A nil entry means "not retained at this depth".
type ContentByDepth struct {
	Token       *string
	Summary     *string
	Elaboration *string
}

// ConceptLink is an undirected weighted edge between two concepts.
// ConceptA < ConceptB always holds (canonical order). DecayedAt marks
// how far in time decay has already been applied, so repeated sweeps
// never re-discount the same idle period.
type ConceptLink struct {
	ConceptA  string    `json:"concept_a"`
	ConceptB  string    `json:"concept_b"`
	Strength  float64   `json:"strength"`
	FireCount int64     `json:"fire_count"`
	LastFired time.Time `json:"last_fired"`
	DecayedAt time.Time `json:"decayed_at"`
}

// PendingFact is a short-term, not-yet-consolidated candidate produced by
// the extraction collaborator and consumed by the consolidator.
type PendingFact struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Score     *float64  `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RelevanceRecord caches the per-dimension scores behind one ranking
// decision, so it can be explained after the fact. QueryHash fingerprints
// the query the record was computed against; the similarity dimension is
// query-dependent, so a cached record only serves the same query again.
type RelevanceRecord struct {
	ItemKey      string    `json:"item_key"`
	ItemText     string    `json:"item_text"`
	QueryHash    string    `json:"query_hash"`
	Identity     float64   `json:"identity"`
	Recency      float64   `json:"recency"`
	Similarity   float64   `json:"similarity"`
	Salience     float64   `json:"salience"`
	Frequency    float64   `json:"frequency"`
	Graph        float64   `json:"graph"`
	FinalScore   float64   `json:"final_score"`
	AccessCount  int64     `json:"access_count"`
	LastAccessed time.Time `json:"last_accessed"`
}

// ExtractedFact is one candidate fact pulled out of a transcript by the
// extraction collaborator.
type ExtractedFact struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// AssembledContext is the read-path result for one conversational turn.
type AssembledContext struct {
	Text      string `json:"text"`
	ItemCount int    `json:"item_count"`
	CharCount int    `json:"char_count"`
}

// ConsolidationReport summarizes one consolidation run.
type ConsolidationReport struct {
	Processed      int `json:"processed"`
	PromotedL1     int `json:"promoted_l1"`
	PromotedL2OrUp int `json:"promoted_l2_or_above"`
	Discarded      int `json:"discarded"`
	Errors         int `json:"errors"`
}

// DecayReport summarizes one decay sweep.
type DecayReport struct {
	LinksDecayed int `json:"links_decayed"`
	LinksPruned  int `json:"links_pruned"`
}
