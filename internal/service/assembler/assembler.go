package assembler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/trunk/internal/config"
	"github.com/sandevgo/trunk/internal/core"
	"github.com/sandevgo/trunk/internal/service/graph"
	"github.com/sandevgo/trunk/internal/service/scorer"
	"github.com/sandevgo/trunk/pkg/log"
	"github.com/sandevgo/trunk/pkg/tokens"
)

type relevanceScorer interface {
	Score(ctx context.Context, cand scorer.Candidate, query string, activation map[string]float64) (core.RelevanceRecord, error)
}

type activator interface {
	SpreadActivate(ctx context.Context, seeds []string, threshold float64, maxHops, limit int) (map[string]float64, error)
}

// Assembler is the read path: once per conversational turn it selects a
// token-budgeted set of items at the requested depth. With a query it
// ranks by relevance (cached records reused, recomputed on miss);
// without one it ranks by stored weight. Identity items carry persistent
// persona state and are always eligible.
type Assembler struct {
	items     core.ItemsRepository
	relevance core.RelevanceRepository
	scorer    relevanceScorer
	graph     activator
	cfg       *config.AssemblerConfig
	app       *config.AppConfig
	thread    string
}

func New(items core.ItemsRepository, relevance core.RelevanceRepository, sc relevanceScorer, g activator, cfg *config.AssemblerConfig, app *config.AppConfig, thread string) *Assembler {
	return &Assembler{
		items:     items,
		relevance: relevance,
		scorer:    sc,
		graph:     g,
		cfg:       cfg,
		app:       app,
		thread:    thread,
	}
}

type rankedItem struct {
	item  core.Item
	score float64
}

// Assemble returns budgeted context for one turn at depth level 1..3.
func (a *Assembler) Assemble(ctx context.Context, level int, query string) (core.AssembledContext, error) {
	if level < core.DepthToken || level > core.DepthElaboration {
		return core.AssembledContext{}, fmt.Errorf("%w: level %d out of range [1,3]", core.ErrInvalidInput, level)
	}

	candidates, err := a.collect(ctx)
	if err != nil {
		return core.AssembledContext{}, err
	}

	ranked, err := a.rank(ctx, candidates, query)
	if err != nil {
		return core.AssembledContext{}, err
	}

	assembled, selected := a.pack(ranked, level, a.cfg.BudgetFor(level))

	// Selection is itself an access. The touch is a write but happens
	// after packing, off the ranking path.
	if len(selected) > 0 {
		if err := a.items.Touch(ctx, selected); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("failed to touch selected items")
		}
	}

	return assembled, nil
}

// collect gathers candidates from the assembly thread and the identity
// thread, deduplicated by id.
func (a *Assembler) collect(ctx context.Context) ([]core.Item, error) {
	persona, err := a.items.List(ctx, a.app.GetIdentityThread(), "", core.DepthToken, a.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}
	episodic, err := a.items.List(ctx, a.thread, "", core.DepthToken, a.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(persona)+len(episodic))
	out := make([]core.Item, 0, len(persona)+len(episodic))
	for _, item := range append(persona, episodic...) {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out, nil
}

func (a *Assembler) rank(ctx context.Context, candidates []core.Item, query string) ([]rankedItem, error) {
	ranked := make([]rankedItem, 0, len(candidates))

	if query == "" {
		for _, item := range candidates {
			ranked = append(ranked, rankedItem{item: item, score: item.Weight})
		}
	} else {
		activation, err := a.graph.SpreadActivate(ctx, graph.ExtractConcepts(query), 0, 0, 0)
		if err != nil {
			return nil, err
		}
		for _, item := range candidates {
			score, err := a.relevanceFor(ctx, item, query, activation)
			if err != nil {
				return nil, err
			}
			ranked = append(ranked, rankedItem{item: item, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return laterAccess(ranked[i].item, ranked[j].item)
	})
	return ranked, nil
}

// relevanceFor reuses a cached relevance record when it postdates the
// item's last update and was computed against the same query; the
// similarity dimension makes records query-specific. Recomputes and
// re-caches otherwise.
func (a *Assembler) relevanceFor(ctx context.Context, item core.Item, query string, activation map[string]float64) (float64, error) {
	hash := queryFingerprint(query)
	rec, err := a.relevance.Get(ctx, item.Key)
	if err == nil && rec.QueryHash == hash && !rec.LastAccessed.Before(item.UpdatedAt) {
		return rec.FinalScore, nil
	}

	cand := scorer.Candidate{
		Key:         item.Key,
		Text:        item.Content(core.DepthElaboration),
		AccessCount: item.AccessCount,
	}
	if item.LastAccessed != nil {
		cand.LastAccessed = *item.LastAccessed
	}

	rec, err = a.scorer.Score(ctx, cand, query, activation)
	if err != nil {
		return 0, err
	}
	rec.QueryHash = hash
	if err := a.relevance.Put(ctx, rec); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("key", item.Key).Msg("failed to cache relevance record")
	}
	return rec.FinalScore, nil
}

// pack greedily fills the token budget with the deepest content
// available at or below the level, stopping at the first item that no
// longer fits.
func (a *Assembler) pack(ranked []rankedItem, level, budget int) (core.AssembledContext, []int64) {
	var sb strings.Builder
	var selected []int64
	used := 0
	count := 0

	for _, r := range ranked {
		content := r.item.Content(level)
		if content == "" {
			continue
		}
		line := "- " + content + "\n"
		cost := tokens.Count(line)
		if used+cost > budget {
			break
		}
		sb.WriteString(line)
		used += cost
		count++
		selected = append(selected, r.item.ID)
	}

	text := sb.String()
	return core.AssembledContext{
		Text:      text,
		ItemCount: count,
		CharCount: len(text),
	}, selected
}

func laterAccess(a, b core.Item) bool {
	switch {
	case a.LastAccessed == nil:
		return false
	case b.LastAccessed == nil:
		return true
	default:
		return a.LastAccessed.After(*b.LastAccessed)
	}
}

// queryFingerprint identifies the query a relevance record was computed
// against. The empty query maps to the empty fingerprint.
func queryFingerprint(query string) string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:8])
}
