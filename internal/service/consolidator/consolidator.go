package consolidator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sandevgo/trunk/internal/config"
	"github.com/sandevgo/trunk/internal/core"
	"github.com/sandevgo/trunk/internal/service/graph"
	"github.com/sandevgo/trunk/internal/service/scorer"
	"github.com/sandevgo/trunk/pkg/log"
	"github.com/sandevgo/trunk/pkg/retry"
)

// maxConceptsPerFact bounds the O(n^2) pairwise reinforcement per fact.
const maxConceptsPerFact = 10

type relevanceScorer interface {
	Score(ctx context.Context, cand scorer.Candidate, query string, activation map[string]float64) (core.RelevanceRecord, error)
}

type associator interface {
	Link(ctx context.Context, a, b string, rate float64) (float64, error)
	SpreadActivate(ctx context.Context, seeds []string, threshold float64, maxHops, limit int) (map[string]float64, error)
}

// Consolidator drives each pending fact through
// PENDING -> SCORED -> PROMOTED|DISCARDED. Promotion depth and weight
// come from the configured tiering thresholds; the association graph is
// reinforced with the fact's concept pairs either way. Each fact
// finalizes atomically; the batch as a whole does not.
type Consolidator struct {
	pending   core.PendingRepository
	finalizer core.FactFinalizer
	scorer    relevanceScorer
	graph     associator
	cfg       *config.ConsolidationConfig
	retrier   *retry.Retrier

	// runMu keeps runs sequential: the Hebbian read-modify-write is not
	// commutative with itself under lost updates.
	runMu sync.Mutex

	// recent is the rolling window of recently consolidated concepts,
	// seeded into spread activation alongside each fact's own concepts.
	recentMu sync.Mutex
	recent   []string
}

func New(pending core.PendingRepository, finalizer core.FactFinalizer, sc relevanceScorer, g associator, cfg *config.ConsolidationConfig) *Consolidator {
	return &Consolidator{
		pending:   pending,
		finalizer: finalizer,
		scorer:    sc,
		graph:     g,
		cfg:       cfg,
		retrier: retry.NewRetrier(&retry.Config{
			MaxRetries:    2,
			BackoffFactor: 2,
			InitialDelay:  100 * time.Millisecond,
			MaxDelay:      time.Second,
			Jitter:        25 * time.Millisecond,
		}),
	}
}

// Start runs consolidation on the configured interval until the context
// is cancelled.
func (c *Consolidator) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Dur("interval", c.cfg.Interval).Msg("starting consolidator")

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := c.RunOnce(ctx, 0)
			if err != nil {
				logger.Error().Err(err).Msg("consolidation run failed")
				continue
			}
			if report.Processed > 0 || report.Errors > 0 {
				logger.Info().
					Int("processed", report.Processed).
					Int("promoted_l1", report.PromotedL1).
					Int("discarded", report.Discarded).
					Int("errors", report.Errors).
					Msg("consolidation run complete")
			}
		}
	}
}

func (c *Consolidator) Shutdown(ctx context.Context) error {
	return nil
}

// RunOnce consolidates up to maxFacts pending facts (FIFO). A zero
// maxFacts uses the configured batch ceiling. One fact's failure skips
// that fact only; cancellation stops between facts, never mid-finalize.
func (c *Consolidator) RunOnce(ctx context.Context, maxFacts int) (core.ConsolidationReport, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if maxFacts <= 0 || maxFacts > c.cfg.MaxFactsPerRun {
		maxFacts = c.cfg.MaxFactsPerRun
	}

	facts, err := c.pending.Oldest(ctx, maxFacts)
	if err != nil {
		return core.ConsolidationReport{}, fmt.Errorf("fetch pending facts: %w", err)
	}

	logger := log.FromCtx(ctx)
	var report core.ConsolidationReport

	for _, fact := range facts {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		promoted, tier, err := c.processFact(ctx, fact)
		if err != nil {
			logger.Warn().Err(err).Str("fact_id", fact.ID).Msg("fact skipped")
			report.Errors++
			continue
		}

		report.Processed++
		if promoted {
			report.PromotedL1++
			if tier >= core.DepthSummary {
				report.PromotedL2OrUp++
			}
		} else {
			report.Discarded++
		}
	}

	return report, nil
}

// processFact scores one fact, finalizes its promotion or discard, and
// reinforces the concept graph. Returns whether the fact was promoted
// and to which depth.
func (c *Consolidator) processFact(ctx context.Context, fact core.PendingFact) (bool, int, error) {
	concepts := graph.ExtractConcepts(fact.Text)
	if len(concepts) > maxConceptsPerFact {
		concepts = concepts[:maxConceptsPerFact]
	}

	activation, err := c.graph.SpreadActivate(ctx, append(c.recentConcepts(), concepts...), 0, 0, 0)
	if err != nil {
		return false, 0, fmt.Errorf("spread activation: %w", err)
	}

	rec, err := c.scorer.Score(ctx, scorer.Candidate{
		Key:          factKey(fact.Text),
		Text:         fact.Text,
		LastAccessed: fact.CreatedAt,
	}, "", activation)
	if err != nil {
		return false, 0, fmt.Errorf("score fact: %w", err)
	}

	promotion, tier := c.tier(fact, rec.FinalScore)
	err = c.retrier.Do(ctx, func() error {
		return c.finalizer.Finalize(ctx, fact.ID, promotion, rec)
	})
	if err != nil {
		return false, 0, fmt.Errorf("finalize fact: %w", err)
	}

	// The graph learns from observed co-occurrence regardless of the
	// tiering outcome.
	c.reinforce(ctx, concepts)
	c.remember(concepts)

	return promotion != nil, tier, nil
}

// tier applies the threshold rules. A score exactly at a threshold
// takes the higher tier.
func (c *Consolidator) tier(fact core.PendingFact, score float64) (*core.Promotion, int) {
	var content core.ContentByDepth
	var weight float64
	var depth int

	switch {
	case score >= c.cfg.HighThreshold:
		content = core.ContentByDepth{
			Token:       strptr(tokenFor(fact.Text)),
			Summary:     strptr(fact.Text),
			Elaboration: strptr(elaborationFor(fact)),
		}
		weight, depth = c.cfg.HighWeight, core.DepthElaboration
	case score >= c.cfg.MediumThreshold:
		content = core.ContentByDepth{
			Token:   strptr(tokenFor(fact.Text)),
			Summary: strptr(fact.Text),
		}
		weight, depth = c.cfg.MediumWeight, core.DepthSummary
	case score >= c.cfg.LowThreshold:
		content = core.ContentByDepth{Token: strptr(tokenFor(fact.Text))}
		weight, depth = c.cfg.LowWeight, core.DepthToken
	default:
		return nil, 0
	}

	return &core.Promotion{
		Thread:  c.cfg.TargetThread,
		Module:  c.cfg.TargetModule,
		Key:     factKey(fact.Text),
		Content: content,
		Weight:  weight,
	}, depth
}

func (c *Consolidator) reinforce(ctx context.Context, concepts []string) {
	logger := log.FromCtx(ctx)
	for i := 0; i < len(concepts); i++ {
		for j := i + 1; j < len(concepts); j++ {
			if _, err := c.graph.Link(ctx, concepts[i], concepts[j], 0); err != nil {
				logger.Warn().Err(err).
					Str("a", concepts[i]).Str("b", concepts[j]).
					Msg("failed to reinforce link")
			}
		}
	}
}

func (c *Consolidator) recentConcepts() []string {
	c.recentMu.Lock()
	defer c.recentMu.Unlock()
	return append([]string(nil), c.recent...)
}

func (c *Consolidator) remember(concepts []string) {
	c.recentMu.Lock()
	defer c.recentMu.Unlock()
	c.recent = append(c.recent, concepts...)
	if excess := len(c.recent) - c.cfg.ContextWindow; excess > 0 {
		c.recent = append([]string(nil), c.recent[excess:]...)
	}
}

// factKey derives a stable item key from the fact text, so re-running a
// partially finalized batch upserts instead of duplicating.
func factKey(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(strings.ToLower(text))))
	slug := strings.Join(firstN(graph.ExtractConcepts(text), 3), "-")
	if slug == "" {
		slug = "fact"
	}
	return slug + "-" + hex.EncodeToString(sum[:4])
}

// tokenFor is the terse depth-1 representation: the leading concepts.
func tokenFor(text string) string {
	concepts := firstN(graph.ExtractConcepts(text), 4)
	if len(concepts) == 0 {
		return strings.TrimSpace(text)
	}
	return strings.Join(concepts, " ")
}

// elaborationFor is the depth-3 representation: full text plus
// provenance.
func elaborationFor(fact core.PendingFact) string {
	return fmt.Sprintf("%s (source: %s, observed: %s)",
		fact.Text, fact.Source, fact.CreatedAt.Format(time.RFC3339))
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func strptr(s string) *string { return &s }
