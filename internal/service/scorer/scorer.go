package scorer

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/sandevgo/trunk/internal/config"
	"github.com/sandevgo/trunk/internal/core"
	"github.com/sandevgo/trunk/internal/service/graph"
)

// personaItemLimit bounds how many identity/value items feed the
// identity and salience dimensions per scoring call.
const personaItemLimit = 50

// hardConstraintWeight marks a value item as a hard constraint for the
// salience dimension.
const hardConstraintWeight = 0.8

// Candidate is the read-side input to one scoring decision.
type Candidate struct {
	Key          string
	Text         string
	AccessCount  int64
	LastAccessed time.Time
}

// Scorer computes the six independent relevance dimensions and their
// weighted combination. It only reads; callers persist the resulting
// record to the relevance cache.
type Scorer struct {
	items core.ItemsRepository
	cfg   *config.ScoringConfig
	app   *config.AppConfig
	clock core.Clock
}

func New(items core.ItemsRepository, cfg *config.ScoringConfig, app *config.AppConfig, clock core.Clock) *Scorer {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Scorer{items: items, cfg: cfg, app: app, clock: clock}
}

// Score computes every dimension for one candidate against a query and
// an activation map (from spread activation over the current context).
// All dimensions land in the returned record so the ranking stays
// explainable after the fact.
func (s *Scorer) Score(ctx context.Context, cand Candidate, query string, activation map[string]float64) (core.RelevanceRecord, error) {
	concepts := graph.ExtractConcepts(cand.Text)

	identity, salience, err := s.personaScores(ctx, concepts)
	if err != nil {
		return core.RelevanceRecord{}, err
	}

	rec := core.RelevanceRecord{
		ItemKey:      cand.Key,
		ItemText:     cand.Text,
		Identity:     identity,
		Recency:      s.recencyScore(cand.LastAccessed),
		Similarity:   similarityScore(concepts, graph.ExtractConcepts(query)),
		Salience:     salience,
		Frequency:    frequencyScore(cand.AccessCount),
		Graph:        graphScore(concepts, activation),
		AccessCount:  cand.AccessCount,
		LastAccessed: cand.LastAccessed,
	}
	rec.FinalScore = s.combine(rec, strings.TrimSpace(query) != "")
	return rec, nil
}

// personaScores derives the identity dimension (overlap with the stated
// goals in the identity thread) and the salience dimension (overlap
// with value/constraint items, scaled by their weight).
func (s *Scorer) personaScores(ctx context.Context, concepts []string) (identity, salience float64, err error) {
	identityItems, err := s.items.List(ctx, s.app.GetIdentityThread(), "", core.DepthToken, personaItemLimit)
	if err != nil {
		return 0, 0, err
	}
	valueItems, err := s.items.List(ctx, s.app.GetValuesThread(), "", core.DepthToken, personaItemLimit)
	if err != nil {
		return 0, 0, err
	}

	candidate := toSet(concepts)

	for _, item := range identityItems {
		if v := coverage(candidate, graph.ExtractConcepts(item.Content(core.DepthElaboration))); v > identity {
			identity = v
		}
	}

	for _, item := range valueItems {
		overlap := coverage(candidate, graph.ExtractConcepts(item.Content(core.DepthElaboration)))
		if overlap == 0 {
			continue
		}
		// Touching a hard constraint dominates regardless of overlap size.
		v := overlap * item.Weight
		if item.Weight >= hardConstraintWeight {
			v = item.Weight
		}
		if v > salience {
			salience = v
		}
	}

	return identity, salience, nil
}

// recencyScore halves per configured half-life of inactivity. A zero
// timestamp (never accessed, brand-new candidate) counts as now.
func (s *Scorer) recencyScore(lastAccessed time.Time) float64 {
	if lastAccessed.IsZero() {
		return 1.0
	}
	hours := s.clock.Now().Sub(lastAccessed).Hours()
	if hours <= 0 {
		return 1.0
	}
	return math.Exp2(-hours / s.cfg.RecencyHalfLifeH)
}

// combine normalizes by the weights of the applicable dimensions only.
// Without a query the similarity dimension is structurally zero, so its
// weight leaves the denominator; otherwise query-less scoring (the
// consolidation path) could never reach the top of the scale.
func (s *Scorer) combine(rec core.RelevanceRecord, hasQuery bool) float64 {
	total := s.cfg.WeightIdentity + s.cfg.WeightRecency +
		s.cfg.WeightSalience + s.cfg.WeightFrequency + s.cfg.WeightGraph
	sum := s.cfg.WeightIdentity*rec.Identity +
		s.cfg.WeightRecency*rec.Recency +
		s.cfg.WeightSalience*rec.Salience +
		s.cfg.WeightFrequency*rec.Frequency +
		s.cfg.WeightGraph*rec.Graph
	if hasQuery {
		total += s.cfg.WeightSimilarity
		sum += s.cfg.WeightSimilarity * rec.Similarity
	}
	if total <= 0 {
		return 0
	}
	return sum / total
}

// similarityScore is Jaccard overlap between the concept sets. An
// embedding collaborator would replace this dimension, not the scorer.
func similarityScore(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA, setB := toSet(a), toSet(b)
	inter := 0
	for c := range setA {
		if setB[c] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// frequencyScore normalizes access_count on a log scale; 100 accesses
// saturate the dimension.
func frequencyScore(count int64) float64 {
	if count <= 0 {
		return 0
	}
	v := math.Log(float64(count)+1) / math.Log(100)
	return math.Min(v, 1)
}

// graphScore is the highest activation any of the candidate's concepts
// received from spread activation.
func graphScore(concepts []string, activation map[string]float64) float64 {
	var best float64
	for _, c := range concepts {
		if a := activation[c]; a > best {
			best = a
		}
	}
	return best
}

// coverage is the fraction of reference concepts present in the
// candidate set.
func coverage(candidate map[string]bool, reference []string) float64 {
	if len(reference) == 0 {
		return 0
	}
	hits := 0
	for _, c := range reference {
		if candidate[c] {
			hits++
		}
	}
	return float64(hits) / float64(len(reference))
}

func toSet(concepts []string) map[string]bool {
	set := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		set[c] = true
	}
	return set
}
