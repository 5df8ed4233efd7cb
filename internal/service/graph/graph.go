package graph

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"github.com/sandevgo/trunk/internal/config"
	"github.com/sandevgo/trunk/internal/core"
	"github.com/sandevgo/trunk/pkg/log"
)

const lockStripes = 64

// Graph is the concept-association graph: Hebbian reinforcement on
// co-occurrence, scheduled temporal decay, and bounded-hop spread
// activation. Edges live in the links repository; the stripes guard the
// read-modify-write of the Hebbian update against concurrent runs.
type Graph struct {
	links core.LinksRepository
	cfg   *config.GraphConfig
	clock core.Clock

	edgeLocks [lockStripes]sync.Mutex
}

func New(links core.LinksRepository, cfg *config.GraphConfig, clock core.Clock) *Graph {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Graph{links: links, cfg: cfg, clock: clock}
}

// Canonicalize orders two concepts so that a < b, the storage invariant
// for undirected edges.
func Canonicalize(a, b string) (string, string) {
	a, b = NormalizeConcept(a), NormalizeConcept(b)
	if b < a {
		a, b = b, a
	}
	return a, b
}

// Link reinforces the edge between two concepts. The update is
// asymptotic: new = old + (1-old)*rate, so strength approaches but never
// reaches 1.0 and established links move slowly. Returns the new
// strength. A rate <= 0 falls back to the configured learning rate.
func (g *Graph) Link(ctx context.Context, a, b string, rate float64) (float64, error) {
	a, b = Canonicalize(a, b)
	if a == "" || b == "" || a == b {
		return 0, fmt.Errorf("%w: link needs two distinct concepts", core.ErrInvalidInput)
	}
	if rate <= 0 {
		rate = g.cfg.LearningRate
	}
	if rate >= 1 {
		return 0, fmt.Errorf("%w: learning rate %v out of range (0,1)", core.ErrInvalidInput, rate)
	}

	lock := &g.edgeLocks[edgeStripe(a, b)]
	lock.Lock()
	defer lock.Unlock()

	link, err := g.links.Get(ctx, a, b)
	if errors.Is(err, core.ErrNotFound) {
		link = core.ConceptLink{ConceptA: a, ConceptB: b}
	} else if err != nil {
		return 0, err
	}

	link.Strength += (1 - link.Strength) * rate
	link.FireCount++
	now := g.clock.Now()
	link.LastFired = now
	link.DecayedAt = now

	if err := g.links.Put(ctx, link); err != nil {
		return 0, err
	}
	return link.Strength, nil
}

// Decay applies time-based decay to every link and prunes those that
// fall below minStrength. Each edge decays only over the time since it
// was last fired or last swept, whichever is later, so overlapping
// sweeps never compound the discount for the same idle period.
func (g *Graph) Decay(ctx context.Context, decayRate, minStrength float64) (core.DecayReport, error) {
	if decayRate <= 0 {
		decayRate = g.cfg.DecayRate
	}
	if minStrength <= 0 {
		minStrength = g.cfg.MinStrength
	}
	if decayRate >= 1 {
		return core.DecayReport{}, fmt.Errorf("%w: decay rate %v out of range (0,1)", core.ErrInvalidInput, decayRate)
	}

	links, err := g.links.All(ctx)
	if err != nil {
		return core.DecayReport{}, err
	}

	now := g.clock.Now()
	var report core.DecayReport

	for _, link := range links {
		since := link.LastFired
		if link.DecayedAt.After(since) {
			since = link.DecayedAt
		}
		days := now.Sub(since).Hours() / 24
		if days <= 0 {
			continue
		}

		link.Strength *= math.Pow(decayRate, days)
		link.DecayedAt = now
		if link.Strength < minStrength {
			if err := g.links.Delete(ctx, link.ConceptA, link.ConceptB); err != nil {
				return report, err
			}
			report.LinksPruned++
			continue
		}

		if err := g.links.Put(ctx, link); err != nil {
			return report, err
		}
		report.LinksDecayed++
	}

	log.FromCtx(ctx).Debug().
		Int("decayed", report.LinksDecayed).
		Int("pruned", report.LinksPruned).
		Msg("link decay sweep complete")
	return report, nil
}

// SpreadActivate propagates activation 1.0 outward from the seed
// concepts. A neighbor gets source_activation * link_strength and only
// propagates further when that value clears the threshold. Concepts
// reachable over multiple paths keep the maximum activation (sum is the
// configurable alternative; max avoids runaway amplification in dense
// graphs). Hierarchical children (dot-delimited prefix) of any activated
// concept get a fixed 0.8x of their parent without an explicit link.
func (g *Graph) SpreadActivate(ctx context.Context, seeds []string, threshold float64, maxHops, limit int) (map[string]float64, error) {
	if threshold <= 0 {
		threshold = g.cfg.ActivationThreshold
	}
	if maxHops <= 0 {
		maxHops = g.cfg.MaxHops
	}
	if limit <= 0 {
		limit = g.cfg.ActivationLimit
	}

	act := make(map[string]float64)
	var frontier []string
	for _, seed := range seeds {
		c := NormalizeConcept(seed)
		if c == "" || act[c] > 0 {
			continue
		}
		act[c] = 1.0
		frontier = append(frontier, c)
	}
	if len(frontier) == 0 {
		return map[string]float64{}, nil
	}

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		next := make(map[string]bool)
		sort.Strings(frontier)

		for _, concept := range frontier {
			links, err := g.links.Neighbors(ctx, concept)
			if err != nil {
				return nil, err
			}
			for _, link := range links {
				other := link.ConceptA
				if other == concept {
					other = link.ConceptB
				}
				a := act[concept] * link.Strength
				if a < threshold {
					continue
				}
				if g.combine(act, other, a) {
					next[other] = true
				}
			}
		}

		frontier = frontier[:0]
		for c := range next {
			frontier = append(frontier, c)
		}
	}

	if err := g.activateChildren(ctx, act, threshold); err != nil {
		return nil, err
	}

	return topActivations(act, limit), nil
}

// activateChildren gives every dot-prefixed descendant of an activated
// concept a fixed fraction of its parent's activation, so one observed
// concept illuminates its known sub-tree.
func (g *Graph) activateChildren(ctx context.Context, act map[string]float64, threshold float64) error {
	parents := make([]string, 0, len(act))
	for c := range act {
		parents = append(parents, c)
	}
	sort.Strings(parents)

	for _, parent := range parents {
		children, err := g.links.ConceptsWithPrefix(ctx, parent+".")
		if err != nil {
			return err
		}
		a := act[parent] * g.cfg.ChildActivation
		if a < threshold {
			continue
		}
		for _, child := range children {
			g.combine(act, child, a)
		}
	}
	return nil
}

// combine merges a new activation for a concept, returning whether the
// stored value grew.
func (g *Graph) combine(act map[string]float64, concept string, a float64) bool {
	old := act[concept]
	if g.cfg.Combine == "sum" {
		v := math.Min(old+a, 1.0)
		act[concept] = v
		return v > old
	}
	if a > old {
		act[concept] = a
		return true
	}
	return false
}

// topActivations keeps the limit highest entries. Ties break on concept
// name so repeated calls on a fixed snapshot return the same map.
func topActivations(act map[string]float64, limit int) map[string]float64 {
	if len(act) <= limit {
		return act
	}

	type entry struct {
		concept    string
		activation float64
	}
	entries := make([]entry, 0, len(act))
	for c, a := range act {
		entries = append(entries, entry{c, a})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].activation != entries[j].activation {
			return entries[i].activation > entries[j].activation
		}
		return entries[i].concept < entries[j].concept
	})

	out := make(map[string]float64, limit)
	for _, e := range entries[:limit] {
		out[e.concept] = e.activation
	}
	return out
}

func edgeStripe(a, b string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(a))
	h.Write([]byte{0})
	h.Write([]byte(b))
	return h.Sum32() % lockStripes
}
