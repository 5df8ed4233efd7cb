package consolidator

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sandevgo/trunk/internal/config"
	"github.com/sandevgo/trunk/internal/core"
	"github.com/sandevgo/trunk/internal/service/graph"
	"github.com/sandevgo/trunk/internal/service/scorer"
	"github.com/sandevgo/trunk/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptScorer returns preset final scores per fact text and can be told
// to fail on specific texts.
type scriptScorer struct {
	scores map[string]float64
	failOn map[string]error
}

func (s *scriptScorer) Score(ctx context.Context, cand scorer.Candidate, query string, activation map[string]float64) (core.RelevanceRecord, error) {
	if err := s.failOn[cand.Text]; err != nil {
		return core.RelevanceRecord{}, err
	}
	return core.RelevanceRecord{
		ItemKey:      cand.Key,
		ItemText:     cand.Text,
		FinalScore:   s.scores[cand.Text],
		LastAccessed: cand.LastAccessed,
	}, nil
}

func testConsolidationConfig() *config.ConsolidationConfig {
	return &config.ConsolidationConfig{
		HighThreshold:   0.8,
		MediumThreshold: 0.5,
		LowThreshold:    0.3,
		HighWeight:      0.9,
		MediumWeight:    0.6,
		LowWeight:       0.3,
		MaxFactsPerRun:  50,
		Interval:        10 * time.Minute,
		TargetThread:    "episodic",
		TargetModule:    "facts",
		ContextWindow:   16,
	}
}

type testEnv struct {
	consolidator *Consolidator
	scorer       *scriptScorer
	db           *sql.DB
	items        *sqlite.ItemsRepo
	links        *sqlite.LinksRepo
	pending      *sqlite.PendingRepo
	relevance    *sqlite.RelevanceRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.NewDB(context.Background(), filepath.Join(t.TempDir(), "trunk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	links := sqlite.NewLinksRepo(db)
	g := graph.New(links, &config.GraphConfig{
		LearningRate:        0.1,
		DecayRate:           0.95,
		MinStrength:         0.05,
		MaxHops:             1,
		ActivationThreshold: 0.1,
		ActivationLimit:     50,
		ChildActivation:     0.8,
		Combine:             "max",
	}, nil)

	sc := &scriptScorer{scores: map[string]float64{}, failOn: map[string]error{}}
	pending := sqlite.NewPendingRepo(db)

	return &testEnv{
		consolidator: New(pending, sqlite.NewFinalizer(db), sc, g, testConsolidationConfig()),
		scorer:       sc,
		db:           db,
		items:        sqlite.NewItemsRepo(db),
		links:        links,
		pending:      pending,
		relevance:    sqlite.NewRelevanceRepo(db),
	}
}

func addFact(t *testing.T, env *testEnv, text string) core.PendingFact {
	t.Helper()
	fact := core.PendingFact{
		ID:        ulid.Make().String(),
		Text:      text,
		Source:    "chat",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, env.pending.Add(context.Background(), fact))
	return fact
}

func TestRunOnceEndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.scorer.scores["Sarah likes coffee"] = 0.85
	env.scorer.scores["weather is cloudy"] = 0.2
	addFact(t, env, "Sarah likes coffee")
	addFact(t, env, "weather is cloudy")

	report, err := env.consolidator.RunOnce(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.PromotedL1)
	assert.Equal(t, 1, report.PromotedL2OrUp)
	assert.Equal(t, 1, report.Discarded)
	assert.Equal(t, 0, report.Errors)

	// High tier: all three depths, weight 0.9.
	item, err := env.items.Get(ctx, "episodic", "facts", factKey("Sarah likes coffee"))
	require.NoError(t, err)
	assert.NotNil(t, item.Token)
	assert.NotNil(t, item.Summary)
	assert.NotNil(t, item.Elaboration)
	assert.InDelta(t, 0.9, item.Weight, 1e-9)

	// Discard: no item write.
	_, err = env.items.Get(ctx, "episodic", "facts", factKey("weather is cloudy"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	// Co-occurrence reinforcement fired once for sarah-coffee.
	link, err := env.links.Get(ctx, "coffee", "sarah")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, link.Strength, 1e-9)

	// The graph learns from discarded facts too.
	_, err = env.links.Get(ctx, "cloudy", "weather")
	require.NoError(t, err)

	// Both decisions are explainable from the relevance cache.
	rec, err := env.relevance.Get(ctx, factKey("weather is cloudy"))
	require.NoError(t, err)
	assert.InDelta(t, 0.2, rec.FinalScore, 1e-9)

	// All pending facts consumed.
	n, err := env.pending.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRunOnceFailureSkipsFactOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	texts := []string{"fact one is useful", "fact two is cursed", "fact three is useful", "fact four is useful"}
	for _, text := range texts {
		env.scorer.scores[text] = 0.6
		addFact(t, env, text)
	}
	env.scorer.failOn["fact two is cursed"] = errors.New("scoring exploded")

	report, err := env.consolidator.RunOnce(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 3, report.PromotedL1)

	// The failed fact is still pending, nothing else is.
	remaining, err := env.pending.Oldest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fact two is cursed", remaining[0].Text)

	// A later run picks it up without duplicating the others.
	delete(env.scorer.failOn, "fact two is cursed")
	report, err = env.consolidator.RunOnce(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Errors)

	items, err := env.items.List(ctx, "episodic", "facts", 1, 10)
	require.NoError(t, err)
	assert.Len(t, items, 4)
}

func TestRunOnceRealScorerReachesHighTier(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// Persona state the real scorer reads: an identity goal the fact
	// fully covers and a hard-constraint value it touches.
	_, err := env.items.Upsert(ctx, "identity", "persona", "goal",
		core.ContentByDepth{Summary: strptr("sarah coffee")}, 0.9)
	require.NoError(t, err)
	_, err = env.items.Upsert(ctx, "values", "constraints", "quality",
		core.ContentByDepth{Summary: strptr("coffee quality matters")}, 0.95)
	require.NoError(t, err)

	g := graph.New(env.links, &config.GraphConfig{
		LearningRate:        0.1,
		DecayRate:           0.95,
		MinStrength:         0.05,
		MaxHops:             1,
		ActivationThreshold: 0.1,
		ActivationLimit:     50,
		ChildActivation:     0.8,
		Combine:             "max",
	}, nil)
	sc := scorer.New(env.items, &config.ScoringConfig{
		WeightIdentity:   0.2,
		WeightRecency:    0.15,
		WeightSimilarity: 0.25,
		WeightSalience:   0.15,
		WeightFrequency:  0.1,
		WeightGraph:      0.15,
		RecencyHalfLifeH: 168,
	}, &config.AppConfig{IdentityThread: "identity", ValuesThread: "values"}, nil)
	cons := New(env.pending, sqlite.NewFinalizer(env.db), sc, g, testConsolidationConfig())

	fact := addFact(t, env, "Sarah drinks coffee")

	report, err := cons.RunOnce(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.PromotedL1)
	assert.Equal(t, 1, report.PromotedL2OrUp)

	item, err := env.items.Get(ctx, "episodic", "facts", factKey(fact.Text))
	require.NoError(t, err)
	require.NotNil(t, item.Token)
	require.NotNil(t, item.Summary)
	require.NotNil(t, item.Elaboration)
	assert.InDelta(t, 0.9, item.Weight, 1e-9)

	rec, err := env.relevance.Get(ctx, factKey(fact.Text))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec.FinalScore, 0.8)
}

func TestRunOnceRespectsBatchCeiling(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, text := range []string{"alpha fact here", "beta fact here", "gamma fact here"} {
		env.scorer.scores[text] = 0.1
		addFact(t, env, text)
	}

	report, err := env.consolidator.RunOnce(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)

	n, err := env.pending.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunOnceCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	env.scorer.scores["some fact text"] = 0.6
	addFact(t, env, "some fact text")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.consolidator.RunOnce(ctx, 0)
	require.Error(t, err)

	// Nothing was finalized under the cancelled context.
	n, err := env.pending.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTierBoundaries(t *testing.T) {
	c := New(nil, nil, nil, nil, testConsolidationConfig())
	fact := core.PendingFact{Text: "Sarah likes coffee", Source: "chat", CreatedAt: time.Now().UTC()}

	tests := []struct {
		score  float64
		depth  int
		weight float64
	}{
		{0.8, core.DepthElaboration, 0.9},
		{0.79, core.DepthSummary, 0.6},
		{0.5, core.DepthSummary, 0.6},
		{0.49, core.DepthToken, 0.3},
		{0.3, core.DepthToken, 0.3},
	}
	for _, tt := range tests {
		promotion, depth := c.tier(fact, tt.score)
		require.NotNil(t, promotion, "score %v", tt.score)
		assert.Equal(t, tt.depth, depth, "score %v", tt.score)
		assert.InDelta(t, tt.weight, promotion.Weight, 1e-9, "score %v", tt.score)
	}

	promotion, _ := c.tier(fact, 0.29)
	assert.Nil(t, promotion, "below low threshold must discard")
}

func TestFactKeyStable(t *testing.T) {
	assert.Equal(t, factKey("Sarah likes coffee"), factKey("sarah likes COFFEE "))
	assert.NotEqual(t, factKey("Sarah likes coffee"), factKey("Sarah likes tea"))
}
