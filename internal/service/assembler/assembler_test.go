package assembler

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sandevgo/trunk/internal/config"
	"github.com/sandevgo/trunk/internal/core"
	"github.com/sandevgo/trunk/internal/service/graph"
	"github.com/sandevgo/trunk/internal/service/scorer"
	"github.com/sandevgo/trunk/internal/storage/sqlite"
	"github.com/sandevgo/trunk/pkg/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func testAssemblerConfig() *config.AssemblerConfig {
	return &config.AssemblerConfig{
		BudgetL1:       32,
		BudgetL2:       128,
		BudgetL3:       512,
		CandidateLimit: 100,
	}
}

func newTestAssembler(t *testing.T) (*Assembler, *sqlite.ItemsRepo) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.NewDB(ctx, filepath.Join(t.TempDir(), "trunk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	items := sqlite.NewItemsRepo(db)
	links := sqlite.NewLinksRepo(db)
	app := &config.AppConfig{IdentityThread: "identity", ValuesThread: "values"}
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
	sc := scorer.New(items, &config.ScoringConfig{
		WeightIdentity:   0.2,
		WeightRecency:    0.15,
		WeightSimilarity: 0.25,
		WeightSalience:   0.15,
		WeightFrequency:  0.1,
		WeightGraph:      0.15,
		RecencyHalfLifeH: 168,
	}, app, nil)

	return New(items, sqlite.NewRelevanceRepo(db), sc, g, testAssemblerConfig(), app, "episodic"), items
}

func seedItems(t *testing.T, items *sqlite.ItemsRepo, rows []struct {
	thread, key, token, summary, elaboration string
	weight                                   float64
}) {
	t.Helper()
	for _, s := range rows {
		content := core.ContentByDepth{Token: strPtr(s.token)}
		if s.summary != "" {
			content.Summary = strPtr(s.summary)
		}
		if s.elaboration != "" {
			content.Elaboration = strPtr(s.elaboration)
		}
		_, err := items.Upsert(context.Background(), s.thread, "facts", s.key, content, s.weight)
		require.NoError(t, err)
	}
}

func defaultSeed(t *testing.T, items *sqlite.ItemsRepo) {
	seedItems(t, items, []struct {
		thread, key, token, summary, elaboration string
		weight                                   float64
	}{
		{"episodic", "sarah-coffee", "sarah coffee", "Sarah likes coffee", "Sarah likes coffee in the morning before work", 0.9},
		{"episodic", "weather", "weather cloudy", "the weather was cloudy", "", 0.3},
		{"identity", "persona", "helpful assistant", "a helpful assistant for Sarah", "", 0.8},
	})
}

func TestAssembleInvalidLevel(t *testing.T) {
	a, _ := newTestAssembler(t)
	_, err := a.Assemble(context.Background(), 0, "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = a.Assemble(context.Background(), 4, "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestAssembleByWeightWithoutQuery(t *testing.T) {
	ctx := context.Background()
	a, items := newTestAssembler(t)
	defaultSeed(t, items)

	got, err := a.Assemble(ctx, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 3, got.ItemCount)
	assert.Equal(t, len(got.Text), got.CharCount)

	// Weight order: sarah-coffee (0.9) before persona (0.8) before weather (0.3).
	first := strings.Index(got.Text, "Sarah likes coffee")
	last := strings.Index(got.Text, "cloudy")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, last, 0)
	assert.Less(t, first, last)
}

func TestAssembleRespectsBudget(t *testing.T) {
	ctx := context.Background()
	a, items := newTestAssembler(t)

	// Far more content than L1's 32-token budget.
	for i := 0; i < 30; i++ {
		seedItems(t, items, []struct {
			thread, key, token, summary, elaboration string
			weight                                   float64
		}{
			{"episodic", "k" + string(rune('a'+i)), "some rather long token content entry", "", "", 0.5},
		})
	}

	got, err := a.Assemble(ctx, 1, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, tokens.Count(got.Text), testAssemblerConfig().BudgetL1)
	assert.Greater(t, got.ItemCount, 0)
	assert.Less(t, got.ItemCount, 30)
}

func TestAssembleDeeperLevelCarriesMore(t *testing.T) {
	ctx := context.Background()
	a, items := newTestAssembler(t)
	defaultSeed(t, items)

	l1, err := a.Assemble(ctx, 1, "")
	require.NoError(t, err)
	l3, err := a.Assemble(ctx, 3, "")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, l3.CharCount, l1.CharCount)
	assert.Contains(t, l3.Text, "before work", "L3 uses the elaboration")
	assert.NotContains(t, l1.Text, "before work", "L1 stays at the terse token")
}

func TestAssembleWithQueryRanksByRelevance(t *testing.T) {
	ctx := context.Background()
	a, items := newTestAssembler(t)
	defaultSeed(t, items)

	got, err := a.Assemble(ctx, 2, "what does sarah drink, coffee?")
	require.NoError(t, err)
	require.Greater(t, got.ItemCount, 0)

	pos := strings.Index(got.Text, "Sarah likes coffee")
	require.GreaterOrEqual(t, pos, 0, "query-relevant item selected")
	weather := strings.Index(got.Text, "cloudy")
	if weather >= 0 {
		assert.Less(t, pos, weather, "relevant item ranks above unrelated one")
	}
}

func TestAssembleRescoresForNewQuery(t *testing.T) {
	ctx := context.Background()
	a, items := newTestAssembler(t)
	defaultSeed(t, items)

	// Run the first query twice: the first pass touches the selected
	// items, the second caches records that are fresh by timestamp.
	_, err := a.Assemble(ctx, 2, "what does sarah drink, coffee?")
	require.NoError(t, err)
	_, err = a.Assemble(ctx, 2, "what does sarah drink, coffee?")
	require.NoError(t, err)

	recA, err := a.relevance.Get(ctx, "weather")
	require.NoError(t, err)
	assert.Equal(t, 0.0, recA.Similarity, "no concept overlap with the coffee query")

	// A different query must rescore despite the fresh cache: the
	// similarity dimension depends on the query.
	_, err = a.Assemble(ctx, 2, "was it cloudy, how is the weather")
	require.NoError(t, err)

	recB, err := a.relevance.Get(ctx, "weather")
	require.NoError(t, err)
	assert.NotEqual(t, recA.QueryHash, recB.QueryHash)
	assert.Greater(t, recB.Similarity, 0.0, "similarity tracks the active query")
}

func TestAssembleTouchesSelection(t *testing.T) {
	ctx := context.Background()
	a, items := newTestAssembler(t)
	defaultSeed(t, items)

	_, err := a.Assemble(ctx, 2, "")
	require.NoError(t, err)

	item, err := items.Get(ctx, "episodic", "facts", "sarah-coffee")
	require.NoError(t, err)
	assert.EqualValues(t, 1, item.AccessCount)
	assert.NotNil(t, item.LastAccessed)
}
