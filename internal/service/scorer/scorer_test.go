package scorer

import (
	"context"
	"testing"
	"time"

	"github.com/sandevgo/trunk/internal/config"
	"github.com/sandevgo/trunk/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeItems struct {
	byThread map[string][]core.Item
}

func (f *fakeItems) Get(ctx context.Context, thread, module, key string) (core.Item, error) {
	return core.Item{}, core.ErrNotFound
}

func (f *fakeItems) Upsert(ctx context.Context, thread, module, key string, content core.ContentByDepth, weight float64) (core.Item, error) {
	return core.Item{}, nil
}

func (f *fakeItems) List(ctx context.Context, thread, module string, minLevel, limit int) ([]core.Item, error) {
	return f.byThread[thread], nil
}

func (f *fakeItems) Delete(ctx context.Context, thread, module, key string) error { return nil }

func (f *fakeItems) Touch(ctx context.Context, ids []int64) error { return nil }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func strPtr(s string) *string { return &s }

func testScoringConfig() *config.ScoringConfig {
	return &config.ScoringConfig{
		WeightIdentity:   0.2,
		WeightRecency:    0.15,
		WeightSimilarity: 0.25,
		WeightSalience:   0.15,
		WeightFrequency:  0.1,
		WeightGraph:      0.15,
		RecencyHalfLifeH: 168,
	}
}

func testAppConfig() *config.AppConfig {
	return &config.AppConfig{IdentityThread: "identity", ValuesThread: "values"}
}

func newTestScorer(items *fakeItems) (*Scorer, fixedClock) {
	clock := fixedClock{now: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)}
	return New(items, testScoringConfig(), testAppConfig(), clock), clock
}

func TestScoreDimensionsIndependent(t *testing.T) {
	ctx := context.Background()
	items := &fakeItems{byThread: map[string][]core.Item{
		"identity": {{Key: "goal", Summary: strPtr("help sarah with coffee brewing"), Weight: 0.9}},
		"values":   {{Key: "honesty", Summary: strPtr("always honest answers"), Weight: 0.95}},
	}}
	s, clock := newTestScorer(items)

	rec, err := s.Score(ctx, Candidate{
		Key:          "sarah-coffee",
		Text:         "Sarah likes coffee",
		AccessCount:  9,
		LastAccessed: clock.now.Add(-168 * time.Hour),
	}, "does sarah want coffee", map[string]float64{"coffee": 0.5})
	require.NoError(t, err)

	assert.Greater(t, rec.Identity, 0.0, "shares concepts with the identity goal")
	assert.InDelta(t, 0.5, rec.Recency, 1e-9, "one half-life elapsed")
	assert.Greater(t, rec.Similarity, 0.0)
	assert.InDelta(t, 0.5, rec.Frequency, 0.01, "log10(10)/log10(100)")
	assert.InDelta(t, 0.5, rec.Graph, 1e-9)
	assert.Equal(t, 0.0, rec.Salience, "no overlap with value items")

	assert.Greater(t, rec.FinalScore, 0.0)
	assert.LessOrEqual(t, rec.FinalScore, 1.0)
}

func TestScoreSalienceHardConstraint(t *testing.T) {
	ctx := context.Background()
	items := &fakeItems{byThread: map[string][]core.Item{
		"values": {{Key: "privacy", Summary: strPtr("never share private data"), Weight: 0.95}},
	}}
	s, _ := newTestScorer(items)

	rec, err := s.Score(ctx, Candidate{Key: "k", Text: "user asked to share private data"}, "", nil)
	require.NoError(t, err)
	// Touching a hard constraint scores the constraint's weight.
	assert.InDelta(t, 0.95, rec.Salience, 1e-9)
}

func TestScoreFreshCandidateFullRecency(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestScorer(&fakeItems{byThread: map[string][]core.Item{}})

	rec, err := s.Score(ctx, Candidate{Key: "k", Text: "brand new fact"}, "", nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rec.Recency, 1e-9)
}

func TestScoreNoQueryNoSimilarity(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestScorer(&fakeItems{byThread: map[string][]core.Item{}})

	rec, err := s.Score(ctx, Candidate{Key: "k", Text: "some fact"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.Similarity)
	assert.Equal(t, 0.0, rec.Graph)
}

func TestScoreWithoutQueryDropsSimilarityWeight(t *testing.T) {
	ctx := context.Background()
	items := &fakeItems{byThread: map[string][]core.Item{
		"identity": {{Key: "goal", Summary: strPtr("sarah coffee"), Weight: 0.9}},
		"values":   {{Key: "quality", Summary: strPtr("coffee quality matters"), Weight: 0.95}},
	}}
	s, _ := newTestScorer(items)

	// Every applicable dimension near its maximum; without a query the
	// similarity weight must leave the denominator or the top of the
	// scale is unreachable.
	rec, err := s.Score(ctx, Candidate{
		Key:         "sarah-coffee",
		Text:        "sarah drinks coffee",
		AccessCount: 99,
	}, "", map[string]float64{"coffee": 1.0})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, rec.Identity, 1e-9)
	assert.InDelta(t, 1.0, rec.Recency, 1e-9)
	assert.InDelta(t, 0.95, rec.Salience, 1e-9)
	assert.InDelta(t, 1.0, rec.Frequency, 1e-9)
	assert.InDelta(t, 1.0, rec.Graph, 1e-9)
	// (0.2 + 0.15 + 0.15*0.95 + 0.1 + 0.15) / 0.75
	assert.InDelta(t, 0.99, rec.FinalScore, 1e-9)
	assert.GreaterOrEqual(t, rec.FinalScore, 0.8)
}

func TestSimilarityScore(t *testing.T) {
	a := []string{"sarah", "likes", "coffee"}
	assert.InDelta(t, 1.0, similarityScore(a, a), 1e-9)
	assert.Equal(t, 0.0, similarityScore(a, []string{"weather"}))
	assert.InDelta(t, 0.5, similarityScore([]string{"sarah", "coffee"}, []string{"sarah"}), 1e-9)
}

func TestFrequencyScoreSaturates(t *testing.T) {
	assert.Equal(t, 0.0, frequencyScore(0))
	assert.InDelta(t, 1.0, frequencyScore(99), 1e-9)
	assert.Equal(t, 1.0, frequencyScore(100000))
}
