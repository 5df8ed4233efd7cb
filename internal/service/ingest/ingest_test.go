package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sandevgo/trunk/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPending struct {
	mu    sync.Mutex
	facts []core.PendingFact
}

func (m *mockPending) Add(ctx context.Context, fact core.PendingFact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts = append(m.facts, fact)
	return nil
}

func (m *mockPending) Oldest(ctx context.Context, limit int) ([]core.PendingFact, error) {
	return nil, nil
}

func (m *mockPending) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.facts), nil
}

type mockExtractor struct {
	mu       sync.Mutex
	calls    int
	failures int
	facts    []core.ExtractedFact
}

func (m *mockExtractor) ExtractFacts(ctx context.Context, transcript string) ([]core.ExtractedFact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return nil, errors.New("collaborator timeout")
	}
	return m.facts, nil
}

func (m *mockExtractor) Generate(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

func TestIngestTranscript(t *testing.T) {
	ctx := context.Background()
	pending := &mockPending{}
	extractor := &mockExtractor{facts: []core.ExtractedFact{
		{Text: "Sarah likes coffee", Source: "sarah"},
		{Text: "the project ships friday"},
		{Text: "   "},
	}}

	n, err := New(pending, extractor, nil).IngestTranscript(ctx, "USER: hi\nSARAH: I like coffee", "chat")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "blank facts are dropped")

	require.Len(t, pending.facts, 2)
	assert.Equal(t, "sarah", pending.facts[0].Source)
	assert.Equal(t, "chat", pending.facts[1].Source, "missing source falls back to the transcript source")
	assert.NotEmpty(t, pending.facts[0].ID)
	assert.NotEqual(t, pending.facts[0].ID, pending.facts[1].ID)
}

func TestIngestRetriesOnce(t *testing.T) {
	ctx := context.Background()
	pending := &mockPending{}
	extractor := &mockExtractor{
		failures: 1,
		facts:    []core.ExtractedFact{{Text: "a fact", Source: "chat"}},
	}

	n, err := New(pending, extractor, nil).IngestTranscript(ctx, "some transcript", "chat")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, extractor.calls)
}

func TestIngestGivesUpAfterRetry(t *testing.T) {
	ctx := context.Background()
	extractor := &mockExtractor{failures: 5}

	_, err := New(&mockPending{}, extractor, nil).IngestTranscript(ctx, "some transcript", "chat")
	require.ErrorIs(t, err, core.ErrExtractionFailure)
	assert.Equal(t, 2, extractor.calls, "exactly one retry")
}

func TestIngestRejectsEmptyTranscript(t *testing.T) {
	_, err := New(&mockPending{}, &mockExtractor{}, nil).IngestTranscript(context.Background(), "  ", "chat")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
