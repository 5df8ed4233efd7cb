package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sandevgo/trunk/internal/core"
	"github.com/sandevgo/trunk/pkg/log"
	"github.com/sandevgo/trunk/pkg/retry"
)

// Ingestor feeds the short-term buffer: it hands a transcript to the
// extraction collaborator and stores the resulting candidates as
// pending facts for the consolidator to judge.
type Ingestor struct {
	pending   core.PendingRepository
	extractor core.Extractor
	retrier   *retry.Retrier
	clock     core.Clock
}

func New(pending core.PendingRepository, extractor core.Extractor, clock core.Clock) *Ingestor {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Ingestor{
		pending:   pending,
		extractor: extractor,
		// The collaborator call is expensive and rate-limited: one retry.
		retrier: retry.NewRetrier(&retry.Config{
			MaxRetries:    1,
			BackoffFactor: 2,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			Jitter:        50 * time.Millisecond,
		}),
		clock: clock,
	}
}

// IngestTranscript extracts facts from a transcript and buffers them as
// pending facts. Returns the number of facts buffered.
func (s *Ingestor) IngestTranscript(ctx context.Context, transcript, source string) (int, error) {
	if strings.TrimSpace(transcript) == "" {
		return 0, fmt.Errorf("%w: empty transcript", core.ErrInvalidInput)
	}

	var facts []core.ExtractedFact
	err := s.retrier.Do(ctx, func() error {
		var err error
		facts, err = s.extractor.ExtractFacts(ctx, transcript)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrExtractionFailure, err)
	}

	logger := log.FromCtx(ctx)
	buffered := 0
	for _, fact := range facts {
		if strings.TrimSpace(fact.Text) == "" {
			continue
		}
		src := fact.Source
		if src == "" {
			src = source
		}
		pf := core.PendingFact{
			ID:        ulid.Make().String(),
			Text:      fact.Text,
			Source:    src,
			CreatedAt: s.clock.Now(),
		}
		if err := s.pending.Add(ctx, pf); err != nil {
			return buffered, fmt.Errorf("buffer fact: %w", err)
		}
		buffered++
	}

	logger.Debug().Int("facts", buffered).Msg("transcript ingested")
	return buffered, nil
}
