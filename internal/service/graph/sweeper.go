package graph

import (
	"context"
	"time"

	"github.com/sandevgo/trunk/pkg/log"
)

// Sweeper runs the temporal decay sweep on its own low-frequency
// schedule, separate from consolidation.
type Sweeper struct {
	graph    *Graph
	interval time.Duration
}

func NewSweeper(g *Graph, interval time.Duration) *Sweeper {
	return &Sweeper{graph: g, interval: interval}
}

func (s *Sweeper) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Dur("interval", s.interval).Msg("starting link decay sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := s.graph.Decay(ctx, 0, 0)
			if err != nil {
				logger.Error().Err(err).Msg("decay sweep failed")
				continue
			}
			if report.LinksDecayed > 0 || report.LinksPruned > 0 {
				logger.Info().
					Int("decayed", report.LinksDecayed).
					Int("pruned", report.LinksPruned).
					Msg("decay sweep complete")
			}
		}
	}
}

func (s *Sweeper) Shutdown(ctx context.Context) error {
	return nil
}
