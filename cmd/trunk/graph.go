package main

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	linkRate          float64
	activateThreshold float64
	activateMaxHops   int
	activateLimit     int
	decayRate         float64
	decayFloor        float64
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect and edit the concept association graph",
}

var graphLinkCmd = &cobra.Command{
	Use:   "link <concept-a> <concept-b>",
	Short: "Reinforce the association between two concepts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEngine(cmd, func(ctx context.Context, e *engine) (any, error) {
			rate := linkRate
			if rate <= 0 {
				rate = e.graphCfg.LearningRate
			}
			strength, err := e.graph.Link(ctx, args[0], args[1], rate)
			if err != nil {
				return nil, err
			}
			return map[string]float64{"strength": strength}, nil
		})
	},
}

var graphActivateCmd = &cobra.Command{
	Use:   "activate <concept> [concept...]",
	Short: "Spread activation from the given seed concepts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEngine(cmd, func(ctx context.Context, e *engine) (any, error) {
			return e.graph.SpreadActivate(ctx, args, activateThreshold, activateMaxHops, activateLimit)
		})
	},
}

var graphDecayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Run one decay sweep, pruning links below the floor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEngine(cmd, func(ctx context.Context, e *engine) (any, error) {
			return e.graph.Decay(ctx, decayRate, decayFloor)
		})
	},
}

func init() {
	graphLinkCmd.Flags().Float64Var(&linkRate, "rate", 0, "hebbian rate for this call, 0 uses the configured value")
	graphActivateCmd.Flags().Float64Var(&activateThreshold, "threshold", 0, "minimum activation to propagate, 0 uses the configured value")
	graphActivateCmd.Flags().IntVar(&activateMaxHops, "max-hops", 0, "propagation depth, 0 uses the configured value")
	graphActivateCmd.Flags().IntVar(&activateLimit, "limit", 0, "cap on returned activations, 0 uses the configured value")
	graphDecayCmd.Flags().Float64Var(&decayRate, "rate", 0, "per-day multiplier for this sweep, 0 uses the configured value")
	graphDecayCmd.Flags().Float64Var(&decayFloor, "floor", 0, "pruning floor for this sweep, 0 uses the configured value")

	graphCmd.AddCommand(graphLinkCmd, graphActivateCmd, graphDecayCmd)
	rootCmd.AddCommand(graphCmd)
}
