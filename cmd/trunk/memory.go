package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	consolidateMax int
	ingestSource   string
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run one consolidation pass over the pending facts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEngine(cmd, func(ctx context.Context, e *engine) (any, error) {
			return e.consolidator.RunOnce(ctx, consolidateMax)
		})
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <level> [query...]",
	Short: "Assemble a budgeted memory context at detail level 1-3",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("level must be an integer: %w", err)
		}
		query := strings.Join(args[1:], " ")

		return runWithEngine(cmd, func(ctx context.Context, e *engine) (any, error) {
			assembled, err := e.assembler.Assemble(ctx, level, query)
			if err != nil {
				return nil, err
			}
			fmt.Print(assembled.Text)
			return nil, nil
		})
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract facts from a transcript on stdin and queue them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		transcript, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}

		return runWithEngine(cmd, func(ctx context.Context, e *engine) (any, error) {
			queued, err := e.ingestor.IngestTranscript(ctx, string(transcript), ingestSource)
			if err != nil {
				return nil, err
			}
			return map[string]int{"queued": queued}, nil
		})
	},
}

func init() {
	consolidateCmd.Flags().IntVar(&consolidateMax, "max", 0, "cap on facts processed, 0 uses the configured batch size")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "cli", "origin label stored with each fact")

	rootCmd.AddCommand(consolidateCmd, contextCmd, ingestCmd)
}
