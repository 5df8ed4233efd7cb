package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// runWithEngine wires the engine for a one-shot admin command, runs the
// operation, and prints its result as JSON.
func runWithEngine(cmd *cobra.Command, op func(ctx context.Context, e *engine) (any, error)) error {
	ctx, flushLog := setupLogger(cmd.Context())
	defer flushLog()

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := op(ctx, e)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
