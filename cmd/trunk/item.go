package main

import (
	"context"

	"github.com/sandevgo/trunk/internal/core"
	"github.com/spf13/cobra"
)

var (
	itemToken       string
	itemSummary     string
	itemElaboration string
	itemWeight      float64
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Inspect and edit memory items",
}

var itemGetCmd = &cobra.Command{
	Use:   "get <thread> <module> <key>",
	Short: "Fetch one item",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEngine(cmd, func(ctx context.Context, e *engine) (any, error) {
			return e.items.Get(ctx, args[0], args[1], args[2])
		})
	},
}

var itemPutCmd = &cobra.Command{
	Use:   "put <thread> <module> <key>",
	Short: "Create or update an item",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEngine(cmd, func(ctx context.Context, e *engine) (any, error) {
			content := core.ContentByDepth{}
			if itemToken != "" {
				content.Token = &itemToken
			}
			if itemSummary != "" {
				content.Summary = &itemSummary
			}
			if itemElaboration != "" {
				content.Elaboration = &itemElaboration
			}
			return e.items.Upsert(ctx, args[0], args[1], args[2], content, itemWeight)
		})
	},
}

var itemRmCmd = &cobra.Command{
	Use:   "rm <thread> <module> <key>",
	Short: "Delete an item",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEngine(cmd, func(ctx context.Context, e *engine) (any, error) {
			if err := e.items.Delete(ctx, args[0], args[1], args[2]); err != nil {
				return nil, err
			}
			return map[string]string{"deleted": args[0] + "/" + args[1] + "/" + args[2]}, nil
		})
	},
}

var itemListCmd = &cobra.Command{
	Use:   "ls <thread> [module]",
	Short: "List items in a thread, heaviest first",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithEngine(cmd, func(ctx context.Context, e *engine) (any, error) {
			module := ""
			if len(args) == 2 {
				module = args[1]
			}
			return e.items.List(ctx, args[0], module, core.DepthToken, 100)
		})
	},
}

func init() {
	itemPutCmd.Flags().StringVar(&itemToken, "token", "", "depth 1 content, a few words")
	itemPutCmd.Flags().StringVar(&itemSummary, "summary", "", "depth 2 content, one sentence")
	itemPutCmd.Flags().StringVar(&itemElaboration, "elaboration", "", "depth 3 content, full detail")
	itemPutCmd.Flags().Float64Var(&itemWeight, "weight", 0.5, "importance in [0,1]")

	itemCmd.AddCommand(itemGetCmd, itemPutCmd, itemRmCmd, itemListCmd)
	rootCmd.AddCommand(itemCmd)
}
