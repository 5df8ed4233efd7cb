package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sandevgo/trunk/internal/config"
	"github.com/sandevgo/trunk/internal/core"
	"github.com/sandevgo/trunk/internal/service/assembler"
	"github.com/sandevgo/trunk/internal/service/consolidator"
	"github.com/sandevgo/trunk/internal/service/graph"
	"github.com/sandevgo/trunk/internal/service/ingest"
	"github.com/sandevgo/trunk/pkg/log"
)

// Server exposes the memory engine over MCP stdio so that agent hosts can
// call it as a toolbox. Mutations go through the same services the
// background loops use, so graph locks and consolidation serialization
// hold across transports.
type Server struct {
	mcp *server.MCPServer

	items        core.ItemsRepository
	graph        *graph.Graph
	assembler    *assembler.Assembler
	consolidator *consolidator.Consolidator
	ingestor     *ingest.Ingestor
	graphCfg     *config.GraphConfig
	consCfg      *config.ConsolidationConfig
}

func New(
	items core.ItemsRepository,
	g *graph.Graph,
	asm *assembler.Assembler,
	cons *consolidator.Consolidator,
	ing *ingest.Ingestor,
	graphCfg *config.GraphConfig,
	consCfg *config.ConsolidationConfig,
) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			core.TrunkName,
			core.TrunkVersion,
			server.WithToolCapabilities(true),
		),
		items:        items,
		graph:        g,
		assembler:    asm,
		consolidator: cons,
		ingestor:     ing,
		graphCfg:     graphCfg,
		consCfg:      consCfg,
	}
	s.registerTools()
	return s
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("mcp server listening on stdio")

	stdio := server.NewStdioServer(s.mcp)
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("mcp server stopped")
	return nil
}

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool(
			"assemble_context",
			mcp.WithDescription("Assemble a token-budgeted memory context at detail level 1 (tokens), 2 (summaries) or 3 (elaborations), optionally ranked against a query"),
			mcp.WithNumber("level", mcp.Required(), mcp.Description("Detail level, 1 to 3")),
			mcp.WithString("query", mcp.Description("Free text to rank memories against")),
		),
		s.handleAssemble,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"ingest_transcript",
			mcp.WithDescription("Extract candidate facts from a conversation transcript and queue them for consolidation"),
			mcp.WithString("transcript", mcp.Required(), mcp.Description("Raw conversation text")),
			mcp.WithString("source", mcp.Description("Origin label stored with each fact")),
		),
		s.handleIngest,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"run_consolidation",
			mcp.WithDescription("Score queued facts, promote or discard them, and reinforce concept links"),
			mcp.WithNumber("max_facts", mcp.Description("Cap on facts processed this run")),
		),
		s.handleConsolidate,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"get_item",
			mcp.WithDescription("Fetch one memory item by thread, module and key"),
			mcp.WithString("thread", mcp.Required(), mcp.Description("Memory thread, e.g. identity or episodic")),
			mcp.WithString("module", mcp.Required(), mcp.Description("Module within the thread")),
			mcp.WithString("key", mcp.Required(), mcp.Description("Item key")),
		),
		s.handleGetItem,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"upsert_item",
			mcp.WithDescription("Create or update a memory item with up to three content depths"),
			mcp.WithString("thread", mcp.Required(), mcp.Description("Memory thread")),
			mcp.WithString("module", mcp.Required(), mcp.Description("Module within the thread")),
			mcp.WithString("key", mcp.Required(), mcp.Description("Item key")),
			mcp.WithString("token", mcp.Description("Depth 1 content, a few words")),
			mcp.WithString("summary", mcp.Description("Depth 2 content, one sentence")),
			mcp.WithString("elaboration", mcp.Description("Depth 3 content, full detail")),
			mcp.WithNumber("weight", mcp.Description("Importance in [0,1], defaults to 0.5")),
		),
		s.handleUpsertItem,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"delete_item",
			mcp.WithDescription("Delete a memory item by thread, module and key"),
			mcp.WithString("thread", mcp.Required(), mcp.Description("Memory thread")),
			mcp.WithString("module", mcp.Required(), mcp.Description("Module within the thread")),
			mcp.WithString("key", mcp.Required(), mcp.Description("Item key")),
		),
		s.handleDeleteItem,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"link_concepts",
			mcp.WithDescription("Reinforce the association between two concepts"),
			mcp.WithString("concept_a", mcp.Required(), mcp.Description("First concept")),
			mcp.WithString("concept_b", mcp.Required(), mcp.Description("Second concept")),
			mcp.WithNumber("learning_rate", mcp.Description("Hebbian rate for this call, overrides the configured default")),
		),
		s.handleLink,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"spread_activate",
			mcp.WithDescription("Activate concepts related to the given seeds through the association graph"),
			mcp.WithString("concepts", mcp.Required(), mcp.Description("Comma separated seed concepts")),
			mcp.WithNumber("threshold", mcp.Description("Minimum activation to propagate, overrides the configured default")),
			mcp.WithNumber("max_hops", mcp.Description("Propagation depth, overrides the configured default")),
			mcp.WithNumber("limit", mcp.Description("Cap on returned activations")),
		),
		s.handleActivate,
	)

	s.mcp.AddTool(
		mcp.NewTool(
			"decay_links",
			mcp.WithDescription("Run one decay sweep over the association graph, pruning links below the floor"),
			mcp.WithNumber("decay_rate", mcp.Description("Per-day multiplier for this sweep, overrides the configured default")),
			mcp.WithNumber("min_strength", mcp.Description("Pruning floor for this sweep, overrides the configured default")),
		),
		s.handleDecay,
	)
}

func (s *Server) handleAssemble(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	level := req.GetInt("level", 0)
	query := req.GetString("query", "")

	assembled, err := s.assembler.Assemble(ctx, level, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(assembled)
}

func (s *Server) handleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	transcript, err := req.RequireString("transcript")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	source := req.GetString("source", "mcp")

	queued, err := s.ingestor.IngestTranscript(ctx, transcript, source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]int{"queued": queued})
}

func (s *Server) handleConsolidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	maxFacts := req.GetInt("max_facts", s.consCfg.MaxFactsPerRun)

	report, err := s.consolidator.RunOnce(ctx, maxFacts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

func (s *Server) handleGetItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	thread, module, key, err := itemAddress(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	item, err := s.items.Get(ctx, thread, module, key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(item)
}

func (s *Server) handleUpsertItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	thread, module, key, err := itemAddress(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	content := core.ContentByDepth{}
	if v := req.GetString("token", ""); v != "" {
		content.Token = &v
	}
	if v := req.GetString("summary", ""); v != "" {
		content.Summary = &v
	}
	if v := req.GetString("elaboration", ""); v != "" {
		content.Elaboration = &v
	}
	weight := req.GetFloat("weight", 0.5)

	item, err := s.items.Upsert(ctx, thread, module, key, content, weight)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(item)
}

func (s *Server) handleDeleteItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	thread, module, key, err := itemAddress(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.items.Delete(ctx, thread, module, key); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{"deleted": thread + "/" + module + "/" + key})
}

func (s *Server) handleLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := req.RequireString("concept_a")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := req.RequireString("concept_b")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rate := req.GetFloat("learning_rate", s.graphCfg.LearningRate)

	strength, err := s.graph.Link(ctx, a, b, rate)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]float64{"strength": strength})
}

func (s *Server) handleActivate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("concepts")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	seeds := splitConcepts(raw)
	if len(seeds) == 0 {
		return mcp.NewToolResultError("concepts must name at least one concept"), nil
	}
	threshold := req.GetFloat("threshold", s.graphCfg.ActivationThreshold)
	maxHops := req.GetInt("max_hops", s.graphCfg.MaxHops)
	limit := req.GetInt("limit", s.graphCfg.ActivationLimit)

	act, err := s.graph.SpreadActivate(ctx, seeds, threshold, maxHops, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(act)
}

func (s *Server) handleDecay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rate := req.GetFloat("decay_rate", s.graphCfg.DecayRate)
	floor := req.GetFloat("min_strength", s.graphCfg.MinStrength)

	report, err := s.graph.Decay(ctx, rate, floor)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

func itemAddress(req mcp.CallToolRequest) (thread, module, key string, err error) {
	if thread, err = req.RequireString("thread"); err != nil {
		return "", "", "", err
	}
	if module, err = req.RequireString("module"); err != nil {
		return "", "", "", err
	}
	if key, err = req.RequireString("key"); err != nil {
		return "", "", "", err
	}
	return thread, module, key, nil
}

func splitConcepts(raw string) []string {
	var seeds []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			seeds = append(seeds, part)
		}
	}
	return seeds
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
