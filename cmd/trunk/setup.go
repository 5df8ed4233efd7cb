package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/trunk/internal/config"
	"github.com/sandevgo/trunk/internal/core"
	"github.com/sandevgo/trunk/internal/providers/llm"
	"github.com/sandevgo/trunk/internal/service/assembler"
	"github.com/sandevgo/trunk/internal/service/consolidator"
	"github.com/sandevgo/trunk/internal/service/graph"
	"github.com/sandevgo/trunk/internal/service/ingest"
	"github.com/sandevgo/trunk/internal/service/scorer"
	"github.com/sandevgo/trunk/internal/storage/sqlite"
	"github.com/sandevgo/trunk/internal/transport/mcpserver"
	"github.com/sandevgo/trunk/pkg/log"
	"github.com/sandevgo/trunk/pkg/srv"
)

// engine holds the wired memory stack. The long-running start command and
// the one-shot admin commands build the same engine; start additionally
// runs the background loops and the MCP transport.
type engine struct {
	db *sql.DB

	items     *sqlite.ItemsRepo
	links     *sqlite.LinksRepo
	pending   *sqlite.PendingRepo
	relevance *sqlite.RelevanceRepo

	appCfg   *config.AppConfig
	graphCfg *config.GraphConfig
	consCfg  *config.ConsolidationConfig

	graph        *graph.Graph
	scorer       *scorer.Scorer
	consolidator *consolidator.Consolidator
	sweeper      *graph.Sweeper
	assembler    *assembler.Assembler
	ingestor     *ingest.Ingestor
}

func (e *engine) Close() error {
	return e.db.Close()
}

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)

	e, err := newEngine(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize engine")
	}

	mcpSrv := mcpserver.New(e.items, e.graph, e.assembler, e.consolidator, e.ingestor, e.graphCfg, e.consCfg)

	return []srv.Service{
		srv.NewCleanup(e.db.Close),
		e.consolidator,
		e.sweeper,
		mcpSrv,
	}
}

func newEngine(ctx context.Context) (*engine, error) {
	logger := log.FromCtx(ctx)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	graphCfg := config.NewGraphConfig(ctx)
	scoringCfg := config.NewScoringConfig(ctx)
	consCfg := config.NewConsolidationConfig(ctx)
	asmCfg := config.NewAssemblerConfig(ctx)
	llmCfg := config.NewLLMConfig(ctx)

	// 2. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		return nil, err
	}

	items := sqlite.NewItemsRepo(db)
	links := sqlite.NewLinksRepo(db)
	pending := sqlite.NewPendingRepo(db)
	relevance := sqlite.NewRelevanceRepo(db)
	finalizer := sqlite.NewFinalizer(db)

	clock := core.SystemClock{}

	// 3. Association graph and its decay sweep
	g := graph.New(links, graphCfg, clock)
	sweeper := graph.NewSweeper(g, graphCfg.DecayInterval)

	// 4. Relevance scoring
	sc := scorer.New(items, scoringCfg, appCfg, clock)

	// 5. Consolidation: pending facts -> tiered items + reinforced links
	cons := consolidator.New(pending, finalizer, sc, g, consCfg)

	// 6. Context assembly
	asm := assembler.New(items, relevance, sc, g, asmCfg, appCfg, consCfg.TargetThread)

	// 7. Fact extraction via the configured LLM endpoint
	extractor := llm.NewClient(llmCfg)
	ingestor := ingest.New(pending, extractor, clock)

	return &engine{
		db:           db,
		items:        items,
		links:        links,
		pending:      pending,
		relevance:    relevance,
		appCfg:       appCfg,
		graphCfg:     graphCfg,
		consCfg:      consCfg,
		graph:        g,
		scorer:       sc,
		consolidator: cons,
		sweeper:      sweeper,
		assembler:    asm,
		ingestor:     ingestor,
	}, nil
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
