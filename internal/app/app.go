package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/handlers"
	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/services/agents"
	"github.com/ternarybob/responsum/internal/services/chunker"
	"github.com/ternarybob/responsum/internal/services/embeddings"
	"github.com/ternarybob/responsum/internal/services/index"
	"github.com/ternarybob/responsum/internal/services/ingest"
	"github.com/ternarybob/responsum/internal/services/llm"
	"github.com/ternarybob/responsum/internal/services/orchestrator"
	"github.com/ternarybob/responsum/internal/services/retriever"
	"github.com/ternarybob/responsum/internal/services/scheduler"
	badgerstorage "github.com/ternarybob/responsum/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager *badgerstorage.Manager

	// Pipeline services
	GeminiService    *llm.GeminiService
	EmbeddingService interfaces.EmbeddingService
	ChunkerService   *chunker.Service
	IndexService     interfaces.VectorIndex
	RetrieverService interfaces.RetrieverService
	IngestService    interfaces.IngestService

	// Agents and orchestration
	PlannerAgent        interfaces.PlannerAgent
	SynthesizerAgent    interfaces.SynthesizerAgent
	OrchestratorService interfaces.OrchestratorService

	// Maintenance
	SchedulerService interfaces.SchedulerService

	// HTTP handlers
	AskHandler       *handlers.AskHandler
	SearchHandler    *handlers.SearchHandler
	DocumentHandler  *handlers.DocumentHandler
	StatusHandler    *handlers.StatusHandler
	SchedulerHandler *handlers.SchedulerHandler
	WSHandler        *handlers.WebSocketHandler

	plannerLLM     interfaces.LLMService
	synthesizerLLM interfaces.LLMService
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badgerstorage.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	kvStorage := storageManager.KVStorage()

	// Gemini carries both chat and embeddings; it is created directly so
	// the embedding service can share the client with the planner.
	gemini, err := llm.NewGeminiService(&cfg.Gemini, llm.RetryConfigFromOrchestrator(&cfg.Orchestrator), kvStorage, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize Gemini service: %w", err)
	}
	app.GeminiService = gemini

	app.EmbeddingService = embeddings.NewService(gemini, logger)
	app.ChunkerService = chunker.NewService(&cfg.Chunking, logger)

	indexService, err := index.NewService(cfg.Gemini.Dimension, storageManager.IndexStorage(), logger)
	if err != nil {
		app.closePartial()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	app.IndexService = indexService

	app.RetrieverService = retriever.NewService(app.EmbeddingService, indexService, &cfg.Retrieval, logger)
	app.IngestService = ingest.NewService(app.ChunkerService, app.EmbeddingService, indexService, storageManager.DocumentStorage(), &cfg.Processing, logger)

	if err := app.initAgents(gemini, kvStorage); err != nil {
		app.closePartial()
		return nil, err
	}

	app.OrchestratorService = orchestrator.NewService(app.PlannerAgent, app.SynthesizerAgent, app.RetrieverService, &cfg.Orchestrator, logger)

	if cfg.Processing.Enabled {
		sched := scheduler.NewService(logger)
		if err := sched.RegisterJob("reindex", cfg.Processing.Schedule, "Re-embed documents indexed with an older embedding model", func() error {
			_, err := app.IngestService.ReindexStale(context.Background())
			return err
		}); err != nil {
			app.closePartial()
			return nil, fmt.Errorf("failed to register reindex job: %w", err)
		}
		app.SchedulerService = sched
	}

	app.initHandlers()

	logger.Info().
		Str("planner", string(cfg.Agents.PlannerProvider)).
		Str("synthesizer", string(cfg.Agents.SynthesizerProvider)).
		Int("dimension", cfg.Gemini.Dimension).
		Msg("Application initialized")

	return app, nil
}

// initAgents builds the planner and synthesizer on their configured
// providers, reusing the Gemini client when a provider resolves to it
func (a *App) initAgents(gemini *llm.GeminiService, kvStorage interfaces.KVStorage) error {
	resolve := func(provider common.LLMProvider) (interfaces.LLMService, error) {
		if provider == common.LLMProviderGemini {
			return gemini, nil
		}
		return llm.NewLLMService(provider, a.Config, kvStorage, a.Logger)
	}

	plannerLLM, err := resolve(a.Config.Agents.PlannerProvider)
	if err != nil {
		return fmt.Errorf("failed to initialize planner LLM: %w", err)
	}
	a.plannerLLM = plannerLLM

	synthesizerLLM, err := resolve(a.Config.Agents.SynthesizerProvider)
	if err != nil {
		return fmt.Errorf("failed to initialize synthesizer LLM: %w", err)
	}
	a.synthesizerLLM = synthesizerLLM

	a.PlannerAgent = agents.NewPlanner(plannerLLM, &a.Config.Agents, a.Logger)
	a.SynthesizerAgent = agents.NewSynthesizer(synthesizerLLM, &a.Config.Agents, a.Logger)

	return nil
}

func (a *App) initHandlers() {
	a.AskHandler = handlers.NewAskHandler(a.OrchestratorService, a.Logger)
	a.SearchHandler = handlers.NewSearchHandler(a.RetrieverService, a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(a.IngestService, a.StorageManager.DocumentStorage(), a.IndexService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.EmbeddingService, a.IndexService, a.SchedulerService, a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.OrchestratorService, a.Logger)
}

// Start begins background components
func (a *App) Start() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}
	return nil
}

// Close shuts down all components in reverse dependency order
func (a *App) Close() {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Scheduler stop failed")
		}
	}

	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	a.closePartial()

	a.Logger.Info().Msg("Application closed")
}

func (a *App) closePartial() {
	if a.synthesizerLLM != nil && a.synthesizerLLM != interfaces.LLMService(a.GeminiService) {
		if err := a.synthesizerLLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Synthesizer LLM close failed")
		}
	}
	if a.plannerLLM != nil && a.plannerLLM != interfaces.LLMService(a.GeminiService) {
		if err := a.plannerLLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Planner LLM close failed")
		}
	}

	if a.IndexService != nil {
		if err := a.IndexService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Index close failed")
		}
	}

	if a.GeminiService != nil {
		if err := a.GeminiService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Gemini service close failed")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
	}
}
