package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/services/embeddings"
	"github.com/ternarybob/responsum/internal/services/index"
	"github.com/ternarybob/responsum/internal/services/llm"
	"github.com/ternarybob/responsum/internal/services/retriever"
	badgerstorage "github.com/ternarybob/responsum/internal/storage/badger"
)

func main() {
	configPath := os.Getenv("RESPONSUM_CONFIG")
	if configPath == "" {
		configPath = "responsum.toml"
	}

	config, err := common.LoadFromFile(nil, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	storageManager, err := badgerstorage.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	gemini, err := llm.NewGeminiService(&config.Gemini, llm.RetryConfigFromOrchestrator(&config.Orchestrator), storageManager.KVStorage(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Gemini service")
	}
	defer gemini.Close()

	embedder := embeddings.NewService(gemini, logger)

	vectorIndex, err := index.NewService(config.Gemini.Dimension, storageManager.IndexStorage(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize vector index")
	}
	defer vectorIndex.Close()

	retrieverService := retriever.NewService(embedder, vectorIndex, &config.Retrieval, logger)

	mcpServer := server.NewMCPServer(
		"responsum",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createRetrievePassagesTool(), handleRetrievePassages(retrieverService, logger))
	mcpServer.AddTool(createGetDocumentTool(), handleGetDocument(storageManager.DocumentStorage(), logger))
	mcpServer.AddTool(createCorpusStatsTool(), handleCorpusStats(storageManager.DocumentStorage(), vectorIndex, logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
