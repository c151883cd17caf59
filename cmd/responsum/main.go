package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/app"
	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/models"
	"github.com/ternarybob/responsum/internal/server"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Responsum version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("responsum.toml"); err == nil {
			configFiles = append(configFiles, "responsum.toml")
		} else if _, err := os.Stat("deployments/local/responsum.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/responsum.toml")
		}
	}

	// Load configuration (defaults -> files -> env -> CLI)
	config, err := common.LoadFromFiles(nil, configFiles...)
	if err != nil {
		// Configured logger doesn't exist yet; fall back to the console one
		common.GetLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, *serverPort, *serverHost)

	logger := common.InitLogger(config)

	command := flag.Arg(0)
	if command == "" {
		command = "serve"
	}

	switch command {
	case "serve":
		runServe(config, logger)
	case "ingest":
		path := flag.Arg(1)
		if path == "" {
			fmt.Fprintln(os.Stderr, "Usage: responsum ingest <path>")
			os.Exit(1)
		}
		runIngest(config, logger, path)
	case "ask":
		runAsk(config, logger, strings.TrimSpace(strings.Join(flag.Args()[1:], " ")))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q. Commands: serve, ingest <path>, ask [question]\n", command)
		os.Exit(1)
	}
}

// runServe starts the HTTP server and blocks until interrupted
func runServe(config *common.Config, logger arbor.ILogger) {
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Int("port", config.Server.Port).
		Str("host", config.Server.Host).
		Msg("Application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start application")
	}

	srv := server.New(application)

	common.SafeGo(logger, "http server", func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	})

	// Give goroutine a moment to start
	time.Sleep(100 * time.Millisecond)

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received, shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}

// runIngest ingests a file or directory and exits
func runIngest(config *common.Config, logger arbor.ILogger, path string) {
	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	count, err := application.IngestService.IngestPath(ctx, path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", path).Msg("Ingest failed")
	}

	fmt.Printf("Ingested %d document(s) from %s\n", count, path)
}

// runAsk answers one question, or starts an interactive loop when no
// question is given
func runAsk(config *common.Config, logger arbor.ILogger, question string) {
	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if question != "" {
		askOnce(ctx, application, nil, question)
		return
	}

	// Interactive loop carrying conversation history
	var history []models.HistoryMessage
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if q == "exit" || q == "quit" {
			return
		}

		answer := askOnce(ctx, application, history, q)
		if answer != "" {
			history = append(history,
				models.HistoryMessage{Role: "user", Content: q},
				models.HistoryMessage{Role: "assistant", Content: answer},
			)
		}
	}
}

func askOnce(ctx context.Context, application *app.App, history []models.HistoryMessage, question string) string {
	turn, err := application.OrchestratorService.Ask(ctx, question, history)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ""
	}

	fmt.Println(turn.Answer.Text)
	if len(turn.Answer.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range turn.Answer.Citations {
			fmt.Printf("  - %s (%s)\n", c.DocumentTitle, c.SegmentID)
		}
	}

	return turn.Answer.Text
}
