package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/responsum/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment  string             `toml:"environment"` // "development" or "production"
	Server       ServerConfig       `toml:"server"`
	Storage      StorageConfig      `toml:"storage"`
	Logging      LoggingConfig      `toml:"logging"`
	Chunking     ChunkingConfig     `toml:"chunking"`
	Retrieval    RetrievalConfig    `toml:"retrieval"`
	Gemini       GeminiConfig       `toml:"gemini"`
	Claude       ClaudeConfig       `toml:"claude"`
	Agents       AgentsConfig       `toml:"agents"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Processing   ProcessingConfig   `toml:"processing"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// ChunkingConfig controls how documents are split into segments
type ChunkingConfig struct {
	MaxWords     int `toml:"max_words"`     // Word budget per segment (default: 500)
	OverlapWords int `toml:"overlap_words"` // Words repeated from the previous segment (default: 50)
}

// RetrievalConfig controls query-time search behavior
type RetrievalConfig struct {
	DefaultTopK    int     `toml:"default_top_k"`    // Results per query when unspecified (default: 5)
	MaxTopK        int     `toml:"max_top_k"`        // Hard cap on requested results (default: 20)
	MinScore       float64 `toml:"min_score"`        // Default similarity floor, 0 disables (default: 0)
	MaxQueryLength int     `toml:"max_query_length"` // Queries truncated beyond this many runes (default: 1000)
}

// GeminiConfig contains Google Gemini API configuration (planner + embeddings)
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`         // Google Gemini API key
	Model          string  `toml:"model"`           // Chat model (default: "gemini-2.5-flash")
	EmbeddingModel string  `toml:"embedding_model"` // Embedding model (default: "gemini-embedding-001")
	Dimension      int     `toml:"dimension"`       // Embedding output dimension (default: 768)
	Timeout        string  `toml:"timeout"`         // Per-call timeout as duration string (default: "2m")
	RateLimit      string  `toml:"rate_limit"`      // Minimum interval between calls (default: "4s" for 15 RPM)
	Temperature    float32 `toml:"temperature"`     // Chat completion temperature (default: 0.2)
}

// ClaudeConfig contains Anthropic Claude API configuration (synthesizer)
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model (default: "claude-sonnet-4-20250514")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Timeout     string  `toml:"timeout"`     // Per-call timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between calls (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// AgentsConfig selects providers and retry behavior for the two agents
type AgentsConfig struct {
	PlannerProvider     LLMProvider `toml:"planner_provider"`     // "gemini" (default) or "claude"
	SynthesizerProvider LLMProvider `toml:"synthesizer_provider"` // "claude" (default) or "gemini"
	MaxQueries          int         `toml:"max_queries"`          // Planner queries kept per turn (default: 3)
	ContractRetries     int         `toml:"contract_retries"`     // Repair attempts after malformed output (default: 2)
}

// OrchestratorConfig controls the per-turn state machine
type OrchestratorConfig struct {
	RequestTimeout   string `toml:"request_timeout"`   // Outer deadline per question (default: "3m")
	RetrievalWorkers int    `toml:"retrieval_workers"` // Concurrent retrieval fan-out width (default: 4)
	MaxPassages      int    `toml:"max_passages"`      // Merged context cap across queries (default: 8)
	MaxRetries       int    `toml:"max_retries"`       // Transport retries per stage call (default: 3)
	RetryBackoff     string `toml:"retry_backoff"`     // Initial backoff between retries (default: "500ms")
}

// ProcessingConfig controls scheduled background reindexing
type ProcessingConfig struct {
	Enabled  bool   `toml:"enabled"`  // Disabled by default - user must explicitly opt-in
	Schedule string `toml:"schedule"` // Cron schedule format
	Limit    int    `toml:"limit"`    // Max documents to reindex per run
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings should be exposed in responsum.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Chunking: ChunkingConfig{
			MaxWords:     500,
			OverlapWords: 50,
		},
		Retrieval: RetrievalConfig{
			DefaultTopK:    5,
			MaxTopK:        20,
			MinScore:       0,
			MaxQueryLength: 1000,
		},
		Gemini: GeminiConfig{
			APIKey:         "", // User must provide API key (no fallback)
			Model:          "gemini-2.5-flash",
			EmbeddingModel: "gemini-embedding-001",
			Dimension:      768,
			Timeout:        "2m",
			RateLimit:      "4s", // Default to 4s (15 RPM) for free tier
			Temperature:    0.2,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.3,
		},
		Agents: AgentsConfig{
			PlannerProvider:     LLMProviderGemini, // Fast model decides, strong model writes
			SynthesizerProvider: LLMProviderClaude,
			MaxQueries:          3,
			ContractRetries:     2,
		},
		Orchestrator: OrchestratorConfig{
			RequestTimeout:   "3m",
			RetrievalWorkers: 4,
			MaxPassages:      8,
			MaxRetries:       3,
			RetryBackoff:     "500ms",
		},
		Processing: ProcessingConfig{
			Enabled:  false,
			Schedule: "0 0 3 * * *", // 03:00 daily (cron format with seconds)
			Limit:    200,
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
// kvStorage can be nil (API key resolution then skips the KV store).
func LoadFromFile(kvStorage interfaces.KVStorage, path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles(kvStorage)
	}
	return LoadFromFiles(kvStorage, path)
}

// LoadFromFiles loads configuration from multiple files; later files override
// earlier ones, environment variables override all files.
func LoadFromFiles(kvStorage interfaces.KVStorage, paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("RESPONSUM_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("RESPONSUM_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("RESPONSUM_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("RESPONSUM_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("RESPONSUM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("RESPONSUM_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("RESPONSUM_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Chunking configuration
	if maxWords := os.Getenv("RESPONSUM_CHUNKING_MAX_WORDS"); maxWords != "" {
		if mw, err := strconv.Atoi(maxWords); err == nil {
			config.Chunking.MaxWords = mw
		}
	}
	if overlapWords := os.Getenv("RESPONSUM_CHUNKING_OVERLAP_WORDS"); overlapWords != "" {
		if ow, err := strconv.Atoi(overlapWords); err == nil {
			config.Chunking.OverlapWords = ow
		}
	}

	// Retrieval configuration
	if topK := os.Getenv("RESPONSUM_RETRIEVAL_DEFAULT_TOP_K"); topK != "" {
		if k, err := strconv.Atoi(topK); err == nil {
			config.Retrieval.DefaultTopK = k
		}
	}
	if maxTopK := os.Getenv("RESPONSUM_RETRIEVAL_MAX_TOP_K"); maxTopK != "" {
		if k, err := strconv.Atoi(maxTopK); err == nil {
			config.Retrieval.MaxTopK = k
		}
	}
	if minScore := os.Getenv("RESPONSUM_RETRIEVAL_MIN_SCORE"); minScore != "" {
		if s, err := strconv.ParseFloat(minScore, 64); err == nil {
			config.Retrieval.MinScore = s
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("RESPONSUM_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("RESPONSUM_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if model := os.Getenv("RESPONSUM_GEMINI_EMBEDDING_MODEL"); model != "" {
		config.Gemini.EmbeddingModel = model
	}
	if dimension := os.Getenv("RESPONSUM_GEMINI_DIMENSION"); dimension != "" {
		if d, err := strconv.Atoi(dimension); err == nil {
			config.Gemini.Dimension = d
		}
	}
	if timeout := os.Getenv("RESPONSUM_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("RESPONSUM_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("RESPONSUM_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("RESPONSUM_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // RESPONSUM_ prefix takes priority
	}
	if model := os.Getenv("RESPONSUM_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("RESPONSUM_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("RESPONSUM_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if rateLimit := os.Getenv("RESPONSUM_CLAUDE_RATE_LIMIT"); rateLimit != "" {
		config.Claude.RateLimit = rateLimit
	}
	if temperature := os.Getenv("RESPONSUM_CLAUDE_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Claude.Temperature = float32(t)
		}
	}

	// Agents configuration
	if provider := os.Getenv("RESPONSUM_AGENTS_PLANNER_PROVIDER"); provider != "" {
		config.Agents.PlannerProvider = LLMProvider(provider)
	}
	if provider := os.Getenv("RESPONSUM_AGENTS_SYNTHESIZER_PROVIDER"); provider != "" {
		config.Agents.SynthesizerProvider = LLMProvider(provider)
	}
	if maxQueries := os.Getenv("RESPONSUM_AGENTS_MAX_QUERIES"); maxQueries != "" {
		if mq, err := strconv.Atoi(maxQueries); err == nil {
			config.Agents.MaxQueries = mq
		}
	}
	if retries := os.Getenv("RESPONSUM_AGENTS_CONTRACT_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Agents.ContractRetries = r
		}
	}

	// Orchestrator configuration
	if timeout := os.Getenv("RESPONSUM_ORCHESTRATOR_REQUEST_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Orchestrator.RequestTimeout = timeout
		}
	}
	if workers := os.Getenv("RESPONSUM_ORCHESTRATOR_RETRIEVAL_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Orchestrator.RetrievalWorkers = w
		}
	}
	if maxPassages := os.Getenv("RESPONSUM_ORCHESTRATOR_MAX_PASSAGES"); maxPassages != "" {
		if mp, err := strconv.Atoi(maxPassages); err == nil {
			config.Orchestrator.MaxPassages = mp
		}
	}
	if maxRetries := os.Getenv("RESPONSUM_ORCHESTRATOR_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Orchestrator.MaxRetries = mr
		}
	}

	// Processing configuration
	if enabled := os.Getenv("RESPONSUM_PROCESSING_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Processing.Enabled = e
		}
	}
	if schedule := os.Getenv("RESPONSUM_PROCESSING_SCHEDULE"); schedule != "" {
		config.Processing.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
// Command-line flags have highest priority.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// RequestTimeoutDuration parses the orchestrator request timeout with fallback
func (c *OrchestratorConfig) RequestTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.RequestTimeout); err == nil && d > 0 {
		return d
	}
	return 3 * time.Minute
}

// RetryBackoffDuration parses the initial retry backoff with fallback
func (c *OrchestratorConfig) RetryBackoffDuration() time.Duration {
	if d, err := time.ParseDuration(c.RetryBackoff); err == nil && d > 0 {
		return d
	}
	return 500 * time.Millisecond
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables -> KV store -> config fallback -> error.
func ResolveAPIKey(kvStorage interfaces.KVStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"RESPONSUM_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"anthropic_api_key": {"RESPONSUM_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}
