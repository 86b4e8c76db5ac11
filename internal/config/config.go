package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Search   SearchConfig
	Store    StoreConfig
	Pipeline PipelineConfig
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	search, err := loadSearchConfig()
	if err != nil {
		return nil, err
	}

	st, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	pipeline, err := loadPipelineConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Search: search, Store: st, Pipeline: pipeline}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the LLM provider binding and the generation policy.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	// Generation policy.
	RequestTimeout  time.Duration
	QuotaLimit      int
	QuotaWindow     time.Duration
	PromptCharLimit int
	HistoryLimit    int
}

// Enabled reports whether required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates the chat model instance from configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("LLM credentials missing: provide ARK_API_KEY + LLM_MODEL or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("LLM_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	quotaLimit, err := parseIntEnv("LLM_QUOTA_LIMIT", 500)
	if err != nil {
		return AIConfig{}, err
	}

	quotaWindow, err := parseDurationEnv("LLM_QUOTA_WINDOW", 24*time.Hour)
	if err != nil {
		return AIConfig{}, err
	}

	promptLimit, err := parseIntEnv("LLM_PROMPT_CHAR_LIMIT", 24000)
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit, err := parseIntEnv("LLM_HISTORY_LIMIT", 10)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:          strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:       strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:       strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:           strings.TrimSpace(os.Getenv("LLM_MODEL")),
		BaseURL:         getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:          getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:     temperature,
		TopP:            topP,
		MaxTokens:       maxTokens,
		RequestTimeout:  timeout,
		QuotaLimit:      quotaLimit,
		QuotaWindow:     quotaWindow,
		PromptCharLimit: promptLimit,
		HistoryLimit:    historyLimit,
	}, nil
}

// SearchConfig describes the external web search provider.
type SearchConfig struct {
	APIKey         string
	BaseURL        string
	MaxResults     int
	RequestTimeout time.Duration
	QuotaLimit     int
	QuotaWindow    time.Duration
}

// Enabled reports whether the search provider is usable.
func (c SearchConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadSearchConfig() (SearchConfig, error) {
	maxResults, err := parseIntEnv("SEARCH_MAX_RESULTS", 10)
	if err != nil {
		return SearchConfig{}, err
	}

	timeout, err := parseDurationEnv("SEARCH_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return SearchConfig{}, err
	}

	quotaLimit, err := parseIntEnv("SEARCH_QUOTA_LIMIT", 100)
	if err != nil {
		return SearchConfig{}, err
	}

	quotaWindow, err := parseDurationEnv("SEARCH_QUOTA_WINDOW", 24*time.Hour)
	if err != nil {
		return SearchConfig{}, err
	}

	return SearchConfig{
		APIKey:         strings.TrimSpace(os.Getenv("SEARCH_API_KEY")),
		BaseURL:        getEnvOrDefault("SEARCH_BASE_URL", "https://serpapi.com/search"),
		MaxResults:     maxResults,
		RequestTimeout: timeout,
		QuotaLimit:     quotaLimit,
		QuotaWindow:    quotaWindow,
	}, nil
}

// StoreConfig selects and configures the conversation store backend.
type StoreConfig struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

func loadStoreConfig() (StoreConfig, error) {
	redisDB, err := parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return StoreConfig{}, err
	}

	ttl, err := parseDurationEnv("CONVERSATION_TTL", 24*time.Hour)
	if err != nil {
		return StoreConfig{}, err
	}

	driver := getEnvOrDefault("STORE_DRIVER", "memory")
	if driver != "memory" && driver != "redis" {
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER value: %q", driver)
	}

	return StoreConfig{
		Driver:        driver,
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		RedisTTL:      ttl,
	}, nil
}

// PipelineConfig carries orchestration thresholds. The search-worthiness cues
// and sizing knobs are policy points, kept configurable on purpose. Empty cue
// lists fall back to the pipeline's built-in defaults.
type PipelineConfig struct {
	EvidenceBudget int
	Interrogatives []string
	RecencyCues    []string
}

func loadPipelineConfig() (PipelineConfig, error) {
	budget, err := parseIntEnv("EVIDENCE_CHAR_BUDGET", 4000)
	if err != nil {
		return PipelineConfig{}, err
	}

	return PipelineConfig{
		EvidenceBudget: budget,
		Interrogatives: parseListEnv("PIPELINE_INTERROGATIVES"),
		RecencyCues:    parseListEnv("PIPELINE_RECENCY_CUES"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

// parseListEnv reads a comma-separated list; blank entries are dropped.
func parseListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
