// Package config loads WebSeek configuration from defaults, an optional YAML
// file, and environment overrides (highest priority).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete WebSeek configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	LLM        LLMConfig        `yaml:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Search     SearchConfig     `yaml:"search"`
	Crawl      CrawlConfig      `yaml:"crawl"`
	Worker     WorkerConfig     `yaml:"worker"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	// Path is the database file path. Empty means in-memory (tests only).
	Path string `yaml:"path"`
}

// RedisConfig configures the shared result cache.
// An empty URL selects the in-process cache.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LLMConfig configures the answer-generation model endpoint.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// EmbeddingsConfig configures the embedding endpoint and chunking.
type EmbeddingsConfig struct {
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	Dimensions   int    `yaml:"dimensions"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// SearchConfig configures ranking parameters.
type SearchConfig struct {
	// BM25K1 is the term frequency saturation parameter.
	BM25K1 float64 `yaml:"bm25_k1"`
	// BM25B is the length normalization parameter.
	BM25B float64 `yaml:"bm25_b"`
	// RRFK is the RRF smoothing constant.
	RRFK int `yaml:"rrf_k"`
	// MaxResults caps the candidate list fetched per ranking source.
	MaxResults int `yaml:"max_results"`
	// CacheTTL is the result cache TTL.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// CrawlConfig configures crawler behavior.
type CrawlConfig struct {
	// DelaySeconds is the inter-request delay applied by polite crawlers.
	DelaySeconds float64 `yaml:"delay_seconds"`
	// MaxDepth caps the link-following depth of the generic crawler.
	MaxDepth int `yaml:"max_depth"`
	// UserAgent is announced on every outbound request.
	UserAgent string `yaml:"user_agent"`
}

// WorkerConfig configures the background task pool.
type WorkerConfig struct {
	// Count is the number of parallel workers.
	Count int `yaml:"count"`
	// ReindexInterval schedules periodic full reindexes. Zero disables.
	ReindexInterval time.Duration `yaml:"reindex_interval"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "webseek.db"},
		Redis:    RedisConfig{URL: ""},
		LLM: LLMConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1",
		},
		Embeddings: EmbeddingsConfig{
			BaseURL:      "http://localhost:11434",
			Model:        "all-minilm",
			Dimensions:   384,
			ChunkSize:    512,
			ChunkOverlap: 50,
		},
		Search: SearchConfig{
			BM25K1:     1.2,
			BM25B:      0.75,
			RRFK:       60,
			MaxResults: 100,
			CacheTTL:   300 * time.Second,
		},
		Crawl: CrawlConfig{
			DelaySeconds: 1.0,
			MaxDepth:     3,
			UserAgent:    "WebSeekBot/1.0 (+https://github.com/webseek/webseek)",
		},
		Worker: WorkerConfig{Count: 4},
		Log:    LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if it
// exists), and environment overrides. A .env file in the working directory is
// loaded first, best-effort.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.clamp()
	return cfg, nil
}

// applyEnv overlays WEBSEEK_* environment variables.
func (c *Config) applyEnv() {
	envStr("WEBSEEK_ADDR", &c.Server.Addr)
	envStr("WEBSEEK_DATABASE_PATH", &c.Database.Path)
	envStr("WEBSEEK_REDIS_URL", &c.Redis.URL)
	envStr("WEBSEEK_LLM_BASE_URL", &c.LLM.BaseURL)
	envStr("WEBSEEK_LLM_MODEL", &c.LLM.Model)
	envStr("WEBSEEK_EMBEDDING_BASE_URL", &c.Embeddings.BaseURL)
	envStr("WEBSEEK_EMBEDDING_MODEL", &c.Embeddings.Model)
	envInt("WEBSEEK_EMBEDDING_DIMENSION", &c.Embeddings.Dimensions)
	envInt("WEBSEEK_CHUNK_SIZE", &c.Embeddings.ChunkSize)
	envInt("WEBSEEK_CHUNK_OVERLAP", &c.Embeddings.ChunkOverlap)
	envFloat("WEBSEEK_BM25_K1", &c.Search.BM25K1)
	envFloat("WEBSEEK_BM25_B", &c.Search.BM25B)
	envInt("WEBSEEK_RRF_K", &c.Search.RRFK)
	envInt("WEBSEEK_MAX_SEARCH_RESULTS", &c.Search.MaxResults)
	envFloat("WEBSEEK_CRAWL_DELAY_SECONDS", &c.Crawl.DelaySeconds)
	envInt("WEBSEEK_MAX_CRAWL_DEPTH", &c.Crawl.MaxDepth)
	envStr("WEBSEEK_USER_AGENT", &c.Crawl.UserAgent)
	envInt("WEBSEEK_WORKERS", &c.Worker.Count)
	envStr("WEBSEEK_LOG_LEVEL", &c.Log.Level)
}

// clamp coerces out-of-range values back to safe bounds.
func (c *Config) clamp() {
	if c.Embeddings.Dimensions <= 0 {
		c.Embeddings.Dimensions = 384
	}
	if c.Embeddings.ChunkSize < 16 {
		c.Embeddings.ChunkSize = 512
	}
	if c.Embeddings.ChunkOverlap < 0 || c.Embeddings.ChunkOverlap >= c.Embeddings.ChunkSize {
		c.Embeddings.ChunkOverlap = c.Embeddings.ChunkSize / 10
	}
	if c.Search.BM25K1 <= 0 {
		c.Search.BM25K1 = 1.2
	}
	if c.Search.BM25B < 0 || c.Search.BM25B > 1 {
		c.Search.BM25B = 0.75
	}
	if c.Search.RRFK <= 0 {
		c.Search.RRFK = 60
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 100
	}
	if c.Search.CacheTTL <= 0 {
		c.Search.CacheTTL = 300 * time.Second
	}
	if c.Crawl.MaxDepth <= 0 {
		c.Crawl.MaxDepth = 3
	}
	if c.Crawl.DelaySeconds < 0 {
		c.Crawl.DelaySeconds = 0
	}
	if c.Worker.Count <= 0 {
		c.Worker.Count = 4
	}
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
