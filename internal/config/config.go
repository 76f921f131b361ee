package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreAirtable = "airtable"
	StoreMongo    = "mongo"

	deepSeekBaseURL = "https://api.deepseek.com"
	openAIBaseURL   = "https://api.openai.com/v1"
)

// Tables names the Airtable tables (or Mongo collections) the bot works with.
type Tables struct {
	Conversations string
	Workers       string
	Products      string
	Orders        string
	Summaries     string
}

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	VerifyToken     string
	PageAccessToken string
	AppSecret       string
	GraphAPIURL     string
	GraphAPIVersion string
	SendRetries     int

	StoreBackend   string
	AirtableAPIURL string
	AirtableAPIKey string
	AirtableBaseID string
	MongoURI       string
	MongoDatabase  string
	Tables         Tables

	ChatBaseURL     string
	ChatAPIKey      string
	ChatModel       string
	ChatTemperature float64

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	DraftModel     string
	EmbeddingModel string

	KnowledgeDir       string
	ChunkSize          int
	ChunkOverlap       int
	TopK               int
	EmbeddingCachePath string

	SummaryThreshold int
	HistoryWindow    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DedupTTL      time.Duration

	AsyncProcessing  bool
	PromptsFile      string
	HTTPTimeout      time.Duration
	MetricsNamespace string
}

// LoadEnv loads a .env file from the working directory when one exists.
func LoadEnv() error {
	err := godotenv.Load(".env")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env file: %v", err)
		return err
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "5000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("GRAPH_API_URL", "https://graph.facebook.com")
	v.SetDefault("GRAPH_API_VERSION", "v18.0")
	v.SetDefault("SEND_RETRIES", 3)
	v.SetDefault("STORE_BACKEND", StoreAirtable)
	v.SetDefault("AIRTABLE_API_URL", "https://api.airtable.com/v0")
	v.SetDefault("MONGODB_DATABASE", "messenger")
	v.SetDefault("CONVERSATIONS_TABLE", "Conversations")
	v.SetDefault("WORKERS_TABLE", "Liste_Couturiers")
	v.SetDefault("PRODUCTS_TABLE", "Produits")
	v.SetDefault("ORDERS_TABLE", "Commandes")
	v.SetDefault("SUMMARIES_TABLE", "Resumes")
	v.SetDefault("CHAT_TEMPERATURE", 0.0)
	v.SetDefault("OPENAI_BASE_URL", openAIBaseURL)
	v.SetDefault("DRAFT_MODEL", "gpt-4o-mini")
	v.SetDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	v.SetDefault("KNOWLEDGE_DIR", "titre/json")
	v.SetDefault("CHUNK_SIZE", 1000)
	v.SetDefault("CHUNK_OVERLAP", 200)
	v.SetDefault("RETRIEVAL_TOP_K", 3)
	v.SetDefault("EMBEDDING_CACHE_PATH", "data/embeddings.bolt")
	v.SetDefault("SUMMARY_THRESHOLD", 10)
	v.SetDefault("HISTORY_WINDOW", 4000)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DEDUP_TTL", "24h")
	v.SetDefault("ASYNC_PROCESSING", false)
	v.SetDefault("HTTP_TIMEOUT", "30s")
	v.SetDefault("METRICS_NAMESPACE", "messenger")

	return v
}

// Load resolves the configuration from the environment and checks the
// settings the server needs.
func Load() (*Config, error) {
	cfg := Resolve()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve reads every setting from the environment without validating them.
func Resolve() *Config {
	v := newViper()

	cfg := &Config{
		Port:      v.GetString("PORT"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: strings.ToLower(v.GetString("LOG_FORMAT")),

		VerifyToken:     v.GetString("VERIFY_TOKEN"),
		PageAccessToken: v.GetString("PAGE_ACCESS_TOKEN"),
		AppSecret:       v.GetString("APP_SECRET"),
		GraphAPIURL:     strings.TrimRight(v.GetString("GRAPH_API_URL"), "/"),
		GraphAPIVersion: v.GetString("GRAPH_API_VERSION"),
		SendRetries:     v.GetInt("SEND_RETRIES"),

		StoreBackend:   strings.ToLower(v.GetString("STORE_BACKEND")),
		AirtableAPIURL: strings.TrimRight(v.GetString("AIRTABLE_API_URL"), "/"),
		AirtableAPIKey: v.GetString("AIRTABLE_API_KEY"),
		AirtableBaseID: v.GetString("AIRTABLE_BASE_ID"),
		MongoURI:       v.GetString("MONGODB_URI"),
		MongoDatabase:  v.GetString("MONGODB_DATABASE"),
		Tables: Tables{
			Conversations: v.GetString("CONVERSATIONS_TABLE"),
			Workers:       v.GetString("WORKERS_TABLE"),
			Products:      v.GetString("PRODUCTS_TABLE"),
			Orders:        v.GetString("ORDERS_TABLE"),
			Summaries:     v.GetString("SUMMARIES_TABLE"),
		},

		ChatBaseURL:     v.GetString("CHAT_BASE_URL"),
		ChatModel:       v.GetString("CHAT_MODEL"),
		ChatTemperature: v.GetFloat64("CHAT_TEMPERATURE"),

		OpenAIAPIKey:   v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:  v.GetString("OPENAI_BASE_URL"),
		DraftModel:     v.GetString("DRAFT_MODEL"),
		EmbeddingModel: v.GetString("EMBEDDING_MODEL"),

		KnowledgeDir:       v.GetString("KNOWLEDGE_DIR"),
		ChunkSize:          v.GetInt("CHUNK_SIZE"),
		ChunkOverlap:       v.GetInt("CHUNK_OVERLAP"),
		TopK:               v.GetInt("RETRIEVAL_TOP_K"),
		EmbeddingCachePath: v.GetString("EMBEDDING_CACHE_PATH"),

		SummaryThreshold: v.GetInt("SUMMARY_THRESHOLD"),
		HistoryWindow:    v.GetInt("HISTORY_WINDOW"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		DedupTTL:      v.GetDuration("DEDUP_TTL"),

		AsyncProcessing:  v.GetBool("ASYNC_PROCESSING"),
		PromptsFile:      v.GetString("PROMPTS_FILE"),
		HTTPTimeout:      v.GetDuration("HTTP_TIMEOUT"),
		MetricsNamespace: v.GetString("METRICS_NAMESPACE"),
	}

	// DeepSeek is preferred for the final reply; OpenAI serves it when no
	// DeepSeek key is configured.
	if key := v.GetString("DEEPSEEK_API_KEY"); key != "" {
		cfg.ChatAPIKey = key
		if cfg.ChatBaseURL == "" {
			cfg.ChatBaseURL = deepSeekBaseURL
		}
		if cfg.ChatModel == "" {
			cfg.ChatModel = "deepseek-chat"
		}
	} else {
		cfg.ChatAPIKey = cfg.OpenAIAPIKey
		if cfg.ChatBaseURL == "" {
			cfg.ChatBaseURL = cfg.OpenAIBaseURL
		}
		if cfg.ChatModel == "" {
			cfg.ChatModel = "gpt-4o-mini"
		}
	}
	return cfg
}

type setting struct {
	name  string
	value string
}

func (c *Config) validate() error {
	var missing []string
	required := []setting{
		{"VERIFY_TOKEN", c.VerifyToken},
		{"PAGE_ACCESS_TOKEN", c.PageAccessToken},
	}
	switch c.StoreBackend {
	case StoreAirtable:
		required = append(required,
			setting{"AIRTABLE_API_KEY", c.AirtableAPIKey},
			setting{"AIRTABLE_BASE_ID", c.AirtableBaseID},
		)
	case StoreMongo:
		required = append(required, setting{"MONGODB_URI", c.MongoURI})
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	for _, item := range required {
		if item.value == "" {
			missing = append(missing, item.name)
		}
	}
	if c.ChatAPIKey == "" {
		missing = append(missing, "DEEPSEEK_API_KEY or OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid chunking: CHUNK_SIZE=%d CHUNK_OVERLAP=%d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	return nil
}

// RetrievalEnabled reports whether documents can be embedded and searched.
func (c *Config) RetrievalEnabled() bool {
	return c.KnowledgeDir != "" && c.OpenAIAPIKey != ""
}

// DraftEnabled reports whether a retrieval draft answer is requested before the final reply.
func (c *Config) DraftEnabled() bool {
	return c.RetrievalEnabled() && c.DraftModel != ""
}
