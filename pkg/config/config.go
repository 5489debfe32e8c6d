package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Index    IndexConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Language LanguageConfig
	Fetch    FetchConfig
	Scraper  ScraperConfig
	Pipeline PipelineConfig
	Chat     ChatConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type StorageConfig struct {
	Root              string
	RawContainer      string
	AnalyzedContainer string
}

type IndexConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type LanguageConfig struct {
	Endpoint     string
	APIKey       string
	BatchSize    int
	MaxDocChars  int
	TimeoutSec   int
}

type FetchConfig struct {
	GuardianURL    string
	GuardianAPIKey string
	Query          string
	RSSFeeds       []string
	TimeoutSec     int
}

type ScraperConfig struct {
	MaxBodyBytes    int64
	MaxAttempts     int
	InitialDelaySec int
	TimeoutSec      int
}

type PipelineConfig struct {
	MinContentChars int
}

type ChatConfig struct {
	ContextTokens        int
	ContextTokensHistory int
	HistoryTokens        int
	TopK                 int
	MaxTurns             int
	RetrievalTimeoutSec  int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/trendwatch")

	viper.SetEnvPrefix("TRENDWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("storage.root", "./data/blobs")
	viper.SetDefault("storage.rawContainer", "raw-articles")
	viper.SetDefault("storage.analyzedContainer", "analyzed-articles")

	viper.SetDefault("index.path", "./data/articles.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("llm.baseURL", "")
	viper.SetDefault("llm.model", "gpt-4.1-mini")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.maxTokens", 1000)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("language.batchSize", 25)
	viper.SetDefault("language.maxDocChars", 5120)
	viper.SetDefault("language.timeoutSec", 60)

	viper.SetDefault("fetch.guardianURL", "https://content.guardianapis.com/search")
	viper.SetDefault("fetch.query", "artificial intelligence")
	viper.SetDefault("fetch.rssFeeds", []string{
		"https://venturebeat.com/category/ai/feed/",
		"https://techcrunch.com/category/artificial-intelligence/feed/",
		"https://arstechnica.com/tag/artificial-intelligence/feed/",
		"https://spectrum.ieee.org/feeds/feed.rss",
		"https://www.theregister.com/headlines.atom",
	})
	viper.SetDefault("fetch.timeoutSec", 20)

	viper.SetDefault("scraper.maxBodyBytes", 5*1024*1024)
	viper.SetDefault("scraper.maxAttempts", 4)
	viper.SetDefault("scraper.initialDelaySec", 1)
	viper.SetDefault("scraper.timeoutSec", 15)

	viper.SetDefault("pipeline.minContentChars", 100)

	viper.SetDefault("chat.contextTokens", 5000)
	viper.SetDefault("chat.contextTokensHistory", 3500)
	viper.SetDefault("chat.historyTokens", 1500)
	viper.SetDefault("chat.topK", 15)
	viper.SetDefault("chat.maxTurns", 20)
	viper.SetDefault("chat.retrievalTimeoutSec", 10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
