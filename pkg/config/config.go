package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Chat      ChatConfig
	Knowledge KnowledgeConfig
	Analytics AnalyticsConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type ChatConfig struct {
	HistoryLimit       int
	MaxMessageChars    int
	FallbackMessage    string
	EscalationKeywords []string
}

type KnowledgeConfig struct {
	MaxUploadBytes    int64
	AllowedExtensions []string
	MaxSnippets       int
	SnippetChars      int
}

type AnalyticsConfig struct {
	MinutesSavedPerConversation float64
	AvgResponseTimeSec          float64
	SatisfactionScore           float64
	CacheTTLSec                 int
}

type CORSConfig struct {
	Origins string
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
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
	viper.AddConfigPath("/etc/supportgenie")

	viper.SetEnvPrefix("SUPPORTGENIE")
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
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 6*1024*1024)

	viper.SetDefault("sqlite.path", "./data/supportgenie.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("chat.historyLimit", 10)
	viper.SetDefault("chat.maxMessageChars", 4000)
	viper.SetDefault("chat.fallbackMessage", "I apologize, but I'm having trouble processing your request right now. Let me connect you with a human agent.")
	viper.SetDefault("chat.escalationKeywords", []string{
		"refund",
		"complaint",
		"cancel my account",
		"lawsuit",
		"speak to a human",
		"human agent",
		"manager",
	})

	viper.SetDefault("knowledge.maxUploadBytes", 5*1024*1024)
	viper.SetDefault("knowledge.allowedExtensions", []string{".txt", ".csv", ".pdf"})
	viper.SetDefault("knowledge.maxSnippets", 5)
	viper.SetDefault("knowledge.snippetChars", 1500)

	viper.SetDefault("analytics.minutesSavedPerConversation", 2.0)
	viper.SetDefault("analytics.avgResponseTimeSec", 0.8)
	viper.SetDefault("analytics.satisfactionScore", 4.6)
	viper.SetDefault("analytics.cacheTTLSec", 15)

	viper.SetDefault("cors.origins", "*")

	viper.SetDefault("rateLimit.maxRequestsPerMinute", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
