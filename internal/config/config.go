package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Limits groups the resource ceilings applied across the pipeline.
type Limits struct {
	MaxFileSizeMB   int64 `json:"maxFileSizeMB" mapstructure:"max_file_size_mb"`
	MaxPDFPages     int   `json:"maxPdfPages" mapstructure:"max_pdf_pages"`
	MaxTextLength   int   `json:"maxTextLength" mapstructure:"max_text_length"`
	MaxChatHistory  int   `json:"maxChatHistory" mapstructure:"max_chat_history"`
	ContextTokens   int   `json:"contextTokens" mapstructure:"context_tokens"`
	TokenReserve    int   `json:"tokenReserve" mapstructure:"token_reserve"`
	// EstimatorDivisor is the chars-per-token approximation. It is a crude
	// placeholder, kept tunable rather than treated as a contract.
	EstimatorDivisor int `json:"estimatorDivisor" mapstructure:"estimator_divisor"`
	TransportChunk   int `json:"transportChunk" mapstructure:"transport_chunk"`
	CacheEntries     int `json:"cacheEntries" mapstructure:"cache_entries"`
	WorkerPoolSize   int `json:"workerPoolSize" mapstructure:"worker_pool_size"`
}

// WebhookConfig configures webhook transport mode. When URL is empty the
// bot runs in long-polling mode.
type WebhookConfig struct {
	URL  string `json:"url" mapstructure:"url"`
	Port int    `json:"port" mapstructure:"port"`
}

// Config is the main configuration structure for the application.
type Config struct {
	TelegramToken    string `json:"-" mapstructure:"telegram_token"`
	OpenRouterAPIKey string `json:"-" mapstructure:"openrouter_api_key"`

	// Optional attribution headers for the inference API.
	RefererURL string `json:"refererUrl" mapstructure:"referer_url"`
	TitleName  string `json:"titleName" mapstructure:"title_name"`

	DownloadsDir     string        `json:"downloadsDir" mapstructure:"downloads_dir"`
	DownloadTimeout  time.Duration `json:"downloadTimeout" mapstructure:"download_timeout"`
	RequestTimeout   time.Duration `json:"requestTimeout" mapstructure:"request_timeout"`
	StagingRetention time.Duration `json:"stagingRetention" mapstructure:"staging_retention"`

	Limits  Limits        `json:"limits" mapstructure:"limits"`
	Webhook WebhookConfig `json:"webhook" mapstructure:"webhook"`

	Debug bool `json:"debug" mapstructure:"debug"`
}

const envPrefix = "CHATFORGE"

// Load initializes the configuration from environment variables and an
// optional config file. Missing credentials are a startup failure: the
// process refuses to run rather than degrading into a bot that cannot
// answer anything.
func Load(configFile string, debug bool) (*Config, error) {
	v := viper.New()

	v.SetDefault("downloads_dir", "downloads")
	v.SetDefault("download_timeout", 30*time.Second)
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("staging_retention", time.Hour)
	v.SetDefault("limits.max_file_size_mb", 20)
	v.SetDefault("limits.max_pdf_pages", 50)
	v.SetDefault("limits.max_text_length", 10000)
	v.SetDefault("limits.max_chat_history", 20)
	v.SetDefault("limits.context_tokens", 8000)
	v.SetDefault("limits.token_reserve", 500)
	v.SetDefault("limits.estimator_divisor", 5)
	v.SetDefault("limits.transport_chunk", 4096)
	v.SetDefault("limits.cache_entries", 50)
	v.SetDefault("limits.worker_pool_size", 4)
	v.SetDefault("webhook.port", 8443)
	v.SetDefault("referer_url", "http://localhost")
	v.SetDefault("title_name", "ChatForge")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy environment names from the original deployment keep working.
	_ = v.BindEnv("telegram_token", envPrefix+"_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("openrouter_api_key", envPrefix+"_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("referer_url", envPrefix+"_REFERER_URL", "REFERER_URL")
	_ = v.BindEnv("title_name", envPrefix+"_TITLE_NAME", "TITLE_NAME")
	_ = v.BindEnv("webhook.url", envPrefix+"_WEBHOOK_URL", "WEBHOOK_URL")
	_ = v.BindEnv("webhook.port", envPrefix+"_WEBHOOK_PORT", "PORT")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Debug = cfg.Debug || debug

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required credentials and limit sanity.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("configuration error: TELEGRAM_BOT_TOKEN is not set")
	}
	if c.OpenRouterAPIKey == "" {
		return fmt.Errorf("configuration error: OPENROUTER_API_KEY is not set")
	}
	if c.Limits.MaxChatHistory <= 0 {
		return fmt.Errorf("configuration error: max_chat_history must be positive")
	}
	if c.Limits.EstimatorDivisor <= 0 {
		return fmt.Errorf("configuration error: estimator_divisor must be positive")
	}
	if c.Limits.TransportChunk <= 0 {
		return fmt.Errorf("configuration error: transport_chunk must be positive")
	}
	return nil
}

// MaxFileSizeBytes returns the file size ceiling in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.Limits.MaxFileSizeMB * 1024 * 1024
}
