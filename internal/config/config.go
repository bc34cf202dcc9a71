package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	Logging  Logging  `mapstructure:"logging"`
	LLM      LLM      `mapstructure:"llm"`
	Database Database `mapstructure:"database"`
	Query    Query    `mapstructure:"query"`
	Stages   Stages   `mapstructure:"stages"`
	Trends   Trends   `mapstructure:"trends"`
	Server   Server   `mapstructure:"server"`
	Workflow Workflow `mapstructure:"workflow"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	ConfigFile string `mapstructure:"config_file"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LLM holds model gateway configuration
type LLM struct {
	Provider    string         `mapstructure:"provider"`
	Model       string         `mapstructure:"model"`
	Temperature float64        `mapstructure:"temperature"`
	MaxTokens   int            `mapstructure:"max_tokens"`
	Timeout     string         `mapstructure:"timeout"`
	OpenAI      ProviderConfig `mapstructure:"openai"`
	Gemini      ProviderConfig `mapstructure:"gemini"`
	Claude      ProviderConfig `mapstructure:"claude"`
	Grok        ProviderConfig `mapstructure:"grok"`
}

// ProviderConfig holds per-backend credentials
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// Database holds college data store configuration
type Database struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	View            string `mapstructure:"view"`
	MinConns        int    `mapstructure:"min_conns"`
	MaxConns        int    `mapstructure:"max_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	Timeout         string `mapstructure:"timeout"`
}

// Query holds filter extraction limits
type Query struct {
	DefaultCap int `mapstructure:"default_cap"`
	MaxCap     int `mapstructure:"max_cap"`
}

// Stages holds per-stage generation settings
type Stages struct {
	Topics  TopicStage   `mapstructure:"topics"`
	Prompts GenStage     `mapstructure:"prompts"`
	Refine  GenStage     `mapstructure:"refine"`
	Outline OutlineStage `mapstructure:"outline"`
	Content ContentStage `mapstructure:"content"`
}

// GenStage holds the sampling settings of one model call site
type GenStage struct {
	Count       int     `mapstructure:"count"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// TopicStage holds topic stage settings
type TopicStage struct {
	GenStage        `mapstructure:",squash"`
	RequireSpecific bool `mapstructure:"require_specific"`
}

// OutlineStage holds outline stage settings
type OutlineStage struct {
	GenStage       `mapstructure:",squash"`
	PreviewRecords int `mapstructure:"preview_records"`
}

// ContentStage holds content stage settings
type ContentStage struct {
	GenStage         `mapstructure:",squash"`
	SectionMaxTokens int     `mapstructure:"section_max_tokens"`
	SEOTemperature   float64 `mapstructure:"seo_temperature"`
}

// Trends holds trend context provider configuration
type Trends struct {
	Provider   string        `mapstructure:"provider"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    string        `mapstructure:"timeout"`
	SerpAPI    SerpAPIConfig `mapstructure:"serpapi"`
	Cache      TrendCache    `mapstructure:"cache"`
}

// SerpAPIConfig holds SerpAPI configuration
type SerpAPIConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// TrendCache holds the optional Redis cache for trend context
type TrendCache struct {
	RedisURL string `mapstructure:"redis_url"`
	TTL      string `mapstructure:"ttl"`
}

// Server holds HTTP server configuration
type Server struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	ReadTimeout    string `mapstructure:"read_timeout"`
	WriteTimeout   string `mapstructure:"write_timeout"`
	RequestTimeout string `mapstructure:"request_timeout"`
	CORS           CORS   `mapstructure:"cors"`
}

// CORS holds cross-origin settings for the API
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Workflow holds session lifecycle configuration
type Workflow struct {
	SessionTTL string `mapstructure:"session_ttl"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".collegecontent")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")

	// LLM defaults
	viper.SetDefault("llm.provider", "gemini")
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 4000)
	viper.SetDefault("llm.timeout", "120s")
	viper.SetDefault("llm.grok.base_url", "https://api.x.ai/v1")
	viper.SetDefault("llm.claude.base_url", "https://api.anthropic.com/v1/")

	// Database defaults
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "college_dms")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.view", "mvx_college_data_flattened")
	viper.SetDefault("database.min_conns", 1)
	viper.SetDefault("database.max_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", "30m")
	viper.SetDefault("database.timeout", "10s")

	viper.SetDefault("query.default_cap", 50)
	viper.SetDefault("query.max_cap", 100)

	// Stage defaults
	viper.SetDefault("stages.topics.count", 8)
	viper.SetDefault("stages.topics.temperature", 0.8)
	viper.SetDefault("stages.topics.max_tokens", 2000)
	viper.SetDefault("stages.topics.require_specific", true)
	viper.SetDefault("stages.prompts.count", 5)
	viper.SetDefault("stages.prompts.temperature", 0.8)
	viper.SetDefault("stages.prompts.max_tokens", 2000)
	viper.SetDefault("stages.refine.temperature", 0.7)
	viper.SetDefault("stages.refine.max_tokens", 1000)
	viper.SetDefault("stages.outline.temperature", 0.6)
	viper.SetDefault("stages.outline.max_tokens", 2000)
	viper.SetDefault("stages.outline.preview_records", 5)
	viper.SetDefault("stages.content.temperature", 0.7)
	viper.SetDefault("stages.content.max_tokens", 4000)
	viper.SetDefault("stages.content.section_max_tokens", 2000)
	viper.SetDefault("stages.content.seo_temperature", 0.6)

	// Trend defaults
	viper.SetDefault("trends.provider", "none")
	viper.SetDefault("trends.max_results", 5)
	viper.SetDefault("trends.timeout", "15s")
	viper.SetDefault("trends.cache.ttl", "6h")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "180s")
	viper.SetDefault("server.request_timeout", "170s")
	viper.SetDefault("server.cors.enabled", false)

	viper.SetDefault("workflow.session_ttl", "2h")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("llm.provider", []string{"LLM_PROVIDER"})
	bindEnvKeys("llm.model", []string{"LLM_MODEL"})

	bindEnvKeys("llm.openai.api_key", []string{"OPENAI_API_KEY"})
	bindEnvKeys("llm.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_API_KEY",
		"GOOGLE_AI_API_KEY",
	})
	bindEnvKeys("llm.claude.api_key", []string{
		"ANTHROPIC_API_KEY",
		"CLAUDE_API_KEY",
	})
	bindEnvKeys("llm.grok.api_key", []string{
		"GROK_API_KEY",
		"XAI_API_KEY",
	})

	bindEnvKeys("database.dsn", []string{"DATABASE_URL"})
	bindEnvKeys("database.host", []string{"DB_HOST"})
	bindEnvKeys("database.port", []string{"DB_PORT"})
	bindEnvKeys("database.name", []string{"DB_NAME"})
	bindEnvKeys("database.user", []string{"DB_USER"})
	bindEnvKeys("database.password", []string{"DB_PASSWORD"})

	bindEnvKeys("trends.serpapi.api_key", []string{
		"SERPAPI_API_KEY",
		"SERPAPI_KEY",
	})
	bindEnvKeys("trends.cache.redis_url", []string{"REDIS_URL"})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"COLLEGECONTENT_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig normalizes values and checks durations
func postProcessConfig(config *Config) error {
	config.LLM.Provider = strings.ToLower(strings.TrimSpace(config.LLM.Provider))
	config.Trends.Provider = strings.ToLower(strings.TrimSpace(config.Trends.Provider))
	config.Database.Driver = strings.ToLower(strings.TrimSpace(config.Database.Driver))
	if config.App.Debug {
		config.Logging.Level = "debug"
	}

	durations := map[string]string{
		"llm.timeout":                config.LLM.Timeout,
		"database.conn_max_lifetime": config.Database.ConnMaxLifetime,
		"database.timeout":           config.Database.Timeout,
		"trends.timeout":             config.Trends.Timeout,
		"trends.cache.ttl":           config.Trends.Cache.TTL,
		"server.read_timeout":        config.Server.ReadTimeout,
		"server.write_timeout":       config.Server.WriteTimeout,
		"server.request_timeout":     config.Server.RequestTimeout,
		"workflow.session_ttl":       config.Workflow.SessionTTL,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// validateConfig checks enums and numeric bounds. API keys are checked
// lazily by the components that need them.
func validateConfig(config *Config) error {
	var errors []string

	switch config.LLM.Provider {
	case "openai", "gemini", "google", "claude", "anthropic", "grok", "xai", "mock":
	default:
		errors = append(errors, fmt.Sprintf("Unknown LLM provider: %s. Supported: openai, gemini, claude, grok", config.LLM.Provider))
	}

	switch config.Database.Driver {
	case "postgres", "sqlite3":
	default:
		errors = append(errors, fmt.Sprintf("Unknown database driver: %s. Supported: postgres, sqlite3", config.Database.Driver))
	}

	if config.Database.MinConns < 1 || config.Database.MaxConns > 10 || config.Database.MinConns > config.Database.MaxConns {
		errors = append(errors, fmt.Sprintf("Connection pool bounds must satisfy 1 <= min_conns <= max_conns <= 10, got %d..%d",
			config.Database.MinConns, config.Database.MaxConns))
	}

	if config.Query.DefaultCap < 1 || config.Query.DefaultCap > config.Query.MaxCap {
		errors = append(errors, fmt.Sprintf("Query caps must satisfy 1 <= default_cap <= max_cap, got %d and %d",
			config.Query.DefaultCap, config.Query.MaxCap))
	}

	temps := map[string]float64{
		"llm.temperature":                config.LLM.Temperature,
		"stages.topics.temperature":      config.Stages.Topics.Temperature,
		"stages.prompts.temperature":     config.Stages.Prompts.Temperature,
		"stages.refine.temperature":      config.Stages.Refine.Temperature,
		"stages.outline.temperature":     config.Stages.Outline.Temperature,
		"stages.content.temperature":     config.Stages.Content.Temperature,
		"stages.content.seo_temperature": config.Stages.Content.SEOTemperature,
	}
	for key, t := range temps {
		if t < 0 || t > 2 {
			errors = append(errors, fmt.Sprintf("%s must be within [0, 2], got %v", key, t))
		}
	}

	switch config.Trends.Provider {
	case "", "none", "duckduckgo", "mock":
	case "serpapi":
		if config.Trends.SerpAPI.APIKey == "" {
			errors = append(errors, "SerpAPI requires API key. Set SERPAPI_API_KEY environment variable")
		}
	default:
		errors = append(errors, fmt.Sprintf("Unknown trends provider: %s. Supported: serpapi, duckduckgo, none", config.Trends.Provider))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ConnectionString returns the connection string for the configured driver. An explicit
// dsn wins; otherwise a postgres URL is assembled from the parts.
func (d Database) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}
	if d.Driver == "sqlite3" {
		return d.Name
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   d.Host + ":" + strconv.Itoa(d.Port),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Credentials returns the API key and base URL for a provider name.
func (l LLM) Credentials(provider string) ProviderConfig {
	switch strings.ToLower(provider) {
	case "openai":
		return l.OpenAI
	case "gemini", "google":
		return l.Gemini
	case "claude", "anthropic":
		return l.Claude
	case "grok", "xai":
		return l.Grok
	default:
		return ProviderConfig{}
	}
}

// ParseDuration parses a validated duration string, falling back when empty.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// Convenience getters for commonly used configuration values
func GetLLM() LLM           { return Get().LLM }
func GetDatabase() Database { return Get().Database }
func GetStages() Stages     { return Get().Stages }
func GetServer() Server     { return Get().Server }
func IsDebugMode() bool     { return Get().App.Debug }

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
