// Package config loads LogiShift settings from an optional config file,
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonathan/logishift/internal/llm"
)

// Config is the complete runtime configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	WordPress WordPressConfig `mapstructure:"wordpress"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Log       LogConfig       `mapstructure:"log"`

	FeedsFile   string `mapstructure:"feeds_file"`   // YAML feed list; built-in sources when empty
	DatabaseURL string `mapstructure:"database_url"` // optional run ledger
}

// LLMConfig selects the provider, its models and the retry policy.
type LLMConfig struct {
	Provider         string      `mapstructure:"provider"`
	GeminiAPIKey     string      `mapstructure:"gemini_api_key"`
	OpenRouterAPIKey string      `mapstructure:"openrouter_api_key"`
	LiteModel        string      `mapstructure:"lite_model"`
	StandardModel    string      `mapstructure:"standard_model"`
	AdvancedModel    string      `mapstructure:"advanced_model"`
	Retry            RetryConfig `mapstructure:"retry"`
}

// RetryConfig mirrors llm.RetryPolicy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxJitter   time.Duration `mapstructure:"max_jitter"`
}

// ScoringConfig tunes the batch scorer.
type ScoringConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// PipelineConfig holds the run defaults. CLI flags override them.
type PipelineConfig struct {
	Days           int `mapstructure:"days"`
	Hours          int `mapstructure:"hours"`
	Threshold      int `mapstructure:"threshold"`
	Limit          int `mapstructure:"limit"`
	ScoreLimit     int `mapstructure:"score_limit"`
	ExistingTitles int `mapstructure:"existing_titles"`
}

// WordPressConfig points at the CMS.
type WordPressConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	AppPassword string `mapstructure:"app_password"`
	PostStatus  string `mapstructure:"post_status"`
}

// FetchConfig controls article extraction.
type FetchConfig struct {
	UseBrowser     bool          `mapstructure:"use_browser"`
	Timeout        time.Duration `mapstructure:"timeout"`
	BrowserTimeout time.Duration `mapstructure:"browser_timeout"`
}

// LogConfig controls logger output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// envBindings maps config keys to environment variables. The first
// non-empty variable wins.
var envBindings = map[string][]string{
	"llm.provider":           {"LOGISHIFT_LLM_PROVIDER"},
	"llm.gemini_api_key":     {"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY"},
	"llm.openrouter_api_key": {"OPENROUTER_API_KEY"},
	"database_url":           {"DATABASE_URL"},
	"wordpress.url":          {"WP_URL"},
	"wordpress.username":     {"WP_USERNAME", "WP_USER"},
	"wordpress.app_password": {"WP_APP_PASSWORD"},
	"feeds_file":             {"LOGISHIFT_FEEDS"},
	"log.level":              {"LOGISHIFT_LOG_LEVEL"},
}

func setDefaults(v *viper.Viper) {
	gemini := llm.DefaultGeminiConfig()
	policy := llm.DefaultRetryPolicy()

	v.SetDefault("llm.provider", string(llm.ProviderGemini))
	v.SetDefault("llm.lite_model", gemini.GetModel(llm.TierLite))
	v.SetDefault("llm.standard_model", gemini.GetModel(llm.TierStandard))
	v.SetDefault("llm.advanced_model", gemini.GetModel(llm.TierAdvanced))
	v.SetDefault("llm.retry.max_attempts", policy.MaxAttempts)
	v.SetDefault("llm.retry.base_delay", policy.BaseDelay)
	v.SetDefault("llm.retry.max_jitter", policy.MaxJitter)

	v.SetDefault("scoring.batch_size", 10)

	v.SetDefault("pipeline.days", 0)
	// zero days and hours fall back to collector.DefaultHours
	v.SetDefault("pipeline.hours", 0)
	v.SetDefault("pipeline.threshold", 70)
	v.SetDefault("pipeline.limit", 2)
	v.SetDefault("pipeline.score_limit", 0)
	v.SetDefault("pipeline.existing_titles", 30)

	v.SetDefault("wordpress.post_status", "publish")

	v.SetDefault("fetch.use_browser", false)
	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.browser_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// Load reads configuration. configFile may be empty, in which case only the
// environment and defaults are used. Supported file types are those viper
// detects from the extension (yaml, json, toml).
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	v.SetEnvPrefix("LOGISHIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration has usable values. Missing API keys
// are not an error here since the score and run commands check them when
// they build a client.
func (c *Config) Validate() error {
	var errs []error

	switch llm.Provider(c.LLM.Provider) {
	case llm.ProviderGemini, llm.ProviderOpenRouter:
	default:
		errs = append(errs, fmt.Errorf("config error: unknown llm provider %q", c.LLM.Provider))
	}
	if c.LLM.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("config error: 'llm.retry.max_attempts' must be at least 1"))
	}
	if c.LLM.Retry.BaseDelay < 0 || c.LLM.Retry.MaxJitter < 0 {
		errs = append(errs, errors.New("config error: retry delays must be non-negative"))
	}
	if c.Scoring.BatchSize < 1 || c.Scoring.BatchSize > 50 {
		errs = append(errs, fmt.Errorf("config error: 'scoring.batch_size' must be between 1 and 50, got %d", c.Scoring.BatchSize))
	}
	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.WordPress.PostStatus {
	case "publish", "draft":
	default:
		errs = append(errs, fmt.Errorf("config error: 'wordpress.post_status' must be publish or draft, got %q", c.WordPress.PostStatus))
	}

	return errors.Join(errs...)
}

// Validate checks the run parameters. It is also applied after CLI flags
// have been merged in.
func (p PipelineConfig) Validate() error {
	var errs []error
	if p.Days < 0 || p.Hours < 0 {
		errs = append(errs, errors.New("config error: lookback days and hours must be non-negative"))
	}
	if p.Threshold < 0 || p.Threshold > 100 {
		errs = append(errs, fmt.Errorf("config error: threshold must be between 0 and 100, got %d", p.Threshold))
	}
	if p.Limit < 0 {
		errs = append(errs, errors.New("config error: limit must be non-negative"))
	}
	if p.ScoreLimit < 0 {
		errs = append(errs, errors.New("config error: score limit must be non-negative"))
	}
	if p.ExistingTitles < 0 {
		errs = append(errs, errors.New("config error: existing titles must be non-negative"))
	}
	return errors.Join(errs...)
}

// LLMModels returns the model configuration for the selected provider with
// any configured model names applied. OpenRouter model ids are namespaced
// ("vendor/model"); bare names are left to the provider defaults.
func (c *Config) LLMModels() *llm.Config {
	provider := llm.Provider(c.LLM.Provider)
	models := llm.ConfigFor(provider)
	for tier, name := range map[llm.ModelTier]string{
		llm.TierLite:     c.LLM.LiteModel,
		llm.TierStandard: c.LLM.StandardModel,
		llm.TierAdvanced: c.LLM.AdvancedModel,
	} {
		if name == "" || (provider == llm.ProviderOpenRouter && !strings.Contains(name, "/")) {
			continue
		}
		models = models.WithModel(tier, name)
	}
	return models
}

// APIKey returns the key for the selected provider.
func (c *Config) APIKey() string {
	if c.LLM.Provider == string(llm.ProviderOpenRouter) {
		return c.LLM.OpenRouterAPIKey
	}
	return c.LLM.GeminiAPIKey
}

// RetryPolicy returns the configured retry policy.
func (c *Config) RetryPolicy() llm.RetryPolicy {
	policy := llm.DefaultRetryPolicy()
	policy.MaxAttempts = c.LLM.Retry.MaxAttempts
	policy.BaseDelay = c.LLM.Retry.BaseDelay
	policy.MaxJitter = c.LLM.Retry.MaxJitter
	return policy
}
