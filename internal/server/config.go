package server

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/prismhub/prism/internal/log"
)

// Config is the server configuration, bound to environment variables.
type Config struct {
	Host string `conf:"host" yaml:"host" json:"host"`
	Port int    `conf:"port" yaml:"port" json:"port"`
	Name string `conf:"name" yaml:"name" json:"name"`

	ReadTimeout time.Duration `conf:"read_timeout" yaml:"read_timeout" json:"read_timeout"`

	// APIKeys are the accepted bearer tokens. An empty list accepts any
	// bearer token; the header itself is still required.
	APIKeys []string `conf:"api_keys" yaml:"api_keys" json:"api_keys"`

	// DatabaseURL is the sqlite DSN. It may be empty; persistence then fails
	// on first use only.
	DatabaseURL string `conf:"database_url" yaml:"database_url" json:"database_url"`

	Anthropic ProviderConfig `conf:"anthropic" yaml:"anthropic" json:"anthropic"`
	OpenAI    ProviderConfig `conf:"openai" yaml:"openai" json:"openai"`

	Debug bool `conf:"debug" yaml:"debug" json:"debug"`
	CORS  CORS `conf:"cors" yaml:"cors" json:"cors"`

	Log log.Config `conf:"log" yaml:"log" json:"log"`
}

// ProviderConfig is the upstream connection settings of one backend.
type ProviderConfig struct {
	APIKey  string `conf:"api_key" yaml:"api_key" json:"api_key"`
	BaseURL string `conf:"base_url" yaml:"base_url" json:"base_url"`
}

func (p ProviderConfig) Enabled() bool {
	return p.APIKey != ""
}

type CORS struct {
	Enabled          bool          `conf:"enabled" yaml:"enabled" json:"enabled"`
	AllowedOrigins   []string      `conf:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods   []string      `conf:"allowed_methods" yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders   []string      `conf:"allowed_headers" yaml:"allowed_headers" json:"allowed_headers"`
	AllowCredentials bool          `conf:"allow_credentials" yaml:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `conf:"max_age" yaml:"max_age" json:"max_age"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8090)
	v.SetDefault("name", "prism")
	v.SetDefault("read_timeout", "30s")
	v.SetDefault("anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")

	v.SetEnvPrefix("PRISM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config := Config{
		Host:        v.GetString("host"),
		Port:        v.GetInt("port"),
		Name:        v.GetString("name"),
		ReadTimeout: v.GetDuration("read_timeout"),
		Debug:       v.GetBool("debug"),
		Anthropic: ProviderConfig{
			BaseURL: v.GetString("anthropic.base_url"),
		},
		OpenAI: ProviderConfig{
			BaseURL: v.GetString("openai.base_url"),
		},
		CORS: CORS{
			Enabled:        v.GetBool("cors.enabled"),
			AllowedOrigins: v.GetStringSlice("cors.allowed_origins"),
		},
	}

	// Operational keys follow their conventional unprefixed names.
	plain := viper.New()
	plain.AutomaticEnv()

	if keys := plain.GetString("api_keys"); keys != "" {
		for _, key := range strings.Split(keys, ",") {
			if key = strings.TrimSpace(key); key != "" {
				config.APIKeys = append(config.APIKeys, key)
			}
		}
	}

	config.DatabaseURL = plain.GetString("database_url")

	if key := plain.GetString("anthropic_api_key"); key != "" {
		config.Anthropic.APIKey = key
	}

	if url := plain.GetString("anthropic_base_url"); url != "" {
		config.Anthropic.BaseURL = url
	}

	if key := plain.GetString("openai_api_key"); key != "" {
		config.OpenAI.APIKey = key
	}

	if url := plain.GetString("openai_base_url"); url != "" {
		config.OpenAI.BaseURL = url
	}

	config.Log = log.Config{Debug: config.Debug}

	return config, nil
}
