package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", config.Host)
	require.Equal(t, 8090, config.Port)
	require.Equal(t, "prism", config.Name)
	require.Equal(t, 30*time.Second, config.ReadTimeout)
	require.Equal(t, "https://api.anthropic.com", config.Anthropic.BaseURL)
	require.Equal(t, "https://api.openai.com/v1", config.OpenAI.BaseURL)
	require.False(t, config.Anthropic.Enabled())
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("PRISM_PORT", "9000")
	t.Setenv("PRISM_DEBUG", "true")
	t.Setenv("API_KEYS", "sk-1, sk-2,")
	t.Setenv("DATABASE_URL", "sqlite://prism.db")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_BASE_URL", "https://proxy.example.com/v1")

	config, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 9000, config.Port)
	require.True(t, config.Debug)
	require.Equal(t, []string{"sk-1", "sk-2"}, config.APIKeys)
	require.Equal(t, "sqlite://prism.db", config.DatabaseURL)
	require.Equal(t, "sk-ant", config.Anthropic.APIKey)
	require.True(t, config.Anthropic.Enabled())
	require.Equal(t, "https://proxy.example.com/v1", config.OpenAI.BaseURL)
}
