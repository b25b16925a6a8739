package server

import (
	"github.com/prismhub/prism/internal/llm/anthropic"
	"github.com/prismhub/prism/internal/llm/openai"
	"github.com/prismhub/prism/internal/pkg/httpclient"
	"github.com/prismhub/prism/internal/server/orchestrator"
	"github.com/prismhub/prism/internal/server/store"
)

// defaultModels is the built-in model table: public id to provider model.
// Only the entries of configured backends register.
var (
	anthropicModels = map[string]string{
		"claude-sonnet-4-responses":   "claude-sonnet-4-20250514",
		"claude-opus-4-responses":     "claude-opus-4-20250514",
		"claude-3-5-haiku-responses":  "claude-3-5-haiku-20241022",
		"claude-3-7-sonnet-responses": "claude-3-7-sonnet-20250219",
	}

	openaiModels = map[string]string{
		"gpt-4o-responses":      "gpt-4o",
		"gpt-4o-mini-responses": "gpt-4o-mini",
		"gpt-4-1-responses":     "gpt-4.1",
	}
)

func NewStore(config Config) *store.Store {
	return store.NewStore(config.DatabaseURL)
}

// NewRegistry registers the model table for every backend that has an API
// key configured.
func NewRegistry(config Config, client *httpclient.HttpClient) *orchestrator.Registry {
	registry := orchestrator.NewRegistry()

	if config.Anthropic.Enabled() {
		adapter := anthropic.NewAdapter(&anthropic.Config{
			BaseURL: config.Anthropic.BaseURL,
			APIKey:  config.Anthropic.APIKey,
		}, client)

		for id, underlying := range anthropicModels {
			registry.Register(&orchestrator.ModelEntry{
				ID:              id,
				UnderlyingModel: underlying,
				Adapter:         adapter,
				OwnedBy:         "anthropic",
			})
		}
	}

	if config.OpenAI.Enabled() {
		adapter := openai.NewAdapter(&openai.Config{
			BaseURL: config.OpenAI.BaseURL,
			APIKey:  config.OpenAI.APIKey,
		}, client)

		for id, underlying := range openaiModels {
			registry.Register(&orchestrator.ModelEntry{
				ID:              id,
				UnderlyingModel: underlying,
				Adapter:         adapter,
				OwnedBy:         "openai",
			})
		}
	}

	return registry
}
