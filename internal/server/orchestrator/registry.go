// Package orchestrator turns validated Responses API requests into provider
// calls and projects the provider's replies back onto the protocol: response
// objects on the blocking path, ordered stream events on the SSE path.
package orchestrator

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prismhub/prism/internal/llm"
	"github.com/prismhub/prism/internal/responses"
)

// ModelEntry binds one public model id to a provider adapter.
type ModelEntry struct {
	// ID is the public model id, e.g. "claude-sonnet-4-responses".
	ID string

	// UnderlyingModel is the provider-side model name.
	UnderlyingModel string

	Adapter llm.Adapter

	Created int64
	OwnedBy string
}

// ModelSummary is the /v1/models representation of one entry.
type ModelSummary struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// Registry resolves public model ids. Read-mostly after startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*ModelEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*ModelEntry)}
}

func (r *Registry) Register(entry *ModelEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.Created == 0 {
		entry.Created = time.Now().Unix()
	}

	if entry.OwnedBy == "" {
		entry.OwnedBy = entry.Adapter.Name()
	}

	r.entries[entry.ID] = entry
}

// Resolve returns the entry for modelID. Unknown ids fail with a validation
// error naming the supported models.
func (r *Registry) Resolve(modelID string) (*ModelEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[modelID]
	if !ok {
		supported := make([]string, 0, len(r.entries))
		for id := range r.entries {
			supported = append(supported, id)
		}

		sort.Strings(supported)

		return nil, &responses.InvalidRequestError{
			Param:   "model",
			Message: fmt.Sprintf("model %q is not supported, supported models: %s", modelID, strings.Join(supported, ", ")),
		}
	}

	return entry, nil
}

// Lookup returns the entry for modelID without the validation error shape.
func (r *Registry) Lookup(modelID string) (*ModelEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[modelID]

	return entry, ok
}

// List returns summaries for every registered model, sorted by id.
func (r *Registry) List() []ModelSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]ModelSummary, 0, len(r.entries))
	for _, entry := range r.entries {
		summaries = append(summaries, ModelSummary{
			ID:      entry.ID,
			Object:  "model",
			Created: entry.Created,
			OwnedBy: entry.OwnedBy,
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })

	return summaries
}
