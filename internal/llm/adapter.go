package llm

import (
	"context"

	"github.com/prismhub/prism/internal/pkg/streams"
)

// Adapter translates normalized requests into one provider's wire protocol
// and the provider's replies back into normalized results. Implementations
// must be safe for concurrent use.
type Adapter interface {
	// Name identifies the backend, e.g. "anthropic" or "openai".
	Name() string

	// Chat executes a blocking generation call.
	Chat(ctx context.Context, request *Request) (*Response, error)

	// Stream executes a streaming generation call. The returned stream ends
	// with EventMessageDone on success; callers must Close it.
	Stream(ctx context.Context, request *Request) (streams.Stream[*Event], error)
}
