package xid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFormat(t *testing.T) {
	tests := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{name: "response", gen: Response, prefix: "resp_"},
		{name: "message", gen: Message, prefix: "msg_"},
		{name: "function call", gen: FunctionCall, prefix: "fc_"},
		{name: "reasoning", gen: Reasoning, prefix: "rs_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.gen()

			require.True(t, strings.HasPrefix(id, tt.prefix))

			suffix := strings.TrimPrefix(id, tt.prefix)
			require.Len(t, suffix, 32)
			require.NotContains(t, suffix, "-")
		})
	}
}

func TestNewUnique(t *testing.T) {
	seen := make(map[string]bool)

	for range 100 {
		id := Response()
		require.False(t, seen[id])
		seen[id] = true
	}
}
