// Package xcontext provides context utilities for work that must outlive the
// request that started it.
package xcontext

import (
	"context"
	"time"
)

type detachedContext struct {
	context.Context

	parent context.Context
}

// Detach returns a context that carries the parent's values but none of its
// deadline or cancellation. Used for persistence that must complete even when
// the client has gone away.
func Detach(ctx context.Context) context.Context {
	return detachedContext{Context: context.Background(), parent: ctx}
}

func (c detachedContext) Value(key any) any {
	return c.parent.Value(key)
}

// DetachWithTimeout detaches ctx and applies a fresh timeout.
func DetachWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(Detach(ctx), timeout)
}
