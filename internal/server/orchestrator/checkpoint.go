package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/zhenzou/executors"

	"github.com/prismhub/prism/internal/log"
	"github.com/prismhub/prism/internal/server/store"
)

// checkpointer coalesces partial-output writes during streaming: the first
// Note after an idle period arms a timer, later Notes within the window only
// refresh the snapshot. Stop must be called on every terminal path so an
// armed timer can never fire after a terminal write.
type checkpointer struct {
	store    *store.Store
	executor executors.ScheduledExecutor
	interval time.Duration

	// writeCtx is detached from the request so a flush in flight survives
	// client disconnect.
	writeCtx context.Context

	id string

	mu      sync.Mutex
	pending string
	armed   bool
	stopped bool
	cancel  executors.CancelFunc
}

func newCheckpointer(
	st *store.Store,
	executor executors.ScheduledExecutor,
	interval time.Duration,
	writeCtx context.Context,
	id string,
) *checkpointer {
	return &checkpointer{
		store:    st,
		executor: executor,
		interval: interval,
		writeCtx: writeCtx,
		id:       id,
	}
}

// Note records the latest output snapshot and arms the flush timer if idle.
func (c *checkpointer) Note(outputJSON string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	c.pending = outputJSON

	if c.armed {
		return
	}

	cancel, err := c.executor.ScheduleFunc(c.flush, c.interval)
	if err != nil {
		log.Warn(c.writeCtx, "failed to schedule checkpoint",
			log.String("response_id", c.id), log.Cause(err))

		return
	}

	c.armed = true
	c.cancel = cancel
}

func (c *checkpointer) flush(context.Context) {
	c.mu.Lock()

	if c.stopped {
		c.mu.Unlock()

		return
	}

	output := c.pending
	c.armed = false
	c.cancel = nil
	c.mu.Unlock()

	// Status-guarded: a concurrent cancel or terminal write wins.
	if err := c.store.PartialUpdate(c.writeCtx, c.id, output); err != nil {
		log.Warn(c.writeCtx, "checkpoint write failed",
			log.String("response_id", c.id), log.Cause(err))
	}
}

// Stop disarms the timer and blocks any future flush.
func (c *checkpointer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true

	if c.armed && c.cancel != nil {
		c.cancel()
	}

	c.armed = false
	c.cancel = nil
}
