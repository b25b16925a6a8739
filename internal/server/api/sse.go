package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SSEWriter writes server-sent events with the exact framing the protocol
// requires: an event name line, a compact JSON data line, and a blank line.
// After a write failure it goes silent, so the caller can keep draining the
// upstream without touching a dead connection.
type SSEWriter struct {
	writer  gin.ResponseWriter
	flusher http.Flusher
	failed  bool
}

func NewSSEWriter(c *gin.Context) *SSEWriter {
	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache, no-transform")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	c.Writer.WriteHeader(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)

	return &SSEWriter{writer: c.Writer, flusher: flusher}
}

// WriteEvent emits one named event. The name must equal the payload's type
// field; the projector guarantees that by construction.
func (w *SSEWriter) WriteEvent(name string, payload any) {
	if w.failed {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		w.failed = true

		return
	}

	if _, err := w.writer.WriteString("event: " + name + "\n"); err != nil {
		w.failed = true

		return
	}

	if _, err := w.writer.Write(append(append([]byte("data: "), data...), '\n', '\n')); err != nil {
		w.failed = true

		return
	}

	w.flush()
}

// WriteDone emits the single terminating sentinel.
func (w *SSEWriter) WriteDone() {
	if w.failed {
		return
	}

	if _, err := w.writer.WriteString("data: [DONE]\n\n"); err != nil {
		w.failed = true

		return
	}

	w.flush()
}

func (w *SSEWriter) flush() {
	if w.flusher != nil {
		w.flusher.Flush()
	}
}
