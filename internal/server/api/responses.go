package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prismhub/prism/internal/log"
	"github.com/prismhub/prism/internal/responses"
	"github.com/prismhub/prism/internal/server/orchestrator"
)

// ResponsesHandlers serves the /v1/responses endpoints.
type ResponsesHandlers struct {
	orchestrator *orchestrator.Orchestrator
}

func NewResponsesHandlers(orch *orchestrator.Orchestrator) *ResponsesHandlers {
	return &ResponsesHandlers{orchestrator: orch}
}

// Create handles POST /v1/responses.
func (h *ResponsesHandlers) Create(c *gin.Context) {
	h.create(c, false)
}

// Compact handles POST /v1/responses/compact: identical semantics, but the
// request must chain onto a previous response.
func (h *ResponsesHandlers) Compact(c *gin.Context) {
	h.create(c, true)
}

func (h *ResponsesHandlers) create(c *gin.Context, requirePrevious bool) {
	var request responses.Request

	if err := c.ShouldBindJSON(&request); err != nil {
		JSONError(c, &responses.InvalidRequestError{Message: "invalid request body: " + err.Error()})

		return
	}

	if err := request.Validate(); err != nil {
		JSONError(c, err)

		return
	}

	if requirePrevious && request.PreviousResponseID == nil {
		JSONError(c, &responses.InvalidRequestError{
			Param:   "previous_response_id",
			Message: "previous_response_id is required",
		})

		return
	}

	if request.IsStream() && !request.IsBackground() {
		h.stream(c, &request)

		return
	}

	response, err := h.orchestrator.Create(c.Request.Context(), &request)
	if err != nil {
		JSONError(c, err)

		return
	}

	c.JSON(http.StatusOK, response)
}

// stream runs the SSE path. Before the first byte every error is a plain
// JSON error; afterwards errors travel inside the stream and the connection
// always ends with one [DONE] sentinel.
func (h *ResponsesHandlers) stream(c *gin.Context, request *responses.Request) {
	ctx := c.Request.Context()

	stream, err := h.orchestrator.CreateStream(ctx, request)
	if err != nil {
		JSONError(c, err)

		return
	}

	defer func() {
		if closeErr := stream.Close(); closeErr != nil {
			log.Warn(ctx, "failed to close response stream", log.Cause(closeErr))
		}
	}()

	writer := NewSSEWriter(c)

	for stream.Next() {
		event := stream.Current()
		writer.WriteEvent(string(event.Type), event)
	}

	if err := stream.Err(); err != nil {
		log.Error(ctx, "response stream ended abnormally",
			log.String("response_id", stream.Response().ID), log.Cause(err))
	}

	writer.WriteDone()
}

// Get handles GET /v1/responses/:id.
func (h *ResponsesHandlers) Get(c *gin.Context) {
	response, err := h.orchestrator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		JSONError(c, err)

		return
	}

	c.JSON(http.StatusOK, response)
}

// Delete handles DELETE /v1/responses/:id.
func (h *ResponsesHandlers) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.orchestrator.Delete(c.Request.Context(), id); err != nil {
		JSONError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"object":  "response",
		"deleted": true,
	})
}

// Cancel handles POST /v1/responses/:id/cancel. Rows already in a terminal
// state refuse the transition with a conflict. Unstored responses never have
// a row, so they are indistinguishable from unknown ids and surface as not
// found.
func (h *ResponsesHandlers) Cancel(c *gin.Context) {
	response, transitioned, err := h.orchestrator.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		JSONError(c, err)

		return
	}

	if !transitioned {
		c.JSON(http.StatusConflict, ErrorResponse{Error: ErrorDetail{
			Type:    "conflict",
			Message: "response is not in a cancellable state",
		}})

		return
	}

	c.JSON(http.StatusOK, response)
}
