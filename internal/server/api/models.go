package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prismhub/prism/internal/server/orchestrator"
)

// ModelsHandlers serves the /v1/models endpoints.
type ModelsHandlers struct {
	orchestrator *orchestrator.Orchestrator
}

func NewModelsHandlers(orch *orchestrator.Orchestrator) *ModelsHandlers {
	return &ModelsHandlers{orchestrator: orch}
}

// List handles GET /v1/models.
func (h *ModelsHandlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   h.orchestrator.Models(),
	})
}

// Get handles GET /v1/models/:id.
func (h *ModelsHandlers) Get(c *gin.Context) {
	summary, ok := h.orchestrator.Model(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: ErrorDetail{
			Type:    "not_found",
			Message: "model not found",
		}})

		return
	}

	c.JSON(http.StatusOK, summary)
}
