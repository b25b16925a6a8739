// Package api exposes the Responses API over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prismhub/prism/internal/llm"
	"github.com/prismhub/prism/internal/responses"
	"github.com/prismhub/prism/internal/server/store"
)

// ErrorResponse is the wire error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    *string `json:"code"`
}

// JSONError maps an error onto its HTTP status and wire body.
func JSONError(c *gin.Context, err error) {
	_ = c.Error(err)

	status, detail := classify(err)

	c.JSON(status, ErrorResponse{Error: detail})
}

func classify(err error) (int, ErrorDetail) {
	var invalidErr *responses.InvalidRequestError
	if errors.As(err, &invalidErr) {
		detail := ErrorDetail{Type: "invalid_request_error", Message: invalidErr.Message}
		if invalidErr.Param != "" {
			param := invalidErr.Param
			detail.Param = &param
		}

		return http.StatusBadRequest, detail
	}

	var notImplErr *responses.NotImplementedError
	if errors.As(err, &notImplErr) {
		return http.StatusNotImplemented, ErrorDetail{
			Type:    "not_implemented",
			Message: notImplErr.Message,
		}
	}

	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, ErrorDetail{
			Type:    "not_found",
			Message: "response not found",
		}
	}

	var respErr *llm.ResponseError
	if errors.As(err, &respErr) {
		// Provider failures surface as server errors carrying the upstream
		// message.
		detail := ErrorDetail{Type: "server_error", Message: respErr.Detail.Message}
		if respErr.Detail.Param != "" {
			param := respErr.Detail.Param
			detail.Param = &param
		}

		if respErr.Detail.Code != "" {
			code := respErr.Detail.Code
			detail.Code = &code
		}

		return http.StatusInternalServerError, detail
	}

	switch {
	case errors.Is(err, llm.ErrInvalidRequest):
		return http.StatusBadRequest, ErrorDetail{Type: "invalid_request_error", Message: err.Error()}
	case errors.Is(err, llm.ErrNotImplemented):
		return http.StatusNotImplemented, ErrorDetail{Type: "not_implemented", Message: err.Error()}
	case errors.Is(err, llm.ErrUnsupportedModel):
		return http.StatusBadRequest, ErrorDetail{Type: "invalid_request_error", Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorDetail{Type: "server_error", Message: err.Error()}
	}
}
