package responses

import (
	"fmt"
)

// InvalidRequestError reports a request that fails validation. Param names
// the offending field when known.
type InvalidRequestError struct {
	Param   string
	Message string
}

func (e *InvalidRequestError) Error() string {
	return e.Message
}

// NotImplementedError reports a protocol feature the server does not support.
type NotImplementedError struct {
	Message string
}

func (e *NotImplementedError) Error() string {
	return e.Message
}

// Validate checks a request before it reaches the orchestrator.
func (r *Request) Validate() error {
	if r.Model == "" {
		return &InvalidRequestError{Param: "model", Message: "model is required"}
	}

	if r.Input.Text == nil && len(r.Input.Items) == 0 && r.PreviousResponseID == nil {
		return &InvalidRequestError{Param: "input", Message: "input is required"}
	}

	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return &InvalidRequestError{Param: "temperature", Message: "temperature must be between 0 and 2"}
	}

	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return &InvalidRequestError{Param: "top_p", Message: "top_p must be between 0 and 1"}
	}

	if r.MaxOutputTokens != nil && *r.MaxOutputTokens <= 0 {
		return &InvalidRequestError{Param: "max_output_tokens", Message: "max_output_tokens must be positive"}
	}

	if r.IsBackground() && !r.StoreEnabled() {
		return &InvalidRequestError{Param: "background", Message: "background mode requires store=true"}
	}

	if r.Truncation != nil && *r.Truncation != "auto" && *r.Truncation != "disabled" {
		return &InvalidRequestError{Param: "truncation", Message: "truncation must be auto or disabled"}
	}

	if r.Reasoning != nil && r.Reasoning.Effort != "" {
		switch r.Reasoning.Effort {
		case "low", "medium", "high":
		default:
			return &InvalidRequestError{Param: "reasoning.effort", Message: "reasoning.effort must be low, medium or high"}
		}
	}

	if r.Text != nil && r.Text.Format != nil {
		switch r.Text.Format.Type {
		case "", "text", "json_object", "json_schema":
		default:
			return &InvalidRequestError{
				Param:   "text.format",
				Message: fmt.Sprintf("unsupported text format %q", r.Text.Format.Type),
			}
		}
	}

	for _, tool := range r.Tools {
		switch tool.Type {
		case ToolTypeFunction:
			if tool.Name == "" {
				return &InvalidRequestError{Param: "tools", Message: "function tools require a name"}
			}
		case ToolTypeWebSearchPreview, ToolTypeFileSearch, ToolTypeCodeInterpreter,
			ToolTypeImageGeneration, ToolTypeComputerUsePreview:
			return &NotImplementedError{
				Message: fmt.Sprintf("tool type %q is not implemented", tool.Type),
			}
		default:
			return &InvalidRequestError{
				Param:   "tools",
				Message: fmt.Sprintf("unknown tool type %q", tool.Type),
			}
		}
	}

	return nil
}
