// Package store is the persistence gateway for stored responses.
package store

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/prismhub/prism/internal/responses"
)

// ResponseRecord is the stored form of one response. JSON-typed fields are
// kept as serialized text columns so the schema stays flat.
type ResponseRecord struct {
	ID    string `gorm:"column:id;primaryKey"`
	Model string `gorm:"column:model;not null"`

	// Status is one of queued, in_progress, completed, failed, cancelled,
	// incomplete. Terminal statuses are write-once; see PartialUpdate.
	Status string `gorm:"column:status;not null;index"`

	Instructions string `gorm:"column:instructions"`

	InputItems        string `gorm:"column:input_items_json"`
	OutputItems       string `gorm:"column:output_items_json"`
	Usage             string `gorm:"column:usage_json"`
	Error             string `gorm:"column:error_json"`
	IncompleteDetails string `gorm:"column:incomplete_details_json"`
	Metadata          string `gorm:"column:metadata_json"`

	// Params carries the sampling and tool parameters of the original
	// request, serialized whole for faithful echo on reads.
	Params string `gorm:"column:params_json"`

	PreviousResponseID string `gorm:"column:previous_response_id"`
	Background         bool   `gorm:"column:background"`

	CreatedAt   time.Time  `gorm:"column:created_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
}

func (ResponseRecord) TableName() string {
	return "responses"
}

// Params is the serialized request-parameter bundle of a stored response.
type Params struct {
	Temperature       *float64               `json:"temperature,omitempty"`
	TopP              *float64               `json:"top_p,omitempty"`
	MaxOutputTokens   *int64                 `json:"max_output_tokens,omitempty"`
	Tools             []responses.Tool       `json:"tools,omitempty"`
	ToolChoice        *responses.ToolChoice  `json:"tool_choice,omitempty"`
	Text              *responses.TextOptions `json:"text,omitempty"`
	Reasoning         *responses.Reasoning   `json:"reasoning,omitempty"`
	ParallelToolCalls *bool                  `json:"parallel_tool_calls,omitempty"`
	Truncation        *string                `json:"truncation,omitempty"`
}

// ToResponse reconstructs the API response object from a stored record.
func (r *ResponseRecord) ToResponse() *responses.Response {
	response := &responses.Response{
		Object:       "response",
		ID:           r.ID,
		CreatedAt:    r.CreatedAt.Unix(),
		Model:        r.Model,
		Status:       r.Status,
		Output:       []responses.Item{},
		Instructions: r.Instructions,
	}

	if r.OutputItems != "" {
		_ = json.Unmarshal([]byte(r.OutputItems), &response.Output)
	}

	if r.Usage != "" {
		var usage responses.Usage
		if json.Unmarshal([]byte(r.Usage), &usage) == nil {
			response.Usage = &usage
		}
	}

	if r.Error != "" {
		var respErr responses.Error
		if json.Unmarshal([]byte(r.Error), &respErr) == nil {
			response.Error = &respErr
		}
	}

	if r.IncompleteDetails != "" {
		var details responses.IncompleteDetails
		if json.Unmarshal([]byte(r.IncompleteDetails), &details) == nil {
			response.IncompleteDetails = &details
		}
	}

	if r.Metadata != "" {
		_ = json.Unmarshal([]byte(r.Metadata), &response.Metadata)
	}

	if r.Params != "" {
		var params Params
		if json.Unmarshal([]byte(r.Params), &params) == nil {
			response.Temperature = params.Temperature
			response.TopP = params.TopP
			response.MaxOutputTokens = params.MaxOutputTokens
			response.Tools = params.Tools
			response.ToolChoice = params.ToolChoice
			response.Text = params.Text
			response.Reasoning = params.Reasoning
			response.ParallelToolCalls = params.ParallelToolCalls
			response.Truncation = params.Truncation
		}
	}

	if r.PreviousResponseID != "" {
		response.PreviousResponseID = lo.ToPtr(r.PreviousResponseID)
	}

	if r.Background {
		response.Background = lo.ToPtr(true)
	}

	return response
}

// InputItemList decodes the stored input items.
func (r *ResponseRecord) InputItemList() []responses.Item {
	if r.InputItems == "" {
		return nil
	}

	var items []responses.Item

	_ = json.Unmarshal([]byte(r.InputItems), &items)

	return items
}

// OutputItemList decodes the stored output items.
func (r *ResponseRecord) OutputItemList() []responses.Item {
	if r.OutputItems == "" {
		return nil
	}

	var items []responses.Item

	_ = json.Unmarshal([]byte(r.OutputItems), &items)

	return items
}
