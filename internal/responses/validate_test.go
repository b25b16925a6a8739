package responses

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func validRequest() *Request {
	return &Request{
		Model: "claude-sonnet-4-responses",
		Input: Input{Text: lo.ToPtr("Hi")},
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validRequest().Validate())
}

func TestValidate_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		param  string
	}{
		{
			name:   "missing model",
			mutate: func(r *Request) { r.Model = "" },
			param:  "model",
		},
		{
			name:   "missing input",
			mutate: func(r *Request) { r.Input = Input{} },
			param:  "input",
		},
		{
			name:   "temperature too high",
			mutate: func(r *Request) { r.Temperature = lo.ToPtr(2.5) },
			param:  "temperature",
		},
		{
			name:   "negative temperature",
			mutate: func(r *Request) { r.Temperature = lo.ToPtr(-0.1) },
			param:  "temperature",
		},
		{
			name:   "top_p out of range",
			mutate: func(r *Request) { r.TopP = lo.ToPtr(1.5) },
			param:  "top_p",
		},
		{
			name:   "non-positive max_output_tokens",
			mutate: func(r *Request) { r.MaxOutputTokens = lo.ToPtr(int64(0)) },
			param:  "max_output_tokens",
		},
		{
			name: "background without store",
			mutate: func(r *Request) {
				r.Background = lo.ToPtr(true)
				r.Store = lo.ToPtr(false)
			},
			param: "background",
		},
		{
			name:   "bad truncation",
			mutate: func(r *Request) { r.Truncation = lo.ToPtr("sometimes") },
			param:  "truncation",
		},
		{
			name:   "bad effort",
			mutate: func(r *Request) { r.Reasoning = &Reasoning{Effort: "extreme"} },
			param:  "reasoning.effort",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := validRequest()
			tt.mutate(request)

			err := request.Validate()
			require.Error(t, err)

			var invalidErr *InvalidRequestError
			require.ErrorAs(t, err, &invalidErr)
			require.Equal(t, tt.param, invalidErr.Param)
		})
	}
}

func TestValidate_PreviousResponseAloneIsEnough(t *testing.T) {
	request := validRequest()
	request.Input = Input{}
	request.PreviousResponseID = lo.ToPtr("resp_123")

	require.NoError(t, request.Validate())
}

func TestValidate_BuiltinToolsNotImplemented(t *testing.T) {
	for _, toolType := range []string{
		ToolTypeWebSearchPreview,
		ToolTypeFileSearch,
		ToolTypeCodeInterpreter,
		ToolTypeImageGeneration,
		ToolTypeComputerUsePreview,
	} {
		request := validRequest()
		request.Tools = []Tool{{Type: toolType}}

		err := request.Validate()
		require.Error(t, err, toolType)

		var notImplErr *NotImplementedError
		require.ErrorAs(t, err, &notImplErr)
	}
}

func TestValidate_FunctionToolRequiresName(t *testing.T) {
	request := validRequest()
	request.Tools = []Tool{{Type: ToolTypeFunction}}

	err := request.Validate()

	var invalidErr *InvalidRequestError
	require.ErrorAs(t, err, &invalidErr)
	require.Equal(t, "tools", invalidErr.Param)
}
