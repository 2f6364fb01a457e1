package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIAdvisor talks to any OpenAI-compatible chat completions endpoint.
type OpenAIAdvisor struct {
	client *openai.Client
	apiKey string
	model  string
}

func NewOpenAIAdvisor(apiKey, model, baseURL string) *OpenAIAdvisor {
	if model == "" {
		model = defaultOpenAIModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIAdvisor{client: &client, apiKey: apiKey, model: model}
}

func (p *OpenAIAdvisor) Name() string {
	return "openai"
}

func (p *OpenAIAdvisor) Advise(ctx context.Context, req AdvisoryRequest) (*AdvisoryResponse, error) {
	if p.apiKey == "" {
		return nil, &ConfigError{Provider: p.Name(), Err: ErrMissingCredential}
	}

	resp, err := p.client.Chat.Completions.New(ctx, buildOpenAIParams(req, p.model))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return nil, &ConfigError{Provider: p.Name(), Err: err}
		}
		return nil, fmt.Errorf("openai API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	advisory, citations, err := ParseAdvisory(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &AdvisoryResponse{
		Advisory:  advisory,
		Citations: citations,
		Model:     resp.Model,
		Usage: &UsageInfo{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func buildOpenAIParams(req AdvisoryRequest, model string) openai.ChatCompletionNewParams {
	text := req.Text
	if text == "" {
		text = "Please analyse this crop image."
	}
	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(text)}
	if url := req.Image.DataURL(); url != "" {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
	}

	return openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(req.Language)),
			openai.UserMessage(parts),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
}
