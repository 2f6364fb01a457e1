package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeModel = "claude-sonnet-4-5-20250929"

type ClaudeAdvisor struct {
	client    *anthropic.Client
	apiKey    string
	model     string
	maxTokens int64
}

func NewClaudeAdvisor(apiKey, model, baseURL string) *ClaudeAdvisor {
	if model == "" {
		model = defaultClaudeModel
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return &ClaudeAdvisor{client: &client, apiKey: apiKey, model: model, maxTokens: 2048}
}

func (p *ClaudeAdvisor) Name() string {
	return "anthropic"
}

func (p *ClaudeAdvisor) Advise(ctx context.Context, req AdvisoryRequest) (*AdvisoryResponse, error) {
	if p.apiKey == "" {
		return nil, &ConfigError{Provider: p.Name(), Err: ErrMissingCredential}
	}

	resp, err := p.client.Messages.New(ctx, buildClaudeParams(req, p.model, p.maxTokens))
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return nil, &ConfigError{Provider: p.Name(), Err: err}
		}
		return nil, fmt.Errorf("claude API call: %w", err)
	}

	return parseClaudeResponse(resp)
}

func buildClaudeParams(req AdvisoryRequest, model string, maxTokens int64) anthropic.MessageNewParams {
	var blocks []anthropic.ContentBlockParamUnion
	if req.Image != nil && req.Image.Type == "image" {
		blocks = append(blocks, anthropic.NewImageBlockBase64(req.Image.MediaType, req.Image.Data))
	}
	text := req.Text
	if text == "" {
		text = "Please analyse this crop image."
	}
	blocks = append(blocks, anthropic.NewTextBlock(text))

	return anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt(req.Language)}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
}

func parseClaudeResponse(resp *anthropic.Message) (*AdvisoryResponse, error) {
	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.AsText().Text
		}
	}

	advisory, citations, err := ParseAdvisory(content)
	if err != nil {
		return nil, err
	}

	return &AdvisoryResponse{
		Advisory:  advisory,
		Citations: citations,
		Model:     string(resp.Model),
		Usage: &UsageInfo{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}
