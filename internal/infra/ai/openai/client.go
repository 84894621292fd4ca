package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/learncode/internal/domain/ai"
	"github.com/bryanwahyu/learncode/internal/infra/ai/prompt"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "deepseek/deepseek-chat"

	roadmapMaxTokens   = 1500
	roadmapTemperature = 0.2
	explainMaxTokens   = 200
	explainTemperature = 0.5
)

type Client struct {
	*openai.Client
	Model string
}

// NewClient builds a client for any OpenAI compatible endpoint. It returns
// ai.ErrMissingCredentials when apiKey is empty.
func NewClient(apiKey, baseURL, model string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ai.ErrMissingCredentials
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}, nil
}

func (c *Client) GenerateRoadmap(ctx context.Context, code string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.Model,
		Temperature: roadmapTemperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.RoadmapSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: code},
		},
	}
	setMaxTokens(&req, roadmapMaxTokens)
	return c.complete(ctx, req)
}

func (c *Client) ExplainTopic(ctx context.Context, p ai.TopicPrompt) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.Model,
		Temperature: explainTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.ExplainSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.ExplainUserPrompt(p.Topic, p.LevelName, p.Language, p.Framework)},
		},
	}
	setMaxTokens(&req, explainMaxTokens)
	return c.complete(ctx, req)
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ai.ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ai.ErrEmptyCompletion
	}
	return content, nil
}

// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
func setMaxTokens(req *openai.ChatCompletionRequest, n int) {
	m := req.Model
	if i := strings.LastIndexByte(m, '/'); i >= 0 {
		m = m[i+1:]
	}
	if strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4") || strings.HasPrefix(m, "gpt-5") {
		req.MaxCompletionTokens = n
		return
	}
	req.MaxTokens = n
}
