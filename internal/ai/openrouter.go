package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// OpenRouterProvider speaks the OpenAI-compatible chat completions API that
// OpenRouter exposes.
type OpenRouterProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	// Temperature is sent verbatim.
	Temperature float64
	JSONMode    bool
	Client      *http.Client
}

type responseFormat struct {
	Type string `json:"type"`
}

type openRouterChatReq struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenRouterProvider(baseURL, apiKey, model, siteURL, appName string) *OpenRouterProvider {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *OpenRouterProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("openrouter: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", errors.New("openrouter: api key is required")
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return "", errors.New("openrouter: model is required")
	}

	reqBody := openRouterChatReq{
		Model:       model,
		Messages:    messages,
		Temperature: p.Temperature,
	}
	if p.JSONMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	headers := map[string]string{
		"Authorization": "Bearer " + p.APIKey,
		"HTTP-Referer":  p.SiteURL,
		"X-Title":       p.AppName,
	}
	var decoded openRouterChatResp
	url := strings.TrimRight(p.BaseURL, "/") + "/chat/completions"
	if err := postJSON(ctx, p.Client, "openrouter", url, headers, reqBody, &decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New("openrouter: " + decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openrouter: empty response")
	}
	return decoded.Choices[0].Message.Content, nil
}
