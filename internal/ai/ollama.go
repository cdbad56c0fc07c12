package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

type OllamaProvider struct {
	BaseURL     string
	Model       string
	Temperature float64
	// JSONMode asks the server to constrain output to JSON.
	JSONMode bool
	Client   *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaChatReq struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResp struct {
	Message Message `json:"message"`
	Error   string  `json:"error,omitempty"`
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("ollama: http client is nil")
	}

	reqBody := ollamaChatReq{
		Model:    p.Model,
		Messages: messages,
		Options:  map[string]any{"temperature": p.Temperature},
	}
	if p.JSONMode {
		reqBody.Format = "json"
	}

	var decoded ollamaChatResp
	url := strings.TrimRight(p.BaseURL, "/") + "/api/chat"
	if err := postJSON(ctx, p.Client, "ollama", url, nil, reqBody, &decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New("ollama: " + decoded.Error)
	}
	return decoded.Message.Content, nil
}
