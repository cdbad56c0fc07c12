package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/consult-desk/internal/config"
	"github.com/suPer8Hu/consult-desk/internal/logging"
)

func TestNewRegistry(t *testing.T) {
	cfg := config.Config{OllamaBaseURL: "http://localhost:11434", OllamaModel: "llama3:latest"}
	reg := NewRegistry(cfg)
	assert.Equal(t, []string{"ollama", "openai", "openrouter"}, reg.Names())

	_, err := reg.Get(context.Background(), "ollama", "")
	require.NoError(t, err)

	_, err = reg.Get(context.Background(), "openai", "")
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	_, err = reg.Get(context.Background(), "bard", "")
	assert.Error(t, err)
}

func TestSummaries_WithoutRedis(t *testing.T) {
	cfg := config.Config{AIProvider: "ollama", SummaryMessageLimit: 50}
	svc, closeFn, err := Summaries(context.Background(), cfg, nil, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, svc)
	closeFn()

	cfg.AIProvider = "unknown"
	_, _, err = Summaries(context.Background(), cfg, nil, logging.Discard())
	assert.Error(t, err)
}
