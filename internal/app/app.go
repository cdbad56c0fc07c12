// Package app wires configuration into the services both binaries share.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/suPer8Hu/consult-desk/internal/ai"
	"github.com/suPer8Hu/consult-desk/internal/config"
	"github.com/suPer8Hu/consult-desk/internal/store/redisstore"
	"github.com/suPer8Hu/consult-desk/internal/summary"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

// summaries want stable output
const summaryTemperature = 0.2

func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		p := ai.NewOllamaProvider(cfg.OllamaBaseURL, m)
		p.Temperature = summaryTemperature
		p.JSONMode = true
		return p, nil
	})

	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY is not set")
		}
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		p := ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName)
		p.Temperature = summaryTemperature
		p.JSONMode = true
		return p, nil
	})

	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		p := ai.NewOpenAIProvider(cfg.OpenAIAPIKey, m)
		p.Temperature = summaryTemperature
		return p, nil
	})

	return reg
}

// Summaries builds the summary service on top of repo. The returned close
// func releases the redis cache when one is configured.
func Summaries(ctx context.Context, cfg config.Config, repo *transcript.Repo, logger *log.Logger) (*summary.Service, func(), error) {
	gen, err := NewRegistry(cfg).Generator(ctx, cfg.AIProvider, "")
	if err != nil {
		return nil, nil, fmt.Errorf("ai provider: %w", err)
	}
	svc := summary.NewService(repo, gen, logger, cfg.SummaryMessageLimit)

	if cfg.RedisAddr == "" {
		return svc, func() {}, nil
	}
	cache := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SummaryCacheTTL)
	if err := cache.Ping(ctx); err != nil {
		// the cache is optional; run without it
		logger.Warn("redis unavailable, summary cache disabled", "addr", cfg.RedisAddr, "err", err)
		_ = cache.Close()
		return svc, func() {}, nil
	}
	logger.Info("summary cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.SummaryCacheTTL)
	svc.WithCache(cache)
	return svc, func() { _ = cache.Close() }, nil
}
