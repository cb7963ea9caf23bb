package gateway

import (
	"context"
	"fmt"
	"strings"

	"precheck/internal/config"
)

// Gateway is the uniform chat/embed/rerank surface over one concrete
// provider, selected once at construction. Every call carries a bounded
// retry on transport/HTTP failure.
type Gateway struct {
	provider    Provider
	maxAttempts int
}

func New(cfg config.Config) (*Gateway, error) {
	var p Provider
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "local", "vllm":
		p = NewOpenAICompatProvider(OpenAICompatConfig{
			ChatBaseURL:   cfg.ChatBaseURL,
			EmbedBaseURL:  cfg.EmbedBaseURL,
			RerankBaseURL: cfg.RerankBaseURL,
			ChatModel:     cfg.ChatModel,
			EmbedModel:    cfg.EmbedModel,
			RerankModel:   cfg.RerankModel,
			APIKey:        cfg.ModelAPIKey,
		})
	case "zhipu":
		p = NewZhipuProvider(ZhipuConfig{
			ChatBaseURL:   cfg.ChatBaseURL,
			EmbedBaseURL:  cfg.EmbedBaseURL,
			RerankBaseURL: cfg.RerankBaseURL,
			ChatModel:     cfg.ChatModel,
			EmbedModel:    cfg.EmbedModel,
			RerankModel:   cfg.RerankModel,
			APIKey:        cfg.ModelAPIKey,
		})
	case "mock":
		p = NewMockProvider(cfg.EmbedDim)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLMProvider)
	}
	return NewWithProvider(p), nil
}

func NewWithProvider(p Provider) *Gateway {
	return &Gateway{provider: p, maxAttempts: defaultMaxAttempts}
}

func (g *Gateway) Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error) {
	return withRetry(ctx, g.maxAttempts, func() (string, error) {
		return g.provider.Chat(ctx, messages, opts)
	})
}

func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, g.maxAttempts, func() ([][]float32, error) {
		return g.provider.Embed(ctx, texts)
	})
}

func (g *Gateway) Rerank(ctx context.Context, query string, documents []RerankDocument, topN int) ([]RerankResult, error) {
	return withRetry(ctx, g.maxAttempts, func() ([]RerankResult, error) {
		return g.provider.Rerank(ctx, query, documents, topN)
	})
}

func (g *Gateway) HealthCheck(ctx context.Context) Health {
	return g.provider.HealthCheck(ctx)
}
