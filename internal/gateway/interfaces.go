package gateway

import "context"

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	JSONMode    bool    `json:"json_mode"`
}

type RerankDocument struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

type RerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type Health struct {
	Chat   bool `json:"chat"`
	Embed  bool `json:"embed"`
	Rerank bool `json:"rerank"`
}

type ChatProvider interface {
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)
}

type EmbedProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type RerankProvider interface {
	Rerank(ctx context.Context, query string, documents []RerankDocument, topN int) ([]RerankResult, error)
}

// Provider bundles the three model capabilities plus a health probe.
// One concrete implementation exists per vendor; the gateway picks one at
// construction time.
type Provider interface {
	ChatProvider
	EmbedProvider
	RerankProvider
	HealthCheck(ctx context.Context) Health
}
