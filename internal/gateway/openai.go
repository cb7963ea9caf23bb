package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAICompatProvider talks to OpenAI-style endpoints, typically a local
// vLLM deployment with separate base URLs per capability.
type OpenAICompatProvider struct {
	chatBaseURL   string
	embedBaseURL  string
	rerankBaseURL string
	chatModel     string
	embedModel    string
	rerankModel   string
	apiKey        string
	client        *http.Client
}

type OpenAICompatConfig struct {
	ChatBaseURL   string
	EmbedBaseURL  string
	RerankBaseURL string
	ChatModel     string
	EmbedModel    string
	RerankModel   string
	APIKey        string
}

func NewOpenAICompatProvider(cfg OpenAICompatConfig) *OpenAICompatProvider {
	return &OpenAICompatProvider{
		chatBaseURL:   cfg.ChatBaseURL,
		embedBaseURL:  cfg.EmbedBaseURL,
		rerankBaseURL: cfg.RerankBaseURL,
		chatModel:     cfg.ChatModel,
		embedModel:    cfg.EmbedModel,
		rerankModel:   cfg.RerankModel,
		apiKey:        cfg.APIKey,
		client:        &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OpenAICompatProvider) Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error) {
	body := map[string]any{
		"model":       p.chatModel,
		"messages":    messages,
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
	}
	if opts.JSONMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	raw, err := p.post(ctx, p.chatBaseURL+"/chat/completions", body)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from chat API")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (p *OpenAICompatProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	raw, err := p.post(ctx, p.embedBaseURL+"/embeddings", map[string]any{
		"model": p.embedModel,
		"input": texts,
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	out := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		out = append(out, d.Embedding)
	}
	return out, nil
}

func (p *OpenAICompatProvider) Rerank(ctx context.Context, query string, documents []RerankDocument, topN int) ([]RerankResult, error) {
	if topN <= 0 {
		topN = len(documents)
	}
	docs := make([]map[string]string, 0, len(documents))
	for _, d := range documents {
		docs = append(docs, map[string]string{"text": d.Text})
	}
	raw, err := p.post(ctx, p.rerankBaseURL+"/rerank", map[string]any{
		"model":     p.rerankModel,
		"query":     query,
		"documents": docs,
		"top_n":     topN,
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	out := make([]RerankResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, RerankResult{Index: r.Index, RelevanceScore: r.RelevanceScore})
	}
	return out, nil
}

// HealthCheck probes each capability's /models endpoint.
func (p *OpenAICompatProvider) HealthCheck(ctx context.Context) Health {
	return Health{
		Chat:   p.probe(ctx, p.chatBaseURL+"/models"),
		Embed:  p.probe(ctx, p.embedBaseURL+"/models"),
		Rerank: p.probe(ctx, p.rerankBaseURL+"/models"),
	}
}

func (p *OpenAICompatProvider) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}

func (p *OpenAICompatProvider) post(ctx context.Context, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("model API error %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
