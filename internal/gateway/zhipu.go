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

// ZhipuProvider talks to the Zhipu cloud API. The request shapes differ from
// the OpenAI-compatible path: embeddings require encoding_format and rerank
// takes documents as plain strings.
type ZhipuProvider struct {
	chatBaseURL   string
	embedBaseURL  string
	rerankBaseURL string
	chatModel     string
	embedModel    string
	rerankModel   string
	apiKey        string
	client        *http.Client
}

type ZhipuConfig struct {
	ChatBaseURL   string
	EmbedBaseURL  string
	RerankBaseURL string
	ChatModel     string
	EmbedModel    string
	RerankModel   string
	APIKey        string
}

func NewZhipuProvider(cfg ZhipuConfig) *ZhipuProvider {
	return &ZhipuProvider{
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

func (p *ZhipuProvider) Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error) {
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
		return "", fmt.Errorf("decode zhipu chat response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from zhipu chat API")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (p *ZhipuProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	raw, err := p.post(ctx, p.embedBaseURL+"/embeddings", map[string]any{
		"model":           p.embedModel,
		"input":           texts,
		"encoding_format": "float",
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
		return nil, fmt.Errorf("decode zhipu embed response: %w", err)
	}
	out := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		out = append(out, d.Embedding)
	}
	return out, nil
}

func (p *ZhipuProvider) Rerank(ctx context.Context, query string, documents []RerankDocument, topN int) ([]RerankResult, error) {
	if topN <= 0 {
		topN = len(documents)
	}
	docs := make([]string, 0, len(documents))
	for _, d := range documents {
		docs = append(docs, d.Text)
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
		return nil, fmt.Errorf("decode zhipu rerank response: %w", err)
	}
	out := make([]RerankResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, RerankResult{Index: r.Index, RelevanceScore: r.RelevanceScore})
	}
	return out, nil
}

// HealthCheck short-circuits to healthy: cloud API availability is externally
// guaranteed and there is no cheap probe endpoint.
func (p *ZhipuProvider) HealthCheck(_ context.Context) Health {
	return Health{Chat: true, Embed: true, Rerank: true}
}

func (p *ZhipuProvider) post(ctx context.Context, url string, body any) ([]byte, error) {
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
		return nil, fmt.Errorf("zhipu request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("zhipu API error %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
