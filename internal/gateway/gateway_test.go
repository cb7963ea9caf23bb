package gateway

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyProvider struct {
	failures int
	calls    int
}

func (p *flakyProvider) Chat(_ context.Context, _ []ChatMessage, _ ChatOptions) (string, error) {
	p.calls++
	if p.calls <= p.failures {
		return "", errors.New("connection reset")
	}
	return "ok", nil
}

func (p *flakyProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, errors.New("connection reset")
	}
	return make([][]float32, len(texts)), nil
}

func (p *flakyProvider) Rerank(_ context.Context, _ string, _ []RerankDocument, _ int) ([]RerankResult, error) {
	return nil, nil
}

func (p *flakyProvider) HealthCheck(_ context.Context) Health { return Health{} }

func TestGatewayRetriesOnce(t *testing.T) {
	p := &flakyProvider{failures: 1}
	g := NewWithProvider(p)

	out, err := g.Chat(context.Background(), nil, ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, p.calls)
}

func TestGatewayGivesUpAfterMaxAttempts(t *testing.T) {
	p := &flakyProvider{failures: 10}
	g := NewWithProvider(p)

	_, err := g.Chat(context.Background(), nil, ChatOptions{})
	require.Error(t, err)
	assert.Equal(t, defaultMaxAttempts, p.calls)
}

func TestMockProviderDeterministicEmbeddings(t *testing.T) {
	m := NewMockProvider(64)
	a, err := m.Embed(context.Background(), []string{"liability clause"})
	require.NoError(t, err)
	b, err := m.Embed(context.Background(), []string{"liability clause"})
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, a[0], b[0])
	assert.Len(t, a[0], 64)

	var norm float64
	for _, x := range a[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestMockProviderChatIsValidJSON(t *testing.T) {
	m := NewMockProvider(0)
	out, err := m.Chat(context.Background(), nil, ChatOptions{JSONMode: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"risks": []}`, out)
}
