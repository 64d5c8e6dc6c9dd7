// Package openai adapts the OpenAI embeddings API to the embedding.Provider
// interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/evidgo/evidgo/embedding"
)

// DefaultModel is used when no model is configured.
const DefaultModel = goopenai.SmallEmbedding3

// Provider implements embedding.Provider over the OpenAI API.
type Provider struct {
	client *goopenai.Client
	model  goopenai.EmbeddingModel
}

// Option configures a Provider.
type Option func(*Provider)

// WithModel selects the embedding model.
func WithModel(model goopenai.EmbeddingModel) Option {
	return func(p *Provider) { p.model = model }
}

// WithClient substitutes a preconfigured client (custom base URL, proxy,
// Azure deployment).
func WithClient(client *goopenai.Client) Option {
	return func(p *Provider) { p.client = client }
}

// New creates a Provider authenticated with apiKey.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		client: goopenai.NewClient(apiKey),
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed implements embedding.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.embed(ctx, "embed", []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany implements embedding.Provider.
func (p *Provider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.embed(ctx, "embed_many", texts)
}

func (p *Provider) embed(ctx context.Context, op string, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
		Input: texts,
		Model: p.model,
	})
	if err != nil {
		return nil, translate(op, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, embedding.NewProviderError(op,
			fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)))
	}

	// The API reports an index per embedding; order by it rather than
	// trusting response order.
	sort.Slice(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func translate(op string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return embedding.NewRateLimitError(op, 0, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return embedding.NewTimeoutError(op, err)
	}
	return embedding.NewProviderError(op, err)
}
