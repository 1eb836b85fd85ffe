package embedding

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperjump/finsum/internal/config"
	"github.com/hyperjump/finsum/internal/vector"
	"github.com/hyperjump/finsum/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dim       int
	batchSize int
	limiter   *rate.Limiter
}

// NewOpenAIEmbedder creates an embedder for cfg.Model. The API key is read from the
// environment variable named by cfg.APIKeyEnv; cfg.BaseURL overrides the OpenAI endpoint.
// Requests are throttled to cfg.RequestsPerSecond when it is positive.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig, dim int) (*OpenAIEmbedder, error) {
	key := config.APIKey(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%s environment variable not set", cfg.APIKeyEnv)
	}
	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}
	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dim:       dim,
		batchSize: batch,
		limiter:   utils.NewRateLimiter(cfg.RequestsPerSecond),
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most batchSize inputs. Results keep input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.request(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding API error: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) != e.dim {
			return nil, fmt.Errorf("embedding API returned dimension %d, expected %d", len(d.Embedding), e.dim)
		}
		v := make([]float32, len(d.Embedding))
		for j := range d.Embedding {
			v[j] = float32(d.Embedding[j])
		}
		vector.Normalize(v)
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dim
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
