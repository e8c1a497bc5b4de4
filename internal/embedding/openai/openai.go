package openai

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client produces embeddings through an OpenAI-compatible API.
type Client struct {
	client    *openai.Client
	model     string
	dimension int
	timeout   time.Duration
}

// Config configures the embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Dimension int
	Timeout   time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	occ := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		occ.BaseURL = cfg.BaseURL
	}
	return &Client{
		client:    openai.NewClientWithConfig(occ),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		timeout:   cfg.Timeout,
	}, nil
}

func (c *Client) Name() string { return "openai" }

func (c *Client) Dimension() int { return c.dimension }

// Embed returns a single L2-normalized embedding vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one API call, preserving input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(c.model),
		Input:      texts,
		Dimensions: c.dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		v := make([]float32, len(d.Embedding))
		for i := range d.Embedding {
			v[i] = float32(d.Embedding[i])
		}
		l2normalize(v)
		out[d.Index] = v
	}
	return out, nil
}

// l2normalize scales a vector to unit length in place.
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
