package embedprovider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"mindloop/internal/chatmodel"
)

// Config is the subset of internal/config.Config this client needs.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Dim     int
}

// OpenAIClient is an openai-go/v2-backed Provider, using the SDK's
// standard option.WithAPIKey / option.WithBaseURL construction.
type OpenAIClient struct {
	sdk openai.Client
	cfg Config
}

func New(cfg Config) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	return &OpenAIClient{sdk: openai.NewClient(opts...), cfg: cfg}
}

func (c *OpenAIClient) Dimension() int { return c.cfg.Dim }

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.sdk.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.cfg.Model),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai embed: %v", chatmodel.ErrTransient, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: openai embed: empty response", chatmodel.ErrTransient)
	}
	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}
