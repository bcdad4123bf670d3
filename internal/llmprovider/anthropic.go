package llmprovider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"mindloop/internal/chatmodel"
	"mindloop/internal/logging"
)

// Config is the subset of internal/config.Config this client needs.
type Config struct {
	APIKey         string
	BaseURL        string // optional, for proxies/self-hosted gateways
	DefaultModel   string
	AntiInjectionModel string
	CachePrompt    bool
}

// Client is an anthropic-sdk-go-backed Provider.
type Client struct {
	sdk    anthropic.Client
	cfg    Config
}

// New constructs a Client using the SDK's standard option.WithAPIKey /
// option.WithBaseURL construction, with a configured default model
// when none is set.
func New(cfg Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &Client{sdk: anthropic.NewClient(opts...), cfg: cfg}
}

func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, bool, error) {
	model := opts.Model
	if model == "" {
		model = c.cfg.DefaultModel
	}
	if opts.RequestType == "anti_injection" && c.cfg.AntiInjectionModel != "" {
		model = c.cfg.AntiInjectionModel
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		logging.Log.WithError(err).WithField("request_type", opts.RequestType).
			Warn("llmprovider: anthropic call failed")
		return "", false, fmt.Errorf("%w: anthropic generate: %v", chatmodel.ErrTransient, err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", false, nil
	}
	return text, true, nil
}
