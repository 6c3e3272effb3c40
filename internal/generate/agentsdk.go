package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/cexll/agentsdk-go/pkg/model"
)

type SDKOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// SDKModel generates replies through an agentsdk-go model provider.
type SDKModel struct {
	name      string
	provider  model.Provider
	maxTokens int
}

func NewAnthropic(opts SDKOptions) *SDKModel {
	return &SDKModel{
		name: "anthropic",
		provider: &model.AnthropicProvider{
			APIKey:      opts.APIKey,
			BaseURL:     opts.BaseURL,
			ModelName:   opts.Model,
			MaxTokens:   opts.MaxTokens,
			Temperature: temperature(opts.Temperature),
		},
		maxTokens: opts.MaxTokens,
	}
}

func NewOpenAI(opts SDKOptions) *SDKModel {
	return &SDKModel{
		name: "openai",
		provider: &model.OpenAIProvider{
			APIKey:      opts.APIKey,
			BaseURL:     opts.BaseURL,
			ModelName:   opts.Model,
			MaxTokens:   opts.MaxTokens,
			Temperature: temperature(opts.Temperature),
		},
		maxTokens: opts.MaxTokens,
	}
}

// NewSDKModel wraps an arbitrary provider, mainly for tests.
func NewSDKModel(name string, p model.Provider, maxTokens int) *SDKModel {
	return &SDKModel{name: name, provider: p, maxTokens: maxTokens}
}

func temperature(t float64) *float64 {
	if t <= 0 {
		return nil
	}
	return &t
}

func (m *SDKModel) Generate(ctx context.Context, prompt string) (string, error) {
	mdl, err := m.provider.Model(ctx)
	if err != nil {
		return "", fmt.Errorf("create %s model: %w", m.name, err)
	}
	resp, err := mdl.Complete(ctx, model.Request{
		Messages:  []model.Message{{Role: "user", Content: prompt}},
		MaxTokens: m.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s complete: %w", m.name, err)
	}
	if resp == nil {
		return "", &Error{Kind: KindMalformed, Err: ErrEmptyReply}
	}
	text := strings.TrimSpace(resp.Message.TextContent())
	if text == "" {
		return "", &Error{Kind: KindMalformed, Err: ErrEmptyReply}
	}
	return text, nil
}
