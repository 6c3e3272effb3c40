// Package generate calls the text-generation service and guards, classifies
// and deduplicates its output.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellarlinkco/moodclaw/internal/config"
)

// Generator turns a rendered prompt into reply text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Generate(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

// New builds the provider selected by cfg.Provider.Type.
func New(ctx context.Context, cfg *config.Config) (Generator, error) {
	temp := cfg.Agent.Temperature
	switch strings.ToLower(cfg.Provider.Type) {
	case "", "gemini":
		return NewGemini(ctx, GeminiOptions{
			APIKey:      cfg.Provider.APIKey,
			BaseURL:     cfg.Provider.BaseURL,
			Model:       cfg.Agent.Model,
			MaxTokens:   cfg.Agent.MaxTokens,
			Temperature: temp,
		})
	case "anthropic":
		return NewAnthropic(SDKOptions{
			APIKey:      cfg.Provider.APIKey,
			BaseURL:     cfg.Provider.BaseURL,
			Model:       cfg.Agent.Model,
			MaxTokens:   cfg.Agent.MaxTokens,
			Temperature: temp,
		}), nil
	case "openai":
		return NewOpenAI(SDKOptions{
			APIKey:      cfg.Provider.APIKey,
			BaseURL:     cfg.Provider.BaseURL,
			Model:       cfg.Agent.Model,
			MaxTokens:   cfg.Agent.MaxTokens,
			Temperature: temp,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Provider.Type)
	}
}
