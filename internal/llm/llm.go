// Package llm wraps the chat-model providers behind one small text
// generation capability. The pipeline never sees provider SDKs, only
// Generator, so tests inject fakes and provider switches stay local.
package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/irwinlee/tradecouncil/config"
)

// Generator produces text from a conversation. It may fail, time out, or be
// rate limited; callers decide what that means for their stage.
type Generator interface {
	Generate(ctx context.Context, messages []*schema.Message) (string, error)
}

// ChatGenerator adapts an eino chat model to Generator.
type ChatGenerator struct {
	model model.BaseChatModel
}

// NewQuickGenerator builds the fast model used for analyst reports and
// debate turns.
func NewQuickGenerator(ctx context.Context, cfg *config.Config) (*ChatGenerator, error) {
	return newGenerator(ctx, cfg, cfg.QuickThinkLLM)
}

// NewDeepGenerator builds the heavier model reserved for the final decision
// synthesis. Falls back to the quick model when deep_think_llm is unset.
func NewDeepGenerator(ctx context.Context, cfg *config.Config) (*ChatGenerator, error) {
	modelName := cfg.DeepThinkLLM
	if modelName == "" {
		modelName = cfg.QuickThinkLLM
	}
	return newGenerator(ctx, cfg, modelName)
}

// newGenerator builds the configured provider's chat model. Missing API keys
// fail fast here, before any run starts.
func newGenerator(ctx context.Context, cfg *config.Config, modelName string) (*ChatGenerator, error) {
	maxTokens := 8192

	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BackendURL,
			APIKey:    cfg.OpenAIAPIKey,
			Model:     modelName,
			MaxTokens: &maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai chat model: %w", err)
		}
		return &ChatGenerator{model: cm}, nil

	case "deepseek":
		if cfg.DeepSeekAPIKey == "" {
			return nil, fmt.Errorf("DEEPSEEK_API_KEY is required for the deepseek provider")
		}
		baseURL := cfg.BackendURL
		if baseURL == "" {
			baseURL = "https://api.deepseek.com/v1"
		}
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			BaseURL:   baseURL,
			APIKey:    cfg.DeepSeekAPIKey,
			Model:     modelName,
			MaxTokens: maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("create deepseek chat model: %w", err)
		}
		return &ChatGenerator{model: cm}, nil

	default:
		return nil, fmt.Errorf("unknown llm_provider %q", cfg.LLMProvider)
	}
}

func (g *ChatGenerator) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	out, err := g.model.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", fmt.Errorf("chat model returned no message")
	}
	return out.Content, nil
}
