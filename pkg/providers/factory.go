package providers

import (
	"fmt"

	"github.com/kissan-ai/kissan/pkg/config"
)

// CreateAdvisor builds the configured advisor, wrapped in a FallbackAdvisor
// when a fallback provider is set.
func CreateAdvisor(cfg *config.Config) (Advisor, error) {
	primary, err := createNamed(cfg, cfg.Advisor.Provider, cfg.Advisor.Model)
	if err != nil {
		return nil, err
	}
	if cfg.Advisor.Fallback == "" || cfg.Advisor.Fallback == cfg.Advisor.Provider {
		return primary, nil
	}

	fallback, err := createNamed(cfg, cfg.Advisor.Fallback, cfg.Advisor.FallbackModel)
	if err != nil {
		return nil, err
	}
	return NewFallbackAdvisor(primary, fallback), nil
}

func createNamed(cfg *config.Config, name, model string) (Advisor, error) {
	switch name {
	case "anthropic", "claude":
		return NewClaudeAdvisor(cfg.Advisor.AnthropicAPIKey, model, cfg.Advisor.AnthropicBaseURL), nil
	case "openai":
		return NewOpenAIAdvisor(cfg.Advisor.OpenAIAPIKey, model, cfg.Advisor.OpenAIBaseURL), nil
	case "mock":
		return NewMockAdvisor(), nil
	default:
		return nil, fmt.Errorf("unknown advisor provider %q", name)
	}
}
