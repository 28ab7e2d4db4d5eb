package bootstrap

import (
	"fmt"

	"github.com/kirillkom/rx-crosscheck/internal/config"
	"github.com/kirillkom/rx-crosscheck/internal/core/domain"
	"github.com/kirillkom/rx-crosscheck/internal/core/ports"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/llm/openai"
	"github.com/kirillkom/rx-crosscheck/internal/infrastructure/resilience"
	"github.com/kirillkom/rx-crosscheck/internal/observability/metrics"
)

// NewExecutor builds the resilience executor shared by provider adapters.
func NewExecutor(cfg config.Config, hooks resilience.Hooks) *resilience.Executor {
	policy := resilience.DefaultPolicy()
	policy.Retry.MaxAttempts = cfg.LLMRetryMaxAttempts
	policy.Breaker.Enabled = cfg.LLMBreakerEnabled
	return resilience.NewExecutor(policy, hooks)
}

// ResilienceHooks feeds executor events into Prometheus. A nil collector
// yields empty hooks.
func ResilienceHooks(m *metrics.ResilienceMetrics) resilience.Hooks {
	if m == nil {
		return resilience.Hooks{}
	}
	return resilience.Hooks{
		OnRetry: func(operation string, _ int, _ error) {
			m.RecordRetry(operation)
		},
		OnStateChange: func(operation, _, to string) {
			m.RecordStateChange(operation, to)
		},
	}
}

// NewCompleter returns the Completer of a provider. The comparison role uses
// the dedicated OpenAI comparator model; other providers reuse their model.
func NewCompleter(provider string, cfg config.Config, executor *resilience.Executor, comparator bool) (ports.Completer, error) {
	timeout := cfg.ProviderTimeout()
	switch provider {
	case config.ProviderOpenAI:
		model := cfg.OpenAIModel
		if comparator {
			model = cfg.OpenAIComparatorModel
		}
		return openai.New(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   model,
			Timeout: timeout,
		}, executor), nil
	case config.ProviderGemini:
		return gemini.New(gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
			Timeout: timeout,
		}, executor), nil
	case config.ProviderOllama:
		return ollama.New(cfg.OllamaURL, cfg.OllamaModel, timeout, executor), nil
	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "new completer", fmt.Errorf("unknown provider %q", provider))
	}
}

// ProviderModel names the model a provider slot will call, for diagnostics.
func ProviderModel(provider string, cfg config.Config, comparator bool) string {
	switch provider {
	case config.ProviderOpenAI:
		if comparator {
			return cfg.OpenAIComparatorModel
		}
		return cfg.OpenAIModel
	case config.ProviderGemini:
		return cfg.GeminiModel
	case config.ProviderOllama:
		return cfg.OllamaModel
	default:
		return ""
	}
}
