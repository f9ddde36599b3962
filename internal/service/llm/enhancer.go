package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/veloform/activity-enhancer-go/internal/constants"
	"github.com/veloform/activity-enhancer-go/internal/domain"
	"github.com/veloform/activity-enhancer-go/internal/prompt"
	"github.com/veloform/activity-enhancer-go/internal/util"
	"github.com/veloform/activity-enhancer-go/pkg/errors"
	"go.uber.org/zap"
)

// Enhancer turns extracted activity data into an enhanced title and
// description. Per-call provider selection honors the user's BYOK advanced
// settings; without them the default chain runs openai, then gemini, then the
// stub so the flow always completes.
type Enhancer struct {
	openai         *OpenAIProvider
	gemini         *GeminiProvider
	stub           *StubProvider
	logger         *zap.Logger
	circuitBreaker *util.CircuitBreaker
}

type EnhancerConfig struct {
	OpenAIAPIKey       string
	GeminiAPIKey       string
	DefaultOpenAIModel string
	DefaultGeminiModel string
}

func NewEnhancer(ctx context.Context, cfg EnhancerConfig, logger *zap.Logger) (*Enhancer, error) {
	defaultOpenAI := cfg.DefaultOpenAIModel
	if defaultOpenAI == "" {
		defaultOpenAI = "gpt-5-mini"
	}
	defaultGemini := cfg.DefaultGeminiModel
	if defaultGemini == "" {
		defaultGemini = "gemini-2.5-flash"
	}

	openaiProvider := NewOpenAIProvider(cfg.OpenAIAPIKey, "", defaultOpenAI, logger)
	if openaiProvider != nil {
		logger.Info("OpenAI provider enabled", zap.String("model", defaultOpenAI))
	} else {
		logger.Info("OpenAI provider disabled (no API key)")
	}

	var geminiProvider *GeminiProvider
	if cfg.GeminiAPIKey != "" {
		var err error
		geminiProvider, err = NewGeminiProvider(ctx, cfg.GeminiAPIKey, defaultGemini, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
		}
		logger.Info("Gemini provider enabled", zap.String("model", defaultGemini))
	} else {
		logger.Info("Gemini provider disabled (no API key)")
	}

	e := &Enhancer{
		openai: openaiProvider,
		gemini: geminiProvider,
		stub:   NewStubProvider(),
		logger: logger,
	}

	e.circuitBreaker = util.NewCircuitBreaker(
		constants.CircuitBreakerConfig.FailureThreshold,
		constants.CircuitBreakerConfig.ResetTimeout,
		constants.CircuitBreakerConfig.HealthCheckInterval,
		e.healthCheckPing,
		logger,
	)

	return e, nil
}

// Enhance runs the full prompt/call/parse pipeline for one activity. Model
// output that fails to parse degrades to the original text rather than
// surfacing an error.
func (e *Enhancer) Enhance(ctx context.Context, activity domain.ActivityData, settings domain.Settings, advanced domain.AdvancedSettings) domain.EnhancementResult {
	return e.enhance(ctx, prompt.Build(activity, settings), activity, advanced)
}

// EnhanceDetailed is Enhance with the richer details-page extraction feeding
// the prompt.
func (e *Enhancer) EnhanceDetailed(ctx context.Context, extended domain.ExtendedActivityData, settings domain.Settings, advanced domain.AdvancedSettings) domain.EnhancementResult {
	return e.enhance(ctx, prompt.BuildDetailed(extended, settings), extended.ActivityData, advanced)
}

func (e *Enhancer) enhance(ctx context.Context, promptText string, original domain.ActivityData, advanced domain.AdvancedSettings) domain.EnhancementResult {
	provider := e.selectProvider(ctx, advanced)

	text, err := e.generate(ctx, provider, promptText)
	if err != nil {
		modelErr := errors.NewModelCallError("enhancement request failed", provider.Name(), err)
		e.logger.Error("Enhancement failed",
			zap.String("provider", provider.Name()),
			zap.Error(modelErr),
		)
		return domain.EnhancementResult{Success: false, Error: modelErr.Error()}
	}

	title, description := prompt.ParseEnhanced(text, original)
	return domain.EnhancementResult{
		Title:       title,
		Description: description,
		Success:     true,
	}
}

func (e *Enhancer) generate(ctx context.Context, provider Provider, promptText string) (string, error) {
	if !e.circuitBreaker.CanExecute() {
		status := e.circuitBreaker.GetStatus()
		nextRetry := "unknown"
		if status.NextRetryTime != nil {
			nextRetry = status.NextRetryTime.Format("15:04:05")
		}

		e.logger.Error("Model service unavailable (Circuit OPEN)",
			zap.String("state", status.State.String()),
			zap.Int("failure_count", status.FailureCount),
			zap.String("next_retry", nextRetry),
		)

		return "", fmt.Errorf("model service temporarily unavailable, next retry at %s", nextRetry)
	}

	text, err := provider.Generate(ctx, promptText)
	if err != nil {
		e.recordFailure(err)
		if e.isServiceFailure(err) {
			return "", fmt.Errorf("model service is having temporary trouble, try again shortly: %w", err)
		}
		return "", err
	}

	e.circuitBreaker.RecordSuccess()
	return text, nil
}

// selectProvider resolves advanced settings to a concrete provider. BYOK
// providers are built per call because their key and endpoint live in user
// settings, not process config.
func (e *Enhancer) selectProvider(_ context.Context, advanced domain.AdvancedSettings) Provider {
	if advanced.APIKey != "" {
		switch advanced.Provider {
		case domain.ProviderOpenAI:
			if p := NewOpenAIProvider(advanced.APIKey, advanced.Endpoint, "", e.logger); p != nil {
				return p
			}
		case domain.ProviderAnthropic:
			if p := NewHTTPProvider("anthropic", StyleAnthropic, advanced.Endpoint, advanced.APIKey, "", e.logger); p != nil {
				return p
			}
		case domain.ProviderCustom:
			if p := NewHTTPProvider("custom", StyleOpenAICompat, advanced.Endpoint, advanced.APIKey, "", e.logger); p != nil {
				return p
			}
		case domain.ProviderGemini:
			// Gemini BYOK needs a fresh client per key; fall through to the
			// default chain when construction fails.
			if p, err := NewGeminiProvider(context.Background(), advanced.APIKey, "", e.logger); err == nil {
				return p
			}
		}
		e.logger.Warn("Advanced provider settings unusable, falling back",
			zap.String("provider", string(advanced.Provider)),
		)
	}

	if e.openai != nil {
		return e.openai
	}
	if e.gemini != nil {
		return e.gemini
	}
	return e.stub
}

func (e *Enhancer) recordFailure(err error) {
	if err == nil {
		return
	}

	if !e.isServiceFailure(err) {
		return
	}

	timeout := constants.CircuitBreakerConfig.ResetTimeout
	if e.isRateLimitError(err) {
		timeout = constants.CircuitBreakerConfig.RateLimitTimeout
	}

	e.circuitBreaker.RecordFailure(timeout)
}

func (e *Enhancer) healthCheckPing() bool {
	e.logger.Info("Health Check: Testing model providers...")

	ctx, cancel := context.WithTimeout(context.Background(), constants.CircuitBreakerConfig.HealthCheckTimeout)
	defer cancel()

	openaiOK := false
	if e.openai != nil {
		openaiOK = e.openai.Ping(ctx)
	}

	geminiOK := false
	if e.gemini != nil {
		geminiOK = e.gemini.Ping(ctx)
	}

	// The stub never fails, but a stub-only setup should not mask real
	// provider outages either, so health reflects configured providers only.
	isHealthy := openaiOK || geminiOK || (e.openai == nil && e.gemini == nil)

	e.logger.Info("Health Check: Result",
		zap.Bool("openai", openaiOK),
		zap.Bool("gemini", geminiOK),
		zap.Bool("healthy", isHealthy),
	)

	return isHealthy
}

func (e *Enhancer) isServiceFailure(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return true
	}

	if e.isRateLimitError(err) {
		return true
	}

	statusRegex := regexp.MustCompile(`\b(5\d{2})\b`)
	if statusRegex.MatchString(msg) {
		return true
	}

	geminiCodeRegex := regexp.MustCompile(`"code":(\d{3})`)
	if matches := geminiCodeRegex.FindStringSubmatch(msg); len(matches) > 1 {
		if code, convErr := strconv.Atoi(matches[1]); convErr == nil {
			return code >= 500 && code < 600
		}
	}

	openaiCodeRegex := regexp.MustCompile(`^(\d{3})\s`)
	if matches := openaiCodeRegex.FindStringSubmatch(msg); len(matches) > 1 {
		if code, convErr := strconv.Atoi(matches[1]); convErr == nil {
			return code >= 500 && code < 600
		}
	}

	return false
}

func (e *Enhancer) isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	if strings.Contains(msg, "429") || strings.Contains(msg, "Rate limit") || strings.Contains(msg, "quota") {
		return true
	}

	return false
}

func (e *Enhancer) GetCircuitStatus() util.CircuitBreakerStatus {
	return e.circuitBreaker.GetStatus()
}

func (e *Enhancer) ResetCircuit() {
	e.circuitBreaker.Reset()
}
