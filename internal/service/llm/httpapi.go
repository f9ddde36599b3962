package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veloform/activity-enhancer-go/internal/constants"
	"github.com/veloform/activity-enhancer-go/internal/util"
	"go.uber.org/zap"
)

const anthropicDefaultEndpoint = "https://api.anthropic.com/v1/messages"

// EndpointStyle selects the wire shape of an HTTP endpoint provider.
type EndpointStyle string

const (
	StyleAnthropic EndpointStyle = "anthropic"
	// StyleOpenAICompat covers the BYOK "custom" selection: any endpoint
	// speaking the common chat-completions shape.
	StyleOpenAICompat EndpointStyle = "openai-compat"
)

// HTTPProvider calls a user-supplied model endpoint. Anthropic has no Go SDK
// in our stack, so its messages API is spoken directly; custom endpoints get
// the chat-completions shape.
type HTTPProvider struct {
	name     string
	style    EndpointStyle
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	logger   *zap.Logger
}

func NewHTTPProvider(name string, style EndpointStyle, endpoint, apiKey, model string, logger *zap.Logger) *HTTPProvider {
	if endpoint == "" && style == StyleAnthropic {
		endpoint = anthropicDefaultEndpoint
	}
	if endpoint == "" {
		return nil
	}
	if model == "" {
		if style == StyleAnthropic {
			model = "claude-sonnet-4-5"
		} else {
			model = "default"
		}
	}

	return &HTTPProvider{
		name:     name,
		style:    style,
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: constants.ProviderConfig.RequestTimeout},
		logger:   logger,
	}
}

func (h *HTTPProvider) Name() string {
	return h.name
}

func (h *HTTPProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if h == nil {
		return "", fmt.Errorf("HTTP provider not initialized")
	}

	body, err := h.requestBody(prompt)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	switch h.style {
	case StyleAnthropic:
		req.Header.Set("x-api-key", h.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	default:
		if h.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+h.apiKey)
		}
	}

	h.logger.Debug("Generating with HTTP endpoint",
		zap.String("provider", h.name),
		zap.String("endpoint", h.endpoint),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("HTTP provider request failed", zap.String("provider", h.name), zap.Error(err))
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%d %s: %s", resp.StatusCode, h.name, util.TruncateString(string(payload), 200))
	}

	text, err := h.extractText(payload)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("empty response from %s", h.name)
	}

	h.logger.Debug("HTTP provider response received",
		zap.String("provider", h.name),
		zap.Int("length", len(text)),
	)
	return text, nil
}

func (h *HTTPProvider) Ping(ctx context.Context) bool {
	if h == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := h.Generate(ctx, "ping")
	return err == nil
}

func (h *HTTPProvider) requestBody(prompt string) ([]byte, error) {
	switch h.style {
	case StyleAnthropic:
		return json.Marshal(map[string]any{
			"model":      h.model,
			"max_tokens": constants.ProviderConfig.MaxOutputTokens,
			"system":     "You must respond with valid JSON only. Do not include any text outside the JSON object.",
			"messages": []map[string]any{
				{"role": "user", "content": prompt},
			},
		})
	default:
		return json.Marshal(map[string]any{
			"model":      h.model,
			"max_tokens": constants.ProviderConfig.MaxOutputTokens,
			"messages": []map[string]any{
				{"role": "system", "content": "You must respond with valid JSON only. Do not include any text outside the JSON object."},
				{"role": "user", "content": prompt},
			},
		})
	}
}

func (h *HTTPProvider) extractText(payload []byte) (string, error) {
	switch h.style {
	case StyleAnthropic:
		var parsed struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return "", fmt.Errorf("invalid %s response: %w", h.name, err)
		}
		for _, block := range parsed.Content {
			if block.Type == "text" && block.Text != "" {
				return block.Text, nil
			}
		}
		return "", nil
	default:
		var parsed struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return "", fmt.Errorf("invalid %s response: %w", h.name, err)
		}
		if len(parsed.Choices) == 0 {
			return "", nil
		}
		return parsed.Choices[0].Message.Content, nil
	}
}
