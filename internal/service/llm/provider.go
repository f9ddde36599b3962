// Package llm wraps the model-provider boundary: provider selection per the
// BYOK advanced settings, generation, and tolerant response handling.
package llm

import "context"

// Provider is one model backend capable of text generation.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
	Ping(ctx context.Context) bool
}
