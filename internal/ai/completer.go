// Package ai wraps the chat-completion providers used for reply
// suggestions and message triage.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/rukayathamzat/Airhost2402-sub001/internal/config"
)

var (
	// ErrNotConfigured is returned when the selected provider has no API key.
	ErrNotConfigured = errors.New("ai: provider not configured")
	// ErrEmptyResponse is returned when the provider produced no text.
	ErrEmptyResponse = errors.New("ai: empty response")
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a chat request.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatRequest is a provider-neutral completion request.
type ChatRequest struct {
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float32
	// JSON asks the provider for a single JSON object.
	JSON bool
}

// Completer produces a completion for a chat request.
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
	Provider() string
}

// New builds the completer selected by AI_PROVIDER.
func New(ctx context.Context, cfg *config.Config) (Completer, error) {
	switch cfg.AIProvider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, ErrNotConfigured
		}
		return NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case ProviderOpenAI, "":
		if cfg.OpenAIAPIKey == "" {
			return nil, ErrNotConfigured
		}
		return NewOpenAICompleter(OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			OrgID:  cfg.OpenAIOrgID,
			Model:  cfg.OpenAIModel,
		}), nil
	default:
		return nil, fmt.Errorf("ai: unknown provider %q", cfg.AIProvider)
	}
}
