// Package summarizer produces short natural-language descriptions of unified
// event details, either through a chat-completions API or offline.
package summarizer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Providers.
const (
	ProviderOpenAI  = "openai"
	ProviderOffline = "offline"
)

// ErrorPrefix marks summaries that could not be generated.
const ErrorPrefix = "[LLM ERROR]"

// PromptTemplate is filled with the event details.
const PromptTemplate = "You are a security analyst. Explain what the following event indicates:\n\n%s\n\nKeep the summary short and behavior-focused."

// Summarizer turns event details into a summary.
type Summarizer interface {
	Summarize(ctx context.Context, details string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	Endpoint    string
	Model       string
	Temperature float64
	MaxTokens   int
	APIKey      string
	Timeout     time.Duration
	Breaker     BreakerConfig
}

// BreakerConfig mirrors gobreaker settings.
type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// New returns the summarizer for cfg.Provider.
func New(cfg Config) (Summarizer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg)
	case ProviderOffline:
		return Offline{}, nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider: %s", cfg.Provider)
	}
}

// APIKeyFromEnv reads the API key from the named environment variable.
func APIKeyFromEnv(name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}

// Prompt renders the prompt for one event.
func Prompt(details string) string {
	return fmt.Sprintf(PromptTemplate, details)
}

// ErrorSummary renders a failed summarization the way it is stored.
func ErrorSummary(err error) string {
	return ErrorPrefix + " " + err.Error()
}
