package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrMissingAPIKey = errors.New("API key is required")

// Generator sends one free-form prompt and returns the model's text.
// An empty string with a nil error means the service answered without content.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

type Config struct {
	Provider  string // "openai", "anthropic" or "gemini"
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// New returns the Generator for cfg.Provider.
func New(cfg Config) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	switch cfg.Provider {
	case "openai":
		return newOpenAIGenerator(cfg), nil
	case "anthropic":
		return newAnthropicGenerator(cfg), nil
	case "gemini", "":
		// the client only resolves configuration here, no request is made
		gen, err := newGeminiGenerator(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// ErrorKind is the retry-relevant class of a failed generation call.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindRateLimited
	KindOverloaded
	KindUnauthenticated
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindOverloaded:
		return "overloaded"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "other"
	}
}

// GenerationError is returned by every provider so callers can branch on Kind
// without knowing which SDK produced the failure.
type GenerationError struct {
	Kind       ErrorKind
	StatusCode int // 0 when the request never got an HTTP response
	Provider   string
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s generate (status %d, %s): %v", e.Provider, e.StatusCode, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s generate (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// KindOf reports the ErrorKind of err. Errors that are not GenerationErrors are KindOther.
func KindOf(err error) ErrorKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return KindOther
}

// KindForStatus maps an HTTP status code to an ErrorKind.
// 529 is Anthropic's "overloaded" status.
func KindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthenticated
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, 529:
		return KindOverloaded
	default:
		return KindOther
	}
}

func wrapStatus(provider string, status int, err error) *GenerationError {
	return &GenerationError{
		Kind:       KindForStatus(status),
		StatusCode: status,
		Provider:   provider,
		Err:        err,
	}
}
