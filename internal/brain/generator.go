package brain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ciphercore.app/convo/common/llm"
	"ciphercore.app/convo/common/logger"
)

const (
	EmptyResponseText  = "Empty response from the generation service."
	AuthFailureText    = "Authentication with the generation service failed. Check the API key."
	RateLimitedText    = "Generation rate limit reached after several attempts. Please try again later."
	OverloadedText     = "Generation service overloaded after several attempts."
	CanceledText       = "Generation canceled before a reply arrived."
	unexpectedTextTmpl = "Unexpected generation error after several attempts: %v"
)

// RetryPolicy controls GenerationClient. BaseDelay doubles on every rate-limit retry
// and is used unchanged for overload and other transient failures.
type RetryPolicy struct {
	Cooldown   time.Duration
	BaseDelay  time.Duration
	MaxRetries int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Cooldown:   10 * time.Second,
		BaseDelay:  10 * time.Second,
		MaxRetries: 3,
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Reply is the outcome of one Generate call. Failures are values: a degraded
// reply carries a readable error text in Text and the cause in Err.
type Reply struct {
	Text     string
	Degraded bool
	Attempts int
	Err      error
}

type GenerationClient struct {
	gen    llm.Generator
	policy RetryPolicy
	sleep  Sleeper
}

func NewGenerationClient(gen llm.Generator, policy RetryPolicy) *GenerationClient {
	return &GenerationClient{gen: gen, policy: policy, sleep: ContextSleep}
}

// WithSleeper replaces the sleep function, mainly so tests can record delays.
func (c *GenerationClient) WithSleeper(s Sleeper) *GenerationClient {
	c.sleep = s
	return c
}

// Generate calls the remote service, retrying rate limits with a doubling delay
// and other transient failures with a constant one. Authentication failures
// are never retried. It never returns an error: exhaustion yields a degraded Reply.
func (c *GenerationClient) Generate(ctx context.Context, prompt string) Reply {
	delay := c.policy.BaseDelay
	maxAttempts := c.policy.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		slog.DebugContext(ctx, "sending prompt",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"prompt", logger.Truncate(prompt, 100))

		text, err := c.gen.Generate(ctx, prompt)

		// Courtesy pause after every attempt, successful or not.
		if pauseErr := c.pause(ctx, c.policy.Cooldown); pauseErr != nil {
			slog.WarnContext(ctx, "generation canceled during cooldown", "error", pauseErr, "attempt", attempt)
			return Reply{Text: CanceledText, Degraded: true, Attempts: attempt, Err: pauseErr}
		}

		if err == nil {
			if text == "" {
				slog.WarnContext(ctx, "generation service returned an empty response")
				return Reply{Text: EmptyResponseText, Attempts: attempt}
			}
			return Reply{Text: text, Attempts: attempt}
		}

		lastErr = err
		// Only the caller's context stops retrying. A provider request timeout
		// also matches context.DeadlineExceeded but is an ordinary failure.
		if ctx.Err() != nil {
			slog.WarnContext(ctx, "generation canceled", "error", err, "attempt", attempt)
			return Reply{Text: CanceledText, Degraded: true, Attempts: attempt, Err: err}
		}

		kind := llm.KindOf(err)
		slog.ErrorContext(ctx, "generation attempt failed",
			"error", err,
			"kind", kind.String(),
			"attempt", attempt)

		if kind == llm.KindUnauthenticated {
			return Reply{Text: AuthFailureText, Degraded: true, Attempts: attempt, Err: err}
		}

		if attempt == maxAttempts {
			break
		}

		if kind == llm.KindRateLimited {
			delay *= 2
		}
		slog.InfoContext(ctx, "retrying generation",
			"kind", kind.String(),
			"delay", delay)

		if err := c.pause(ctx, delay); err != nil {
			return Reply{Text: CanceledText, Degraded: true, Attempts: attempt, Err: err}
		}
	}

	return Reply{
		Text:     exhaustedText(lastErr),
		Degraded: true,
		Attempts: maxAttempts,
		Err:      lastErr,
	}
}

func (c *GenerationClient) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return c.sleep(ctx, d)
}

func exhaustedText(err error) string {
	switch llm.KindOf(err) {
	case llm.KindRateLimited:
		return RateLimitedText
	case llm.KindOverloaded:
		return OverloadedText
	default:
		return fmt.Sprintf(unexpectedTextTmpl, err)
	}
}
