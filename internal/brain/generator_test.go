package brain_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ciphercore.app/convo/common/llm"
	"ciphercore.app/convo/internal/brain"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func genErr(kind llm.ErrorKind) error {
	return &llm.GenerationError{Kind: kind, Provider: "test", Err: errors.New(kind.String())}
}

var _ = Describe("GenerationClient", func() {
	var (
		ctx      context.Context
		sleeper  *sleepRecorder
		policy   brain.RetryPolicy
		scripted *scriptedLLM
	)

	newClient := func() *brain.GenerationClient {
		return brain.NewGenerationClient(scripted, policy).WithSleeper(sleeper.Sleep)
	}

	BeforeEach(func() {
		ctx = context.Background()
		sleeper = &sleepRecorder{}
		policy = brain.RetryPolicy{Cooldown: 0, BaseDelay: time.Second, MaxRetries: 3}
	})

	It("returns the first successful reply", func() {
		scripted = &scriptedLLM{steps: []llmStep{{text: "hello"}}}

		reply := newClient().Generate(ctx, "prompt")

		Expect(reply.Text).To(Equal("hello"))
		Expect(reply.Degraded).To(BeFalse())
		Expect(reply.Attempts).To(Equal(1))
		Expect(scripted.calls).To(Equal(1))
		Expect(sleeper.slept).To(BeEmpty())
	})

	It("sleeps the cooldown after every attempt", func() {
		policy.Cooldown = 500 * time.Millisecond
		scripted = &scriptedLLM{steps: []llmStep{{err: genErr(llm.KindRateLimited)}, {text: "ok"}}}

		reply := newClient().Generate(ctx, "prompt")

		Expect(reply.Text).To(Equal("ok"))
		Expect(sleeper.slept).To(Equal([]time.Duration{
			500 * time.Millisecond, // cooldown after the failed attempt
			2 * time.Second,        // doubled backoff
			500 * time.Millisecond, // cooldown after the successful attempt
		}))
	})

	It("treats an empty payload as a successful sentinel reply", func() {
		scripted = &scriptedLLM{steps: []llmStep{{text: ""}}}

		reply := newClient().Generate(ctx, "prompt")

		Expect(reply.Text).To(Equal(brain.EmptyResponseText))
		Expect(reply.Degraded).To(BeFalse())
		Expect(scripted.calls).To(Equal(1))
	})

	It("doubles the delay on every rate limit", func() {
		scripted = &scriptedLLM{steps: []llmStep{
			{err: genErr(llm.KindRateLimited)},
			{err: genErr(llm.KindRateLimited)},
			{text: "finally"},
		}}

		reply := newClient().Generate(ctx, "prompt")

		Expect(reply.Text).To(Equal("finally"))
		Expect(reply.Attempts).To(Equal(3))
		Expect(sleeper.slept).To(Equal([]time.Duration{2 * time.Second, 4 * time.Second}))
	})

	It("retries overload with a constant delay", func() {
		scripted = &scriptedLLM{steps: []llmStep{
			{err: genErr(llm.KindOverloaded)},
			{err: genErr(llm.KindOverloaded)},
			{text: "ok"},
		}}

		reply := newClient().Generate(ctx, "prompt")

		Expect(reply.Text).To(Equal("ok"))
		Expect(sleeper.slept).To(Equal([]time.Duration{time.Second, time.Second}))
	})

	It("does not retry authentication failures", func() {
		scripted = &scriptedLLM{steps: []llmStep{{err: genErr(llm.KindUnauthenticated)}, {text: "never"}}}

		reply := newClient().Generate(ctx, "prompt")

		Expect(reply.Text).To(Equal(brain.AuthFailureText))
		Expect(reply.Degraded).To(BeTrue())
		Expect(scripted.calls).To(Equal(1))
		Expect(sleeper.slept).To(BeEmpty())
	})

	It("gives up with a descriptive text after the last retry", func() {
		scripted = &scriptedLLM{steps: []llmStep{{err: genErr(llm.KindRateLimited)}}}

		reply := newClient().Generate(ctx, "prompt")

		Expect(reply.Degraded).To(BeTrue())
		Expect(reply.Text).To(Equal(brain.RateLimitedText))
		Expect(reply.Attempts).To(Equal(4))
		Expect(scripted.calls).To(Equal(4))
		Expect(sleeper.slept).To(Equal([]time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}))
		Expect(llm.KindOf(reply.Err)).To(Equal(llm.KindRateLimited))
	})

	It("names overload when overload exhausted the retries", func() {
		scripted = &scriptedLLM{steps: []llmStep{{err: genErr(llm.KindOverloaded)}}}

		reply := newClient().Generate(ctx, "prompt")

		Expect(reply.Text).To(Equal(brain.OverloadedText))
	})

	It("embeds the cause of unexpected failures", func() {
		scripted = &scriptedLLM{steps: []llmStep{{err: errors.New("socket closed")}}}

		reply := newClient().Generate(ctx, "prompt")

		Expect(reply.Degraded).To(BeTrue())
		Expect(reply.Text).To(ContainSubstring("socket closed"))
		Expect(scripted.calls).To(Equal(4))
	})

	It("retries provider request timeouts while the run is still live", func() {
		timeout := fmt.Errorf("doRequest: %w", &llm.GenerationError{
			Kind:     llm.KindOther,
			Provider: "gemini",
			Err:      fmt.Errorf("Post \"https://example.test\": %w", context.DeadlineExceeded),
		})
		scripted = &scriptedLLM{steps: []llmStep{{err: timeout}}}

		reply := newClient().Generate(ctx, "prompt")

		Expect(reply.Degraded).To(BeTrue())
		Expect(reply.Text).NotTo(Equal(brain.CanceledText))
		Expect(reply.Attempts).To(Equal(4))
		Expect(scripted.calls).To(Equal(4))
		Expect(sleeper.slept).To(Equal([]time.Duration{time.Second, time.Second, time.Second}))
		Expect(errors.Is(reply.Err, context.DeadlineExceeded)).To(BeTrue())
	})

	It("recovers when a timed out attempt is followed by a reply", func() {
		scripted = &scriptedLLM{steps: []llmStep{{err: context.DeadlineExceeded}, {text: "late but fine"}}}

		reply := newClient().Generate(ctx, "prompt")

		Expect(reply.Degraded).To(BeFalse())
		Expect(reply.Text).To(Equal("late but fine"))
		Expect(reply.Attempts).To(Equal(2))
	})

	It("reports a run canceled during the cooldown as canceled", func() {
		policy.Cooldown = time.Second
		canceled, cancel := context.WithCancel(ctx)
		scripted = &scriptedLLM{steps: []llmStep{{text: "hello"}}}
		client := brain.NewGenerationClient(scripted, policy).WithSleeper(func(_ context.Context, d time.Duration) error {
			sleeper.slept = append(sleeper.slept, d)
			cancel()
			return context.Canceled
		})

		reply := client.Generate(canceled, "prompt")

		Expect(reply.Degraded).To(BeTrue())
		Expect(reply.Text).To(Equal(brain.CanceledText))
		Expect(reply.Err).To(MatchError(context.Canceled))
		Expect(scripted.calls).To(Equal(1))
		Expect(sleeper.slept).To(Equal([]time.Duration{time.Second}))
	})

	It("stops retrying once the context is canceled", func() {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		scripted = &scriptedLLM{steps: []llmStep{{err: context.Canceled}}}

		reply := newClient().Generate(canceled, "prompt")

		Expect(reply.Degraded).To(BeTrue())
		Expect(reply.Text).To(Equal(brain.CanceledText))
		Expect(scripted.calls).To(Equal(1))
	})
})
