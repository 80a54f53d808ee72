package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/zhouzirui/med-assist/backend/internal/config"
	"github.com/zhouzirui/med-assist/backend/pkg/log"
)

var (
	// ErrProvider wraps every failure to obtain a completion.
	ErrProvider = errors.New("completion provider failed")
	// ErrNotConfigured is returned when no provider credentials are set.
	ErrNotConfigured = errors.New("completion provider not configured")
	// ErrEmptyCompletion is returned when the provider answered with no text.
	ErrEmptyCompletion = fmt.Errorf("%w: empty completion", ErrProvider)
)

//go:generate go run go.uber.org/mock/mockgen -destination=../../mocks/mock_completer.go -package=mocks github.com/zhouzirui/med-assist/backend/internal/service/ai Completer

// Completer produces an assistant answer for a prompt.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	// Name identifies the model in logs and conversation records.
	Name() string
}

// NewCompleter builds the backend selected by cfg.Provider, wrapped with the
// configured timeout and retry policy.
func NewCompleter(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: provider %q", ErrNotConfigured, cfg.Provider)
	}

	var (
		backend Completer
		err     error
	)
	switch cfg.Provider {
	case config.ProviderArk:
		chatModel, mErr := cfg.NewChatModel(ctx)
		if mErr != nil {
			return nil, fmt.Errorf("create ark chat model: %w", mErr)
		}
		backend, err = NewArkCompleter(ctx, chatModel, cfg.Model)
	case config.ProviderOpenAI:
		backend = NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrNotConfigured, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Info().
		Str("provider", cfg.Provider).
		Str("model", backend.Name()).
		Int("max_retries", cfg.MaxRetries).
		Dur("timeout", cfg.Timeout).
		Msg("completion provider ready")

	return WithPolicy(backend, cfg.Timeout, cfg.MaxRetries, cfg.RetryBackoff), nil
}

type policyCompleter struct {
	next       Completer
	timeout    time.Duration
	maxRetries uint64
	backoff    time.Duration
}

// WithPolicy bounds every attempt by timeout and retries transient failures
// up to maxRetries times with jittered exponential backoff. Empty
// completions are never retried.
func WithPolicy(next Completer, timeout time.Duration, maxRetries int, backoff time.Duration) Completer {
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &policyCompleter{
		next:       next,
		timeout:    timeout,
		maxRetries: uint64(maxRetries),
		backoff:    backoff,
	}
}

func (c *policyCompleter) Name() string {
	return c.next.Name()
}

func (c *policyCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	b := retry.NewExponential(c.backoff)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(10*time.Second, b)
	b = retry.WithMaxRetries(c.maxRetries, b)

	var (
		answer  string
		attempt int
	)
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		text, err := c.attempt(ctx, p)
		if err == nil {
			answer = text
			return nil
		}
		if errors.Is(err, ErrEmptyCompletion) || ctx.Err() != nil {
			return err
		}
		log.FromCtx(ctx).Warn().Err(err).Int("attempt", attempt).Str("model", c.next.Name()).Msg("completion attempt failed")
		return retry.RetryableError(err)
	})
	if err != nil {
		if !errors.Is(err, ErrProvider) {
			err = fmt.Errorf("%w: %w", ErrProvider, err)
		}
		return "", err
	}
	return answer, nil
}

func (c *policyCompleter) attempt(ctx context.Context, p Prompt) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.next.Complete(ctx, p)
}
