package ai

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/med-assist/backend/internal/config"
)

type scriptedCompleter struct {
	calls   atomic.Int32
	results []error
	answer  string
}

func (s *scriptedCompleter) Name() string { return "scripted" }

func (s *scriptedCompleter) Complete(ctx context.Context, _ Prompt) (string, error) {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.results) && s.results[n] != nil {
		return "", s.results[n]
	}
	return s.answer, nil
}

var errUpstream = errors.New("upstream 502")

func TestPolicySingleAttemptByDefault(t *testing.T) {
	next := &scriptedCompleter{results: []error{errUpstream}, answer: "never"}
	c := WithPolicy(next, time.Second, 0, time.Millisecond)

	_, err := c.Complete(context.Background(), Prompt{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, errUpstream)
	assert.EqualValues(t, 1, next.calls.Load())
}

func TestPolicyRetriesTransientFailures(t *testing.T) {
	next := &scriptedCompleter{results: []error{errUpstream, errUpstream}, answer: "ok"}
	c := WithPolicy(next, time.Second, 2, time.Millisecond)

	got, err := c.Complete(context.Background(), Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.EqualValues(t, 3, next.calls.Load())
	assert.Equal(t, "scripted", c.Name())
}

func TestPolicyDoesNotRetryEmptyCompletion(t *testing.T) {
	next := &scriptedCompleter{results: []error{ErrEmptyCompletion}, answer: "ok"}
	c := WithPolicy(next, time.Second, 3, time.Millisecond)

	_, err := c.Complete(context.Background(), Prompt{})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
	assert.ErrorIs(t, err, ErrProvider)
	assert.EqualValues(t, 1, next.calls.Load())
}

type slowCompleter struct{}

func (slowCompleter) Name() string { return "slow" }

func (slowCompleter) Complete(ctx context.Context, _ Prompt) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestPolicyAppliesTimeout(t *testing.T) {
	c := WithPolicy(slowCompleter{}, 20*time.Millisecond, 0, time.Millisecond)

	start := time.Now()
	_, err := c.Complete(context.Background(), Prompt{})
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewCompleterNotConfigured(t *testing.T) {
	_, err := NewCompleter(context.Background(), config.AIConfig{Provider: config.ProviderOpenAI})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewCompleterOpenAI(t *testing.T) {
	c, err := NewCompleter(context.Background(), config.AIConfig{
		Provider:     config.ProviderOpenAI,
		OpenAIAPIKey: "sk-test",
		OpenAIModel:  "gpt-4o-mini",
		Timeout:      time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.Name())
}
