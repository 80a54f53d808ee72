package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/zhouzirui/med-assist/backend/internal/analysis/severity"
	"github.com/zhouzirui/med-assist/backend/internal/config"
	"github.com/zhouzirui/med-assist/backend/internal/mocks"
	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
	"github.com/zhouzirui/med-assist/backend/internal/model/jurisdiction"
	"github.com/zhouzirui/med-assist/backend/internal/service/ai"
	"github.com/zhouzirui/med-assist/backend/internal/service/chatlog"
	"github.com/zhouzirui/med-assist/backend/internal/service/ratelimit"
)

type fixture struct {
	svc       *Service
	completer *mocks.MockCompleter
	store     *mocks.MockStore
	logger    *chatlog.Logger
	limiter   *ratelimit.Limiter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	completer := mocks.NewMockCompleter(ctrl)
	store := mocks.NewMockStore(ctrl)
	logger := chatlog.NewLogger(store, time.Second)
	limiter := ratelimit.New(ratelimit.Options{Window: time.Minute, MaxRequests: 10})

	completer.EXPECT().Name().Return("gpt-4o-mini").AnyTimes()

	builder := ai.NewPromptBuilder(config.AIConfig{ContextTurns: 3, MaxTokens: 500, EmergencyMaxTokens: 250, Temperature: 0.7})
	svc := NewService(limiter, builder, completer, logger, jurisdiction.NewMemoryStore(jurisdiction.Seed(), "IN"), Options{
		MaxQuestionLength: 4000,
		MaxHistoryItems:   50,
		EnforceDisclaimer: true,
	})
	return &fixture{svc: svc, completer: completer, store: store, logger: logger, limiter: limiter}
}

func TestHandleAnswersAndLogs(t *testing.T) {
	f := newFixture(t)

	var prompt ai.Prompt
	f.completer.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p ai.Prompt) (string, error) {
		prompt = p
		return "Stay hydrated and rest.", nil
	})

	var logged chat.LogRecord
	f.store.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, rec chat.LogRecord) error {
		logged = rec
		return nil
	})

	history := []chat.Turn{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
	}
	resp, err := f.svc.Handle(context.Background(), chat.Request{
		Question: "  I have a mild cough  ",
		History:  history,
		ClientID: "10.0.0.1",
	})
	require.NoError(t, err)
	f.logger.Wait()

	assert.Equal(t, severity.Medium, resp.Severity)
	assert.False(t, resp.IsEmergency)
	assert.True(t, strings.HasPrefix(resp.Answer, "Stay hydrated and rest."))
	assert.Contains(t, resp.Answer, "not a substitute for professional medical advice")
	assert.False(t, resp.Timestamp.IsZero())

	require.Len(t, prompt.Messages, 3)
	assert.Equal(t, "I have a mild cough", prompt.Messages[2].Content)

	assert.Equal(t, "I have a mild cough", logged.Question)
	assert.Equal(t, resp.Answer, logged.Answer)
	assert.Equal(t, severity.Medium, logged.Severity)
	assert.Equal(t, 2, logged.ContextLength)
	assert.Equal(t, "10.0.0.1", logged.ClientID)
	assert.Equal(t, "IN", logged.Region)
	assert.Equal(t, "gpt-4o-mini", logged.Model)
	assert.Equal(t, []string{"cough"}, logged.Symptoms)
}

func TestHandleStoreFailureStillAnswers(t *testing.T) {
	f := newFixture(t)

	f.completer.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("Answer text.", nil)
	f.store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("relation chat_logs does not exist"))

	resp, err := f.svc.Handle(context.Background(), chat.Request{Question: "hello", ClientID: "c"})
	require.NoError(t, err)
	f.logger.Wait()

	assert.Equal(t, severity.Low, resp.Severity)
	assert.Contains(t, resp.Answer, "Answer text.")
}

func TestHandleProviderFailureSkipsLogging(t *testing.T) {
	f := newFixture(t)

	f.completer.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return("", fmt.Errorf("%w: upstream 503", ai.ErrProvider))
	// no Insert expectation: any store call fails the test

	_, err := f.svc.Handle(context.Background(), chat.Request{Question: "I have a fever", ClientID: "c"})
	f.logger.Wait()

	assert.ErrorIs(t, err, ai.ErrProvider)
}

func TestHandleEmergencyOrdering(t *testing.T) {
	cases := []struct {
		name     string
		question string
		flag     bool
	}{
		{name: "client flag", question: "just checking in", flag: true},
		{name: "crisis keyword", question: "my father has crushing chest pain", flag: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			var prompt ai.Prompt
			f.completer.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p ai.Prompt) (string, error) {
				prompt = p
				return "Call 112 now.", nil
			})
			f.store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

			resp, err := f.svc.Handle(context.Background(), chat.Request{Question: tc.question, IsEmergency: tc.flag, ClientID: "c"})
			require.NoError(t, err)
			f.logger.Wait()

			assert.Equal(t, severity.Emergency, resp.Severity)
			assert.True(t, resp.IsEmergency)
			assert.Equal(t, 250, prompt.MaxTokens)
		})
	}
}

func TestHandleValidation(t *testing.T) {
	cases := []struct {
		name string
		req  chat.Request
	}{
		{name: "empty question", req: chat.Request{Question: ""}},
		{name: "whitespace question", req: chat.Request{Question: " \n\t "}},
		{name: "too long", req: chat.Request{Question: strings.Repeat("a", 4001)}},
		{name: "history too long", req: chat.Request{Question: "hi", History: make([]chat.Turn, 51)}},
		{name: "bad region", req: chat.Request{Question: "hi", Region: "in-1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Handle(context.Background(), tc.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestHandleRateLimitBeforeValidation(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 10; i++ {
		_, err := f.svc.Handle(context.Background(), chat.Request{Question: "", ClientID: "1.2.3.4"})
		require.ErrorIs(t, err, ErrValidation)
	}

	_, err := f.svc.Handle(context.Background(), chat.Request{Question: "I have a cough", ClientID: "1.2.3.4"})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestHandleWithoutProvider(t *testing.T) {
	f := newFixture(t)
	f.svc.completer = nil

	_, err := f.svc.Handle(context.Background(), chat.Request{Question: "hello"})
	assert.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestHandleRegionSelectsJurisdiction(t *testing.T) {
	f := newFixture(t)

	var prompt ai.Prompt
	f.completer.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p ai.Prompt) (string, error) {
		prompt = p
		return "ok", nil
	})
	var logged chat.LogRecord
	f.store.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, rec chat.LogRecord) error {
		logged = rec
		return nil
	})

	resp, err := f.svc.Handle(context.Background(), chat.Request{Question: "hello", Region: "us", ClientID: "c"})
	require.NoError(t, err)
	f.logger.Wait()

	assert.Contains(t, prompt.System, "911")
	assert.Contains(t, resp.Answer, "call 911 or 988")
	assert.Equal(t, "US", logged.Region)
}

func TestValidationErrorMatching(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := error(&ValidationError{Reason: "question is required", Cause: cause})

	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "invalid chat request: question is required: unexpected EOF", err.Error())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "question is required", verr.Reason)
}
