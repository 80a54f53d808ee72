package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/zhouzirui/med-assist/backend/internal/analysis/severity"
	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
	"github.com/zhouzirui/med-assist/backend/internal/model/jurisdiction"
	"github.com/zhouzirui/med-assist/backend/internal/service/ai"
	"github.com/zhouzirui/med-assist/backend/internal/service/ratelimit"
	"github.com/zhouzirui/med-assist/backend/pkg/log"
)

var (
	ErrValidation  = errors.New("invalid chat request")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ValidationError carries a client facing reason. It matches ErrValidation
// and, when set, the underlying Cause.
type ValidationError struct {
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrValidation, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrValidation, e.Cause}
	}
	return []error{ErrValidation}
}

// Limiter admits or rejects a request for a client.
type Limiter interface {
	Admit(clientID string) bool
}

// Recorder persists a completed exchange without blocking the caller.
type Recorder interface {
	Log(ctx context.Context, rec chat.LogRecord)
}

// Options holds request level limits.
type Options struct {
	MaxQuestionLength int
	MaxHistoryItems   int
	EnforceDisclaimer bool
}

// Service runs the chat pipeline: rate limit, validate, classify, prompt,
// complete, record.
type Service struct {
	limiter       Limiter
	builder       *ai.PromptBuilder
	completer     ai.Completer
	recorder      Recorder
	jurisdictions jurisdiction.Store
	validate      *validator.Validate
	opts          Options
	now           func() time.Time
}

// NewService wires the pipeline. completer may be nil, in which case Handle
// fails with ai.ErrNotConfigured after classification.
func NewService(limiter Limiter, builder *ai.PromptBuilder, completer ai.Completer, recorder Recorder, jurisdictions jurisdiction.Store, opts Options) *Service {
	if opts.MaxQuestionLength <= 0 {
		opts.MaxQuestionLength = 4000
	}
	if opts.MaxHistoryItems <= 0 {
		opts.MaxHistoryItems = 50
	}
	return &Service{
		limiter:       limiter,
		builder:       builder,
		completer:     completer,
		recorder:      recorder,
		jurisdictions: jurisdictions,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		opts:          opts,
		now:           time.Now,
	}
}

// Admit charges one request against clientID without running the pipeline.
// Transports call it for requests they reject before Handle.
func (s *Service) Admit(clientID string) bool {
	if strings.TrimSpace(clientID) == "" {
		clientID = ratelimit.UnknownClient
	}
	return s.limiter.Admit(clientID)
}

// Jurisdiction resolves the emergency profile for region.
func (s *Service) Jurisdiction(region string) jurisdiction.Jurisdiction {
	return jurisdiction.Resolve(s.jurisdictions, region)
}

// Handle answers one chat request.
func (s *Service) Handle(ctx context.Context, req chat.Request) (chat.Response, error) {
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		clientID = ratelimit.UnknownClient
	}
	logger := log.FromCtx(ctx).With().Str("client", clientID).Logger()

	if !s.limiter.Admit(clientID) {
		logger.Warn().Msg("rate limit exceeded")
		return chat.Response{}, ErrRateLimited
	}

	question := strings.TrimSpace(req.Question)
	if err := s.check(question, req); err != nil {
		logger.Debug().Err(err).Msg("rejected chat request")
		return chat.Response{}, err
	}

	j := s.Jurisdiction(req.Region)
	assessment := severity.Assess(question, req.IsEmergency)
	logger.Info().
		Str("severity", string(assessment.Level)).
		Bool("crisis", assessment.Crisis).
		Bool("flagged", assessment.Flagged).
		Strs("matched", assessment.Matched).
		Int("history", len(req.History)).
		Str("region", j.Code).
		Msg("classified chat request")

	if s.completer == nil {
		return chat.Response{}, ai.ErrNotConfigured
	}

	prompt := s.builder.Build(question, req.History, assessment, j)

	started := s.now()
	answer, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		logger.Error().Err(err).Str("model", s.completer.Name()).Msg("completion failed")
		return chat.Response{}, err
	}
	if s.opts.EnforceDisclaimer {
		answer = ai.EnsureDisclaimer(answer, j)
	}

	now := s.now().UTC()
	logger.Info().
		Dur("latency", now.Sub(started.UTC())).
		Int("answer_len", len(answer)).
		Msg("completion received")

	if s.recorder != nil {
		s.recorder.Log(ctx, chat.LogRecord{
			Question:      question,
			Answer:        answer,
			Severity:      assessment.Level,
			IsEmergency:   assessment.IsEmergency(),
			ClientID:      clientID,
			ContextLength: len(req.History),
			Region:        j.Code,
			Model:         s.completer.Name(),
			Symptoms:      assessment.Matched,
			CreatedAt:     now,
		})
	}

	return chat.Response{
		Answer:      answer,
		Severity:    assessment.Level,
		IsEmergency: assessment.IsEmergency(),
		Timestamp:   now,
	}, nil
}

func (s *Service) check(question string, req chat.Request) error {
	if err := s.validate.Var(question, "required"); err != nil {
		return &ValidationError{Reason: "question is required and must be a non-empty string"}
	}
	if n := utf8.RuneCountInString(question); n > s.opts.MaxQuestionLength {
		return &ValidationError{Reason: fmt.Sprintf("question is %d characters, the limit is %d", n, s.opts.MaxQuestionLength)}
	}
	if err := s.validate.Var(req.History, fmt.Sprintf("max=%d", s.opts.MaxHistoryItems)); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("chat history may hold at most %d messages", s.opts.MaxHistoryItems)}
	}
	if err := s.validate.Var(req.Region, "omitempty,alpha,max=8"); err != nil {
		return &ValidationError{Reason: "region must be a short alphabetic code"}
	}
	return nil
}
