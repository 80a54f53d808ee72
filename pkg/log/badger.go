package log

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// BadgerLogger adapts zerolog to badger's Logger interface
type BadgerLogger struct {
	logger *zerolog.Logger
}

func (b *BadgerLogger) Errorf(format string, v ...interface{}) {
	b.logger.Error().Str("component", "badger").Msgf(strings.TrimSpace(format), v...)
}

func (b *BadgerLogger) Warningf(format string, v ...interface{}) {
	b.logger.Warn().Str("component", "badger").Msgf(strings.TrimSpace(format), v...)
}

func (b *BadgerLogger) Infof(format string, v ...interface{}) {
	b.logger.Debug().Str("component", "badger").Msgf(strings.TrimSpace(format), v...)
}

func (b *BadgerLogger) Debugf(format string, v ...interface{}) {
	b.logger.Trace().Str("component", "badger").Msgf(strings.TrimSpace(format), v...)
}

func NewBadgerLoggerFromCtx(ctx context.Context) *BadgerLogger {
	return &BadgerLogger{
		logger: FromCtx(ctx),
	}
}
