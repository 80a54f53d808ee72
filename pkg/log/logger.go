package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
	"github.com/rs/zerolog/log"
)

// NewContextWithLogger installs the process logger and returns a context
// carrying it. Writes go through a diode ring buffer so a slow stdout never
// blocks request goroutines. The returned func flushes and closes the buffer.
func NewContextWithLogger(ctx context.Context, debug, pretty bool) (context.Context, func()) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	wr := diode.NewWriter(os.Stdout, 1000, 5*time.Millisecond, func(missed int) {
		fmt.Fprintf(os.Stderr, "logger dropped %d messages\n", missed)
	})

	var out io.Writer = wr
	if pretty {
		out = zerolog.ConsoleWriter{
			Out:        wr,
			TimeFormat: time.DateTime,
		}
	}

	logger := zerolog.New(out).
		With().
		Timestamp().
		Str("service", "med-assist").
		Logger()

	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger

	return logger.WithContext(ctx), func() {
		_ = wr.Close()
	}
}

// FromCtx returns the logger stored in ctx. Contexts without one get the
// process logger once NewContextWithLogger has run, and a disabled logger
// before that.
func FromCtx(ctx context.Context) *zerolog.Logger {
	return log.Ctx(ctx)
}
