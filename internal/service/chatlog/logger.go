package chatlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
	"github.com/zhouzirui/med-assist/backend/pkg/log"
)

// Logger writes conversation records in the background. A failed write is
// reported to the process log and otherwise dropped.
type Logger struct {
	store   Store
	timeout time.Duration
	now     func() time.Time

	wg sync.WaitGroup
}

// NewLogger creates a Logger. A nil store turns Log into a no-op.
func NewLogger(store Store, timeout time.Duration) *Logger {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Logger{store: store, timeout: timeout, now: time.Now}
}

// Log schedules rec for insertion and returns immediately. Missing ID and
// CreatedAt are filled in. The write is detached from ctx cancellation.
func (l *Logger) Log(ctx context.Context, rec chat.LogRecord) {
	if l == nil || l.store == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now().UTC()
	}

	writeCtx := context.WithoutCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.write(writeCtx, rec); err != nil {
			log.FromCtx(writeCtx).Error().
				Err(err).
				Str("record_id", rec.ID).
				Str("severity", string(rec.Severity)).
				Msg("failed to persist chat log")
		}
	}()
}

func (l *Logger) write(ctx context.Context, rec chat.LogRecord) (err error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chat log store panicked: %v", r)
		}
	}()

	return l.store.Insert(ctx, rec)
}

// Wait blocks until every scheduled write has finished.
func (l *Logger) Wait() {
	l.wg.Wait()
}

// Start satisfies srv.Service.
func (l *Logger) Start(context.Context) error {
	return nil
}

// Shutdown drains pending writes or gives up when ctx expires.
func (l *Logger) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain chat log writes: %w", ctx.Err())
	}
}
