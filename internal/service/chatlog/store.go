package chatlog

import (
	"context"
	"errors"
	"time"

	"github.com/zhouzirui/med-assist/backend/internal/analysis/severity"
	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
)

// ErrStoreClosed is returned by stores used after Close.
var ErrStoreClosed = errors.New("chat log store closed")

//go:generate go run go.uber.org/mock/mockgen -destination=../../mocks/mock_store.go -package=mocks github.com/zhouzirui/med-assist/backend/internal/service/chatlog Store

// Store persists conversation records. Records are insert-only.
type Store interface {
	Insert(ctx context.Context, rec chat.LogRecord) error
	// List returns records newest first.
	List(ctx context.Context, q ListQuery) ([]chat.LogRecord, error)
	Count(ctx context.Context) (int, error)
	CountBySeverity(ctx context.Context) (map[severity.Level]int, error)
	// DailyCounts buckets records created at or after since by UTC day.
	DailyCounts(ctx context.Context, since time.Time) (map[string]int, error)
	// SymptomCounts tallies matched symptom keywords of records created at
	// or after since.
	SymptomCounts(ctx context.Context, since time.Time) (map[string]int, error)
}

// ListQuery filters List. Zero values mean no filter.
type ListQuery struct {
	Limit    int
	Severity severity.Level
	Since    time.Time
}

// DayKey is the bucket key used by DailyCounts.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
