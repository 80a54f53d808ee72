package dashboard

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/zhouzirui/med-assist/backend/internal/analysis/severity"
	"github.com/zhouzirui/med-assist/backend/internal/config"
	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
	"github.com/zhouzirui/med-assist/backend/internal/service/chatlog"
)

// ErrUnavailable is returned when conversation logging is disabled.
var ErrUnavailable = errors.New("dashboard unavailable: no chat log store configured")

// Dashboard is the admin view payload.
type Dashboard struct {
	Stats       Stats            `json:"stats"`
	RecentChats []chat.LogRecord `json:"recentChats"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// Stats aggregates the logged conversations.
type Stats struct {
	TotalChats int `json:"totalChats"`
	// SeverityDistribution covers low, medium and high. Emergencies are
	// reported separately in EmergencyCount.
	SeverityDistribution []SeverityCount `json:"severityDistribution"`
	EmergencyCount       int             `json:"emergencyCount"`
	DailyCounts          []DailyCount    `json:"dailyCounts"`
	// TopSymptoms ranks matched keywords over the DailyCounts window.
	TopSymptoms []SymptomCount `json:"topSymptoms"`
}

type SymptomCount struct {
	Symptom string `json:"symptom"`
	Count   int    `json:"count"`
}

type SeverityCount struct {
	Severity severity.Level `json:"severity"`
	Count    int            `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

const (
	topSymptomsLimit = 5
	maxChatsLimit    = 100
)

// Service computes dashboard snapshots from a chat log store.
type Service struct {
	store       chatlog.Store
	recentLimit int
	days        int
	now         func() time.Time
}

// NewService creates a Service. store may be nil when logging is disabled.
func NewService(store chatlog.Store, cfg config.DashboardConfig) *Service {
	recent := cfg.RecentLimit
	if recent <= 0 {
		recent = 10
	}
	days := cfg.Days
	if days <= 0 {
		days = 7
	}
	return &Service{store: store, recentLimit: recent, days: days, now: time.Now}
}

// Snapshot reads the current statistics.
func (s *Service) Snapshot(ctx context.Context) (Dashboard, error) {
	if s.store == nil {
		return Dashboard{}, ErrUnavailable
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count chats: %w", err)
	}

	bySeverity, err := s.store.CountBySeverity(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count by severity: %w", err)
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(s.days - 1))

	daily, err := s.store.DailyCounts(ctx, since)
	if err != nil {
		return Dashboard{}, fmt.Errorf("daily counts: %w", err)
	}

	symptoms, err := s.store.SymptomCounts(ctx, since)
	if err != nil {
		return Dashboard{}, fmt.Errorf("symptom counts: %w", err)
	}

	recent, err := s.store.List(ctx, chatlog.ListQuery{Limit: s.recentLimit})
	if err != nil {
		return Dashboard{}, fmt.Errorf("recent chats: %w", err)
	}
	if recent == nil {
		recent = []chat.LogRecord{}
	}

	distribution := lo.Map([]severity.Level{severity.Low, severity.Medium, severity.High}, func(level severity.Level, _ int) SeverityCount {
		return SeverityCount{Severity: level, Count: bySeverity[level]}
	})

	days := make([]DailyCount, 0, s.days)
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := chatlog.DayKey(d)
		days = append(days, DailyCount{Date: key, Count: daily[key]})
	}

	return Dashboard{
		Stats: Stats{
			TotalChats:           total,
			SeverityDistribution: distribution,
			EmergencyCount:       bySeverity[severity.Emergency],
			DailyCounts:          days,
			TopSymptoms:          topSymptoms(symptoms, topSymptomsLimit),
		},
		RecentChats: recent,
		GeneratedAt: now,
	}, nil
}

// Chats lists logged conversations matching q, newest first. The limit
// defaults to the recent chats limit and is capped at 100.
func (s *Service) Chats(ctx context.Context, q chatlog.ListQuery) ([]chat.LogRecord, error) {
	if s.store == nil {
		return nil, ErrUnavailable
	}
	if q.Limit <= 0 {
		q.Limit = s.recentLimit
	}
	q.Limit = min(q.Limit, maxChatsLimit)

	records, err := s.store.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	if records == nil {
		records = []chat.LogRecord{}
	}
	return records, nil
}

// topSymptoms orders by count descending, then by name.
func topSymptoms(counts map[string]int, n int) []SymptomCount {
	ranked := lo.MapToSlice(counts, func(symptom string, count int) SymptomCount {
		return SymptomCount{Symptom: symptom, Count: count}
	})
	slices.SortFunc(ranked, func(a, b SymptomCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Symptom, b.Symptom)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
