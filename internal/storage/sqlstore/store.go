package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/med-assist/backend/internal/analysis/severity"
	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
	"github.com/zhouzirui/med-assist/backend/internal/service/chatlog"
	"github.com/zhouzirui/med-assist/backend/pkg/log"
)

const selectColumns = `id, question, answer, severity, is_emergency, client_identifier, context_length, region, model, created_at, symptoms`

// symptomSep joins matched keywords in the symptoms column. Keywords never
// contain it.
const symptomSep = ","

// Store implements chatlog.Store on database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ chatlog.Store = (*Store)(nil)

// New wraps an open, migrated database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders into $N for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var (
		sb strings.Builder
		n  int
	)
	sb.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *Store) Insert(ctx context.Context, rec chat.LogRecord) error {
	query := s.rebind(`INSERT INTO chat_logs (` + selectColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Question,
		rec.Answer,
		string(rec.Severity),
		rec.IsEmergency,
		rec.ClientID,
		rec.ContextLength,
		rec.Region,
		rec.Model,
		rec.CreatedAt.UTC(),
		strings.Join(rec.Symptoms, symptomSep),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat log: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, q chatlog.ListQuery) ([]chat.LogRecord, error) {
	var (
		where []string
		args  []any
	)
	if q.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(q.Severity))
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.UTC())
	}

	query := `SELECT ` + selectColumns + ` FROM chat_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat logs: %w", err)
	}
	defer rows.Close()

	var records []chat.LogRecord
	for rows.Next() {
		var (
			rec      chat.LogRecord
			level    string
			symptoms string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Question,
			&rec.Answer,
			&level,
			&rec.IsEmergency,
			&rec.ClientID,
			&rec.ContextLength,
			&rec.Region,
			&rec.Model,
			&rec.CreatedAt,
			&symptoms,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chat log: %w", err)
		}
		rec.Severity = decodeLevel(ctx, rec.ID, level)
		rec.CreatedAt = rec.CreatedAt.UTC()
		rec.Symptoms = splitSymptoms(symptoms)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chat logs: %w", err)
	}
	return n, nil
}

func (s *Store) CountBySeverity(ctx context.Context) (map[severity.Level]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT severity, COUNT(*) FROM chat_logs GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[severity.Level]int, len(severity.Levels))
	for rows.Next() {
		var (
			level string
			n     int
		)
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		counts[decodeLevel(ctx, "", level)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// DailyCounts buckets in Go so the same query serves both dialects.
func (s *Store) DailyCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT created_at FROM chat_logs WHERE created_at >= ?`), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan created_at: %w", err)
		}
		counts[chatlog.DayKey(ts)]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// SymptomCounts tallies matched keywords of records created at or after since.
func (s *Store) SymptomCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT symptoms FROM chat_logs WHERE created_at >= ? AND symptoms <> ''`), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query symptoms: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan symptoms: %w", err)
		}
		for _, symptom := range splitSymptoms(raw) {
			counts[symptom]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func splitSymptoms(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, symptomSep)
}

func decodeLevel(ctx context.Context, id, raw string) severity.Level {
	level, ok := severity.ParseLevel(raw)
	if !ok {
		log.FromCtx(ctx).Warn().Str("id", id).Str("severity", raw).Msg("unknown severity in chat log, treating as low")
		return severity.Low
	}
	return level
}
