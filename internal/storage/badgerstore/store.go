package badgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/zhouzirui/med-assist/backend/internal/analysis/severity"
	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
	"github.com/zhouzirui/med-assist/backend/internal/service/chatlog"
	"github.com/zhouzirui/med-assist/backend/pkg/log"
)

const (
	recordPrefix   = "chatlog:"
	severityPrefix = "chatlog_sev:"
	// maxStamp sorts after every zero padded nanosecond timestamp.
	maxStamp = "9999999999999999999"
)

// Store implements chatlog.Store on an embedded Badger database.
//
// Records live under "chatlog:{unixnano:019d}:{id}" so a prefix scan is
// chronological. "chatlog_sev:{level}:{unixnano:019d}:{id}" is a value-less
// index used for per-severity counts and filtered listings.
type Store struct {
	db *badger.DB
}

var _ chatlog.Store = (*Store)(nil)

// Open opens a Badger database at path, or an in-memory one when inMemory
// is set.
func Open(ctx context.Context, path string, inMemory bool) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(log.NewBadgerLoggerFromCtx(ctx))
	if inMemory {
		opts = badger.DefaultOptions("").
			WithInMemory(true).
			WithLogger(log.NewBadgerLoggerFromCtx(ctx))
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return New(db), nil
}

// New wraps an open database.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping fails once the database has been closed.
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return chatlog.ErrStoreClosed
	}
	return nil
}

type diskRecord struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	Severity      string    `json:"severity"`
	IsEmergency   bool      `json:"is_emergency"`
	ClientID      string    `json:"client_identifier"`
	ContextLength int       `json:"context_length"`
	Region        string    `json:"region"`
	Model         string    `json:"model"`
	Symptoms      []string  `json:"symptoms,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func stamp(t time.Time) string {
	return fmt.Sprintf("%019d", t.UTC().UnixNano())
}

func recordKey(rec chat.LogRecord) []byte {
	return []byte(recordPrefix + stamp(rec.CreatedAt) + ":" + rec.ID)
}

func severityKey(rec chat.LogRecord) []byte {
	return []byte(severityPrefix + string(rec.Severity) + ":" + stamp(rec.CreatedAt) + ":" + rec.ID)
}

func (s *Store) Insert(_ context.Context, rec chat.LogRecord) error {
	data, err := json.Marshal(diskRecord{
		ID:            rec.ID,
		Question:      rec.Question,
		Answer:        rec.Answer,
		Severity:      string(rec.Severity),
		IsEmergency:   rec.IsEmergency,
		ClientID:      rec.ClientID,
		ContextLength: rec.ContextLength,
		Region:        rec.Region,
		Model:         rec.Model,
		Symptoms:      rec.Symptoms,
		CreatedAt:     rec.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(rec)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("chat log %s already exists", rec.ID)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(severityKey(rec), nil)
	})
}

func (s *Store) List(_ context.Context, q chatlog.ListQuery) ([]chat.LogRecord, error) {
	var records []chat.LogRecord

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(recordPrefix)
		if q.Severity != "" {
			prefix = []byte(severityPrefix + string(q.Severity) + ":")
		}
		var floor []byte
		if !q.Since.IsZero() {
			floor = append(append([]byte{}, prefix...), stamp(q.Since)...)
		}

		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = q.Severity == ""
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(append([]byte{}, prefix...), maxStamp...)); it.ValidForPrefix(prefix); it.Next() {
			if q.Limit > 0 && len(records) == q.Limit {
				break
			}
			key := it.Item().KeyCopy(nil)
			if floor != nil && bytes.Compare(key, floor) < 0 {
				break
			}

			var (
				rec chat.LogRecord
				err error
			)
			if q.Severity == "" {
				rec, err = decodeItem(it.Item())
			} else {
				rec, err = s.lookup(txn, recordPrefix+string(key[len(prefix):]))
			}
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) lookup(txn *badger.Txn, key string) (chat.LogRecord, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return chat.LogRecord{}, fmt.Errorf("resolve index entry %s: %w", key, err)
	}
	return decodeItem(item)
}

func decodeItem(item *badger.Item) (chat.LogRecord, error) {
	var d diskRecord
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &d)
	})
	if err != nil {
		return chat.LogRecord{}, fmt.Errorf("unmarshal failed: %w", err)
	}

	level, ok := severity.ParseLevel(d.Severity)
	if !ok {
		level = severity.Low
	}
	return chat.LogRecord{
		ID:            d.ID,
		Question:      d.Question,
		Answer:        d.Answer,
		Severity:      level,
		IsEmergency:   d.IsEmergency,
		ClientID:      d.ClientID,
		ContextLength: d.ContextLength,
		Region:        d.Region,
		Model:         d.Model,
		Symptoms:      d.Symptoms,
		CreatedAt:     d.CreatedAt.UTC(),
	}, nil
}

// countPrefix counts keys without reading values.
func (s *Store) countPrefix(prefix []byte) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store) Count(_ context.Context) (int, error) {
	return s.countPrefix([]byte(recordPrefix))
}

func (s *Store) CountBySeverity(_ context.Context) (map[severity.Level]int, error) {
	counts := make(map[severity.Level]int, len(severity.Levels))
	for _, level := range severity.Levels {
		n, err := s.countPrefix([]byte(severityPrefix + string(level) + ":"))
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[level] = n
		}
	}
	return counts, nil
}

func (s *Store) DailyCounts(_ context.Context, since time.Time) (map[string]int, error) {
	counts := make(map[string]int)
	prefix := []byte(recordPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(append([]byte{}, prefix...), stamp(since)...)); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			raw := key[len(prefix) : len(prefix)+19]
			nanos, err := strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				return fmt.Errorf("malformed chat log key %q: %w", key, err)
			}
			counts[chatlog.DayKey(time.Unix(0, nanos))]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// SymptomCounts walks records from since onwards. Values are read because
// symptoms are not indexed.
func (s *Store) SymptomCounts(_ context.Context, since time.Time) (map[string]int, error) {
	counts := make(map[string]int)
	prefix := []byte(recordPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(append(append([]byte{}, prefix...), stamp(since)...)); it.ValidForPrefix(prefix); it.Next() {
			rec, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			for _, symptom := range rec.Symptoms {
				counts[symptom]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
