// Package audit persists every emitted ledger event as an append-only log so
// state transitions stay reconstructable after the fact.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"lendex/core/events"
	"lendex/storage"
)

const (
	sequenceKey     = "audit/seq"
	recordKeyFormat = "audit/record/%020d"
)

// Record is one entry of the audit log.
type Record struct {
	ID        string          `json:"id"`
	Sequence  uint64          `json:"sequence"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Log writes records into the key-value store in emission order. It satisfies
// events.Emitter so it can sit directly behind the lending engine.
type Log struct {
	mu     sync.Mutex
	db     storage.Database
	logger *slog.Logger
	nowFn  func() int64
}

// NewLog constructs an audit log over the given database.
func NewLog(db storage.Database, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		db:     db,
		logger: logger,
		nowFn:  func() int64 { return time.Now().Unix() },
	}
}

// SetTimeSource overrides the record timestamp clock. Intended for tests.
func (l *Log) SetTimeSource(now func() int64) {
	if now != nil {
		l.nowFn = now
	}
}

// Emit implements the events.Emitter interface. Emit has no error channel, so
// append failures are logged and the event is dropped rather than blocking
// the state transition that produced it.
func (l *Log) Emit(event events.Event) {
	if event == nil {
		return
	}
	if err := l.Append(event); err != nil {
		l.logger.Error("audit append failed", "type", event.EventType(), "err", err)
	}
}

// Append stores the event as the next record in the log.
func (l *Log) Append(event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: encode %s: %w", event.EventType(), err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seq, err := l.length()
	if err != nil {
		return err
	}
	record := Record{
		ID:        uuid.NewString(),
		Sequence:  seq + 1,
		Type:      event.EventType(),
		Timestamp: l.nowFn(),
		Payload:   payload,
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("audit: encode record: %w", err)
	}
	if err := l.db.Put([]byte(fmt.Sprintf(recordKeyFormat, record.Sequence)), raw); err != nil {
		return err
	}
	return l.db.Put([]byte(sequenceKey), []byte(strconv.FormatUint(record.Sequence, 10)))
}

// Len returns the number of records in the log.
func (l *Log) Len() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.length()
}

func (l *Log) length() (uint64, error) {
	raw, err := l.db.Get([]byte(sequenceKey))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(raw), 10, 64)
}

// Records returns up to limit records starting at the given sequence
// (1-based). A zero from starts at the beginning.
func (l *Log) Records(from uint64, limit int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, err := l.length()
	if err != nil {
		return nil, err
	}
	if from == 0 {
		from = 1
	}
	records := make([]Record, 0, limit)
	for seq := from; seq <= last; seq++ {
		if limit > 0 && len(records) == limit {
			break
		}
		raw, err := l.db.Get([]byte(fmt.Sprintf(recordKeyFormat, seq)))
		if err != nil {
			return nil, err
		}
		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("audit: decode record %d: %w", seq, err)
		}
		records = append(records, record)
	}
	return records, nil
}
