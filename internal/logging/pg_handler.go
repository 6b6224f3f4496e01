package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mutamba/erp-backend/internal/models"
)

const pgBatchSize = 50

// pgSink is the buffer shared by a PGHandler and the handlers derived from it.
type pgSink struct {
	db     *gorm.DB
	mu     sync.Mutex
	buffer []models.SystemLog
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// PGHandler is an slog.Handler that batches ERROR+ logs to PostgreSQL.
type PGHandler struct {
	sink  *pgSink
	attrs []slog.Attr
}

func NewPGHandler(db *gorm.DB, flushEvery time.Duration) *PGHandler {
	s := &pgSink{
		db:     db,
		buffer: make([]models.SystemLog, 0, pgBatchSize),
		ticker: time.NewTicker(flushEvery),
		done:   make(chan struct{}),
	}
	go s.flushLoop()
	return &PGHandler{sink: s}
}

func (s *pgSink) flushLoop() {
	for {
		select {
		case <-s.ticker.C:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *pgSink) flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buffer
	s.buffer = make([]models.SystemLog, 0, pgBatchSize)
	s.mu.Unlock()

	if err := s.db.CreateInBatches(batch, pgBatchSize).Error; err != nil {
		// Not through slog: an ERROR here would come straight back to this sink.
		slog.Warn("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}

// Stop flushes what is buffered and stops the flush loop.
func (h *PGHandler) Stop() {
	h.sink.once.Do(func() {
		h.sink.ticker.Stop()
		close(h.sink.done)
	})
}

// Enabled only handles ERROR and above.
func (h *PGHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *PGHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]any)
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "request_id":
			entry.RequestID = a.Value.String()
		case "uid":
			s := a.Value.String()
			entry.UID = &s
		case "function":
			entry.Function = a.Value.String()
		case "action":
			entry.Action = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		case "latency_ms":
			switch a.Value.Kind() {
			case slog.KindFloat64:
				entry.LatencyMs = int(math.Round(a.Value.Float64()))
			case slog.KindInt64:
				entry.LatencyMs = int(a.Value.Int64())
			}
		default:
			extra[a.Key] = a.Value.Resolve().Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	h.sink.mu.Lock()
	h.sink.buffer = append(h.sink.buffer, entry)
	needFlush := len(h.sink.buffer) >= pgBatchSize
	h.sink.mu.Unlock()

	if needFlush {
		go h.sink.flush()
	}
	return nil
}

func (h *PGHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &PGHandler{sink: h.sink, attrs: merged}
}

// WithGroup is flat: system_logs has no nesting, so group names are dropped.
func (h *PGHandler) WithGroup(string) slog.Handler {
	return h
}

// pending reports the number of buffered records.
func (h *PGHandler) pending() int {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return len(h.sink.buffer)
}
