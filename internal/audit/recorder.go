// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package audit appends an immutable record of configuration activity
// without slowing down the resolution hot path. Enqueueing never blocks;
// under overload events are dropped and counted rather than backpressuring
// the caller. Value-bearing fields must be masked before an Event is
// constructed; nothing in this package unmasks or stores raw values.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/runtimeconfig/configdb"
)

var meter = otel.Meter("github.com/cardinalhq/runtimeconfig/internal/audit")

// EventType identifies what kind of configuration activity occurred.
type EventType string

const (
	EventRead         EventType = "READ"
	EventCreate       EventType = "CREATE"
	EventUpdate       EventType = "UPDATE"
	EventDelete       EventType = "DELETE"
	EventCacheClear   EventType = "CACHE_CLEAR"
	EventCacheRefresh EventType = "CACHE_REFRESH"
	EventEnvResolve   EventType = "ENV_RESOLVE"
)

// Event is one audit record. MaskedValue must already be masked for the
// key's classification. ID and Timestamp are stamped by Record when left
// zero, so the persisted row reflects when the activity happened rather
// than when a worker got around to draining the queue.
type Event struct {
	ID              uuid.UUID
	Timestamp       time.Time
	Type            EventType
	Key             string
	EnvironmentCode string
	Classification  string
	MaskedValue     string
	Actor           string
	Duration        time.Duration
}

// Sink is the append-only destination for audit rows.
type Sink interface {
	InsertAuditEvent(ctx context.Context, row configdb.AuditEventRow) error
}

const (
	DefaultQueueSize = 1024
	DefaultWorkers   = 2

	// dropLogEvery rate-limits the overload warning so a sustained stall
	// does not flood the log.
	dropLogEvery = 1000
)

// Recorder hands events off to a fixed worker pool through a bounded
// queue. A slow or unavailable sink costs the caller nothing beyond a
// failed non-blocking channel send.
type Recorder struct {
	sink    Sink
	logger  *slog.Logger
	queue   chan Event
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64

	droppedCounter  metric.Int64Counter
	recordedCounter metric.Int64Counter
}

// NewRecorder starts workers consuming the queue. queueSize and workers
// fall back to defaults when non-positive.
func NewRecorder(sink Sink, queueSize, workers int, logger *slog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		sink:   sink,
		logger: logger,
		queue:  make(chan Event, queueSize),
	}

	var err error
	r.droppedCounter, err = meter.Int64Counter(
		"runtimeconfig.audit.dropped",
		metric.WithDescription("Audit events dropped because the queue was full"),
	)
	if err != nil {
		logger.Warn("failed to create audit drop counter", slog.Any("error", err))
	}
	r.recordedCounter, err = meter.Int64Counter(
		"runtimeconfig.audit.recorded",
		metric.WithDescription("Audit events persisted to the sink"),
	)
	if err != nil {
		logger.Warn("failed to create audit recorded counter", slog.Any("error", err))
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Record enqueues an event without blocking. On a full queue the event is
// dropped and counted; audit completeness is best effort under overload.
func (r *Recorder) Record(event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- event:
	default:
		dropped := r.dropped.Add(1)
		if r.droppedCounter != nil {
			r.droppedCounter.Add(context.Background(), 1)
		}
		if dropped%dropLogEvery == 1 {
			r.logger.Warn("audit queue full, dropping events",
				slog.Uint64("totalDropped", dropped),
				slog.String("eventType", string(event.Type)))
		}
	}
}

// Dropped reports how many events have been discarded since startup.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops intake and waits for queued events to drain, up to the
// context deadline.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for event := range r.queue {
		r.persist(event)
	}
}

func (r *Recorder) persist(event Event) {
	row := configdb.AuditEventRow{
		ID:              event.ID,
		EventType:       string(event.Type),
		Key:             event.Key,
		EnvironmentCode: event.EnvironmentCode,
		Classification:  event.Classification,
		MaskedValue:     event.MaskedValue,
		Actor:           event.Actor,
		RecordedAt:      event.Timestamp,
		DurationMs:      event.Duration.Milliseconds(),
	}

	if err := r.sink.InsertAuditEvent(context.Background(), row); err != nil {
		// Audit is not a correctness dependency of resolution; log and
		// move on.
		r.logger.Warn("failed to persist audit event",
			slog.String("eventType", row.EventType),
			slog.String("key", row.Key),
			slog.Any("error", err))
		return
	}
	if r.recordedCounter != nil {
		r.recordedCounter.Add(context.Background(), 1)
	}
}
