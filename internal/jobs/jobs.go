package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"attendancehub/internal/metrics"
	"attendancehub/internal/model"
	"attendancehub/internal/queue"
)

// Job types.
const (
	TypeRecordSubmitted = "record.submitted"
	TypeDedupeStudents  = "students.dedupe"
)

// Publisher enqueues background work.
type Publisher struct {
	q queue.Queue
}

func NewPublisher(q queue.Queue) *Publisher {
	return &Publisher{q: q}
}

// RecordSubmitted schedules compaction of a record key.
func (p *Publisher) RecordSubmitted(ctx context.Context, key model.RecordKey) error {
	msg, err := queue.NewMessage(TypeRecordSubmitted, key)
	if err != nil {
		return err
	}
	return p.q.Publish(ctx, msg)
}

// DedupeStudents schedules a roster clean-up.
func (p *Publisher) DedupeStudents(ctx context.Context) error {
	return p.q.Publish(ctx, queue.Message{Type: TypeDedupeStudents})
}

// Compactor removes stale records for a key.
type Compactor interface {
	Compact(ctx context.Context, key model.RecordKey) (int, error)
}

// Deduper removes duplicate students.
type Deduper interface {
	DedupeStudents(ctx context.Context) (int, error)
}

// Runner executes queued jobs.
type Runner struct {
	compactor Compactor
	deduper   Deduper
	log       *zap.Logger
}

func NewRunner(c Compactor, d Deduper, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{compactor: c, deduper: d, log: log}
}

// Handle dispatches one message by type.
func (r *Runner) Handle(ctx context.Context, msg queue.Message) error {
	err := r.handle(ctx, msg)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.Jobs.WithLabelValues(msg.Type, result).Inc()
	return err
}

func (r *Runner) handle(ctx context.Context, msg queue.Message) error {
	switch msg.Type {
	case TypeRecordSubmitted:
		var key model.RecordKey
		if err := msg.Decode(&key); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		removed, err := r.compactor.Compact(ctx, key)
		if err != nil {
			return fmt.Errorf("compact %s: %w", key, err)
		}
		r.log.Info("record key compacted", zap.Stringer("key", key), zap.Int("removed", removed))
		return nil
	case TypeDedupeStudents:
		removed, err := r.deduper.DedupeStudents(ctx)
		if err != nil {
			return fmt.Errorf("dedupe students: %w", err)
		}
		r.log.Info("students deduplicated", zap.Int("removed", removed))
		return nil
	default:
		return fmt.Errorf("unknown job type %q", msg.Type)
	}
}

// Run consumes q until ctx is done. Failed jobs are logged and dropped.
func (r *Runner) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}
	r.log.Info("worker started, waiting for jobs")
	for msg := range messages {
		if err := r.Handle(ctx, msg); err != nil {
			r.log.Warn("job failed", zap.String("type", msg.Type), zap.Error(err))
		}
	}
	r.log.Info("worker stopped")
	return nil
}
