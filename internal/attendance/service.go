package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attendancehub/internal/metrics"
	"attendancehub/internal/model"
	"attendancehub/internal/schedule"
	"attendancehub/internal/store"
)

// Submission is one trainer's roster for a session.
type Submission struct {
	Date              model.Date
	CourtID           string
	GroupID           string
	TrainerID         string
	TrainerName       string
	PresentStudentIDs []string
	EventName         string
}

// Key returns the record key the submission targets.
func (s Submission) Key() model.RecordKey {
	return model.RecordKey{Date: s.Date, GroupID: s.GroupID, CourtID: s.CourtID}
}

// Notifier is told about keys whose stale records could not all be removed.
type Notifier interface {
	RecordSubmitted(ctx context.Context, key model.RecordKey) error
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides time.Now for submittedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNotifier hands leftover compaction work to a background worker.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// Service reconciles trainer submissions into one record per key.
type Service struct {
	records  RecordStore
	students StudentStore
	catalog  *schedule.Catalog
	log      *zap.Logger
	now      func() time.Time
	notifier Notifier
}

// NewService wires the reconciler to its collections and the schedule.
func NewService(records RecordStore, students StudentStore, catalog *schedule.Catalog, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		records:  records,
		students: students,
		catalog:  catalog,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates a submission and makes it the single record for its key.
// Earlier records for the key are removed after the new one is written.
func (s *Service) Submit(ctx context.Context, sub Submission) (model.AttendanceRecord, error) {
	rec, err := s.prepare(ctx, sub)
	if err != nil {
		metrics.Submissions.WithLabelValues(resultLabel(err)).Inc()
		return model.AttendanceRecord{}, err
	}

	created, err := s.records.Create(ctx, rec)
	if err != nil {
		metrics.Submissions.WithLabelValues("failed").Inc()
		s.log.Error("attendance write failed", zap.Stringer("key", rec.Key()), zap.Error(err))
		return model.AttendanceRecord{}, &SubmissionFailedError{Key: rec.Key(), Err: err}
	}
	metrics.Submissions.WithLabelValues("ok").Inc()

	removed, leftover, err := s.compact(ctx, rec.Key())
	switch {
	case err != nil:
		s.log.Warn("compaction after submit failed", zap.Stringer("key", rec.Key()), zap.Error(err))
		s.schedule(ctx, rec.Key())
	case leftover > 0:
		s.schedule(ctx, rec.Key())
	}
	s.log.Info("attendance submitted",
		zap.Stringer("key", rec.Key()),
		zap.String("trainer", rec.TrainerID),
		zap.Int("present", len(rec.PresentStudentIDs)),
		zap.Int("replaced", removed))
	return created.Data, nil
}

func (s *Service) prepare(ctx context.Context, sub Submission) (model.AttendanceRecord, error) {
	if sub.Date.IsZero() {
		return model.AttendanceRecord{}, model.Invalid("date", "is required")
	}
	if strings.TrimSpace(sub.TrainerID) == "" {
		return model.AttendanceRecord{}, model.Invalid("trainerId", "is required")
	}
	eventName := strings.TrimSpace(sub.EventName)
	if sub.GroupID == model.OthersGroupID && eventName == "" {
		return model.AttendanceRecord{}, model.Invalid("eventName", "is required for events")
	}
	group, ok := s.catalog.Group(sub.CourtID, sub.GroupID)
	if !ok {
		return model.AttendanceRecord{}, model.Invalid("groupId", "unknown group "+sub.GroupID+" for court "+sub.CourtID)
	}
	if !schedule.IsSessionActive(group, sub.Date) {
		return model.AttendanceRecord{}, &SessionInactiveError{GroupID: group.ID, Date: sub.Date}
	}

	now := s.now().UTC()
	rec := model.AttendanceRecord{
		ID:                uuid.NewString(),
		Date:              sub.Date,
		CourtID:           sub.CourtID,
		GroupID:           group.ID,
		TrainerID:         sub.TrainerID,
		TrainerName:       sub.TrainerName,
		PresentStudentIDs: uniqueIDs(sub.PresentStudentIDs),
		SubmittedAt:       &now,
	}
	if group.IsEvent() {
		rec.EventName = eventName
	} else {
		rec.RosterSize = s.rosterSize(ctx, group.ID)
	}
	return rec, nil
}

func (s *Service) rosterSize(ctx context.Context, groupID string) int {
	if s.students == nil {
		return 0
	}
	members, err := s.students.Where(ctx, store.Eq("groupId", groupID))
	if err != nil {
		s.log.Warn("roster size unavailable", zap.String("group", groupID), zap.Error(err))
		return 0
	}
	return len(members)
}

func (s *Service) schedule(ctx context.Context, key model.RecordKey) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.RecordSubmitted(ctx, key); err != nil {
		s.log.Warn("could not enqueue compaction", zap.Stringer("key", key), zap.Error(err))
	}
}

// Existing returns the current record for key, or nil.
func (s *Service) Existing(ctx context.Context, key model.RecordKey) (*model.AttendanceRecord, error) {
	entries, err := s.records.Where(ctx, KeyFilters(key)...)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	rec := entries[newest(entries)].Data
	return &rec, nil
}

// Compact deletes every record for key except the newest and returns how
// many were removed.
func (s *Service) Compact(ctx context.Context, key model.RecordKey) (int, error) {
	removed, leftover, err := s.compact(ctx, key)
	if err != nil {
		return removed, err
	}
	if leftover > 0 {
		return removed, &store.PersistenceError{Op: "compact", Kind: store.KindRecords, Err: errLeftover}
	}
	return removed, nil
}

func (s *Service) compact(ctx context.Context, key model.RecordKey) (removed, leftover int, err error) {
	entries, err := s.records.Where(ctx, KeyFilters(key)...)
	if err != nil {
		return 0, 0, err
	}
	if len(entries) < 2 {
		return 0, 0, nil
	}
	keep := newest(entries)
	for i, e := range entries {
		if i == keep {
			continue
		}
		if err := s.records.Delete(ctx, e.InternalID); err != nil {
			s.log.Warn("stale record not deleted", zap.String("internal_id", e.InternalID), zap.Error(err))
			leftover++
			continue
		}
		removed++
	}
	metrics.ReplacedRecords.Add(float64(removed))
	return removed, leftover, nil
}

// Records returns the court's records with duplicates collapsed. An empty
// courtID returns every court.
func (s *Service) Records(ctx context.Context, courtID string) ([]model.AttendanceRecord, error) {
	var filters []store.Filter
	if courtID != "" {
		filters = append(filters, store.Eq("courtId", courtID))
	}
	entries, err := s.records.Where(ctx, filters...)
	if err != nil {
		return nil, err
	}
	return Collapse(entries), nil
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func resultLabel(err error) string {
	switch err.(type) {
	case *model.ValidationError:
		return "invalid"
	case *SessionInactiveError:
		return "inactive"
	default:
		return "failed"
	}
}
