package roster

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"attendancehub/internal/metrics"
	"attendancehub/internal/model"
	"attendancehub/internal/store"
)

var (
	// ErrDuplicateKey rejects a create whose business id already exists.
	ErrDuplicateKey = errors.New("business id already exists")
	// ErrPasscodeTaken rejects a passcode already used by another trainer of the court.
	ErrPasscodeTaken = errors.New("passcode already in use on this court")
	// ErrNotFound is returned when a business id has no stored entry.
	ErrNotFound = errors.New("not found")
)

// Collection is the typed store surface the roster works against.
type Collection[T any] interface {
	List(ctx context.Context) ([]store.Entry[T], error)
	Where(ctx context.Context, filters ...store.Filter) ([]store.Entry[T], error)
	First(ctx context.Context, filters ...store.Filter) (*store.Entry[T], error)
	FindByBusinessKey(ctx context.Context, field, value string) (*store.Entry[T], error)
	FindAllByBusinessKey(ctx context.Context, field, value string) ([]store.Entry[T], error)
	Create(ctx context.Context, v T) (store.Entry[T], error)
	Update(ctx context.Context, internalID string, patch map[string]any) error
	Delete(ctx context.Context, internalID string) error
}

// businessKey is the document field holding a student or trainer id.
const businessKey = "id"

// Groups reports whether a student group id exists.
type Groups interface {
	HasRosterGroup(groupID string) bool
}

// Option customizes a Service.
type Option func(*Service)

// WithGroups rejects students placed in groups the catalog does not know.
func WithGroups(g Groups) Option {
	return func(s *Service) { s.groups = g }
}

// Service administers students and trainers and resolves trainer passcodes.
type Service struct {
	students Collection[model.Student]
	trainers Collection[model.Trainer]
	groups   Groups
	validate *validator.Validate
	log      *zap.Logger
}

func NewService(students Collection[model.Student], trainers Collection[model.Trainer], log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		students: students,
		trainers: trainers,
		validate: validator.New(),
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolvePasscode finds the first trainer of courtID with an exactly
// matching passcode. No match returns nil without error.
func (s *Service) ResolvePasscode(ctx context.Context, courtID, passcode string) (*model.Trainer, error) {
	if err := s.checkPasscode(passcode); err != nil {
		metrics.PasscodeLookups.WithLabelValues("invalid").Inc()
		return nil, err
	}
	e, err := s.trainers.First(ctx, store.Eq("courtId", courtID), store.Eq("passcode", passcode))
	if err != nil {
		metrics.PasscodeLookups.WithLabelValues("error").Inc()
		return nil, err
	}
	if e == nil {
		metrics.PasscodeLookups.WithLabelValues("miss").Inc()
		return nil, nil
	}
	metrics.PasscodeLookups.WithLabelValues("hit").Inc()
	t := e.Data
	return &t, nil
}

func (s *Service) checkPasscode(passcode string) error {
	if err := s.validate.Var(passcode, "required,len=4,number"); err != nil {
		return model.Invalid("passcode", "must be exactly 4 digits")
	}
	return nil
}

// Students lists the roster. With groupIDs it keeps only those groups.
func (s *Service) Students(ctx context.Context, groupIDs ...string) ([]model.Student, error) {
	entries, err := s.students.List(ctx)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(groupIDs))
	for _, g := range groupIDs {
		keep[g] = true
	}
	out := make([]model.Student, 0, len(entries))
	for _, e := range entries {
		if len(keep) == 0 || keep[e.Data.GroupID] {
			out = append(out, e.Data)
		}
	}
	return out, nil
}

// AddStudent creates a student, generating an id when none is given.
func (s *Service) AddStudent(ctx context.Context, st model.Student) (model.Student, error) {
	st.Name = strings.TrimSpace(st.Name)
	st.ID = strings.TrimSpace(st.ID)
	if st.ID == "" {
		st.ID = uuid.NewString()[:8]
	}
	if err := s.validateStruct(st); err != nil {
		return model.Student{}, err
	}
	if err := s.checkGroup(st.GroupID); err != nil {
		return model.Student{}, err
	}
	existing, err := s.students.FindByBusinessKey(ctx, businessKey, st.ID)
	if err != nil {
		return model.Student{}, err
	}
	if existing != nil {
		return model.Student{}, ErrDuplicateKey
	}
	if _, err := s.students.Create(ctx, st); err != nil {
		return model.Student{}, err
	}
	s.log.Info("student added", zap.String("id", st.ID), zap.String("group", st.GroupID))
	return st, nil
}

// RemoveStudent deletes every entry carrying the business id. A missing id
// is a no-op. Past records keep referencing it.
func (s *Service) RemoveStudent(ctx context.Context, id string) error {
	entries, err := s.students.FindAllByBusinessKey(ctx, businessKey, id)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.students.Delete(ctx, e.InternalID); err != nil {
			return err
		}
	}
	if len(entries) > 0 {
		s.log.Info("student removed", zap.String("id", id))
	}
	return nil
}

// MoveStudent re-groups a student.
func (s *Service) MoveStudent(ctx context.Context, id, groupID string) error {
	if strings.TrimSpace(groupID) == "" {
		return model.Invalid("groupId", "is required")
	}
	if err := s.checkGroup(groupID); err != nil {
		return err
	}
	entries, err := s.students.FindAllByBusinessKey(ctx, businessKey, id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return ErrNotFound
	}
	for _, e := range entries {
		if err := s.students.Update(ctx, e.InternalID, map[string]any{"groupId": groupID}); err != nil {
			return err
		}
	}
	return nil
}

// DedupeStudents keeps the first entry per business id and deletes the
// rest, returning how many were deleted.
func (s *Service) DedupeStudents(ctx context.Context) (int, error) {
	entries, err := s.students.List(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(entries))
	removed := 0
	for _, e := range entries {
		if !seen[e.Data.ID] {
			seen[e.Data.ID] = true
			continue
		}
		if err := s.students.Delete(ctx, e.InternalID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("duplicate students removed", zap.Int("count", removed))
	}
	return removed, nil
}

// Trainers lists trainers, optionally only those of courtID.
func (s *Service) Trainers(ctx context.Context, courtID string) ([]model.Trainer, error) {
	var filters []store.Filter
	if courtID != "" {
		filters = append(filters, store.Eq("courtId", courtID))
	}
	entries, err := s.trainers.Where(ctx, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]model.Trainer, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out, nil
}

// AddTrainer creates a trainer. Ids are unique globally and passcodes within
// a court.
func (s *Service) AddTrainer(ctx context.Context, t model.Trainer) (model.Trainer, error) {
	t.Name = strings.TrimSpace(t.Name)
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		t.ID = "t-" + uuid.NewString()[:8]
	}
	if err := s.validateStruct(t); err != nil {
		return model.Trainer{}, err
	}
	existing, err := s.trainers.FindByBusinessKey(ctx, businessKey, t.ID)
	if err != nil {
		return model.Trainer{}, err
	}
	if existing != nil {
		return model.Trainer{}, ErrDuplicateKey
	}
	if err := s.ensurePasscodeFree(ctx, t.CourtID, t.Passcode, ""); err != nil {
		return model.Trainer{}, err
	}
	if _, err := s.trainers.Create(ctx, t); err != nil {
		return model.Trainer{}, err
	}
	s.log.Info("trainer added", zap.String("id", t.ID), zap.String("court", t.CourtID))
	return t, nil
}

// RemoveTrainer deletes a trainer by business id; missing ids are a no-op.
func (s *Service) RemoveTrainer(ctx context.Context, id string) error {
	entries, err := s.trainers.FindAllByBusinessKey(ctx, businessKey, id)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.trainers.Delete(ctx, e.InternalID); err != nil {
			return err
		}
	}
	return nil
}

// UpdatePasscode changes a trainer's passcode.
func (s *Service) UpdatePasscode(ctx context.Context, id, passcode string) error {
	if err := s.checkPasscode(passcode); err != nil {
		return err
	}
	e, err := s.trainers.FindByBusinessKey(ctx, businessKey, id)
	if err != nil {
		return err
	}
	if e == nil {
		return ErrNotFound
	}
	if err := s.ensurePasscodeFree(ctx, e.Data.CourtID, passcode, id); err != nil {
		return err
	}
	return s.trainers.Update(ctx, e.InternalID, map[string]any{"passcode": passcode})
}

func (s *Service) ensurePasscodeFree(ctx context.Context, courtID, passcode, exceptID string) error {
	holders, err := s.trainers.Where(ctx, store.Eq("courtId", courtID), store.Eq("passcode", passcode))
	if err != nil {
		return err
	}
	for _, h := range holders {
		if h.Data.ID != exceptID {
			return ErrPasscodeTaken
		}
	}
	return nil
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return model.Invalid(lowerFirst(fe.Field()), "failed "+fe.Tag()+" check")
	}
	return model.Invalid("", err.Error())
}

func (s *Service) checkGroup(groupID string) error {
	if s.groups == nil || s.groups.HasRosterGroup(groupID) {
		return nil
	}
	return model.Invalid("groupId", "unknown group "+groupID)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if strings.HasSuffix(s, "ID") {
		s = strings.TrimSuffix(s, "ID") + "Id"
	}
	return strings.ToLower(s[:1]) + s[1:]
}
