package attendance

import (
	"errors"
	"fmt"

	"attendancehub/internal/model"
)

// ErrSessionInactive matches any *SessionInactiveError via errors.Is.
var ErrSessionInactive = errors.New("session is not scheduled on this date")

var errLeftover = errors.New("stale records remain for key")

// SessionInactiveError rejects a submission for a day the group does not meet.
type SessionInactiveError struct {
	GroupID string
	Date    model.Date
}

func (e *SessionInactiveError) Error() string {
	return fmt.Sprintf("group %s does not meet on %s (%s)", e.GroupID, e.Date, e.Date.Weekday())
}

func (e *SessionInactiveError) Is(target error) bool { return target == ErrSessionInactive }

// SubmissionFailedError means the record could not be written. Nothing was
// persisted and the caller may retry.
type SubmissionFailedError struct {
	Key model.RecordKey
	Err error
}

func (e *SubmissionFailedError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Key, e.Err)
}

func (e *SubmissionFailedError) Unwrap() error { return e.Err }
