package model

import (
	"time"
)

// OthersGroupID is the pseudo-group used for ad-hoc events. It has no day
// restriction and no fixed roster.
const OthersGroupID = "others"

// Student is a roster member. ID is the business key referenced by
// attendance records, not the storage identity.
type Student struct {
	ID      string `json:"id" yaml:"id" validate:"required,max=64"`
	Name    string `json:"name" yaml:"name" validate:"required,max=120"`
	GroupID string `json:"groupId" yaml:"groupId" validate:"required,max=64"`
}

// Trainer may mark attendance for one court. The same person working two
// courts holds two Trainer records.
type Trainer struct {
	ID       string `json:"id" yaml:"id" validate:"required,max=64"`
	Name     string `json:"name" yaml:"name" validate:"required,max=120"`
	CourtID  string `json:"courtId" yaml:"courtId" validate:"required,max=64"`
	Passcode string `json:"passcode" yaml:"passcode" validate:"required,len=4,number"`
}

// AttendanceRecord is the single authoritative roster for a RecordKey.
type AttendanceRecord struct {
	ID                string     `json:"id"`
	Date              Date       `json:"date"`
	CourtID           string     `json:"courtId"`
	GroupID           string     `json:"groupId"`
	TrainerID         string     `json:"trainerId"`
	TrainerName       string     `json:"trainerName"`
	EventName         string     `json:"eventName,omitempty"`
	PresentStudentIDs []string   `json:"presentStudentIds"`
	SubmittedAt       *time.Time `json:"submittedAt,omitempty"`
	// RosterSize is the group's roster size when the record was submitted.
	// Zero for event records and for records written before it was tracked.
	RosterSize int `json:"rosterSize,omitempty"`
}

// Key returns the composite key the record is unique under.
func (r AttendanceRecord) Key() RecordKey {
	return RecordKey{Date: r.Date, GroupID: r.GroupID, CourtID: r.CourtID}
}

// IsEvent reports whether the record belongs to the others pseudo-group.
func (r AttendanceRecord) IsEvent() bool { return r.GroupID == OthersGroupID }

// Lists reports whether id is among the present students.
func (r AttendanceRecord) Lists(id string) bool {
	for _, p := range r.PresentStudentIDs {
		if p == id {
			return true
		}
	}
	return false
}

// RecordKey identifies an attendance submission slot.
type RecordKey struct {
	Date    Date   `json:"date"`
	GroupID string `json:"groupId"`
	CourtID string `json:"courtId"`
}

func (k RecordKey) String() string {
	return k.Date.String() + "/" + k.CourtID + "/" + k.GroupID
}
