package store

import "attendancehub/internal/model"

// Limits caps how many documents each collection returns per read.
type Limits struct {
	Students int
	Records  int
	Trainers int
}

// DefaultLimits mirrors the caps the hub has always run with.
func DefaultLimits() Limits {
	return Limits{Students: 5000, Records: 5000, Trainers: 100}
}

// Adapter groups the typed collections the application persists.
type Adapter struct {
	Students *Collection[model.Student]
	Trainers *Collection[model.Trainer]
	Records  *Collection[model.AttendanceRecord]
}

// NewAdapter builds the collections over a single backend.
func NewAdapter(b Backend, l Limits) *Adapter {
	return &Adapter{
		Students: NewCollection[model.Student](b, KindStudents, l.Students),
		Trainers: NewCollection[model.Trainer](b, KindTrainers, l.Trainers),
		Records:  NewCollection[model.AttendanceRecord](b, KindRecords, l.Records),
	}
}
