package stats

import (
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"attendancehub/internal/model"
	"attendancehub/internal/schedule"
)

// StudentStat is one student's attendance over a window.
type StudentStat struct {
	Student  model.Student `json:"student"`
	Attended int           `json:"attended"`
	Missed   int           `json:"missed"`
	Total    int           `json:"total"`
	Rate     float64       `json:"rate"`
}

// Rate is attended/total as a percentage, and 0 when there were no sessions.
func Rate(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(attended) / float64(total) * 100
}

// StudentStats counts the sessions of the student's group inside w.
func StudentStats(st model.Student, records []model.AttendanceRecord, w Window) StudentStat {
	out := StudentStat{Student: st}
	for _, r := range records {
		if r.GroupID != st.GroupID || !w.Contains(r.Date) {
			continue
		}
		out.Total++
		if r.Lists(st.ID) {
			out.Attended++
		}
	}
	out.Missed = out.Total - out.Attended
	out.Rate = Rate(out.Attended, out.Total)
	return out
}

// OverviewReport is the admin dashboard view of a roster.
type OverviewReport struct {
	Window      Window        `json:"window"`
	Students    []StudentStat `json:"students"`
	AverageRate float64       `json:"averageRate"`
}

// Overview computes stats for every student, ordered by name.
func Overview(students []model.Student, records []model.AttendanceRecord, w Window) OverviewReport {
	sorted := SortByName(students)
	rep := OverviewReport{Window: w, Students: make([]StudentStat, 0, len(sorted))}
	var sum float64
	for _, st := range sorted {
		s := StudentStats(st, records, w)
		sum += s.Rate
		rep.Students = append(rep.Students, s)
	}
	if len(rep.Students) > 0 {
		rep.AverageRate = sum / float64(len(rep.Students))
	}
	return rep
}

// GroupStat summarizes one group's sessions in a window.
type GroupStat struct {
	GroupID        string  `json:"groupId"`
	Name           string  `json:"name"`
	Sessions       int     `json:"sessions"`
	AveragePresent float64 `json:"averagePresent"`
	AverageRate    float64 `json:"averageRate"`
}

// GroupStats reports every group in display order, including those with no
// sessions in w.
func GroupStats(groups []schedule.Group, students []model.Student, records []model.AttendanceRecord, w Window) []GroupStat {
	out := make([]GroupStat, 0, len(groups))
	for _, g := range groups {
		gs := GroupStat{GroupID: g.ID, Name: g.Name}
		present := 0
		for _, r := range records {
			if r.GroupID == g.ID && w.Contains(r.Date) {
				gs.Sessions++
				present += len(r.PresentStudentIDs)
			}
		}
		if gs.Sessions > 0 {
			gs.AveragePresent = float64(present) / float64(gs.Sessions)
		}
		var members []model.Student
		for _, st := range students {
			if st.GroupID == g.ID {
				members = append(members, st)
			}
		}
		gs.AverageRate = Overview(members, records, w).AverageRate
		out = append(out, gs)
	}
	return out
}

// DailyView splits a roster into present and absent for one day.
type DailyView struct {
	Date      model.Date      `json:"date"`
	GroupID   string          `json:"groupId"`
	Present   []model.Student `json:"present"`
	Absent    []model.Student `json:"absent"`
	Total     int             `json:"total"`
	Rate      float64         `json:"rate"`
	HasRecord bool            `json:"hasRecord"`
}

// AllGroups selects every group in DailyReport.
const AllGroups = "all"

// DailyReport marks each roster member present if any matching record for
// date lists them. groupFilter narrows both roster and records unless it is
// empty or AllGroups.
func DailyReport(students []model.Student, records []model.AttendanceRecord, date model.Date, groupFilter string) DailyView {
	all := groupFilter == "" || groupFilter == AllGroups
	view := DailyView{Date: date, GroupID: groupFilter, Present: []model.Student{}, Absent: []model.Student{}}
	if all {
		view.GroupID = AllGroups
	}

	present := make(map[string]bool)
	for _, r := range records {
		if !r.Date.Equal(date) || (!all && r.GroupID != groupFilter) {
			continue
		}
		view.HasRecord = true
		for _, id := range r.PresentStudentIDs {
			present[id] = true
		}
	}
	for _, st := range SortByName(students) {
		if !all && st.GroupID != groupFilter {
			continue
		}
		if present[st.ID] {
			view.Present = append(view.Present, st)
		} else {
			view.Absent = append(view.Absent, st)
		}
	}
	view.Total = len(view.Present) + len(view.Absent)
	view.Rate = Rate(len(view.Present), view.Total)
	return view
}

// LogEntry is one submitted record as shown in the trainer history.
type LogEntry struct {
	RecordID     string     `json:"recordId"`
	Date         model.Date `json:"date"`
	CourtID      string     `json:"courtId"`
	GroupID      string     `json:"groupId"`
	GroupName    string     `json:"groupName"`
	EventName    string     `json:"eventName,omitempty"`
	TrainerID    string     `json:"trainerId"`
	TrainerName  string     `json:"trainerName"`
	SubmittedAt  *time.Time `json:"submittedAt,omitempty"`
	PresentNames []string   `json:"presentNames"`
	Present      int        `json:"present"`
	Total        int        `json:"total"`
	Rate         float64    `json:"rate"`
}

// TrainerLog resolves records for display, newest first. Deleted students
// show as their raw id. The denominator for a regular group is the roster
// size captured at submission; older records without it use the current
// roster, raised to at least the present count.
func TrainerLog(records []model.AttendanceRecord, students []model.Student, catalog *schedule.Catalog) []LogEntry {
	names := make(map[string]string, len(students))
	roster := make(map[string]int)
	for _, st := range students {
		if _, ok := names[st.ID]; !ok {
			names[st.ID] = st.Name
		}
		roster[st.GroupID]++
	}

	out := make([]LogEntry, 0, len(records))
	for _, r := range records {
		e := LogEntry{
			RecordID:     r.ID,
			Date:         r.Date,
			CourtID:      r.CourtID,
			GroupID:      r.GroupID,
			GroupName:    groupName(catalog, r.CourtID, r.GroupID),
			EventName:    r.EventName,
			TrainerID:    r.TrainerID,
			TrainerName:  r.TrainerName,
			SubmittedAt:  r.SubmittedAt,
			PresentNames: make([]string, 0, len(r.PresentStudentIDs)),
			Present:      len(r.PresentStudentIDs),
		}
		for _, id := range r.PresentStudentIDs {
			if n, ok := names[id]; ok {
				e.PresentNames = append(e.PresentNames, n)
			} else {
				e.PresentNames = append(e.PresentNames, id)
			}
		}
		switch {
		case r.IsEvent():
			e.Total = e.Present
		case r.RosterSize > 0:
			e.Total = max(r.RosterSize, e.Present)
		default:
			e.Total = max(roster[r.GroupID], e.Present)
		}
		e.Rate = Rate(e.Present, e.Total)
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return newerEntry(out[i], out[j]) })
	return out
}

// newerEntry orders by date, then submission time with unstamped records
// after stamped ones, then record id.
func newerEntry(a, b LogEntry) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	switch {
	case a.SubmittedAt != nil && b.SubmittedAt != nil:
		if !a.SubmittedAt.Equal(*b.SubmittedAt) {
			return a.SubmittedAt.After(*b.SubmittedAt)
		}
	case a.SubmittedAt != nil:
		return true
	case b.SubmittedAt != nil:
		return false
	}
	return a.RecordID < b.RecordID
}

func groupName(catalog *schedule.Catalog, courtID, groupID string) string {
	if groupID == model.OthersGroupID {
		return schedule.OthersGroup().Name
	}
	if catalog != nil {
		if g, ok := catalog.Group(courtID, groupID); ok {
			return g.Name
		}
	}
	return groupID
}

// Summary totals a trainer history.
type Summary struct {
	Records        int     `json:"records"`
	Trainers       int     `json:"trainers"`
	AveragePresent float64 `json:"averagePresent"`
}

// TrainerSummary counts records, distinct trainers and mean attendance.
func TrainerSummary(records []model.AttendanceRecord) Summary {
	s := Summary{Records: len(records)}
	trainers := make(map[string]bool)
	present := 0
	for _, r := range records {
		trainers[r.TrainerID] = true
		present += len(r.PresentStudentIDs)
	}
	s.Trainers = len(trainers)
	if s.Records > 0 {
		s.AveragePresent = float64(present) / float64(s.Records)
	}
	return s
}

// SortByName returns a copy of students ordered by name, ignoring case.
func SortByName(students []model.Student) []model.Student {
	out := make([]model.Student, len(students))
	copy(out, students)
	c := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		if cmp := c.CompareString(out[i].Name, out[j].Name); cmp != 0 {
			return cmp < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}
