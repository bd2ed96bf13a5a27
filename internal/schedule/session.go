package schedule

import "attendancehub/internal/model"

// IsSessionActive reports whether g meets on date. Events always run, and a
// group with no configured days is treated as always active.
func IsSessionActive(g Group, date model.Date) bool {
	if g.IsEvent() || len(g.Days) == 0 {
		return true
	}
	wd := int(date.Weekday())
	for _, d := range g.Days {
		if d == wd {
			return true
		}
	}
	return false
}

// ActiveGroups filters groups down to those meeting on date.
func ActiveGroups(groups []Group, date model.Date) []Group {
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		if IsSessionActive(g, date) {
			out = append(out, g)
		}
	}
	return out
}
