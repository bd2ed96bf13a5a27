package stats

import (
	"fmt"

	"attendancehub/internal/model"
)

// Range selects how a Window is bounded.
type Range string

const (
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeAll   Range = "all"
	RangeDates Range = "range"
)

// Window is a set of calendar days records are counted over.
type Window struct {
	Range Range
	From  model.Date
	To    model.Date
}

// Week is the Sunday-to-Saturday week containing ref.
func Week(ref model.Date) Window {
	start := ref.AddDays(-int(ref.Weekday()))
	return Window{Range: RangeWeek, From: start, To: start.AddDays(6)}
}

// Month is the calendar month containing ref.
func Month(ref model.Date) Window {
	start := model.NewDate(ref.Year(), ref.Month(), 1)
	return Window{Range: RangeMonth, From: start, To: model.NewDate(ref.Year(), ref.Month()+1, 0)}
}

// AllTime matches every date.
func AllTime() Window { return Window{Range: RangeAll} }

// Between matches from..to inclusive.
func Between(from, to model.Date) (Window, error) {
	if from.IsZero() || to.IsZero() {
		return Window{}, model.Invalid("range", "from and to are required")
	}
	if to.Before(from) {
		return Window{}, model.Invalid("range", fmt.Sprintf("%s is before %s", to, from))
	}
	return Window{Range: RangeDates, From: from, To: to}, nil
}

// ParseWindow builds a window from request parameters. ref anchors week and
// month windows.
func ParseWindow(kind string, ref model.Date, from, to string) (Window, error) {
	switch Range(kind) {
	case RangeWeek:
		return Week(ref), nil
	case "", RangeMonth:
		return Month(ref), nil
	case RangeAll:
		return AllTime(), nil
	case RangeDates:
		f, err := model.ParseDate(from)
		if err != nil {
			return Window{}, model.Invalid("from", err.Error())
		}
		t, err := model.ParseDate(to)
		if err != nil {
			return Window{}, model.Invalid("to", err.Error())
		}
		return Between(f, t)
	default:
		return Window{}, model.Invalid("range", "unknown range "+kind)
	}
}

// Contains reports whether d falls in the window.
func (w Window) Contains(d model.Date) bool {
	if w.Range == RangeAll {
		return true
	}
	return !d.Before(w.From) && !d.After(w.To)
}
