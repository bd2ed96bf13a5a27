package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendancehub/internal/model"
	"attendancehub/internal/stats"
)

// degraded logs a failed read. Dashboards poll, so the handler carries on
// with an empty result instead of failing the request.
func (s *Server) degraded(c *gin.Context, what string, err error) {
	s.log.Warn("read failed, serving empty result",
		zap.String("what", what),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.Header("X-Degraded", "true")
}

// courtStudents returns students whose group belongs to the court.
func (s *Server) courtStudents(c *gin.Context, courtID string) []model.Student {
	ids := s.catalog.RosterGroupIDs(courtID)
	if len(ids) == 0 {
		return []model.Student{}
	}
	students, err := s.roster.Students(c.Request.Context(), ids...)
	if err != nil {
		s.degraded(c, "students", err)
		return []model.Student{}
	}
	return students
}

func (s *Server) allStudents(c *gin.Context) []model.Student {
	students, err := s.roster.Students(c.Request.Context())
	if err != nil {
		s.degraded(c, "students", err)
		return []model.Student{}
	}
	return students
}

func (s *Server) courtRecords(c *gin.Context, courtID string) []model.AttendanceRecord {
	records, err := s.attendance.Records(c.Request.Context(), courtID)
	if err != nil {
		s.degraded(c, "records", err)
		return []model.AttendanceRecord{}
	}
	return records
}

func filterGroup(students []model.Student, group string) []model.Student {
	if group == "" || group == stats.AllGroups {
		return students
	}
	out := make([]model.Student, 0, len(students))
	for _, st := range students {
		if st.GroupID == group {
			out = append(out, st)
		}
	}
	return out
}

// listCourtStudents lists the court roster sorted by name. The event
// pseudo-group lists every student, optionally narrowed by ?q.
func (s *Server) listCourtStudents(c *gin.Context) {
	group := c.Query("group")
	var students []model.Student
	if group == model.OthersGroupID {
		students = searchByName(s.allStudents(c), c.Query("q"))
	} else {
		students = filterGroup(s.courtStudents(c, c.Param("court")), group)
	}
	c.JSON(http.StatusOK, gin.H{"students": stats.SortByName(students)})
}

// window reads ?range, ?from, ?to and ?month (YYYY-MM) into a stats window.
func (s *Server) window(c *gin.Context) (stats.Window, error) {
	ref := s.today()
	if m := c.Query("month"); m != "" {
		t, err := time.Parse("2006-01", m)
		if err != nil {
			return stats.Window{}, model.Invalid("month", "must be YYYY-MM")
		}
		ref = model.DateOf(t)
	}
	return stats.ParseWindow(c.Query("range"), ref, c.Query("from"), c.Query("to"))
}

func (s *Server) studentStats(c *gin.Context) {
	w, err := s.window(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	id := c.Param("id")
	for _, st := range s.courtStudents(c, c.Param("court")) {
		if st.ID == id {
			c.JSON(http.StatusOK, gin.H{"window": w, "stats": stats.StudentStats(st, s.courtRecords(c, c.Param("court")), w)})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "unknown student", "code": "not_found"})
}

func (s *Server) overview(c *gin.Context) {
	w, err := s.window(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	courtID := c.Param("court")
	students := s.courtStudents(c, courtID)
	records := s.courtRecords(c, courtID)
	c.JSON(http.StatusOK, gin.H{
		"overview": stats.Overview(filterGroup(students, c.Query("group")), records, w),
		"groups":   stats.GroupStats(s.catalog.ResolveGroups(courtID), students, records, w),
	})
}

func (s *Server) dailyReport(c *gin.Context) {
	date, err := s.dateParam(c, "date")
	if err != nil {
		s.fail(c, err)
		return
	}
	courtID := c.Param("court")
	report := stats.DailyReport(s.courtStudents(c, courtID), s.courtRecords(c, courtID), date, c.Query("group"))
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (s *Server) trainerLog(c *gin.Context) {
	courtID := c.Param("court")
	records := s.courtRecords(c, courtID)
	if trainer := c.Query("trainer"); trainer != "" {
		records = byTrainer(records, trainer)
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": stats.TrainerLog(records, s.allStudents(c), s.catalog),
		"summary": stats.TrainerSummary(records),
	})
}

func byTrainer(records []model.AttendanceRecord, trainerID string) []model.AttendanceRecord {
	out := make([]model.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if r.TrainerID == trainerID {
			out = append(out, r)
		}
	}
	return out
}

func searchByName(students []model.Student, q string) []model.Student {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return students
	}
	out := make([]model.Student, 0, len(students))
	for _, st := range students {
		if strings.Contains(strings.ToLower(st.Name), q) {
			out = append(out, st)
		}
	}
	return out
}
