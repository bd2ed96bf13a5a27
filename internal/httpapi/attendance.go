package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"attendancehub/internal/attendance"
	"attendancehub/internal/auth"
	"attendancehub/internal/model"
)

type submitRequest struct {
	Date              string   `json:"date"`
	GroupID           string   `json:"groupId" binding:"required"`
	PresentStudentIDs []string `json:"presentStudentIds"`
	EventName         string   `json:"eventName"`
}

func (s *Server) submitAttendance(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	date := s.today()
	if req.Date != "" {
		d, err := model.ParseDate(req.Date)
		if err != nil {
			s.fail(c, model.Invalid("date", "must be YYYY-MM-DD"))
			return
		}
		date = d
	}
	claims, _ := auth.FromContext(c)

	rec, err := s.attendance.Submit(c.Request.Context(), attendance.Submission{
		Date:              date,
		CourtID:           c.Param("court"),
		GroupID:           req.GroupID,
		TrainerID:         claims.TrainerID(),
		TrainerName:       claims.TrainerName,
		PresentStudentIDs: req.PresentStudentIDs,
		EventName:         req.EventName,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": rec})
}

// getAttendance returns the current record for a group and date so a
// trainer can pre-fill the roster.
func (s *Server) getAttendance(c *gin.Context) {
	date, err := s.dateParam(c, "date")
	if err != nil {
		s.fail(c, err)
		return
	}
	group := c.Query("group")
	if group == "" {
		s.fail(c, model.Invalid("group", "is required"))
		return
	}
	key := model.RecordKey{Date: date, GroupID: group, CourtID: c.Param("court")}
	rec, err := s.attendance.Existing(c.Request.Context(), key)
	if err != nil {
		s.degraded(c, "existing record", err)
		rec = nil
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}
