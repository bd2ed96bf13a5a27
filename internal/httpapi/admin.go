package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"attendancehub/internal/model"
	"attendancehub/internal/stats"
)

func (s *Server) adminListStudents(c *gin.Context) {
	students, err := s.roster.Students(c.Request.Context())
	if err != nil {
		s.degraded(c, "students", err)
		students = []model.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": stats.SortByName(filterGroup(students, c.Query("group")))})
}

type addStudentRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name" binding:"required"`
	GroupID string `json:"groupId" binding:"required"`
}

func (s *Server) adminAddStudent(c *gin.Context) {
	var req addStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	st, err := s.roster.AddStudent(c.Request.Context(), model.Student{ID: req.ID, Name: req.Name, GroupID: req.GroupID})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"student": st})
}

type moveStudentRequest struct {
	GroupID string `json:"groupId" binding:"required"`
}

func (s *Server) adminMoveStudent(c *gin.Context) {
	var req moveStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := s.roster.MoveStudent(c.Request.Context(), c.Param("id"), req.GroupID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) adminRemoveStudent(c *gin.Context) {
	if err := s.roster.RemoveStudent(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) adminDedupe(c *gin.Context) {
	removed, err := s.roster.DedupeStudents(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) adminEnqueueDedupe(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue not configured", "code": "unavailable"})
		return
	}
	if err := s.jobs.DedupeStudents(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (s *Server) adminListTrainers(c *gin.Context) {
	trainers, err := s.roster.Trainers(c.Request.Context(), c.Query("court"))
	if err != nil {
		s.degraded(c, "trainers", err)
		trainers = []model.Trainer{}
	}
	c.JSON(http.StatusOK, gin.H{"trainers": trainers})
}

type addTrainerRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name" binding:"required"`
	CourtID  string `json:"courtId" binding:"required"`
	Passcode string `json:"passcode" binding:"required"`
}

func (s *Server) adminAddTrainer(c *gin.Context) {
	var req addTrainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if !s.catalog.HasCourt(req.CourtID) {
		s.fail(c, model.Invalid("courtId", "unknown court "+req.CourtID))
		return
	}
	t, err := s.roster.AddTrainer(c.Request.Context(), model.Trainer{ID: req.ID, Name: req.Name, CourtID: req.CourtID, Passcode: req.Passcode})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"trainer": t})
}

type passcodeRequest struct {
	Passcode string `json:"passcode" binding:"required"`
}

func (s *Server) adminUpdatePasscode(c *gin.Context) {
	var req passcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := s.roster.UpdatePasscode(c.Request.Context(), c.Param("id"), req.Passcode); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) adminRemoveTrainer(c *gin.Context) {
	if err := s.roster.RemoveTrainer(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
