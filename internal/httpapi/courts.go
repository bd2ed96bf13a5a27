package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendancehub/internal/auth"
	"attendancehub/internal/schedule"
)

type courtView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type groupView struct {
	schedule.Group
	Active bool `json:"active"`
}

func (s *Server) listCourts(c *gin.Context) {
	courts := s.catalog.Courts()
	out := make([]courtView, len(courts))
	for i, ct := range courts {
		out[i] = courtView{ID: ct.ID, Name: ct.Name}
	}
	c.JSON(http.StatusOK, gin.H{"courts": out})
}

// listGroups returns the court's groups plus the event pseudo-group, each
// flagged with whether it meets on ?date (default today).
func (s *Server) listGroups(c *gin.Context) {
	date, err := s.dateParam(c, "date")
	if err != nil {
		s.fail(c, err)
		return
	}
	groups := append(s.catalog.ResolveGroups(c.Param("court")), schedule.OthersGroup())
	out := make([]groupView, len(groups))
	for i, g := range groups {
		out[i] = groupView{Group: g, Active: schedule.IsSessionActive(g, date)}
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "groups": out})
}

func (s *Server) sessionStatus(c *gin.Context) {
	date, err := s.dateParam(c, "date")
	if err != nil {
		s.fail(c, err)
		return
	}
	g, ok := s.catalog.Group(c.Param("court"), c.Param("group"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown group", "code": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groupId": g.ID, "date": date, "weekday": int(date.Weekday()), "active": schedule.IsSessionActive(g, date)})
}

type loginRequest struct {
	Passcode string `json:"passcode" binding:"required"`
}

func (s *Server) trainerLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	courtID := c.Param("court")
	trainer, err := s.roster.ResolvePasscode(c.Request.Context(), courtID, req.Passcode)
	if err != nil {
		s.fail(c, err)
		return
	}
	if trainer == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid passcode", "code": "unauthorized"})
		return
	}
	tok, err := auth.Issue(auth.Identity{
		TrainerID:   trainer.ID,
		TrainerName: trainer.Name,
		CourtID:     courtID,
		Role:        auth.RoleTrainer,
	}, s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("trainer logged in", zap.String("trainer", trainer.ID), zap.String("court", courtID))
	c.JSON(http.StatusOK, gin.H{
		"token":   tok,
		"trainer": gin.H{"id": trainer.ID, "name": trainer.Name, "courtId": trainer.CourtID},
		"court":   courtView{ID: courtID, Name: s.catalog.CourtName(courtID)},
	})
}

func (s *Server) adminLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Passcode), []byte(s.cfg.AdminPasscode)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid passcode", "code": "unauthorized"})
		return
	}
	tok, err := auth.Issue(auth.Identity{TrainerID: "admin", TrainerName: "Admin", Role: auth.RoleAdmin},
		s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}
