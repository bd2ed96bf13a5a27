package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"attendancehub/internal/attendance"
	"attendancehub/internal/auth"
	"attendancehub/internal/config"
	"attendancehub/internal/httpmiddleware"
	"attendancehub/internal/model"
	"attendancehub/internal/roster"
	"attendancehub/internal/schedule"
	"attendancehub/internal/store"
)

// JobPublisher enqueues admin-triggered background work.
type JobPublisher interface {
	DedupeStudents(ctx context.Context) error
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators the API is composed from.
type Deps struct {
	Config     config.App
	Catalog    *schedule.Catalog
	Attendance *attendance.Service
	Roster     *roster.Service
	Jobs       JobPublisher
	Health     map[string]HealthCheck
	Log        *zap.Logger
	Location   *time.Location
	Now        func() time.Time
}

// Server serves the attendance JSON API.
type Server struct {
	cfg        config.App
	catalog    *schedule.Catalog
	attendance *attendance.Service
	roster     *roster.Service
	jobs       JobPublisher
	health     map[string]HealthCheck
	log        *zap.Logger
	loc        *time.Location
	now        func() time.Time
}

func New(d Deps) *Server {
	s := &Server{
		cfg:        d.Config,
		catalog:    d.Catalog,
		attendance: d.Attendance,
		roster:     d.Roster,
		jobs:       d.Jobs,
		health:     d.Health,
		log:        d.Log,
		loc:        d.Location,
		now:        d.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Router builds the gin engine with middleware and every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(s.log, "/healthz", "/metrics"))
	r.Use(cors.New(s.corsConfig()))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(s.cfg.RateLimitPerMin, s.cfg.RateLimitPerMin, nil).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)

	loginLimit := httpmiddleware.NewTokenBucket(s.cfg.LoginLimitPerMin, s.cfg.LoginLimitPerMin, httpmiddleware.ByClientIPAndCourt).GinMiddleware()
	bearer := auth.Bearer(s.cfg.JWTSigningKey, s.cfg.JWTIssuer)

	v1 := r.Group("/v1")
	v1.GET("/courts", s.listCourts)
	v1.POST("/admin/login", loginLimit, s.adminLogin)

	public := v1.Group("/courts/:court", s.knownCourt)
	public.GET("/groups", s.listGroups)
	public.GET("/groups/:group/session", s.sessionStatus)
	public.POST("/login", loginLimit, s.trainerLogin)

	court := v1.Group("/courts/:court", s.knownCourt, bearer, auth.RequireCourt("court"))
	court.POST("/attendance", auth.RequireRole(auth.RoleTrainer), s.submitAttendance)
	court.GET("/attendance", s.getAttendance)
	court.GET("/students", s.listCourtStudents)
	court.GET("/students/:id/stats", s.studentStats)
	court.GET("/reports/overview", s.overview)
	court.GET("/reports/daily", s.dailyReport)
	court.GET("/reports/trainer-log", s.trainerLog)

	admin := v1.Group("/admin", bearer, auth.RequireRole(auth.RoleAdmin))
	admin.GET("/students", s.adminListStudents)
	admin.POST("/students", s.adminAddStudent)
	admin.PATCH("/students/:id", s.adminMoveStudent)
	admin.DELETE("/students/:id", s.adminRemoveStudent)
	admin.POST("/students/dedupe", s.adminDedupe)
	admin.GET("/trainers", s.adminListTrainers)
	admin.POST("/trainers", s.adminAddTrainer)
	admin.PUT("/trainers/:id/passcode", s.adminUpdatePasscode)
	admin.DELETE("/trainers/:id", s.adminRemoveTrainer)
	admin.POST("/jobs/dedupe", s.adminEnqueueDedupe)

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	cfg.MaxAge = 24 * time.Hour
	if len(s.cfg.CORSOrigins) == 0 || (len(s.cfg.CORSOrigins) == 1 && s.cfg.CORSOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.CORSOrigins
	}
	return cfg
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range s.health {
		ok := check(ctx)
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func (s *Server) knownCourt(c *gin.Context) {
	if !s.catalog.HasCourt(c.Param("court")) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown court", "code": "not_found"})
		return
	}
	c.Next()
}

func (s *Server) today() model.Date {
	return model.DateOf(s.now().In(s.loc))
}

// dateParam reads an optional YYYY-MM-DD query value, defaulting to today.
func (s *Server) dateParam(c *gin.Context, name string) (model.Date, error) {
	raw := c.Query(name)
	if raw == "" {
		return s.today(), nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, model.Invalid(name, "must be YYYY-MM-DD")
	}
	return d, nil
}

// fail maps domain errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		verr   *model.ValidationError
		failed *attendance.SubmissionFailedError
		perr   *store.PersistenceError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field, "code": "invalid"})
	case errors.Is(err, attendance.ErrSessionInactive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "session_inactive"})
	case errors.Is(err, roster.ErrDuplicateKey), errors.Is(err, roster.ErrPasscodeTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "duplicate"})
	case errors.Is(err, roster.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
	case errors.As(err, &failed), errors.As(err, &perr):
		s.log.Error("storage failure", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "storage unavailable, try again", "code": "storage"})
	default:
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
	}
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid"})
}
