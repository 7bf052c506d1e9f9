package daemon

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/benjamin-macmichael/RobocopyManager/internal/archive"
	"github.com/benjamin-macmichael/RobocopyManager/internal/engine"
	"github.com/benjamin-macmichael/RobocopyManager/internal/logger"
	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
	"github.com/benjamin-macmichael/RobocopyManager/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server is the daemon's control API. The CLI (and any UI front end) talks
// to the engine exclusively through it.
type Server struct {
	echo     *echo.Echo
	coord    *engine.Coordinator
	jobRepo  *repository.JobRepository
	setRepo  *repository.SettingsRepository
	histRepo *repository.HistoryRepository
	port     int
	stopCh   chan struct{}
}

func NewServer(coord *engine.Coordinator, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		coord:    coord,
		jobRepo:  repository.NewJobRepository(),
		setRepo:  repository.NewSettingsRepository(),
		histRepo: repository.NewHistoryRepository(),
		port:     port,
		stopCh:   make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// For the entire daemon
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/stop", s.handleStop)

	// For a specific job
	g := s.echo.Group("/jobs")
	g.GET("", s.handleListJobs)
	g.POST("", s.handleAddJob)
	g.POST("/run-all", s.handleRunAll)
	g.POST("/cancel-all", s.handleCancelAll)
	g.PUT("/:id", s.handleUpdateJob)
	g.DELETE("/:id", s.handleRemoveJob)
	g.POST("/:id/run", s.handleRunJob)
	g.POST("/:id/cancel", s.handleCancelJob)

	// Global policy
	s.echo.GET("/settings", s.handleGetSettings)
	s.echo.PUT("/settings", s.handleUpdateSettings)

	// History and maintenance
	s.echo.GET("/history", s.handleHistory)
	s.echo.POST("/prune", s.handlePrune)
}

func (s *Server) Start() {
	go func() {
		addr := ":" + strconv.Itoa(s.port)
		logger.Log.Info("daemon server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("daemon server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	s.coord.CancelAll()
	return s.echo.Shutdown(ctx)
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"running": s.coord.Snapshots(),
	})
}

func (s *Server) handleStop(c echo.Context) error {
	s.stopCh <- struct{}{}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleListJobs(c echo.Context) error {
	jobs, err := s.jobRepo.GetAll()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	snaps := make(map[uint]engine.RunSnapshot)
	for _, snap := range s.coord.Snapshots() {
		snaps[snap.JobID] = snap
	}

	return c.JSON(http.StatusOK, map[string]any{
		"jobs":    jobs,
		"running": snaps,
	})
}

// jobRequest uses pointers for every field whose zero value is meaningful,
// so an absent field and an explicit false/0/"" are distinguishable.
type jobRequest struct {
	Name         string  `json:"name"`
	Src          string  `json:"src"`
	Dst          string  `json:"dst"`
	Threads      int     `json:"threads"`
	Enabled      *bool   `json:"enabled"`
	ScheduleOn   *bool   `json:"schedule_on"`
	ScheduleHour *int    `json:"schedule_hour"`
	ScheduleMin  *int    `json:"schedule_min"`
	ArchiveOn    *bool   `json:"archive_on"`
	Exclusions   *string `json:"exclusions"`
}

func (r *jobRequest) valid() bool {
	return r.Src != "" && r.Dst != "" && r.scheduleValid()
}

func (r *jobRequest) scheduleValid() bool {
	if r.ScheduleHour != nil && (*r.ScheduleHour < 0 || *r.ScheduleHour > 23) {
		return false
	}
	if r.ScheduleMin != nil && (*r.ScheduleMin < 0 || *r.ScheduleMin > 59) {
		return false
	}
	return true
}

func (s *Server) handleAddJob(c echo.Context) error {
	var req jobRequest
	if err := c.Bind(&req); err != nil || !req.valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "src and dst required"})
	}

	job := model.Job{
		Name:       req.Name,
		SrcPath:    req.Src,
		DstPath:    req.Dst,
		Threads:    req.Threads,
		Enabled:    true,
		ArchiveOn:  true,
		LastStatus: model.JobStatusNeverRun,
	}
	if job.Name == "" {
		job.Name = filepath.Base(req.Src)
	}
	if job.Threads == 0 {
		job.Threads = 8
	}
	if req.Enabled != nil {
		job.Enabled = *req.Enabled
	}
	if req.ScheduleOn != nil {
		job.ScheduleOn = *req.ScheduleOn
	}
	if req.ScheduleHour != nil {
		job.ScheduleHour = *req.ScheduleHour
	}
	if req.ScheduleMin != nil {
		job.ScheduleMin = *req.ScheduleMin
	}
	if req.ArchiveOn != nil {
		job.ArchiveOn = *req.ArchiveOn
	}
	if req.Exclusions != nil {
		job.Exclusions = *req.Exclusions
	}

	job, err := s.jobRepo.Add(job)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, job)
}

func (s *Server) handleUpdateJob(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	job, err := s.jobRepo.GetByID(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	var req jobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	if !req.scheduleValid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid schedule time"})
	}

	if req.Name != "" {
		job.Name = req.Name
	}
	if req.Src != "" {
		job.SrcPath = req.Src
	}
	if req.Dst != "" {
		job.DstPath = req.Dst
	}
	if req.Threads != 0 {
		job.Threads = req.Threads
	}
	if req.Enabled != nil {
		job.Enabled = *req.Enabled
	}
	if req.ScheduleOn != nil {
		job.ScheduleOn = *req.ScheduleOn
	}
	if req.ScheduleHour != nil {
		job.ScheduleHour = *req.ScheduleHour
	}
	if req.ScheduleMin != nil {
		job.ScheduleMin = *req.ScheduleMin
	}
	if req.ArchiveOn != nil {
		job.ArchiveOn = *req.ArchiveOn
	}
	if req.Exclusions != nil {
		job.Exclusions = *req.Exclusions
	}

	if err := s.jobRepo.Update(&job); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleRemoveJob(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	s.coord.Cancel(id)

	if err := s.jobRepo.Delete(id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRunJob(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	switch err := s.coord.Run(id, model.TriggerManual); {
	case errors.Is(err, engine.ErrAlreadyRunning):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrMissingPaths):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleCancelJob(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	s.coord.Cancel(id)
	return c.JSON(http.StatusOK, map[string]string{"status": "canceled"})
}

func (s *Server) handleRunAll(c echo.Context) error {
	started, err := s.coord.RunAll(model.TriggerRunAll)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, map[string]any{"started": started})
}

func (s *Server) handleCancelAll(c echo.Context) error {
	s.coord.CancelAll()
	return c.JSON(http.StatusOK, map[string]string{"status": "canceled"})
}

func (s *Server) handleGetSettings(c echo.Context) error {
	settings, err := s.setRepo.Get()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(c echo.Context) error {
	var settings model.Settings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}

	switch settings.Mode {
	case model.ModeCopy, model.ModeMirror, model.ModePurge:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid mode"})
	}

	if settings.RetryCount < 0 || settings.RetryWaitSec < 0 ||
		settings.RetentionDays < 0 || settings.MaxVersions < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "negative values not allowed"})
	}

	if err := s.setRepo.Update(&settings); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, settings)
}

func (s *Server) handleHistory(c echo.Context) error {
	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil {
			n = parsed
		}
	}

	if jobStr := c.QueryParam("job"); jobStr != "" {
		jobID, err := strconv.ParseUint(jobStr, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid job id"})
		}

		runs, err := s.histRepo.GetRecentForJob(uint(jobID), n)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, runs)
	}

	runs, err := s.histRepo.GetRecent(n)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, runs)
}

// handlePrune runs the retention manager on demand against every
// archiving-enabled job's version store.
func (s *Server) handlePrune(c echo.Context) error {
	settings, err := s.setRepo.Get()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	jobs, err := s.jobRepo.GetAll()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	retention := archive.NewRetention()
	pruned := 0
	for _, job := range jobs {
		if !job.ArchiveOn || job.DstPath == "" {
			continue
		}

		retention.Prune(filepath.Join(job.DstPath, model.VersionFolder), settings)
		pruned++
	}

	return c.JSON(http.StatusOK, map[string]any{"stores": pruned})
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return uint(id), err
}
