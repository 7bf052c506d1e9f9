package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benjamin-macmichael/RobocopyManager/internal/archive"
	"github.com/benjamin-macmichael/RobocopyManager/internal/logger"
	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
	"github.com/benjamin-macmichael/RobocopyManager/internal/notify"
	"github.com/benjamin-macmichael/RobocopyManager/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrAlreadyRunning = errors.New("job is already running")
	ErrMissingPaths   = errors.New("source and destination paths must be set")
)

// liveRun is one entry in the live process table. The entry exists from the
// moment a run is accepted until its single exit path removes it; its
// presence is the per-job mutual-exclusion gate.
type liveRun struct {
	mu       sync.Mutex
	proc     Process
	canceled bool

	jobID     uint
	jobName   string
	src       string
	dst       string
	runID     string
	trigger   model.TriggerSource
	startedAt time.Time
}

// attach hands the started process to the entry. It reports false when the
// run was canceled before the process existed, in which case the caller must
// kill it immediately.
func (lr *liveRun) attach(p Process) bool {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if lr.canceled {
		return false
	}
	lr.proc = p
	return true
}

func (lr *liveRun) cancel() {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	lr.canceled = true
	if lr.proc != nil {
		_ = lr.proc.Kill()
	}
}

func (lr *liveRun) wasCanceled() bool {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.canceled
}

// Coordinator serializes execution per job id, owns the live process table,
// and records every run's outcome.
type Coordinator struct {
	mu   sync.Mutex
	runs map[uint]*liveRun
	wg   sync.WaitGroup

	runner   Runner
	copyTool string
	archiver *archive.Engine

	jobs     *repository.JobRepository
	settings *repository.SettingsRepository
	history  *repository.HistoryRepository
	bus      *notify.Bus
}

func NewCoordinator(copyTool string, runner Runner, bus *notify.Bus) *Coordinator {
	return &Coordinator{
		runs:     make(map[uint]*liveRun),
		runner:   runner,
		copyTool: copyTool,
		archiver: archive.NewEngine(),
		jobs:     repository.NewJobRepository(),
		settings: repository.NewSettingsRepository(),
		history:  repository.NewHistoryRepository(),
		bus:      bus,
	}
}

// Run accepts one run for the job and returns immediately; the archive step,
// the copy process, and the wait-for-exit all happen on a dedicated
// goroutine. It fails fast when the paths are not set or the job already has
// a run in flight.
func (c *Coordinator) Run(jobID uint, trigger model.TriggerSource) error {
	job, err := c.jobs.GetByID(jobID)
	if err != nil {
		return fmt.Errorf("job %d not found: %w", jobID, err)
	}

	if job.SrcPath == "" || job.DstPath == "" {
		return ErrMissingPaths
	}

	settings, err := c.settings.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	now := time.Now()
	lr := &liveRun{
		jobID:     job.ID,
		jobName:   job.Name,
		src:       job.SrcPath,
		dst:       job.DstPath,
		runID:     uuid.NewString(),
		trigger:   trigger,
		startedAt: now,
	}

	c.mu.Lock()
	if _, exists := c.runs[job.ID]; exists {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.runs[job.ID] = lr
	c.mu.Unlock()

	if err := c.jobs.RecordStart(job.ID, now); err != nil {
		logger.Log.Warn("failed to persist run start",
			zap.Uint("id", job.ID),
			zap.Error(err))
	}

	c.bus.Publish(notify.Event{
		JobID:     job.ID,
		RunID:     lr.runID,
		Status:    model.JobStatusRunning,
		Trigger:   trigger,
		StartedAt: &now,
	})

	logger.Log.Info("run accepted",
		zap.Uint("id", job.ID),
		zap.String("run", lr.runID),
		zap.String("trigger", string(trigger)))

	c.wg.Add(1)
	go c.execute(job, settings, lr)

	return nil
}

// execute is the run's dedicated path: archive, start the copy process,
// wait for exit, record the outcome. The live table entry is removed in
// finish and nowhere else.
func (c *Coordinator) execute(job model.Job, settings model.Settings, lr *liveRun) {
	defer c.wg.Done()

	if settings.Versioning && job.ArchiveOn {
		if err := c.archiver.Run(job, settings); err != nil {
			logger.Log.Warn("archive step failed",
				zap.Uint("id", job.ID),
				zap.Error(err))
		}
	}

	if lr.wasCanceled() {
		c.finish(lr, StartFailureExitCode, model.JobStatusCanceled)
		return
	}

	proc, err := c.runner.Start(c.copyTool, BuildArgs(job, settings))
	if err != nil {
		logger.Log.Error("failed to start copy process",
			zap.Uint("id", job.ID),
			zap.Error(err))
		c.finish(lr, StartFailureExitCode, model.JobStatusFailed)
		return
	}

	if !lr.attach(proc) {
		_ = proc.Kill()
		_, _ = proc.Wait()
		c.finish(lr, StartFailureExitCode, model.JobStatusCanceled)
		return
	}

	code, err := proc.Wait()
	if err != nil {
		logger.Log.Warn("copy process wait error",
			zap.Uint("id", job.ID),
			zap.Error(err))
	}

	status := model.JobStatusSuccess
	switch {
	case lr.wasCanceled():
		status = model.JobStatusCanceled
	case code >= successThreshold || code == StartFailureExitCode:
		status = model.JobStatusFailed
	}

	c.finish(lr, code, status)
}

// finish is the single exit path: it removes the live table entry exactly
// once, persists the outcome, and notifies observers.
func (c *Coordinator) finish(lr *liveRun, exitCode int, status model.JobStatus) {
	c.mu.Lock()
	delete(c.runs, lr.jobID)
	c.mu.Unlock()

	now := time.Now()
	if err := c.jobs.RecordFinish(lr.jobID, now, exitCode, status); err != nil {
		logger.Log.Warn("failed to persist run finish",
			zap.Uint("id", lr.jobID),
			zap.Error(err))
	}

	if err := c.history.Save(model.RunHistory{
		RunID:      lr.runID,
		JobID:      lr.jobID,
		JobName:    lr.jobName,
		Trigger:    lr.trigger,
		StartedAt:  lr.startedAt,
		FinishedAt: now,
		ExitCode:   exitCode,
		Status:     status,
	}); err != nil {
		logger.Log.Warn("failed to save run history",
			zap.Uint("id", lr.jobID),
			zap.Error(err))
	}

	c.bus.Publish(notify.Event{
		JobID:      lr.jobID,
		RunID:      lr.runID,
		Status:     status,
		Trigger:    lr.trigger,
		StartedAt:  &lr.startedAt,
		FinishedAt: &now,
		ExitCode:   &exitCode,
	})

	logger.Log.Info("run finished",
		zap.Uint("id", lr.jobID),
		zap.String("run", lr.runID),
		zap.Int("exit_code", exitCode),
		zap.String("status", string(status)))
}

// Running reports whether the job currently has a run in the live table.
func (c *Coordinator) Running(jobID uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.runs[jobID]
	return ok
}

// Cancel terminates the job's run if one is in flight. Canceling a job with
// no live entry is a no-op; table removal always happens on the run's own
// exit path.
func (c *Coordinator) Cancel(jobID uint) {
	c.mu.Lock()
	lr, ok := c.runs[jobID]
	c.mu.Unlock()

	if !ok {
		return
	}

	logger.Log.Info("canceling run",
		zap.Uint("id", jobID),
		zap.String("run", lr.runID))
	lr.cancel()
}

// CancelAll terminates every tracked run.
func (c *Coordinator) CancelAll() {
	c.mu.Lock()
	live := make([]*liveRun, 0, len(c.runs))
	for _, lr := range c.runs {
		live = append(live, lr)
	}
	c.mu.Unlock()

	for _, lr := range live {
		lr.cancel()
	}
}

// RunAll fires a run for every enabled job with usable paths. Jobs already
// running are skipped; different job ids run concurrently.
func (c *Coordinator) RunAll(trigger model.TriggerSource) (int, error) {
	jobs, err := c.jobs.GetAll()
	if err != nil {
		return 0, err
	}

	started := 0
	for _, job := range jobs {
		if !job.Runnable() {
			continue
		}

		if err := c.Run(job.ID, trigger); err != nil {
			if !errors.Is(err, ErrAlreadyRunning) {
				logger.Log.Warn("failed to start job",
					zap.Uint("id", job.ID),
					zap.Error(err))
			}
			continue
		}
		started++
	}

	return started, nil
}

// Wait blocks until every accepted run has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

type RunSnapshot struct {
	JobID     uint                `json:"job_id"`
	JobName   string              `json:"job_name"`
	Src       string              `json:"src"`
	Dst       string              `json:"dst"`
	RunID     string              `json:"run_id"`
	Trigger   model.TriggerSource `json:"trigger"`
	StartedAt time.Time           `json:"started_at"`
}

// Snapshots returns a copy of the live process table for status views.
func (c *Coordinator) Snapshots() []RunSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snaps := make([]RunSnapshot, 0, len(c.runs))
	for _, lr := range c.runs {
		snaps = append(snaps, RunSnapshot{
			JobID:     lr.jobID,
			JobName:   lr.jobName,
			Src:       lr.src,
			Dst:       lr.dst,
			RunID:     lr.runID,
			Trigger:   lr.trigger,
			StartedAt: lr.startedAt,
		})
	}

	return snaps
}
