package engine

import (
	"time"

	"github.com/benjamin-macmichael/RobocopyManager/internal/logger"
	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
	"github.com/benjamin-macmichael/RobocopyManager/internal/repository"
	"go.uber.org/zap"
)

const (
	// dueWindow is how close to its scheduled time-of-day a job must be to
	// fire. Must stay under triggerCooldown, which in turn stays under two
	// tick intervals, or a job could double-fire within one day.
	dueWindow = time.Minute

	// triggerCooldown suppresses re-firing while successive ticks still see
	// the job inside the due window. The bound is inclusive: minute-aligned
	// ticks see the window edges exactly two minutes apart.
	triggerCooldown = 2 * time.Minute

	initialDelay = 5 * time.Second
)

// Scheduler fires scheduled jobs once their time-of-day arrives. Each tick
// takes a snapshot of the configured jobs and dispatches due ones to the
// coordinator; the coordinator's Run is asynchronous, so a tick never blocks
// on a job's completion.
type Scheduler struct {
	coord  *Coordinator
	jobs   *repository.JobRepository
	tick   time.Duration
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewScheduler(coord *Coordinator, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}

	return &Scheduler{
		coord:  coord,
		jobs:   repository.NewJobRepository(),
		tick:   tick,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	go s.loop()
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)

	select {
	case <-time.After(initialDelay):
	case <-s.stopCh:
		return
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	logger.Log.Info("scheduler started",
		zap.Duration("tick", s.tick))

	for {
		select {
		case now := <-ticker.C:
			s.Evaluate(now)
		case <-s.stopCh:
			return
		}
	}
}

// Evaluate runs one scheduling pass. An error on one job is logged and never
// stops evaluation of the rest.
func (s *Scheduler) Evaluate(now time.Time) {
	jobs, err := s.jobs.GetAll()
	if err != nil {
		logger.Log.Error("scheduler failed to load jobs",
			zap.Error(err))
		return
	}

	for _, job := range jobs {
		if !s.due(job, now) {
			continue
		}

		// Stamp the trigger before dispatching so a slow pass cannot
		// re-evaluate the same job as still due.
		if err := s.jobs.RecordTrigger(job.ID, now); err != nil {
			logger.Log.Warn("failed to record trigger",
				zap.Uint("id", job.ID),
				zap.Error(err))
		}

		logger.Log.Info("schedule due",
			zap.Uint("id", job.ID),
			zap.Int("hour", job.ScheduleHour),
			zap.Int("minute", job.ScheduleMin))

		if err := s.coord.Run(job.ID, model.TriggerScheduled); err != nil {
			logger.Log.Warn("scheduled run rejected",
				zap.Uint("id", job.ID),
				zap.Error(err))
		}
	}
}

func (s *Scheduler) due(job model.Job, now time.Time) bool {
	if !job.Enabled || !job.ScheduleOn {
		return false
	}

	if s.coord.Running(job.ID) {
		return false
	}

	if job.LastTrigger != nil && now.Sub(*job.LastTrigger) <= triggerCooldown {
		return false
	}

	return timeOfDayDiff(now, job.ScheduleHour, job.ScheduleMin) <= dueWindow
}

// timeOfDayDiff is the distance between now's time-of-day and the scheduled
// hour:minute on the 24h ring, so a job scheduled at 00:00 is one minute
// away at 23:59, not 1439.
func timeOfDayDiff(now time.Time, hour, minute int) time.Duration {
	nowSec := now.Hour()*3600 + now.Minute()*60 + now.Second()
	schedSec := hour*3600 + minute*60

	diff := nowSec - schedSec
	if diff < 0 {
		diff = -diff
	}
	if diff > 12*3600 {
		diff = 24*3600 - diff
	}

	return time.Duration(diff) * time.Second
}
