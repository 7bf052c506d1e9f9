package repository

import (
	"time"

	"github.com/benjamin-macmichael/RobocopyManager/internal/db"
	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
)

type JobRepository struct{}

func NewJobRepository() *JobRepository {
	return &JobRepository{}
}

func (r *JobRepository) Add(job model.Job) (model.Job, error) {
	if job.LastStatus == "" {
		job.LastStatus = model.JobStatusNeverRun
	}

	return job, db.DB.Create(&job).Error
}

func (r *JobRepository) GetAll() ([]model.Job, error) {
	var jobs []model.Job
	return jobs, db.DB.Find(&jobs).Error
}

func (r *JobRepository) GetByID(id uint) (model.Job, error) {
	var job model.Job
	return job, db.DB.First(&job, id).Error
}

func (r *JobRepository) Update(job *model.Job) error {
	return db.DB.Save(job).Error
}

func (r *JobRepository) Delete(id uint) error {
	return db.DB.Delete(&model.Job{}, id).Error
}

// RecordTrigger stamps the scheduler's trigger bookkeeping before dispatch,
// so a slow tick never re-evaluates the same job as still due.
func (r *JobRepository) RecordTrigger(id uint, at time.Time) error {
	return db.DB.Model(&model.Job{}).
		Where("id = ?", id).
		Update("last_trigger", at).Error
}

// RecordStart marks the job running and clears the previous run's outcome.
func (r *JobRepository) RecordStart(id uint, at time.Time) error {
	return db.DB.Model(&model.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_status":    model.JobStatusRunning,
			"last_start":     at,
			"last_finish":    nil,
			"last_exit_code": nil,
		}).Error
}

// ResetStaleRunning downgrades running markers left behind by a previous
// process. A fresh daemon starts with an empty live process table, so no
// job can actually be running.
func (r *JobRepository) ResetStaleRunning() error {
	return db.DB.Model(&model.Job{}).
		Where("last_status = ?", model.JobStatusRunning).
		Update("last_status", model.JobStatusFailed).Error
}

func (r *JobRepository) RecordFinish(id uint, at time.Time, exitCode int, status model.JobStatus) error {
	return db.DB.Model(&model.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_status":    status,
			"last_finish":    at,
			"last_exit_code": exitCode,
		}).Error
}
