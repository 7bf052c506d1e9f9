package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type JobStatus string

const (
	JobStatusNeverRun JobStatus = "NEVER_RUN"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusSuccess  JobStatus = "SUCCESS"
	JobStatusFailed   JobStatus = "FAILED"
	JobStatusCanceled JobStatus = "CANCELED"
)

type TriggerSource string

const (
	TriggerManual    TriggerSource = "MANUAL"
	TriggerScheduled TriggerSource = "SCHEDULED"
	TriggerRunAll    TriggerSource = "RUN_ALL"
)

const (
	MinThreads = 1
	MaxThreads = 128
)

// Job is one configured source→destination synchronization task.
// Run-state fields (LastTrigger and later) are bookkeeping written by the
// scheduler and the coordinator, never by the user.
type Job struct {
	gorm.Model
	Name    string `gorm:"not null"`
	SrcPath string `gorm:"not null"`
	DstPath string `gorm:"not null"`
	Threads int    `gorm:"not null;default:8"`
	// No default tags on the booleans: gorm omits defaulted zero values on
	// insert, so a column default would overwrite an explicit false.
	Enabled      bool `gorm:"not null"`
	ScheduleOn   bool `gorm:"not null"`
	ScheduleHour int  `gorm:"not null;default:0"`
	ScheduleMin  int  `gorm:"not null;default:0"`
	ArchiveOn    bool `gorm:"not null"`
	Exclusions   string
	LastTrigger  *time.Time
	LastStart    *time.Time
	LastFinish   *time.Time
	LastExitCode *int
	LastStatus   JobStatus `gorm:"not null;default:'NEVER_RUN'"`
}

// Runnable reports whether the job can be handed to the coordinator at all.
func (j *Job) Runnable() bool {
	return j.Enabled && j.SrcPath != "" && j.DstPath != ""
}

// ExcludeList splits the free-text exclusion column (semicolon separated)
// into directory names.
func (j *Job) ExcludeList() []string {
	if j.Exclusions == "" {
		return nil
	}

	var names []string
	for _, part := range strings.Split(j.Exclusions, ";") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}

	return names
}

// ClampThreads bounds the parallelism hint to what the copy tool accepts.
func (j *Job) ClampThreads() int {
	switch {
	case j.Threads < MinThreads:
		return MinThreads
	case j.Threads > MaxThreads:
		return MaxThreads
	default:
		return j.Threads
	}
}
