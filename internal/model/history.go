package model

import (
	"time"

	"gorm.io/gorm"
)

// RunHistory is one finished run of a job, kept for the history view.
type RunHistory struct {
	gorm.Model
	RunID      string `gorm:"not null"`
	JobID      uint   `gorm:"not null;index"`
	JobName    string
	Trigger    TriggerSource `gorm:"not null"`
	StartedAt  time.Time     `gorm:"not null"`
	FinishedAt time.Time     `gorm:"not null"`
	ExitCode   int
	Status     JobStatus `gorm:"not null"`
}
