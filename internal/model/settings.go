package model

import "gorm.io/gorm"

type CopyMode string

const (
	// ModeCopy copies changed files and never deletes anything.
	ModeCopy CopyMode = "COPY"
	// ModeMirror makes the destination exactly match the source, deletions included.
	ModeMirror CopyMode = "MIRROR"
	// ModePurge deletes destination-only entries without full mirroring semantics.
	ModePurge CopyMode = "PURGE"
)

// VersionFolder is the name of the version store under each destination.
// It is fixed so that every run (and the archive walk itself) can exclude it.
const VersionFolder = "_versions"

// Settings is the single process-wide policy record shared by all jobs.
// Every run reads its own copy at accept time, so an update never affects
// a run already in flight.
type Settings struct {
	gorm.Model
	Mode             CopyMode `gorm:"not null;default:'COPY'"`
	IncludeEmptyDirs bool     `gorm:"not null;default:true"`
	RetryCount       int      `gorm:"not null;default:3"`
	RetryWaitSec     int      `gorm:"not null;default:5"`
	Versioning       bool     `gorm:"not null;default:true"`
	RetentionDays    int      `gorm:"not null;default:0"`
	MaxVersions      int      `gorm:"not null;default:0"`
}

// DeletesFromDst reports whether the effective mode removes destination-only
// files, which is what makes them worth archiving first.
func (s *Settings) DeletesFromDst() bool {
	return s.Mode == ModeMirror || s.Mode == ModePurge
}
