package repository

import (
	"errors"

	"github.com/benjamin-macmichael/RobocopyManager/internal/db"
	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
	"gorm.io/gorm"
)

type SettingsRepository struct{}

func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{}
}

// Get returns the single settings row, creating the defaults on first use.
// Callers receive a copy, so a run holding settings is unaffected by a
// concurrent update.
func (r *SettingsRepository) Get() (model.Settings, error) {
	var settings model.Settings
	err := db.DB.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = model.Settings{
			Mode:             model.ModeCopy,
			IncludeEmptyDirs: true,
			RetryCount:       3,
			RetryWaitSec:     5,
			Versioning:       true,
		}
		return settings, db.DB.Create(&settings).Error
	}

	return settings, err
}

func (r *SettingsRepository) Update(settings *model.Settings) error {
	current, err := r.Get()
	if err != nil {
		return err
	}

	settings.ID = current.ID
	settings.CreatedAt = current.CreatedAt
	return db.DB.Save(settings).Error
}
