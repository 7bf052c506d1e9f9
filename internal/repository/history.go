package repository

import (
	"github.com/benjamin-macmichael/RobocopyManager/internal/db"
	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
)

type HistoryRepository struct{}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

func (r *HistoryRepository) Save(run model.RunHistory) error {
	return db.DB.Create(&run).Error
}

func (r *HistoryRepository) GetRecent(limit int) ([]model.RunHistory, error) {
	var runs []model.RunHistory
	result := db.DB.
		Order("finished_at desc").
		Limit(limit).
		Find(&runs)

	return runs, result.Error
}

func (r *HistoryRepository) GetRecentForJob(jobID uint, limit int) ([]model.RunHistory, error) {
	var runs []model.RunHistory
	result := db.DB.
		Where("job_id = ?", jobID).
		Order("finished_at desc").
		Limit(limit).
		Find(&runs)

	return runs, result.Error
}

type Stats struct {
	Total   int64
	Success int64
	Failed  int64
}

func (r *HistoryRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := db.DB.Model(&model.RunHistory{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.RunHistory{}).
		Where("status = ?", model.JobStatusSuccess).
		Count(&stats.Success).Error; err != nil {
		return stats, err
	}

	stats.Failed = stats.Total - stats.Success
	return stats, nil
}
