package repository

import (
	"github.com/yukikurage/monday-task-gateway/internal/models"
	"gorm.io/gorm"
)

// GormTaskRecordRepository is a GORM implementation of TaskRecordRepository
type GormTaskRecordRepository struct {
	db *gorm.DB
}

// NewTaskRecordRepository creates a new TaskRecordRepository
func NewTaskRecordRepository(db *gorm.DB) TaskRecordRepository {
	return &GormTaskRecordRepository{db: db}
}

// Create stores one persisted-task history row
func (r *GormTaskRecordRepository) Create(record *models.TaskRecord) error {
	return r.db.Create(record).Error
}

// List retrieves history rows with filtering and pagination
func (r *GormTaskRecordRepository) List(filter TaskRecordFilter) ([]models.TaskRecord, int64, error) {
	var records []models.TaskRecord

	query := r.db.Model(&models.TaskRecord{})

	if filter.ProjectTitle != "" {
		query = query.Where("project_title = ?", filter.ProjectTitle)
	}
	if filter.BatchID != "" {
		query = query.Where("batch_id = ?", filter.BatchID)
	}
	if filter.BoardID != nil {
		query = query.Where("board_id = ?", *filter.BoardID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("created_at DESC")
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		listQuery = listQuery.Offset(offset).Limit(filter.PageSize)
	}

	if err := listQuery.Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// FindByBatchID lists all rows written for one batch
func (r *GormTaskRecordRepository) FindByBatchID(batchID string) ([]models.TaskRecord, error) {
	var records []models.TaskRecord
	if err := r.db.Where("batch_id = ?", batchID).Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
