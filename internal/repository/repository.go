package repository

import (
	"github.com/yukikurage/monday-task-gateway/internal/models"
)

// TaskRecordRepository defines the interface for upsert history access
type TaskRecordRepository interface {
	// Create stores one persisted-task history row
	Create(record *models.TaskRecord) error

	// List retrieves history rows with filtering and pagination
	List(filter TaskRecordFilter) ([]models.TaskRecord, int64, error)

	// FindByBatchID lists all rows written for one batch
	FindByBatchID(batchID string) ([]models.TaskRecord, error)
}

// TaskRecordFilter holds filtering options for listing history rows
type TaskRecordFilter struct {
	ProjectTitle string
	BatchID      string
	BoardID      *int64
	Page         int
	PageSize     int
}
