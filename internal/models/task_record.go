package models

import (
	"time"

	"gorm.io/gorm"
)

// TaskRecord is the local history row written for every task the
// gateway successfully persisted to monday.com. It exists so partial
// batches can be audited after the fact.
type TaskRecord struct {
	ID              uint64         `gorm:"primarykey" json:"id"`
	BatchID         string         `gorm:"size:36;index" json:"batch_id"`
	RemoteID        int64          `gorm:"not null;index" json:"remote_id"`
	Name            string         `gorm:"not null" json:"name"`
	ProjectTitle    string         `gorm:"not null" json:"project_title"`
	TaskTitle       string         `gorm:"not null" json:"task_title"`
	Owner           string         `json:"owner"`
	DueDate         string         `gorm:"size:10" json:"due_date"`
	ParentItemID    int64          `gorm:"not null" json:"parent_item_id"`
	BoardID         int64          `gorm:"not null" json:"board_id"`
	SubitemsBoardID int64          `gorm:"not null" json:"subitems_board_id"`
	RemoteCreatedAt string         `json:"remote_created_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}
