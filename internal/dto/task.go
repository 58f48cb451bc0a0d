package dto

import (
	"fmt"
	"time"

	"github.com/yukikurage/monday-task-gateway/internal/models"
	"github.com/yukikurage/monday-task-gateway/internal/services"
)

// UpsertRequest is the payload of POST /api/tasks. WaitSeconds bounds
// how long the caller is willing to block before the batch is converted
// into a background job.
type UpsertRequest struct {
	Tasks       []models.TaskRequest `json:"tasks" binding:"required"`
	WaitSeconds *int                 `json:"wait_seconds,omitempty"`
}

// BatchResponse reports a finished upsert batch. Message distinguishes
// "nothing created" from partial and full success.
type BatchResponse struct {
	BatchID   string                 `json:"batch_id"`
	Requested int                    `json:"requested"`
	Created   int                    `json:"created"`
	Message   string                 `json:"message"`
	Tasks     []models.PersistedTask `json:"tasks"`
	Failures  []services.BatchFailure `json:"failures,omitempty"`
	BoardURL  string                 `json:"board_url,omitempty"`
}

// ToBatchResponse builds the response for a completed batch.
func ToBatchResponse(batchID, boardURL string, requested int, results []models.PersistedTask, failures []services.BatchFailure) BatchResponse {
	resp := BatchResponse{
		BatchID:   batchID,
		Requested: requested,
		Created:   len(results),
		Tasks:     results,
		Failures:  failures,
		BoardURL:  boardURL,
	}
	switch {
	case len(results) == 0:
		resp.Message = "No tasks created, check configuration"
	case len(results) < requested:
		resp.Message = fmt.Sprintf("Created %d of %d tasks, see failures for the rest", len(results), requested)
	default:
		resp.Message = fmt.Sprintf("Created %d of %d tasks", len(results), requested)
	}
	return resp
}

// JobResponse reports an upsert batch still running in the background.
type JobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ToJobResponse builds the interim "still working" response.
func ToJobResponse(job services.Job) JobResponse {
	return JobResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Total:   job.Total,
		Message: "Batch still running, poll the job for the result",
	}
}

// TaskRecordDTO represents a history row in API responses
type TaskRecordDTO struct {
	ID              uint64    `json:"id"`
	BatchID         string    `json:"batch_id"`
	RemoteID        int64     `json:"remote_id"`
	Name            string    `json:"name"`
	ProjectTitle    string    `json:"project_title"`
	TaskTitle       string    `json:"task_title"`
	Owner           string    `json:"owner,omitempty"`
	DueDate         string    `json:"due_date,omitempty"`
	ParentItemID    int64     `json:"parent_item_id"`
	BoardID         int64     `json:"board_id"`
	SubitemsBoardID int64     `json:"subitems_board_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// HistoryResponse represents a paginated list of history rows
type HistoryResponse struct {
	Records    []TaskRecordDTO `json:"records"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalCount int64           `json:"total_count"`
	TotalPages int             `json:"total_pages"`
}

// ToTaskRecordDTO converts a TaskRecord model to TaskRecordDTO
func ToTaskRecordDTO(record models.TaskRecord) TaskRecordDTO {
	return TaskRecordDTO{
		ID:              record.ID,
		BatchID:         record.BatchID,
		RemoteID:        record.RemoteID,
		Name:            record.Name,
		ProjectTitle:    record.ProjectTitle,
		TaskTitle:       record.TaskTitle,
		Owner:           record.Owner,
		DueDate:         record.DueDate,
		ParentItemID:    record.ParentItemID,
		BoardID:         record.BoardID,
		SubitemsBoardID: record.SubitemsBoardID,
		CreatedAt:       record.CreatedAt,
	}
}

// ToHistoryResponse converts a slice of history rows to HistoryResponse
func ToHistoryResponse(records []models.TaskRecord, page, pageSize int, totalCount int64) HistoryResponse {
	items := make([]TaskRecordDTO, len(records))
	for i, record := range records {
		items[i] = ToTaskRecordDTO(record)
	}

	totalPages := int(totalCount) / pageSize
	if int(totalCount)%pageSize > 0 {
		totalPages++
	}

	return HistoryResponse{
		Records:    items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}
}
