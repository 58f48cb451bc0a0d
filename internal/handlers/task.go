package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/monday-task-gateway/internal/constants"
	"github.com/yukikurage/monday-task-gateway/internal/dto"
	apierrors "github.com/yukikurage/monday-task-gateway/internal/errors"
	"github.com/yukikurage/monday-task-gateway/internal/repository"
	"github.com/yukikurage/monday-task-gateway/internal/services"
	"github.com/yukikurage/monday-task-gateway/internal/utils"
)

// TaskHandler serves the upsert and history endpoints.
type TaskHandler struct {
	upserts  *services.UpsertService
	jobs     *services.JobRegistry
	records  repository.TaskRecordRepository
	boardURL string
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(upserts *services.UpsertService, jobs *services.JobRegistry, records repository.TaskRecordRepository, boardURL string) *TaskHandler {
	return &TaskHandler{
		upserts:  upserts,
		jobs:     jobs,
		records:  records,
		boardURL: boardURL,
	}
}

// CreateTasks handles POST /api/tasks. The batch runs detached from the
// request context so an in-flight monday mutation is never abandoned
// mid-retry; if it outlives the caller's wait budget the response is a
// 202 with a job id to poll.
func (h *TaskHandler) CreateTasks(c *gin.Context) {
	var req dto.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}
	if len(req.Tasks) == 0 {
		apierrors.BadRequest(c, "tasks must not be empty")
		return
	}
	if len(req.Tasks) > constants.MaxBatchSize {
		apierrors.BadRequestWithDetails(c, "too many tasks in one batch", gin.H{"max": constants.MaxBatchSize})
		return
	}

	wait := constants.DefaultWaitSeconds
	if req.WaitSeconds != nil {
		wait = *req.WaitSeconds
		if wait < 0 {
			wait = 0
		}
		if wait > constants.MaxWaitSeconds {
			wait = constants.MaxWaitSeconds
		}
	}

	job := h.jobs.Start(len(req.Tasks))
	done := make(chan struct{})
	go func() {
		results, failures := h.upserts.UpsertBatch(context.Background(), job.ID, req.Tasks)
		h.jobs.Complete(job.ID, results, failures)
		close(done)
	}()

	select {
	case <-done:
		finished, _ := h.jobs.Get(job.ID)
		c.JSON(http.StatusOK, dto.ToBatchResponse(job.ID, h.boardURL, len(req.Tasks), finished.Results, finished.Failures))
	case <-time.After(time.Duration(wait) * time.Second):
		snapshot, _ := h.jobs.Get(job.ID)
		c.JSON(http.StatusAccepted, dto.ToJobResponse(snapshot))
	}
}

// GetJob handles GET /api/jobs/:id
func (h *TaskHandler) GetJob(c *gin.Context) {
	job, ok := h.jobs.Get(c.Param("id"))
	if !ok {
		apierrors.NotFound(c, "Job not found")
		return
	}
	if job.Status != services.JobStatusCompleted {
		c.JSON(http.StatusAccepted, dto.ToJobResponse(job))
		return
	}
	c.JSON(http.StatusOK, dto.ToBatchResponse(job.ID, h.boardURL, job.Total, job.Results, job.Failures))
}

// ListHistory handles GET /api/tasks
func (h *TaskHandler) ListHistory(c *gin.Context) {
	pagination := utils.GetPaginationParams(c)

	filter := repository.TaskRecordFilter{
		ProjectTitle: c.Query("project_title"),
		BatchID:      c.Query("batch_id"),
		Page:         pagination.Page,
		PageSize:     pagination.Limit,
	}

	records, total, err := h.records.List(filter)
	if err != nil {
		apierrors.InternalError(c, "Failed to list task history")
		return
	}

	c.JSON(http.StatusOK, dto.ToHistoryResponse(records, pagination.Page, pagination.Limit, total))
}
