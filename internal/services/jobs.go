package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yukikurage/monday-task-gateway/internal/models"
)

type JobStatus string

const (
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
)

// Job tracks one upsert batch that outlived its caller's soft deadline.
// The batch keeps running in the background; the caller polls the job
// until it completes. An in-flight remote mutation is never abandoned
// mid-retry.
type Job struct {
	ID        string                 `json:"id"`
	Status    JobStatus              `json:"status"`
	Total     int                    `json:"total"`
	CreatedAt time.Time              `json:"created_at"`
	Results   []models.PersistedTask `json:"results,omitempty"`
	Failures  []BatchFailure         `json:"failures,omitempty"`
}

// JobRegistry is an in-memory job table. Jobs live for the process
// lifetime; the gateway is not a durable queue.
type JobRegistry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]*Job)}
}

// Start registers a running job for a batch of the given size.
func (r *JobRegistry) Start(total int) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusRunning,
		Total:     total,
		CreatedAt: time.Now(),
	}
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job
}

// Complete stores a finished batch's outcome on its job.
func (r *JobRegistry) Complete(id string, results []models.PersistedTask, failures []BatchFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	job.Status = JobStatusCompleted
	job.Results = results
	job.Failures = failures
}

// Get returns a snapshot of a job.
func (r *JobRegistry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	snapshot := *job
	snapshot.Results = append([]models.PersistedTask(nil), job.Results...)
	snapshot.Failures = append([]BatchFailure(nil), job.Failures...)
	return snapshot, true
}
