package handler

import (
	"sync"
	"time"

	"github.com/matiasvera/talklens/internal/service"
)

// JobStatus represents the current state of a batch ingestion job.
type JobStatus struct {
	ID          string                 `json:"id"`
	Status      string                 `json:"status"` // running, complete
	Total       int                    `json:"total"`
	Completed   int                    `json:"completed"`
	Failed      int                    `json:"failed"`
	Skipped     int                    `json:"skipped"`
	Results     []service.IngestResult `json:"results"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at,omitempty"`
}

// JobTracker manages ingestion jobs in memory.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
}

// NewJobTracker creates a new job tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*JobStatus)}
}

// CreateJob creates a new job entry.
func (t *JobTracker) CreateJob(id string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &JobStatus{
		ID:        id,
		Status:    "running",
		Total:     total,
		Results:   []service.IngestResult{},
		StartedAt: time.Now(),
	}
}

// RecordResult appends a per-video result to a running job.
func (t *JobTracker) RecordResult(id string, res service.IngestResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return
	}
	job.Results = append(job.Results, res)
	switch res.Status {
	case "failed":
		job.Failed++
	case "skipped":
		job.Skipped++
	default:
		job.Completed++
	}
}

// CompleteJob marks a job finished.
func (t *JobTracker) CompleteJob(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[id]; ok {
		job.Status = "complete"
		job.CompletedAt = time.Now()
	}
}

// GetJob returns a snapshot of a job's status.
func (t *JobTracker) GetJob(id string) (*JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	snapshot.Results = append([]service.IngestResult(nil), job.Results...)
	return &snapshot, true
}
