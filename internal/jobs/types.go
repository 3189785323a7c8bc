package jobs

import (
	"context"
	"time"
)

// JobType identifies what kind of work a job carries.
type JobType string

const (
	// JobTypeProcessReceipt runs a receipt image through extraction,
	// normalization and storage.
	JobTypeProcessReceipt JobType = "process_receipt"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ProcessReceiptJob asks a worker to turn one archived receipt image
// into a stored purchase.
type ProcessReceiptJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// ImageURI is the gs:// location of the archived receipt image.
	ImageURI string `json:"image_uri"`

	// SourceFile is the original upload filename, kept for operator
	// visibility in job listings.
	SourceFile string `json:"source_file,omitempty"`

	// PurchaseID is set by the worker once the receipt has been
	// normalized and stored.
	PurchaseID string `json:"purchase_id,omitempty"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the failure detail of the last attempt.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is the generic view over all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ProcessReceiptJob) GetID() string        { return j.JobID }
func (j *ProcessReceiptJob) GetType() JobType     { return JobTypeProcessReceipt }
func (j *ProcessReceiptJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs. The abstraction keeps the API handlers
// independent of the queue implementation (in-memory today, Cloud
// Tasks or Pub/Sub if the service ever runs multi-instance).
type Publisher interface {
	// PublishProcessReceipt enqueues a receipt processing job.
	PublishProcessReceipt(ctx context.Context, job *ProcessReceiptJob) error

	Close() error
}

// Consumer pulls jobs off a queue and hands them to a handler.
type Consumer interface {
	// Start begins consuming jobs. The handler is called for each job
	// received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to finish.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error marks the attempt
// failed and eligible for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state so the API can answer status queries.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ProcessReceiptJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ProcessReceiptJob, error)

	// ListJobs retrieves jobs matching the filter.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ProcessReceiptJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	// ImageURI filters jobs by the receipt image they process.
	ImageURI string

	// Status filters jobs by lifecycle state.
	Status JobStatus

	Limit  int
	Offset int
}
