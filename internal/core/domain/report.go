package domain

import "time"

type ReportStatus string

const (
	StatusUploaded   ReportStatus = "uploaded"
	StatusProcessing ReportStatus = "processing"
	StatusIndexed    ReportStatus = "indexed"
	StatusFailed     ReportStatus = "failed"
)

// Report is a registry row for one uploaded financial report file.
type Report struct {
	ID          string       `json:"id"`
	Filename    string       `json:"filename"`
	ContentType string       `json:"content_type"`
	SizeBytes   int64        `json:"size_bytes"`
	StoragePath string       `json:"storage_path"`
	Company     string       `json:"company,omitempty"`
	ReportYear  string       `json:"report_year,omitempty"`
	Status      ReportStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	PageCount   int          `json:"page_count"`
	TableCount  int          `json:"table_count"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ProcessingJob records one worker processing run for a report.
type ProcessingJob struct {
	ID         string     `json:"id"`
	ReportID   string     `json:"report_id"`
	Status     JobStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	PageCount  int        `json:"page_count"`
	TableCount int        `json:"table_count"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
