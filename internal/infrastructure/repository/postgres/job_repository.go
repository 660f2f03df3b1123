package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mhxia/finsight/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) CreateJob(ctx context.Context, job *domain.ProcessingJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO processing_jobs (id, report_id, status, error_message, page_count, table_count, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, job.ID, job.ReportID, string(job.Status), job.Error, job.PageCount, job.TableCount, job.StartedAt, job.FinishedAt)
	if err != nil {
		return fmt.Errorf("create processing job: %w", err)
	}
	return nil
}

func (r *JobRepository) FinishJob(ctx context.Context, id string, status domain.JobStatus, errMessage string, pages, tables int) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE processing_jobs
SET status = $2, error_message = $3, page_count = $4, table_count = $5, finished_at = $6
WHERE id = $1
`, id, string(status), errMessage, pages, tables, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("finish processing job: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish processing job rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrReportNotFound, "finish processing job", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *JobRepository) ListJobsByReport(ctx context.Context, reportID string) ([]domain.ProcessingJob, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, report_id, status, error_message, page_count, table_count, started_at, finished_at
FROM processing_jobs
WHERE report_id = $1
ORDER BY started_at DESC
`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list processing jobs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ProcessingJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan processing job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processing jobs: %w", err)
	}
	return out, nil
}

type jobScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row jobScanner) (domain.ProcessingJob, error) {
	var job domain.ProcessingJob
	var status string
	err := row.Scan(
		&job.ID,
		&job.ReportID,
		&status,
		&job.Error,
		&job.PageCount,
		&job.TableCount,
		&job.StartedAt,
		&job.FinishedAt,
	)
	if err != nil {
		return domain.ProcessingJob{}, err
	}
	job.Status = domain.JobStatus(status)
	return job, nil
}
